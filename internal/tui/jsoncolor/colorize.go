// Package jsoncolor renders JSON documents indented and colored with the
// active theme.
package jsoncolor

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/erpsync/internal/core/styles"
)

const indent = "  "

// frame is one open object or array. n counts the tokens written into it;
// inside an object even counts are keys and odd counts are values.
type frame struct {
	object bool
	n      int
}

type printer struct {
	b     strings.Builder
	stack []*frame
}

// Colorize pretty-prints data with syntax coloring. Anything that is not a
// single well-formed JSON value is returned unchanged.
func Colorize(data []byte) string {
	out, err := colorize(data)
	if err != nil {
		return string(data)
	}
	return out
}

// Value marshals v and colorizes the result.
func Value(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return Colorize(data)
}

func colorize(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	p := &printer{}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch v := tok.(type) {
		case json.Delim:
			p.delim(v)
		case string:
			if p.expectKey() {
				p.key(v)
			} else {
				p.value(styles.JSONStringStyle, quote(v))
			}
		case json.Number:
			p.value(styles.JSONNumberStyle, v.String())
		case bool:
			lit := "false"
			if v {
				lit = "true"
			}
			p.value(styles.JSONLiteralStyle, lit)
		case nil:
			p.value(styles.JSONNullStyle, "null")
		}
	}

	if len(p.stack) > 0 {
		return "", io.ErrUnexpectedEOF
	}
	return p.b.String(), nil
}

func (p *printer) top() *frame {
	if len(p.stack) == 0 {
		return nil
	}
	return p.stack[len(p.stack)-1]
}

func (p *printer) expectKey() bool {
	f := p.top()
	return f != nil && f.object && f.n%2 == 0
}

// open writes the separator that precedes a key, an array element, or an
// object value.
func (p *printer) open() {
	f := p.top()
	if f == nil {
		return
	}
	if f.object && f.n%2 == 1 {
		f.n++
		return
	}
	if f.n > 0 {
		p.b.WriteString(styles.JSONPunctStyle.Render(","))
	}
	p.newline(len(p.stack))
	f.n++
}

func (p *printer) newline(depth int) {
	p.b.WriteByte('\n')
	p.b.WriteString(strings.Repeat(indent, depth))
}

func (p *printer) key(k string) {
	p.open()
	p.b.WriteString(styles.JSONKeyStyle.Render(quote(k)))
	p.b.WriteString(styles.JSONPunctStyle.Render(":") + " ")
}

func (p *printer) value(style lipgloss.Style, s string) {
	p.open()
	p.b.WriteString(style.Render(s))
}

func (p *printer) delim(d json.Delim) {
	switch d {
	case '{', '[':
		p.open()
		p.b.WriteString(styles.JSONPunctStyle.Render(d.String()))
		p.stack = append(p.stack, &frame{object: d == '{'})
	case '}', ']':
		f := p.top()
		p.stack = p.stack[:len(p.stack)-1]
		if f.n > 0 {
			p.newline(len(p.stack))
		}
		p.b.WriteString(styles.JSONPunctStyle.Render(d.String()))
	}
}

func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return `"` + s + `"`
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
