package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"
)

// ErrShape is returned when a payload does not match the kind declared for
// its endpoint.
var ErrShape = errors.New("payload does not match endpoint kind")

// Kind is the declared shape of an endpoint's payload.
type Kind int

const (
	KindList Kind = iota
	KindSingle
)

func (k Kind) String() string {
	switch k {
	case KindList:
		return "list"
	case KindSingle:
		return "single"
	default:
		return "unknown"
	}
}

// ParseKind parses "list" or "single". Empty input is a list.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "list":
		return KindList, nil
	case "single":
		return KindSingle, nil
	default:
		return KindList, fmt.Errorf("unknown endpoint kind %q", s)
	}
}

// Record is one server-side object. Numbers are kept as json.Number.
// Records handed out by the cache are shared and must not be modified.
type Record map[string]any

// String returns field as a string. Missing fields yield "".
func (r Record) String(field string) string {
	return stringify(r[field])
}

// ID returns the value of the identity field as a string.
func (r Record) ID(field string) string {
	return r.String(field)
}

// Clone returns a shallow copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Columns lists the fields of recs for tabular display: idField first, then
// every other field in name order. A positive limit caps the result.
func Columns(recs []Record, idField string, limit int) []string {
	seen := map[string]bool{idField: true}
	var rest []string
	for _, r := range recs {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	slices.Sort(rest)

	cols := append([]string{idField}, rest...)
	if limit > 0 && len(cols) > limit {
		cols = cols[:limit]
	}
	return cols
}

// Snapshot is the last-known server state of an endpoint.
type Snapshot struct {
	Kind      Kind
	Items     []Record
	Item      Record
	Version   uint64
	UpdatedAt time.Time
}

// Len returns the number of records held.
func (s Snapshot) Len() int {
	if s.Kind == KindSingle {
		if s.Item == nil {
			return 0
		}
		return 1
	}
	return len(s.Items)
}

// Records returns the records as a sequence regardless of kind.
func (s Snapshot) Records() []Record {
	if s.Kind == KindSingle {
		if s.Item == nil {
			return nil
		}
		return []Record{s.Item}
	}
	return s.Items
}

// Find returns the record whose identity field equals id.
func (s Snapshot) Find(field, id string) (Record, bool) {
	for _, r := range s.Records() {
		if r.ID(field) == id {
			return r, true
		}
	}
	return nil, false
}

func (s Snapshot) withAppended(rec Record) Snapshot {
	if s.Kind == KindSingle {
		s.Item = rec
		return s
	}
	items := make([]Record, 0, len(s.Items)+1)
	items = append(items, s.Items...)
	s.Items = append(items, rec)
	return s
}

func (s Snapshot) withReplaced(field, id string, rec Record) (Snapshot, bool) {
	if s.Kind == KindSingle {
		if id == "" || (s.Item != nil && s.Item.ID(field) == id) {
			s.Item = rec
			return s, true
		}
		return s, false
	}
	i := slices.IndexFunc(s.Items, func(r Record) bool { return r.ID(field) == id })
	if i < 0 {
		return s, false
	}
	s.Items = slices.Clone(s.Items)
	s.Items[i] = rec
	return s, true
}

func (s Snapshot) withRemoved(field, id string) (Snapshot, bool) {
	if s.Kind == KindSingle {
		if id == "" || (s.Item != nil && s.Item.ID(field) == id) {
			s.Item = nil
			return s, true
		}
		return s, false
	}
	i := slices.IndexFunc(s.Items, func(r Record) bool { return r.ID(field) == id })
	if i < 0 {
		return s, false
	}
	s.Items = slices.Delete(slices.Clone(s.Items), i, i+1)
	return s, true
}

// Decode parses raw into a snapshot of the given kind.
func Decode(kind Kind, raw json.RawMessage) (Snapshot, error) {
	s := Snapshot{Kind: kind}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return s, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	switch kind {
	case KindSingle:
		if trimmed[0] != '{' {
			return s, fmt.Errorf("%w: expected object for %s endpoint", ErrShape, kind)
		}
		if err := dec.Decode(&s.Item); err != nil {
			return s, fmt.Errorf("decode object: %w", err)
		}
	default:
		if trimmed[0] != '[' {
			return s, fmt.Errorf("%w: expected array for %s endpoint", ErrShape, kind)
		}
		if err := dec.Decode(&s.Items); err != nil {
			return s, fmt.Errorf("%w: %w", ErrShape, err)
		}
	}
	return s, nil
}

// decodeRecord parses a mutation response. Empty or non-object bodies fall
// back to the request payload so the snapshot still reflects the write.
func decodeRecord(raw json.RawMessage, payload any) Record {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		var rec Record
		if err := dec.Decode(&rec); err == nil {
			return rec
		}
	}
	return toRecord(payload)
}

func toRecord(payload any) Record {
	switch p := payload.(type) {
	case nil:
		return nil
	case Record:
		return p.Clone()
	case map[string]any:
		return Record(p).Clone()
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var rec Record
	if err := dec.Decode(&rec); err != nil {
		return nil
	}
	return rec
}
