// Package printer writes human-facing status lines for CLI commands.
package printer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/colonyops/erpsync/internal/core/styles"
)

type ctxKey struct{}

// Printer renders leveled, styled messages to a writer.
type Printer struct {
	w io.Writer
}

func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// NewContext returns a copy of ctx carrying p.
func NewContext(ctx context.Context, p *Printer) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// Ctx returns the printer stored in ctx, or one writing to stderr.
func Ctx(ctx context.Context) *Printer {
	if p, ok := ctx.Value(ctxKey{}).(*Printer); ok && p != nil {
		return p
	}
	return New(os.Stderr)
}

func (p *Printer) line(style lipgloss.Style, icon, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintln(p.w, style.Render(icon)+" "+msg)
}

func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) Infof(format string, args ...any) {
	p.line(styles.PrinterInfoStyle, styles.IconNotifyInfo, format, args...)
}

func (p *Printer) Successf(format string, args ...any) {
	p.line(styles.PrinterSuccessStyle, styles.IconNotifySuccess, format, args...)
}

func (p *Printer) Warnf(format string, args ...any) {
	p.line(styles.PrinterWarningStyle, styles.IconNotifyWarning, format, args...)
}

func (p *Printer) Errorf(format string, args ...any) {
	p.line(styles.PrinterErrorStyle, styles.IconNotifyError, format, args...)
}

// Success prints a title with an optional muted detail line.
func (p *Printer) Success(title, detail string) {
	p.Successf("%s", title)
	if detail != "" {
		_, _ = fmt.Fprintln(p.w, "  "+styles.MutedStyle.Render(detail))
	}
}
