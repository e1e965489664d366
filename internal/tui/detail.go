package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/styles"
)

// recordMarkdown lays a record out as a two-column markdown table.
func recordMarkdown(title string, rec cache.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", title)
	b.WriteString("| Field | Value |\n|---|---|\n")

	fields := make([]string, 0, len(rec))
	for k := range rec {
		fields = append(fields, k)
	}
	slices.Sort(fields)

	for _, f := range fields {
		v := strings.ReplaceAll(rec.String(f), "|", `\|`)
		v = strings.ReplaceAll(v, "\n", " ")
		fmt.Fprintf(&b, "| %s | %s |\n", f, v)
	}
	return b.String()
}

// renderDetail renders a record with glamour, falling back to the raw
// markdown when the renderer fails.
func renderDetail(title string, rec cache.Record, width int) string {
	md := recordMarkdown(title, rec)

	opts := []glamour.TermRendererOption{glamour.WithStyles(styles.GlamourStyle())}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		log.Debug().Err(err).Msg("glamour renderer")
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		log.Debug().Err(err).Msg("glamour render")
		return md
	}
	return strings.TrimRight(out, "\n")
}
