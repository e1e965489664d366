package commands

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/notify"
	"github.com/colonyops/erpsync/internal/printer"
	"github.com/colonyops/erpsync/pkg/iojson"
)

// maxTableColumns keeps wide records readable in a terminal.
const maxTableColumns = 8

// writeTable prints records as an aligned table with the identity field first.
func writeTable(w io.Writer, recs []cache.Record, idField string) {
	cols := cache.Columns(recs, idField, maxTableColumns)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = strings.ToUpper(c)
	}
	_, _ = fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, r := range recs {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = strings.ReplaceAll(r.String(c), "\t", " ")
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}

// writeRecordLines writes one compact JSON object per record.
func writeRecordLines(w io.Writer, recs []cache.Record) error {
	for _, r := range recs {
		if err := iojson.WriteLine(w, r); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return nil
}

// reportQueue prints the queue oldest first, the order the events happened.
func reportQueue(p *printer.Printer, q *notify.Queue) {
	recs := q.List()
	slices.Reverse(recs)

	for _, r := range recs {
		text := r.Title
		switch {
		case text == "":
			text = r.Message
		case r.Message != "":
			text += ": " + r.Message
		}
		switch r.Severity {
		case notify.SeverityError:
			p.Errorf("%s", text)
		case notify.SeverityWarning:
			p.Warnf("%s", text)
		case notify.SeveritySuccess:
			p.Successf("%s", text)
		default:
			p.Infof("%s", text)
		}
	}
}
