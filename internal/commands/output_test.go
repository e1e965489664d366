package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/erpsync/internal/core/cache"
	"github.com/colonyops/erpsync/internal/core/notify"
	"github.com/colonyops/erpsync/internal/printer"
	"github.com/colonyops/erpsync/pkg/tuitest"
)

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, []cache.Record{
		{"id": "1", "name": "Acme", "city": "Oslo"},
		{"id": "2", "name": "Globex\tInc", "city": "Bergen"},
	}, "id")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "CITY", "NAME"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "Oslo", "Acme"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "Bergen", "Globex", "Inc"}, strings.Fields(lines[2]), "tabs inside cells must not break alignment")
}

func TestWriteRecordLines(t *testing.T) {
	var buf bytes.Buffer
	err := writeRecordLines(&buf, []cache.Record{
		{"id": "1", "name": "Acme"},
		{"id": "2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":\"1\",\"name\":\"Acme\"}\n{\"id\":\"2\"}\n", buf.String())
}

func TestReportQueue_OldestFirst(t *testing.T) {
	q := notify.New(notify.Config{Capacity: 5, HideAfter: time.Minute, Grace: time.Second})
	t.Cleanup(q.ClearAll)

	q.Add(notify.Record{Severity: notify.SeveritySuccess, Title: "Created vendor", Message: "Acme"})
	q.Errorf("Undo failed")

	var buf bytes.Buffer
	reportQueue(printer.New(&buf), q)

	out := tuitest.StripANSI(buf.String())
	assert.Contains(t, out, "Created vendor: Acme")
	assert.Contains(t, out, "Undo failed")
	assert.NotContains(t, out, ": Undo failed", "records without a title print the message alone")
	assert.Less(t, strings.Index(out, "Created vendor"), strings.Index(out, "Undo failed"))
}
