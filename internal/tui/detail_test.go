package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/erpsync/internal/core/cache"
)

func TestRecordMarkdown(t *testing.T) {
	md := recordMarkdown("/api/crm/leads #7", cache.Record{
		"name":  "Acme | Co",
		"notes": "line one\nline two",
		"id":    7,
	})

	assert.Equal(t, "## /api/crm/leads #7\n\n"+
		"| Field | Value |\n|---|---|\n"+
		"| id | 7 |\n"+
		"| name | Acme \\| Co |\n"+
		"| notes | line one line two |\n", md)
}
