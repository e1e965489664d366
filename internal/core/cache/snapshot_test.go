package cache

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		raw     string
		wantLen int
		wantErr bool
	}{
		{name: "list", kind: KindList, raw: `[{"id":1},{"id":2}]`, wantLen: 2},
		{name: "empty list", kind: KindList, raw: `[]`},
		{name: "null list", kind: KindList, raw: `null`},
		{name: "empty body", kind: KindSingle, raw: ``},
		{name: "single", kind: KindSingle, raw: ` {"id":1} `, wantLen: 1},
		{name: "object for list", kind: KindList, raw: `{"id":1}`, wantErr: true},
		{name: "array for single", kind: KindSingle, raw: `[]`, wantErr: true},
		{name: "scalar list items", kind: KindList, raw: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Decode(tt.kind, json.RawMessage(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrShape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, snap.Kind)
			assert.Equal(t, tt.wantLen, snap.Len())
		})
	}
}

func TestDecode_KeepsNumberPrecision(t *testing.T) {
	snap, err := Decode(KindList, json.RawMessage(`[{"id":9007199254740993,"amount":12.50}]`))
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "9007199254740993", snap.Items[0].ID("id"))
	assert.Equal(t, "12.50", snap.Items[0].String("amount"))
}

func TestSnapshot_CopyOnWrite(t *testing.T) {
	orig := Snapshot{Kind: KindList, Items: []Record{{"id": "1"}, {"id": "2"}}}

	appended := orig.withAppended(Record{"id": "3"})
	assert.Len(t, orig.Items, 2)
	assert.Len(t, appended.Items, 3)

	replaced, ok := orig.withReplaced("id", "2", Record{"id": "2", "name": "x"})
	require.True(t, ok)
	assert.Equal(t, "x", replaced.Items[1].String("name"))
	assert.Empty(t, orig.Items[1].String("name"))

	removed, ok := orig.withRemoved("id", "1")
	require.True(t, ok)
	assert.Len(t, removed.Items, 1)
	assert.Len(t, orig.Items, 2)

	_, ok = orig.withRemoved("id", "42")
	assert.False(t, ok)
}

func TestSnapshot_Find(t *testing.T) {
	s := Snapshot{Kind: KindList, Items: []Record{{"id": json.Number("4"), "name": "Acme"}}}

	rec, ok := s.Find("id", "4")
	require.True(t, ok)
	assert.Equal(t, "Acme", rec.String("name"))

	_, ok = s.Find("id", "5")
	assert.False(t, ok)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("single")
	require.NoError(t, err)
	assert.Equal(t, KindSingle, k)

	k, err = ParseKind("")
	require.NoError(t, err)
	assert.Equal(t, KindList, k)

	_, err = ParseKind("tree")
	require.Error(t, err)
}

func TestColumns(t *testing.T) {
	recs := []Record{
		{"id": 1, "name": "Acme", "status": "new"},
		{"id": 2, "owner": "kim", "amount": 10, "city": "Oslo", "zip": "0150", "email": "a@b.c"},
	}

	assert.Equal(t, []string{"id", "amount", "city", "email", "name", "owner"}, Columns(recs, "id", 6))
	assert.Len(t, Columns(recs, "id", 0), 8)
	assert.Equal(t, []string{"id"}, Columns(nil, "id", 6))
}
