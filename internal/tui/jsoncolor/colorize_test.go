package jsoncolor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/colonyops/erpsync/pkg/tuitest"
)

func TestColorize_Layout(t *testing.T) {
	input := []byte(`{"name":"Acme","rating":4,"active":true,"tags":["a","b"],"owner":null,"meta":{}}`)

	want := `{
  "name": "Acme",
  "rating": 4,
  "active": true,
  "tags": [
    "a",
    "b"
  ],
  "owner": null,
  "meta": {}
}`
	assert.Equal(t, want, tuitest.StripANSI(Colorize(input)))
}

func TestColorize_InvalidJSON(t *testing.T) {
	tests := []string{`not json at all`, `{"name":`, `{"a":1}}`}
	for _, in := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, in, Colorize([]byte(in)))
		})
	}
}

func TestColorize_Scalars(t *testing.T) {
	assert.Equal(t, "42", tuitest.StripANSI(Colorize([]byte(`42`))))
	assert.Equal(t, "[]", tuitest.StripANSI(Colorize([]byte(`[]`))))
}

func TestColorize_KeepsEscapesAndNumbers(t *testing.T) {
	out := tuitest.StripANSI(Colorize([]byte(`{"msg":"hello \"world\" <b>","exp":1e10,"neg":-1.5}`)))
	assert.Contains(t, out, `"hello \"world\" <b>"`)
	assert.Contains(t, out, "1e10")
	assert.Contains(t, out, "-1.5")
}

func TestValue(t *testing.T) {
	out := tuitest.StripANSI(Value(map[string]any{"id": 7}))
	assert.Equal(t, "{\n  \"id\": 7\n}", out)
}
