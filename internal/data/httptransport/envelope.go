package httptransport

import (
	"bytes"
	"encoding/json"
)

// envelope is the ERP API response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *errorInfo      `json:"error"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// parseEnvelope reports whether body is a {success,...} wrapper and returns
// it. Any pagination block is ignored; pagers decide from page length. Bodies that are not objects, or objects without a success flag, are
// passed through untouched.
func parseEnvelope(body []byte) (envelope, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return envelope{}, false
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Success == nil {
		return envelope{}, false
	}
	return env, true
}
