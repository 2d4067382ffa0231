package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
)

// NewRequest creates a request with body encoded as JSON when non-nil.
func NewRequest(method, path string, body any) *http.Request {
	if body == nil {
		return httptest.NewRequest(method, path, nil)
	}
	b, _ := json.Marshal(body)
	r := httptest.NewRequest(method, path, bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// Envelope is the decoded response envelope.
type Envelope struct {
	Code    int
	Header  http.Header
	Success bool
	Data    json.RawMessage
	Meta    map[string]any
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
}

// RecordEnvelope decodes the recorded response. Bodies that are not JSON
// leave the body fields zero.
func RecordEnvelope(w *httptest.ResponseRecorder) Envelope {
	result := w.Result()
	defer result.Body.Close()

	env := Envelope{Code: result.StatusCode, Header: result.Header}
	raw, _ := io.ReadAll(result.Body)
	var body struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Meta    map[string]any  `json:"meta"`
		Error   json.RawMessage `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return env
	}
	env.Success, env.Data, env.Meta = body.Success, body.Data, body.Meta
	if len(body.Error) > 0 {
		_ = json.Unmarshal(body.Error, &env.Error)
	}
	return env
}
