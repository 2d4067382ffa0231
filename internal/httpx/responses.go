package httpx

import (
	"encoding/json"
	"net/http"
)

type SuccessResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Meta    any  `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   ErrorResponseBody `json:"error"`
	Meta    any               `json:"meta,omitempty"`
}

type ErrorResponseBody struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func buildMeta(r *http.Request, custom map[string]any) map[string]any {
	requestID := ""
	if r != nil {
		requestID = RequestIDFrom(r)
	}
	if requestID == "" && len(custom) == 0 {
		return nil
	}
	meta := make(map[string]any, len(custom)+1)
	for k, v := range custom {
		meta[k] = v
	}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	return meta
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// JSONSuccess writes a 200 envelope. meta entries are merged with the
// request id.
func JSONSuccess(w http.ResponseWriter, r *http.Request, data any, meta map[string]any) {
	resp := SuccessResponse{Success: true, Data: data}
	if m := buildMeta(r, meta); m != nil {
		resp.Meta = m
	}
	writeJSON(w, http.StatusOK, resp)
}

// JSONAccepted is JSONSuccess with 202, for jobs started on request.
func JSONAccepted(w http.ResponseWriter, r *http.Request, data any) {
	resp := SuccessResponse{Success: true, Data: data}
	if m := buildMeta(r, nil); m != nil {
		resp.Meta = m
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func JSONError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, details []ErrorDetail) {
	resp := ErrorResponse{
		Success: false,
		Error: ErrorResponseBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	if m := buildMeta(r, nil); m != nil {
		resp.Meta = m
	}
	writeJSON(w, statusCode, resp)
}
