package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// JSONResponse is the envelope of every API response.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError is the error half of the envelope. Code is machine-readable.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseMeta is attached to every response; TotalCount only to lists.
type ResponseMeta struct {
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version,omitempty"`
	TotalCount int       `json:"total_count,omitempty"`
}

const apiVersion = "v1"

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	send(w, status, JSONResponse{Data: data, Meta: &ResponseMeta{}})
}

// writeList adds the item count to the meta block.
func writeList(w http.ResponseWriter, r *http.Request, data interface{}, n int) {
	send(w, http.StatusOK, JSONResponse{
		Data:      data,
		Meta:      &ResponseMeta{TotalCount: n},
		RequestID: requestIDFrom(r.Context()),
	})
}

func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	writeJSONErrorWithDetails(w, status, code, message, "")
}

func writeJSONErrorWithDetails(w http.ResponseWriter, status int, code, message, details string) {
	send(w, status, JSONResponse{
		Error: &APIError{Code: code, Message: message, Details: details},
		Meta:  &ResponseMeta{},
	})
}

// send fills the envelope fields every response shares and encodes it.
func send(w http.ResponseWriter, status int, resp JSONResponse) {
	resp.Success = status >= 200 && status < 300
	resp.Meta.Timestamp = time.Now().UTC()
	if resp.Error == nil {
		resp.Meta.Version = apiVersion
	}
	if resp.RequestID == "" {
		resp.RequestID = w.Header().Get("X-Request-ID")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// ──────────────────────────────────────────────────────────────────────────────
// Query parameters
// ──────────────────────────────────────────────────────────────────────────────

func queryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// queryInt falls back to def when the parameter is absent or not a number.
func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(queryString(r, key))
	if err != nil {
		return def
	}
	return n
}

// queryList accepts both ?k=a,b and ?k=a&k=b.
func queryList(r *http.Request, key string) []string {
	var out []string
	for _, v := range r.URL.Query()[key] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
