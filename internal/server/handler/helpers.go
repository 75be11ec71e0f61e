// Package handler implements the HTTP API handlers for the signal service.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/polyedge/polyedge/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parsePagination extracts limit/offset from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()

	limit = 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

// parseSignalListOpts extracts signal filters and pagination from the query
// string. Unknown status or type values are passed through; the store simply
// matches nothing.
func parseSignalListOpts(r *http.Request) domain.SignalListOpts {
	limit, offset := parsePagination(r)
	q := r.URL.Query()
	return domain.SignalListOpts{
		Status: domain.SignalStatus(q.Get("status")),
		Type:   domain.SignalType(q.Get("type")),
		Limit:  limit,
		Offset: offset,
	}
}
