package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/polyedge/polyedge/internal/signal"
)

// Scanner is the slice of the scanner API the handler needs.
type Scanner interface {
	RunScan(ctx context.Context, overrideSlugs []string, persist bool) signal.ScanResult
	Status() signal.ScannerStatus
}

// ScanHandler serves on-demand scan and scanner status endpoints.
type ScanHandler struct {
	scanner Scanner
	logger  *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(scanner Scanner, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{scanner: scanner, logger: logger}
}

// scanRequest is the optional POST body for a triggered scan. When Slugs is
// set the scan covers only those markets; Persist defaults to true.
type scanRequest struct {
	Slugs   []string `json:"slugs"`
	Persist *bool    `json:"persist"`
}

// TriggerScan runs one scan pass synchronously and returns its result.
// POST /api/scan
func (h *ScanHandler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	persist := true
	if req.Persist != nil {
		persist = *req.Persist
	}

	h.logger.InfoContext(r.Context(), "handler: scan requested",
		slog.Int("override_slugs", len(req.Slugs)),
		slog.Bool("persist", persist),
	)

	result := h.scanner.RunScan(r.Context(), req.Slugs, persist)
	writeJSON(w, http.StatusOK, result)
}

// GetStatus returns the scanner configuration and source health snapshot.
// GET /api/scanner/status
func (h *ScanHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.scanner.Status())
}
