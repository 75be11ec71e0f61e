package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/polyedge/polyedge/internal/domain"
	"github.com/polyedge/polyedge/internal/tracking"
)

// SignalReader is the slice of the signal store the handler needs.
type SignalReader interface {
	GetSignal(ctx context.Context, id string) (domain.Signal, error)
	ListSignals(ctx context.Context, opts domain.SignalListOpts) ([]domain.Signal, error)
}

// StatsProvider supplies the aggregated track record.
type StatsProvider interface {
	Performance(ctx context.Context) (tracking.PerformanceSummary, error)
}

// SignalHandler serves signal-related HTTP endpoints.
type SignalHandler struct {
	signals SignalReader
	stats   StatsProvider
	logger  *slog.Logger
}

// NewSignalHandler creates a SignalHandler.
func NewSignalHandler(signals SignalReader, stats StatsProvider, logger *slog.Logger) *SignalHandler {
	return &SignalHandler{
		signals: signals,
		stats:   stats,
		logger:  logger,
	}
}

// listSignalsResponse wraps the list endpoint output with metadata.
type listSignalsResponse struct {
	Signals []domain.Signal `json:"signals"`
	Count   int             `json:"count"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListSignals returns signals newest first, filterable by status and type.
// GET /api/signals?status=ACTIVE&type=VOLUME_SURGE&limit=50&offset=0
func (h *SignalHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	opts := parseSignalListOpts(r)

	signals, err := h.signals.ListSignals(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list signals failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list signals")
		return
	}
	if signals == nil {
		signals = []domain.Signal{}
	}

	writeJSON(w, http.StatusOK, listSignalsResponse{
		Signals: signals,
		Count:   len(signals),
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetSignal returns a single signal by its ID.
// GET /api/signals/{id}
func (h *SignalHandler) GetSignal(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing signal id")
		return
	}

	sig, err := h.signals.GetSignal(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "signal not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get signal failed",
			slog.String("signal_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get signal")
		return
	}

	writeJSON(w, http.StatusOK, sig)
}

// GetStats returns the aggregated track record, overall and per rule type.
// GET /api/stats
func (h *SignalHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.stats.Performance(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: stats failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
