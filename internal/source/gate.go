// Package source provides the upstream data source abstractions shared by the
// Polymarket, news, and social connectors, plus the availability gate that
// keeps a rate-limited upstream from being hammered.
package source

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// maxBackoff caps the exponential backoff applied after consecutive
// rate-limit failures.
const maxBackoff = 2 * time.Hour

// Gate tracks the availability of a single upstream API. After a rate-limit
// failure the gate closes for a backoff window; the window doubles per
// consecutive failure and resets on the first success.
type Gate struct {
	name   string
	base   time.Duration
	logger *slog.Logger

	mu           sync.Mutex
	limitedUntil time.Time
	failures     int
	lastErr      error
}

// NewGate returns a Gate for the named upstream. base is the backoff applied
// after the first rate-limit failure.
func NewGate(name string, base time.Duration, logger *slog.Logger) *Gate {
	if base <= 0 {
		base = 15 * time.Minute
	}
	return &Gate{
		name:   name,
		base:   base,
		logger: logger.With(slog.String("component", "gate"), slog.String("upstream", name)),
	}
}

// Available reports whether the upstream may be called right now.
func (g *Gate) Available() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Now().After(g.limitedUntil)
}

// MarkLimited records a rate-limit failure and closes the gate. If the
// upstream supplied a Retry-After hint, retryAfter is honored as-is; otherwise
// pass zero and the gate applies base * 2^failures, capped at two hours.
func (g *Gate) MarkLimited(err error, retryAfter time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	backoff := retryAfter
	if backoff <= 0 {
		backoff = g.base << g.failures
		if backoff > maxBackoff || backoff <= 0 {
			backoff = maxBackoff
		}
	}
	g.failures++
	g.lastErr = err
	g.limitedUntil = time.Now().Add(backoff)

	g.logger.Warn("upstream rate limited, closing gate",
		slog.Duration("backoff", backoff),
		slog.Int("consecutive_failures", g.failures),
		slog.Any("error", err))
}

// MarkSuccess resets the failure streak after a successful call.
func (g *Gate) MarkSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failures > 0 {
		g.logger.Info("upstream recovered, resetting gate",
			slog.Int("cleared_failures", g.failures))
	}
	g.failures = 0
	g.lastErr = nil
	g.limitedUntil = time.Time{}
}

// GateStatus is a point-in-time snapshot of a gate, surfaced by the scanner
// status endpoint.
type GateStatus struct {
	Name         string     `json:"name"`
	Available    bool       `json:"available"`
	Failures     int        `json:"consecutive_failures"`
	LimitedUntil *time.Time `json:"limited_until,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// Status returns a snapshot of the gate's current state.
func (g *Gate) Status() GateStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	st := GateStatus{
		Name:      g.name,
		Available: time.Now().After(g.limitedUntil),
		Failures:  g.failures,
	}
	if !g.limitedUntil.IsZero() && g.limitedUntil.After(time.Now()) {
		until := g.limitedUntil
		st.LimitedUntil = &until
	}
	if g.lastErr != nil {
		st.LastError = g.lastErr.Error()
	}
	return st
}

// Execute runs call and returns def when the gate is closed or the call
// fails. The connectors mark the gate themselves on rate-limit responses, so
// a failed call here closes the gate for subsequent callers too.
func Execute[T any](ctx context.Context, g *Gate, def T, call func(ctx context.Context) (T, error)) T {
	if !g.Available() {
		return def
	}
	v, err := call(ctx)
	if err != nil {
		return def
	}
	return v
}
