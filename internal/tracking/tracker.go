// Package tracking updates signal performance over time: horizon price
// checkpoints, resolution when markets close, and expiry of stale signals.
package tracking

import (
	"context"
	"log/slog"
	"time"

	"github.com/polyedge/polyedge/internal/domain"
	"github.com/polyedge/polyedge/internal/notify"
)

// Notifier is the slice of the notification API the tracker needs.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Tracker periodically refreshes the tracking block of every active signal.
type Tracker struct {
	store    domain.SignalStore
	markets  domain.MarketSource
	logger   *slog.Logger
	notifier Notifier // may be nil

	// expireDays is the age at which an active signal with no resolution is
	// written off as EXPIRED.
	expireDays int
}

// NewTracker creates a Tracker.
func NewTracker(store domain.SignalStore, markets domain.MarketSource, expireDays int, logger *slog.Logger) *Tracker {
	if expireDays <= 0 {
		expireDays = 30
	}
	return &Tracker{
		store:      store,
		markets:    markets,
		logger:     logger.With(slog.String("component", "tracker")),
		expireDays: expireDays,
	}
}

// SetNotifier enables resolution notifications. A nil notifier disables them.
func (t *Tracker) SetNotifier(n Notifier) {
	t.notifier = n
}

// UpdateSignal refreshes one signal's tracking block from the current market
// price. Each horizon checkpoint is written at most once; a missing market or
// missing price is a no-op, never an error that fails the batch.
func (t *Tracker) UpdateSignal(ctx context.Context, sig domain.Signal) error {
	market, err := t.markets.GetMarket(ctx, sig.MarketID)
	if err != nil {
		t.logger.Warn("could not fetch market for signal",
			slog.String("signal_id", sig.ID),
			slog.String("market_id", sig.MarketID),
			slog.Any("error", err))
		return nil
	}
	if market.CurrentPrice == nil {
		t.logger.Warn("market has no price, skipping tracking update",
			slog.String("signal_id", sig.ID))
		return nil
	}

	now := time.Now().UTC()

	// A market that is no longer tradeable only matters if it closed, which
	// resolves the signal.
	if !market.IsCurrent(now) {
		if market.Closed && sig.Status == domain.StatusActive {
			return t.resolve(ctx, sig, *market.CurrentPrice, now)
		}
		t.logger.Debug("market no longer current, skipping update",
			slog.String("signal_id", sig.ID))
		return nil
	}

	price := *market.CurrentPrice
	gain := sig.CalculateGain(price)
	elapsed := now.Sub(sig.CreatedAt)

	// Checkpoints are independent: a signal first seen after 25 hours gets
	// its 1h and 24h prices stamped in the same pass. A checkpoint already
	// written is never touched again.
	var upd domain.SignalUpdate
	if elapsed >= time.Hour && sig.Price1h == nil {
		upd.Price1h, upd.Gain1hPct = &price, &gain
		t.logger.Info("tracking checkpoint",
			slog.String("signal_id", sig.ID), slog.String("horizon", "1h"),
			slog.Float64("price", price), slog.Float64("gain_pct", gain))
	}
	if elapsed >= 24*time.Hour && sig.Price24h == nil {
		upd.Price24h, upd.Gain24hPct = &price, &gain
		t.logger.Info("tracking checkpoint",
			slog.String("signal_id", sig.ID), slog.String("horizon", "24h"),
			slog.Float64("price", price), slog.Float64("gain_pct", gain))
	}
	if elapsed >= 168*time.Hour && sig.Price7d == nil {
		upd.Price7d, upd.Gain7dPct = &price, &gain
		t.logger.Info("tracking checkpoint",
			slog.String("signal_id", sig.ID), slog.String("horizon", "7d"),
			slog.Float64("price", price), slog.Float64("gain_pct", gain))
	}

	if upd == (domain.SignalUpdate{}) {
		return nil
	}
	return t.store.UpdateSignal(ctx, sig.ID, upd)
}

// resolve closes out a signal at the market's final price. The signal wins
// exactly when its direction-oriented gain is positive.
func (t *Tracker) resolve(ctx context.Context, sig domain.Signal, finalPrice float64, now time.Time) error {
	gain := sig.CalculateGain(finalPrice)

	status := domain.StatusResolvedLoss
	if gain > 0 {
		status = domain.StatusResolvedWin
	}

	upd := domain.SignalUpdate{
		PriceAtResolution: &finalPrice,
		GainFinalPct:      &gain,
		Status:            &status,
		ResolvedAt:        &now,
	}

	t.logger.Info("signal resolved",
		slog.String("signal_id", sig.ID),
		slog.String("status", string(status)),
		slog.Float64("entry", sig.EntryPrice),
		slog.Float64("exit", finalPrice),
		slog.Float64("gain_pct", gain))

	if err := t.store.UpdateSignal(ctx, sig.ID, upd); err != nil {
		return err
	}

	if t.notifier != nil {
		sig.Status = status
		title, msg := notify.FormatResolution(sig, gain)
		if err := t.notifier.Notify(ctx, notify.EventResolution, title, msg); err != nil {
			t.logger.Warn("failed to send resolution notification",
				slog.String("signal_id", sig.ID), slog.Any("error", err))
		}
	}
	return nil
}

// UpdateAllActive refreshes every active signal, isolating per-signal
// failures. Returns the number of signals processed without error.
func (t *Tracker) UpdateAllActive(ctx context.Context) (int, error) {
	active, err := t.store.ListActiveSignals(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, sig := range active {
		if err := t.UpdateSignal(ctx, sig); err != nil {
			t.logger.Error("failed to update signal tracking",
				slog.String("signal_id", sig.ID), slog.Any("error", err))
			continue
		}
		updated++
	}

	t.logger.Info("tracking pass complete",
		slog.Int("updated", updated), slog.Int("active", len(active)))
	return updated, nil
}

// ExpireStale marks active signals older than the expiry age as EXPIRED.
// Returns the number of signals expired.
func (t *Tracker) ExpireStale(ctx context.Context) (int, error) {
	active, err := t.store.ListActiveSignals(ctx)
	if err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -t.expireDays)
	expired := 0
	for _, sig := range active {
		if !sig.CreatedAt.Before(cutoff) {
			continue
		}
		status := domain.StatusExpired
		resolvedAt := now
		upd := domain.SignalUpdate{Status: &status, ResolvedAt: &resolvedAt}
		if err := t.store.UpdateSignal(ctx, sig.ID, upd); err != nil {
			t.logger.Error("failed to expire signal",
				slog.String("signal_id", sig.ID), slog.Any("error", err))
			continue
		}
		expired++
		t.logger.Info("expired stale signal", slog.String("signal_id", sig.ID))
	}
	return expired, nil
}

// PerformanceSummary is the track record payload: overall stats plus a
// per-rule breakdown.
type PerformanceSummary struct {
	Overall domain.SignalStats                       `json:"overall"`
	ByType  map[domain.SignalType]domain.SignalStats `json:"by_type"`
}

// Performance returns the aggregated track record.
func (t *Tracker) Performance(ctx context.Context) (PerformanceSummary, error) {
	overall, err := t.store.SignalStats(ctx)
	if err != nil {
		return PerformanceSummary{}, err
	}
	byType, err := t.store.SignalStatsByType(ctx)
	if err != nil {
		return PerformanceSummary{}, err
	}
	return PerformanceSummary{Overall: overall, ByType: byType}, nil
}

// RunLoop runs tracking passes on the given interval until the context is
// done. The initial delay lets the rest of the app settle before the first
// pass.
func (t *Tracker) RunLoop(ctx context.Context, interval, initialDelay time.Duration) error {
	t.logger.Info("tracking loop starting",
		slog.Duration("interval", interval),
		slog.Duration("initial_delay", initialDelay))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(initialDelay):
	}

	t.runPass(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracking loop stopping")
			return ctx.Err()
		case <-ticker.C:
			t.runPass(ctx)
		}
	}
}

func (t *Tracker) runPass(ctx context.Context) {
	if _, err := t.UpdateAllActive(ctx); err != nil {
		t.logger.Error("tracking pass failed", slog.Any("error", err))
	}
	if _, err := t.ExpireStale(ctx); err != nil {
		t.logger.Error("expiry sweep failed", slog.Any("error", err))
	}
}
