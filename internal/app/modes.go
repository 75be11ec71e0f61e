package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polyedge/polyedge/internal/server"
	"github.com/polyedge/polyedge/internal/server/handler"
	"github.com/polyedge/polyedge/internal/server/ws"
	"github.com/polyedge/polyedge/internal/signal"
	"github.com/polyedge/polyedge/internal/tracking"
)

// buildGenerator assembles the rule set and quality filter from config.
func (a *App) buildGenerator(deps *Dependencies) *signal.Generator {
	s := a.cfg.Signals
	rules := signal.DefaultRules(signal.RulesConfig{
		SentimentDivergenceThreshold: s.SentimentDivergenceThreshold,
		VolumeSurgeMultiplier:        s.VolumeSurgeMultiplier,
		SocialSpikeMultiplier:        s.SocialSpikeMultiplier,
		PriceMomentumThreshold:       s.PriceMomentumThreshold,
		MinSentimentStrength:         s.MinSentimentStrength,
		MinArticleCount:              s.MinArticleCount,
	})
	filter := signal.NewQualityFilter(
		s.MinDaysToExpiry, s.MinMarketTier,
		s.MinPriceForSignals, s.MaxPriceForSignals,
	)
	return signal.NewGenerator(signal.GeneratorOpts{
		Rules:         rules,
		Filter:        filter,
		MinConfidence: s.MinConfidence,
		Store:         deps.SignalStore,
		StateCache:    deps.StateCache,
		Logger:        a.logger,
	})
}

// buildScanner assembles the scanner around the generator and sources.
func (a *App) buildScanner(deps *Dependencies) *signal.Scanner {
	sc := a.cfg.Scanner
	s := a.cfg.Signals
	return signal.NewScanner(signal.ScannerOpts{
		Config: signal.ScannerConfig{
			Watchlist:           sc.Watchlist,
			DiscoveryEnabled:    sc.DiscoveryEnabled,
			DiscoveryMaxMarkets: sc.DiscoveryMaxMarkets,
			DiscoveryMinVolume:  sc.DiscoveryMinVolume,
			SkipNewsAPI:         sc.SkipNewsAPI,
			SkipSocialAPI:       sc.SkipSocialAPI,
			Concurrency:         sc.Concurrency,
			MinConfidence:       s.MinConfidence,
			MinPrice:            s.MinPriceForSignals,
			MaxPrice:            s.MaxPriceForSignals,
		},
		Markets:     deps.Markets,
		News:        deps.News,
		Social:      deps.Social,
		Generator:   a.buildGenerator(deps),
		SignalStore: deps.SignalStore,
		MarketStore: deps.MarketStore,
		Bus:         deps.SignalBus,
		Notifier:    deps.Notifier,
		Gates:       deps.Gates,
		Logger:      a.logger,
	})
}

// buildTracker assembles the tracker over the persisted signals.
func (a *App) buildTracker(deps *Dependencies) *tracking.Tracker {
	tracker := tracking.NewTracker(
		deps.SignalStore, deps.Markets,
		a.cfg.Tracking.ExpireDays, a.logger,
	)
	tracker.SetNotifier(deps.Notifier)
	return tracker
}

// ScanMode runs one scan pass, writes the result as JSON to stdout, and
// exits. Signals are persisted only when a database is configured.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	scanner := a.buildScanner(deps)
	result := scanner.RunScan(ctx, nil, deps.SignalStore != nil)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "scan complete",
		slog.Int("markets_scanned", result.MarketsScanned),
		slog.Int("signals_generated", result.SignalsGenerated),
	)
	return nil
}

// ServeMode runs the HTTP/WebSocket API over the persisted signals. Scans
// still run on demand via POST /api/scan, but no background loops start.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	scanner := a.buildScanner(deps)
	tracker := a.buildTracker(deps)
	a.startHTTPServer(ctx, g, deps, scanner, tracker)

	return g.Wait()
}

// TrackMode runs only the tracking loop: horizon checkpoints, resolution,
// and expiry, plus archival when configured.
func (a *App) TrackMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting track mode")

	g, ctx := errgroup.WithContext(ctx)

	tracker := a.buildTracker(deps)
	g.Go(func() error {
		return tracker.RunLoop(ctx, a.cfg.Tracking.Interval.Duration, a.cfg.Tracking.InitialDelay.Duration)
	})

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything: the periodic scan loop, the tracking loop, the
// HTTP/WebSocket API, and archival.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	scanner := a.buildScanner(deps)
	g.Go(func() error {
		return scanner.RunLoop(ctx, a.cfg.Scanner.ScanInterval.Duration)
	})

	var tracker *tracking.Tracker
	if a.cfg.Tracking.Enabled {
		tracker = a.buildTracker(deps)
		g.Go(func() error {
			return tracker.RunLoop(ctx, a.cfg.Tracking.Interval.Duration, a.cfg.Tracking.InitialDelay.Duration)
		})
	} else {
		// Stats endpoints still need a tracker for reads.
		tracker = a.buildTracker(deps)
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, scanner, tracker)
	}

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// startArchiver adds the archival loop to the group when cold storage is
// wired.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	g.Go(func() error {
		return deps.Archiver.RunLoop(ctx, a.cfg.Archive.Interval.Duration)
	})
}

// startHTTPServer adds the HTTP server (and the WebSocket hub when a bus is
// wired) to the given errgroup. The server is shut down gracefully when the
// context is cancelled.
func (a *App) startHTTPServer(
	ctx context.Context,
	g *errgroup.Group,
	deps *Dependencies,
	scanner *signal.Scanner,
	tracker *tracking.Tracker,
) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.cfg.Mode),
		Scan:   handler.NewScanHandler(scanner, a.logger),
	}
	if deps.SignalStore != nil {
		handlers.Signals = handler.NewSignalHandler(deps.SignalStore, tracker, a.logger)
	}
	if deps.MarketStore != nil {
		handlers.Markets = handler.NewMarketHandler(deps.MarketStore, a.logger)
	}

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, handlers, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
