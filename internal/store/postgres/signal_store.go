package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polyedge/polyedge/internal/domain"
)

// SignalStore implements domain.SignalStore using PostgreSQL.
type SignalStore struct {
	pool *pgxpool.Pool
}

var _ domain.SignalStore = (*SignalStore)(nil)

// NewSignalStore creates a new SignalStore backed by the given connection pool.
func NewSignalStore(pool *pgxpool.Pool) *SignalStore {
	return &SignalStore{pool: pool}
}

// CreateSignal persists a newly generated signal.
func (s *SignalStore) CreateSignal(ctx context.Context, sig domain.Signal) error {
	const query = `
		INSERT INTO signals (
			id, created_at,
			market_id, market_question, market_slug, market_end_date,
			signal_type, direction, confidence, reasoning,
			entry_price, entry_volume_24h, entry_volume_total, entry_liquidity, market_tier,
			news_sentiment_score, social_mention_count_24h, social_sentiment_score,
			status
		) VALUES (
			$1, $2,
			$3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15,
			$16, $17, $18,
			$19
		)`

	_, err := s.pool.Exec(ctx, query,
		sig.ID, sig.CreatedAt,
		sig.MarketID, sig.MarketQuestion, sig.MarketSlug, sig.MarketEndDate,
		string(sig.Type), string(sig.Direction), sig.Confidence, sig.Reasoning,
		sig.EntryPrice, sig.EntryVolume24h, sig.EntryVolumeTotal, sig.EntryLiquidity, string(sig.MarketTier),
		sig.NewsSentimentScore, sig.SocialMentionCount24h, sig.SocialSentimentScore,
		string(sig.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: create signal %s: %w", sig.ID, err)
	}
	return nil
}

// UpdateSignal applies a partial patch to an existing signal. Only non-nil
// fields of upd are written, so tracking checkpoints never clobber each other.
func (s *SignalStore) UpdateSignal(ctx context.Context, id string, upd domain.SignalUpdate) error {
	var sets []string
	var args []any
	argIdx := 1

	add := func(col string, val any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, argIdx))
		args = append(args, val)
		argIdx++
	}

	if upd.Price1h != nil {
		add("price_1h", *upd.Price1h)
	}
	if upd.Price24h != nil {
		add("price_24h", *upd.Price24h)
	}
	if upd.Price7d != nil {
		add("price_7d", *upd.Price7d)
	}
	if upd.PriceAtResolution != nil {
		add("price_at_resolution", *upd.PriceAtResolution)
	}
	if upd.Gain1hPct != nil {
		add("gain_1h_pct", *upd.Gain1hPct)
	}
	if upd.Gain24hPct != nil {
		add("gain_24h_pct", *upd.Gain24hPct)
	}
	if upd.Gain7dPct != nil {
		add("gain_7d_pct", *upd.Gain7dPct)
	}
	if upd.GainFinalPct != nil {
		add("gain_final_pct", *upd.GainFinalPct)
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}
	if upd.ResolvedAt != nil {
		add("resolved_at", *upd.ResolvedAt)
	}

	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE signals SET %s WHERE id = $%d",
		strings.Join(sets, ", "), argIdx)
	args = append(args, id)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: update signal %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const signalCols = `id, created_at,
	market_id, market_question, market_slug, market_end_date,
	signal_type, direction, confidence, reasoning,
	entry_price, entry_volume_24h, entry_volume_total, entry_liquidity, market_tier,
	news_sentiment_score, social_mention_count_24h, social_sentiment_score,
	price_1h, price_24h, price_7d, price_at_resolution,
	gain_1h_pct, gain_24h_pct, gain_7d_pct, gain_final_pct,
	status, resolved_at`

// scanSignal scans a single signal row into a domain.Signal.
func scanSignal(row pgx.Row) (domain.Signal, error) {
	var sig domain.Signal
	var sigType, direction, tier, status string
	err := row.Scan(
		&sig.ID, &sig.CreatedAt,
		&sig.MarketID, &sig.MarketQuestion, &sig.MarketSlug, &sig.MarketEndDate,
		&sigType, &direction, &sig.Confidence, &sig.Reasoning,
		&sig.EntryPrice, &sig.EntryVolume24h, &sig.EntryVolumeTotal, &sig.EntryLiquidity, &tier,
		&sig.NewsSentimentScore, &sig.SocialMentionCount24h, &sig.SocialSentimentScore,
		&sig.Price1h, &sig.Price24h, &sig.Price7d, &sig.PriceAtResolution,
		&sig.Gain1hPct, &sig.Gain24hPct, &sig.Gain7dPct, &sig.GainFinalPct,
		&status, &sig.ResolvedAt,
	)
	if err != nil {
		return domain.Signal{}, err
	}
	sig.Type = domain.SignalType(sigType)
	sig.Direction = domain.SignalDirection(direction)
	sig.MarketTier = domain.MarketTier(tier)
	sig.Status = domain.SignalStatus(status)
	return sig, nil
}

// GetSignal retrieves a signal by its primary key.
func (s *SignalStore) GetSignal(ctx context.Context, id string) (domain.Signal, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+signalCols+` FROM signals WHERE id = $1`, id)
	sig, err := scanSignal(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Signal{}, domain.ErrNotFound
		}
		return domain.Signal{}, fmt.Errorf("postgres: get signal %s: %w", id, err)
	}
	return sig, nil
}

func (s *SignalStore) querySignals(ctx context.Context, query string, args ...any) ([]domain.Signal, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return signals, nil
}

// ListSignals returns signals newest first, optionally filtered by status and
// type.
func (s *SignalStore) ListSignals(ctx context.Context, opts domain.SignalListOpts) ([]domain.Signal, error) {
	query := `SELECT ` + signalCols + ` FROM signals`
	args := []any{}
	argIdx := 1
	var where []string

	if opts.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.Type != "" {
		where = append(where, fmt.Sprintf("signal_type = $%d", argIdx))
		args = append(args, string(opts.Type))
		argIdx++
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	signals, err := s.querySignals(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list signals: %w", err)
	}
	return signals, nil
}

// ListActiveSignals returns every signal still being tracked, oldest first so
// the tracker visits the longest-waiting signals before fresh ones.
func (s *SignalStore) ListActiveSignals(ctx context.Context) ([]domain.Signal, error) {
	signals, err := s.querySignals(ctx,
		`SELECT `+signalCols+` FROM signals WHERE status = 'ACTIVE' ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active signals: %w", err)
	}
	return signals, nil
}

const statsQuery = `
	SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status = 'ACTIVE'),
		COUNT(*) FILTER (WHERE status IN ('RESOLVED_WIN', 'RESOLVED_LOSS')),
		COUNT(*) FILTER (WHERE status = 'RESOLVED_WIN'),
		COUNT(*) FILTER (WHERE status = 'RESOLVED_LOSS'),
		COALESCE(AVG(gain_final_pct) FILTER (WHERE status IN ('RESOLVED_WIN', 'RESOLVED_LOSS')), 0),
		COALESCE(MAX(gain_final_pct) FILTER (WHERE status IN ('RESOLVED_WIN', 'RESOLVED_LOSS')), 0),
		COALESCE(MIN(gain_final_pct) FILTER (WHERE status IN ('RESOLVED_WIN', 'RESOLVED_LOSS')), 0)
	FROM signals`

func finishStats(st *domain.SignalStats) {
	if st.ResolvedSignals > 0 {
		st.WinRate = float64(st.Wins) / float64(st.ResolvedSignals)
	}
}

// SignalStats aggregates the overall track record.
func (s *SignalStore) SignalStats(ctx context.Context) (domain.SignalStats, error) {
	var st domain.SignalStats
	err := s.pool.QueryRow(ctx, statsQuery).Scan(
		&st.TotalSignals, &st.ActiveSignals, &st.ResolvedSignals,
		&st.Wins, &st.Losses,
		&st.AvgGainPct, &st.BestGainPct, &st.WorstGainPct,
	)
	if err != nil {
		return domain.SignalStats{}, fmt.Errorf("postgres: signal stats: %w", err)
	}
	finishStats(&st)
	return st, nil
}

// SignalStatsByType aggregates the track record per rule type.
func (s *SignalStore) SignalStatsByType(ctx context.Context) (map[domain.SignalType]domain.SignalStats, error) {
	const query = `
		SELECT
			signal_type,
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'ACTIVE'),
			COUNT(*) FILTER (WHERE status IN ('RESOLVED_WIN', 'RESOLVED_LOSS')),
			COUNT(*) FILTER (WHERE status = 'RESOLVED_WIN'),
			COUNT(*) FILTER (WHERE status = 'RESOLVED_LOSS'),
			COALESCE(AVG(gain_final_pct) FILTER (WHERE status IN ('RESOLVED_WIN', 'RESOLVED_LOSS')), 0),
			COALESCE(MAX(gain_final_pct) FILTER (WHERE status IN ('RESOLVED_WIN', 'RESOLVED_LOSS')), 0),
			COALESCE(MIN(gain_final_pct) FILTER (WHERE status IN ('RESOLVED_WIN', 'RESOLVED_LOSS')), 0)
		FROM signals
		GROUP BY signal_type`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: signal stats by type: %w", err)
	}
	defer rows.Close()

	stats := make(map[domain.SignalType]domain.SignalStats)
	for rows.Next() {
		var sigType string
		var st domain.SignalStats
		if err := rows.Scan(
			&sigType,
			&st.TotalSignals, &st.ActiveSignals, &st.ResolvedSignals,
			&st.Wins, &st.Losses,
			&st.AvgGainPct, &st.BestGainPct, &st.WorstGainPct,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan signal stats: %w", err)
		}
		finishStats(&st)
		stats[domain.SignalType(sigType)] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: signal stats by type rows: %w", err)
	}
	return stats, nil
}

// ListTerminalBefore returns terminal signals resolved before the cutoff, for
// archival to cold storage. Signals expired without a resolved_at fall back to
// their creation time.
func (s *SignalStore) ListTerminalBefore(ctx context.Context, before time.Time, limit int) ([]domain.Signal, error) {
	query := `SELECT ` + signalCols + ` FROM signals
		WHERE status IN ('RESOLVED_WIN', 'RESOLVED_LOSS', 'EXPIRED')
		AND COALESCE(resolved_at, created_at) < $1
		ORDER BY COALESCE(resolved_at, created_at) ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	signals, err := s.querySignals(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal signals: %w", err)
	}
	return signals, nil
}

// DeleteSignals removes the given signals after they have been archived.
func (s *SignalStore) DeleteSignals(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM signals WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("postgres: delete signals: %w", err)
	}
	return nil
}
