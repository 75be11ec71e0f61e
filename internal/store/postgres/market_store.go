package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polyedge/polyedge/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const upsertMarketQuery = `
	INSERT INTO markets (
		id, question, slug, description,
		active, closed, archived, accepting_orders, end_date,
		current_price, volume, volume_24h, liquidity, fetched_at
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8, $9,
		$10, $11, $12, $13, $14
	)
	ON CONFLICT (id) DO UPDATE SET
		question         = EXCLUDED.question,
		slug             = EXCLUDED.slug,
		description      = EXCLUDED.description,
		active           = EXCLUDED.active,
		closed           = EXCLUDED.closed,
		archived         = EXCLUDED.archived,
		accepting_orders = EXCLUDED.accepting_orders,
		end_date         = EXCLUDED.end_date,
		current_price    = EXCLUDED.current_price,
		volume           = EXCLUDED.volume,
		volume_24h       = EXCLUDED.volume_24h,
		liquidity        = EXCLUDED.liquidity,
		fetched_at       = EXCLUDED.fetched_at`

func upsertMarketArgs(m domain.Market) []any {
	return []any{
		m.ID, m.Question, m.Slug, m.Description,
		m.Active, m.Closed, m.Archived, m.AcceptingOrders, m.EndDate,
		m.CurrentPrice, m.Volume, m.Volume24h, m.Liquidity, m.FetchedAt,
	}
}

// UpsertMarket inserts or updates a single market snapshot.
func (s *MarketStore) UpsertMarket(ctx context.Context, m domain.Market) error {
	if _, err := s.pool.Exec(ctx, upsertMarketQuery, upsertMarketArgs(m)...); err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// UpsertMarkets inserts or updates multiple markets in a single batch.
func (s *MarketStore) UpsertMarkets(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketQuery, upsertMarketArgs(m)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

const marketCols = `id, question, slug, description,
	active, closed, archived, accepting_orders, end_date,
	current_price, volume, volume_24h, liquidity, fetched_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	err := row.Scan(
		&m.ID, &m.Question, &m.Slug, &m.Description,
		&m.Active, &m.Closed, &m.Archived, &m.AcceptingOrders, &m.EndDate,
		&m.CurrentPrice, &m.Volume, &m.Volume24h, &m.Liquidity, &m.FetchedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// GetMarket retrieves a market by its primary key.
func (s *MarketStore) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// ListMarkets returns markets ordered by total volume, highest first.
func (s *MarketStore) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets ORDER BY volume DESC`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}
