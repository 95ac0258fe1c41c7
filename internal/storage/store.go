package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skinlytics/skinlytics/internal/model"
)

// ErrNotFound is returned for lookups of rows that do not exist.
var ErrNotFound = errors.New("not found")

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store serves reads for the query API, the rollup aggregator, and the
// scorer, plus batched writes for the derived tables.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ItemFilter narrows ListItems. Zero values mean no constraint.
type ItemFilter struct {
	NameLike string
	Rarity   string
	StatTrak *bool
	Limit    int
}

const listingColumns = `id, market_hash_name, source, native_id, price_cents,
	float_value, paint_seed, seller_trades, seller_verified, seller_failed,
	seller_median_trade_minutes, observed_at, ingested_at, fingerprint, active`

func scanListing(row pgx.Row) (model.Listing, error) {
	var l model.Listing
	var src string
	err := row.Scan(&l.ID, &l.MarketHashName, &src, &l.NativeID, &l.PriceCents,
		&l.FloatValue, &l.PaintSeed, &l.Trust.Trades, &l.Trust.VerifiedTrades,
		&l.Trust.FailedTrades, &l.Trust.MedianTradeMinutes,
		&l.ObservedAt, &l.IngestedAt, &l.Fingerprint, &l.Active)
	l.Source = model.Source(src)
	return l, err
}

func collectListings(rows pgx.Rows) ([]model.Listing, error) {
	defer rows.Close()
	var out []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListItems returns item metadata matching the filter, ordered by name.
func (s *Store) ListItems(ctx context.Context, f ItemFilter) ([]model.Item, error) {
	sql := `SELECT market_hash_name, display_name, wear_tier, rarity, collection, stattrak, souvenir
		FROM items WHERE TRUE`
	var args []any
	if f.NameLike != "" {
		args = append(args, "%"+f.NameLike+"%")
		sql += " AND market_hash_name ILIKE $" + strconv.Itoa(len(args))
	}
	if f.Rarity != "" {
		args = append(args, f.Rarity)
		sql += " AND rarity = $" + strconv.Itoa(len(args))
	}
	if f.StatTrak != nil {
		args = append(args, *f.StatTrak)
		sql += " AND stattrak = $" + strconv.Itoa(len(args))
	}
	sql += " ORDER BY market_hash_name"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.MarketHashName, &it.DisplayName, &it.WearTier,
			&it.Rarity, &it.Collection, &it.StatTrak, &it.Souvenir); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// GetItem returns one item by its hash name, or ErrNotFound.
func (s *Store) GetItem(ctx context.Context, name string) (model.Item, error) {
	var it model.Item
	err := s.pool.QueryRow(ctx,
		`SELECT market_hash_name, display_name, wear_tier, rarity, collection, stattrak, souvenir
		 FROM items WHERE market_hash_name = $1`, name,
	).Scan(&it.MarketHashName, &it.DisplayName, &it.WearTier,
		&it.Rarity, &it.Collection, &it.StatTrak, &it.Souvenir)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Item{}, ErrNotFound
	}
	return it, err
}

// ListingsForItem returns listings for one item, newest first.
func (s *Store) ListingsForItem(ctx context.Context, name string, activeOnly bool, limit int) ([]model.Listing, error) {
	sql := `SELECT ` + listingColumns + ` FROM listings WHERE market_hash_name = $1`
	args := []any{name}
	if activeOnly {
		sql += " AND active"
	}
	sql += " ORDER BY observed_at DESC"
	if limit > 0 {
		args = append(args, limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listings for item: %w", err)
	}
	return collectListings(rows)
}

// ListingsObservedBetween returns every listing with observed_at in
// [from, to), ordered by item and observation time. The rollup
// aggregator consumes this in one pass.
func (s *Store) ListingsObservedBetween(ctx context.Context, from, to time.Time) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE observed_at >= $1 AND observed_at < $2
		 ORDER BY market_hash_name, observed_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("listings observed between: %w", err)
	}
	return collectListings(rows)
}

// HistoryForItem returns daily rollups for one item in [from, to),
// oldest first.
func (s *Store) HistoryForItem(ctx context.Context, name string, from, to time.Time) ([]model.PriceHistoryPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT market_hash_name, day, listing_count, min_price_cents, max_price_cents, avg_price_cents, liquidity
		 FROM price_history
		 WHERE market_hash_name = $1 AND day >= $2 AND day < $3
		 ORDER BY day`, name, from, to)
	if err != nil {
		return nil, fmt.Errorf("history for item: %w", err)
	}
	defer rows.Close()

	var out []model.PriceHistoryPoint
	for rows.Next() {
		var p model.PriceHistoryPoint
		if err := rows.Scan(&p.MarketHashName, &p.Day, &p.ListingCount,
			&p.MinPriceCents, &p.MaxPriceCents, &p.AvgPriceCents, &p.Liquidity); err != nil {
			return nil, fmt.Errorf("scan history point: %w", err)
		}
		p.Day = model.Day(p.Day)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ItemsWithListingsSince returns the names of items that have at least
// one listing observed at or after the cutoff. The scorer uses this to
// bound its candidate set.
func (s *Store) ItemsWithListingsSince(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT market_hash_name FROM listings
		 WHERE observed_at >= $1 ORDER BY market_hash_name`, since)
	if err != nil {
		return nil, fmt.Errorf("items with listings since: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan item name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// UpsertPriceHistory writes rollup rows in one batch, replacing any
// existing row for the same (item, day).
func (s *Store) UpsertPriceHistory(ctx context.Context, points []model.PriceHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(
			`INSERT INTO price_history (market_hash_name, day, listing_count, min_price_cents, max_price_cents, avg_price_cents, liquidity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (market_hash_name, day) DO UPDATE SET
				listing_count = EXCLUDED.listing_count,
				min_price_cents = EXCLUDED.min_price_cents,
				max_price_cents = EXCLUDED.max_price_cents,
				avg_price_cents = EXCLUDED.avg_price_cents,
				liquidity = EXCLUDED.liquidity`,
			p.MarketHashName, p.Day, p.ListingCount,
			p.MinPriceCents, p.MaxPriceCents, p.AvgPriceCents, p.Liquidity)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range points {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert price history: %w", err)
		}
	}
	return nil
}

// UpsertScores writes score rows in one batch, one row per item.
func (s *Store) UpsertScores(ctx context.Context, scores []model.OpportunityScore) error {
	if len(scores) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sc := range scores {
		batch.Queue(
			`INSERT INTO opportunity_scores (market_hash_name, score, price_dev_score, liquidity_score, trend_score, computed_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (market_hash_name) DO UPDATE SET
				score = EXCLUDED.score,
				price_dev_score = EXCLUDED.price_dev_score,
				liquidity_score = EXCLUDED.liquidity_score,
				trend_score = EXCLUDED.trend_score,
				computed_at = EXCLUDED.computed_at`,
			sc.MarketHashName, sc.Score, sc.PriceDevScore,
			sc.LiquidityScore, sc.TrendScore, sc.ComputedAt)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range scores {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert scores: %w", err)
		}
	}
	return nil
}

// Opportunity joins a score with the item's display metadata and its
// cheapest active ask.
type Opportunity struct {
	model.OpportunityScore
	DisplayName  string
	BestAskCents *int64 // nil when the item has no active listings
}

// OpportunityFilter narrows TopOpportunities. Zero values mean no
// constraint.
type OpportunityFilter struct {
	MinScore     int
	MaxScore     int // 0 = no upper bound
	MaxPriceCent int64
	Limit        int
}

// TopOpportunities returns scored items ordered by score descending.
func (s *Store) TopOpportunities(ctx context.Context, f OpportunityFilter) ([]Opportunity, error) {
	sql := `SELECT s.market_hash_name, s.score, s.price_dev_score, s.liquidity_score, s.trend_score, s.computed_at,
			i.display_name,
			(SELECT MIN(l.price_cents) FROM listings l
			 WHERE l.market_hash_name = s.market_hash_name AND l.active) AS best_ask
		FROM opportunity_scores s
		JOIN items i ON i.market_hash_name = s.market_hash_name
		WHERE s.score >= $1`
	args := []any{f.MinScore}
	if f.MaxScore > 0 {
		args = append(args, f.MaxScore)
		sql += " AND s.score <= $" + strconv.Itoa(len(args))
	}
	if f.MaxPriceCent > 0 {
		args = append(args, f.MaxPriceCent)
		sql += fmt.Sprintf(` AND (SELECT MIN(l.price_cents) FROM listings l
			WHERE l.market_hash_name = s.market_hash_name AND l.active) <= $%d`, len(args))
	}
	sql += " ORDER BY s.score DESC, s.market_hash_name"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("top opportunities: %w", err)
	}
	defer rows.Close()

	var out []Opportunity
	for rows.Next() {
		var o Opportunity
		if err := rows.Scan(&o.MarketHashName, &o.Score, &o.PriceDevScore,
			&o.LiquidityScore, &o.TrendScore, &o.ComputedAt,
			&o.DisplayName, &o.BestAskCents); err != nil {
			return nil, fmt.Errorf("scan opportunity: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
