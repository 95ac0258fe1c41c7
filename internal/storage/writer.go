package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skinlytics/skinlytics/internal/model"
)

// Outcome classifies the result of a single listing write.
type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeDuplicate
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// WriteResult reports what happened to one listing. Reason is set only
// for rejected writes.
type WriteResult struct {
	Outcome Outcome
	Reason  string
}

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// Writer persists normalized items and listings. Duplicates are an
// expected steady-state outcome, not errors: the unique index on
// (source, native_id, fingerprint) is the authoritative check, so
// concurrent source tasks need no coordination here.
type Writer struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewWriter creates a Writer. A nil logger falls back to slog.Default().
func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{pool: pool, logger: logger}
}

const insertItemSQL = `
	INSERT INTO items (market_hash_name, display_name, wear_tier, rarity, collection, stattrak, souvenir)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (market_hash_name) DO NOTHING`

const insertListingSQL = `
	INSERT INTO listings (
		market_hash_name, source, native_id, price_cents, float_value, paint_seed,
		seller_trades, seller_verified, seller_failed, seller_median_trade_minutes,
		observed_at, ingested_at, fingerprint, active
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE)
	ON CONFLICT (source, native_id, fingerprint) DO NOTHING`

// Write upserts the item row and inserts the listing in one transaction.
// A listing that collides on (source, native_id, fingerprint) comes back
// as a duplicate outcome. Errors are reserved for store failures.
func (w *Writer) Write(ctx context.Context, item model.Item, listing model.Listing) (WriteResult, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return WriteResult{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertItemSQL,
		item.MarketHashName, item.DisplayName, item.WearTier,
		item.Rarity, item.Collection, item.StatTrak, item.Souvenir)
	if err != nil {
		return WriteResult{}, fmt.Errorf("insert item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		w.checkItemMetadata(ctx, tx, item)
	}

	tag, err = tx.Exec(ctx, insertListingSQL,
		listing.MarketHashName, string(listing.Source), listing.NativeID,
		listing.PriceCents, listing.FloatValue, listing.PaintSeed,
		listing.Trust.Trades, listing.Trust.VerifiedTrades, listing.Trust.FailedTrades,
		listing.Trust.MedianTradeMinutes,
		listing.ObservedAt, listing.IngestedAt, listing.Fingerprint)
	if err != nil {
		if pgErrCode(err) == codeForeignKeyViolation {
			return WriteResult{Outcome: OutcomeRejected, Reason: "unknown item"}, nil
		}
		return WriteResult{}, fmt.Errorf("insert listing: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return WriteResult{}, fmt.Errorf("commit: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return WriteResult{Outcome: OutcomeDuplicate}, nil
	}
	return WriteResult{Outcome: OutcomeInserted}, nil
}

// checkItemMetadata compares an incoming item against the stored row and
// logs fields that disagree. Stored metadata wins: sources describe the
// same good with different levels of detail and the first writer's view
// is kept.
func (w *Writer) checkItemMetadata(ctx context.Context, tx querier, incoming model.Item) {
	var stored model.Item
	err := tx.QueryRow(ctx,
		`SELECT display_name, wear_tier, rarity, collection, stattrak, souvenir
		 FROM items WHERE market_hash_name = $1`,
		incoming.MarketHashName,
	).Scan(&stored.DisplayName, &stored.WearTier, &stored.Rarity,
		&stored.Collection, &stored.StatTrak, &stored.Souvenir)
	if err != nil {
		w.logger.Warn("metadata check failed", "item", incoming.MarketHashName, "error", err)
		return
	}

	for _, d := range metadataDiff(stored, incoming) {
		w.logger.Warn("item metadata discrepancy",
			"item", incoming.MarketHashName,
			"field", d.field,
			"stored", d.stored,
			"incoming", d.incoming)
	}
}

type fieldDiff struct {
	field            string
	stored, incoming string
}

// metadataDiff reports fields where a non-empty incoming value disagrees
// with the stored one. Empty incoming fields are sources that simply do
// not carry that attribute, not conflicts.
func metadataDiff(stored, incoming model.Item) []fieldDiff {
	var diffs []fieldDiff
	str := func(field, s, i string) {
		if i != "" && s != i {
			diffs = append(diffs, fieldDiff{field, s, i})
		}
	}
	str("display_name", stored.DisplayName, incoming.DisplayName)
	str("wear_tier", stored.WearTier, incoming.WearTier)
	str("rarity", stored.Rarity, incoming.Rarity)
	str("collection", stored.Collection, incoming.Collection)
	if stored.StatTrak != incoming.StatTrak {
		diffs = append(diffs, fieldDiff{"stattrak", fmt.Sprint(stored.StatTrak), fmt.Sprint(incoming.StatTrak)})
	}
	if stored.Souvenir != incoming.Souvenir {
		diffs = append(diffs, fieldDiff{"souvenir", fmt.Sprint(stored.Souvenir), fmt.Sprint(incoming.Souvenir)})
	}
	return diffs
}

// MarkInactive clears the active flag on every listing from the source
// whose fingerprint was not seen in the just-completed cycle. Call only
// after a cycle ran to completion for the source; a truncated cycle
// would otherwise deactivate listings that are still live.
func (w *Writer) MarkInactive(ctx context.Context, source model.Source, seenFingerprints []string) (int64, error) {
	if seenFingerprints == nil {
		// A nil slice would be encoded as a NULL array, and
		// `NOT (x = ANY(NULL))` matches no rows at all. An empty feed
		// means every active listing is gone.
		seenFingerprints = []string{}
	}
	tag, err := w.pool.Exec(ctx,
		`UPDATE listings SET active = FALSE
		 WHERE source = $1 AND active AND NOT (fingerprint = ANY($2))`,
		string(source), seenFingerprints)
	if err != nil {
		return 0, fmt.Errorf("mark inactive: %w", err)
	}
	return tag.RowsAffected(), nil
}
