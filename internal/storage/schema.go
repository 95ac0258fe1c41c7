package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema statements are applied in order and are safe to re-run.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS items (
		market_hash_name TEXT PRIMARY KEY,
		display_name     TEXT NOT NULL,
		wear_tier        TEXT NOT NULL DEFAULT '',
		rarity           TEXT NOT NULL DEFAULT '',
		collection       TEXT NOT NULL DEFAULT '',
		stattrak         BOOLEAN NOT NULL DEFAULT FALSE,
		souvenir         BOOLEAN NOT NULL DEFAULT FALSE,
		first_seen       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS listings (
		id               BIGSERIAL PRIMARY KEY,
		market_hash_name TEXT NOT NULL REFERENCES items(market_hash_name),
		source           TEXT NOT NULL,
		native_id        TEXT NOT NULL,
		price_cents      BIGINT NOT NULL,
		float_value      DOUBLE PRECISION,
		paint_seed       INTEGER,
		seller_trades    INTEGER NOT NULL DEFAULT 0,
		seller_verified  INTEGER NOT NULL DEFAULT 0,
		seller_failed    INTEGER NOT NULL DEFAULT 0,
		seller_median_trade_minutes INTEGER NOT NULL DEFAULT 0,
		observed_at      TIMESTAMPTZ NOT NULL,
		ingested_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
		fingerprint      TEXT NOT NULL,
		active           BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE (source, native_id, fingerprint)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_listings_item_observed
		ON listings (market_hash_name, observed_at)`,

	`CREATE INDEX IF NOT EXISTS idx_listings_source_active
		ON listings (source) WHERE active`,

	`CREATE TABLE IF NOT EXISTS price_history (
		market_hash_name TEXT NOT NULL REFERENCES items(market_hash_name),
		day              DATE NOT NULL,
		listing_count    INTEGER NOT NULL,
		min_price_cents  BIGINT NOT NULL,
		max_price_cents  BIGINT NOT NULL,
		avg_price_cents  DOUBLE PRECISION NOT NULL,
		liquidity        DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (market_hash_name, day)
	)`,

	`CREATE TABLE IF NOT EXISTS opportunity_scores (
		market_hash_name TEXT PRIMARY KEY REFERENCES items(market_hash_name),
		score            INTEGER NOT NULL,
		price_dev_score  DOUBLE PRECISION NOT NULL,
		liquidity_score  DOUBLE PRECISION NOT NULL,
		trend_score      DOUBLE PRECISION NOT NULL,
		computed_at      TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
