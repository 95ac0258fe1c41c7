// Package storage provides the PostgreSQL persistence layer.
//
// Layout:
//   - items, listings: operational tables owned by the ingestion
//     pipeline (listings append-mostly, with an active flag)
//   - price_history: derived daily rollups keyed by (item, day)
//   - opportunity_scores: derived per-item scores
//
// Concurrent writers from independent source tasks are serialized by
// the database's own constraints: the listing unique index is the
// authoritative deduplication check, not in-process locking.
package storage
