// Package rollup recomputes daily price history from raw listings.
//
// The rollup is derived state: recomputing any day range is idempotent
// and overwrites prior rows for the same (item, day). Aggregation is
// pure and deterministic so the same listing set always produces the
// same rows in the same order.
package rollup
