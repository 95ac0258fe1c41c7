// Package dedup implements listing fingerprinting and the recent-
// fingerprint cache.
//
// Marketplaces re-serve unchanged listings on every poll. A
// deterministic content fingerprint over the fields that define a
// unique observed state lets the pipeline drop exact repeats inside a
// cycle without a storage round-trip; the database unique constraint
// remains the authoritative check for anything the cache misses. A
// changed price or trust snapshot produces a different fingerprint and
// therefore a new history row.
package dedup
