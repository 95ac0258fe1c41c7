// Package pipeline runs ingestion cycles: one concurrent task per
// enabled source, each walking the source's pages through the rate
// limiter, normalizing records, deduplicating, and writing.
//
// Source tasks are isolated. A fatal error in one source marks that
// source failed in the cycle summary and leaves the others running;
// only parent context cancellation stops everything.
package pipeline
