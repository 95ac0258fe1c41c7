// Package server exposes the read-only query API over HTTP.
//
// Endpoints (all JSON):
//   - GET /health
//   - GET /api/v1/items
//   - GET /api/v1/items/:name
//   - GET /api/v1/items/:name/listings
//   - GET /api/v1/items/:name/history
//   - GET /api/v1/opportunities
//
// The server never writes: ingestion and scoring own all mutations.
package server
