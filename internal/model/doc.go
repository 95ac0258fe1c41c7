// Package model defines shared data types used across the Skinlytics pipeline.
//
// Conventions:
//   - Prices: integer cents (smallest currency unit)
//   - Timestamps: time.Time in UTC
//   - Item identity: the market hash name string is the sole natural key
package model
