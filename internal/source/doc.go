// Package source implements the marketplace adapters.
//
// Each adapter translates one external marketplace's authentication,
// pagination, and response shape into pages of typed records, and
// normalizes those records onto the canonical Item/Listing shapes.
// Raw payloads never cross the adapter boundary: every source declares
// its own typed record struct with a single Normalize method.
//
// Fetch failures are classified into retryable (timeout, 5xx, quota
// exceeded) and fatal (auth rejected, malformed request); record-level
// normalization failures are rejections that never abort a page.
package source
