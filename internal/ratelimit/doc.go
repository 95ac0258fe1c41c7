// Package ratelimit implements the per-source request budget.
//
// Each source gets its own Limiter tracking a rolling window of grant
// times against the source's documented quota. A quota-exceeded
// response from the source puts the limiter into a penalized state:
// the effective rate is halved and an exponentially growing backoff
// delay (capped) is applied until a streak of successful calls
// restores the normal rate. Budget exhaustion never surfaces as an
// error, only as a wait.
package ratelimit
