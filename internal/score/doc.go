// Package score computes per-item opportunity scores from daily price
// history.
//
// A score is a 0-100 blend of three sub-scores: deviation of the latest
// price below its trailing mean, liquidity percentile against the
// item's own history, and the short-vs-long moving-average trend. Items
// with too little history get no score at all rather than a misleading
// one.
package score
