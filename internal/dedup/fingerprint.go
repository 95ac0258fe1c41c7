package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/skinlytics/skinlytics/internal/model"
)

// Fingerprint computes the deterministic content hash for a listing
// candidate: item key, source, native id, price, wear value, paint
// seed, and the counterparty trust snapshot. Timestamps are excluded
// so a re-observation of an unchanged listing hashes identically.
func Fingerprint(l model.Listing) string {
	var b strings.Builder

	b.WriteString(l.MarketHashName)
	b.WriteByte('|')
	b.WriteString(string(l.Source))
	b.WriteByte('|')
	b.WriteString(l.NativeID)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(l.PriceCents, 10))
	b.WriteByte('|')
	if l.FloatValue != nil {
		// Fixed precision keeps the encoding stable across sources
		// that report differing float widths.
		fmt.Fprintf(&b, "%.8f", *l.FloatValue)
	}
	b.WriteByte('|')
	if l.PaintSeed != nil {
		b.WriteString(strconv.Itoa(*l.PaintSeed))
	}
	fmt.Fprintf(&b, "|%d|%d|%d|%d",
		l.Trust.Trades,
		l.Trust.VerifiedTrades,
		l.Trust.FailedTrades,
		l.Trust.MedianTradeMinutes,
	)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
