package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skinlytics/skinlytics/internal/model"
	"github.com/skinlytics/skinlytics/internal/storage"
	"github.com/skinlytics/skinlytics/internal/version"
)

const (
	defaultLimit      = 100
	maxLimit          = 1000
	defaultHistoryDay = 30
)

type itemResponse struct {
	MarketHashName string `json:"market_hash_name"`
	DisplayName    string `json:"display_name"`
	WearTier       string `json:"wear_tier,omitempty"`
	Rarity         string `json:"rarity,omitempty"`
	Collection     string `json:"collection,omitempty"`
	StatTrak       bool   `json:"stattrak"`
	Souvenir       bool   `json:"souvenir"`
}

type listingResponse struct {
	ID             int64    `json:"id"`
	Source         string   `json:"source"`
	NativeID       string   `json:"native_id"`
	PriceCents     int64    `json:"price_cents"`
	FloatValue     *float64 `json:"float_value,omitempty"`
	PaintSeed      *int     `json:"paint_seed,omitempty"`
	SellerTrades   int      `json:"seller_trades,omitempty"`
	SellerVerified int      `json:"seller_verified,omitempty"`
	ObservedAt     string   `json:"observed_at"`
	Active         bool     `json:"active"`
}

type historyResponse struct {
	Day           string  `json:"day"`
	ListingCount  int     `json:"listing_count"`
	MinPriceCents int64   `json:"min_price_cents"`
	MaxPriceCents int64   `json:"max_price_cents"`
	AvgPriceCents float64 `json:"avg_price_cents"`
	Liquidity     float64 `json:"liquidity"`
}

type opportunityResponse struct {
	MarketHashName string  `json:"market_hash_name"`
	DisplayName    string  `json:"display_name"`
	Score          int     `json:"score"`
	PriceDevScore  float64 `json:"price_dev_score"`
	LiquidityScore float64 `json:"liquidity_score"`
	TrendScore     float64 `json:"trend_score"`
	BestAskCents   *int64  `json:"best_ask_cents,omitempty"`
	ComputedAt     string  `json:"computed_at"`
}

func toItemResponse(it model.Item) itemResponse {
	return itemResponse{
		MarketHashName: it.MarketHashName,
		DisplayName:    it.DisplayName,
		WearTier:       it.WearTier,
		Rarity:         it.Rarity,
		Collection:     it.Collection,
		StatTrak:       it.StatTrak,
		Souvenir:       it.Souvenir,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"version": version.Version,
			"error":   "database unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}

func (s *Server) handleListItems(c *gin.Context) {
	f := storage.ItemFilter{
		NameLike: c.Query("q"),
		Rarity:   c.Query("rarity"),
		Limit:    limitParam(c),
	}
	if v, ok := c.GetQuery("stattrak"); ok {
		st := v == "true" || v == "1"
		f.StatTrak = &st
	}

	items, err := s.store.ListItems(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

func (s *Server) handleGetItem(c *gin.Context) {
	it, err := s.store.GetItem(c.Request.Context(), c.Param("name"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(it))
}

func (s *Server) handleListings(c *gin.Context) {
	activeOnly := c.DefaultQuery("active", "true") != "false"

	listings, err := s.store.ListingsForItem(c.Request.Context(), c.Param("name"), activeOnly, limitParam(c))
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingResponse{
			ID:             l.ID,
			Source:         string(l.Source),
			NativeID:       l.NativeID,
			PriceCents:     l.PriceCents,
			FloatValue:     l.FloatValue,
			PaintSeed:      l.PaintSeed,
			SellerTrades:   l.Trust.Trades,
			SellerVerified: l.Trust.VerifiedTrades,
			ObservedAt:     l.ObservedAt.UTC().Format(time.RFC3339),
			Active:         l.Active,
		})
	}
	c.JSON(http.StatusOK, gin.H{"listings": out})
}

func (s *Server) handleHistory(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultHistoryDay)))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}

	to := model.Day(s.now()).AddDate(0, 0, 1)
	from := to.AddDate(0, 0, -days)

	points, err := s.store.HistoryForItem(c.Request.Context(), c.Param("name"), from, to)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]historyResponse, 0, len(points))
	for _, p := range points {
		out = append(out, historyResponse{
			Day:           p.Day.Format(time.DateOnly),
			ListingCount:  p.ListingCount,
			MinPriceCents: p.MinPriceCents,
			MaxPriceCents: p.MaxPriceCents,
			AvgPriceCents: p.AvgPriceCents,
			Liquidity:     p.Liquidity,
		})
	}
	c.JSON(http.StatusOK, gin.H{"history": out})
}

func (s *Server) handleOpportunities(c *gin.Context) {
	f := storage.OpportunityFilter{Limit: limitParam(c)}

	if v := c.Query("min_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be 0-100"})
			return
		}
		f.MinScore = n
	}
	if v := c.Query("max_score"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > 100 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_score must be 0-100"})
			return
		}
		f.MaxScore = n
	}
	if v := c.Query("max_price_cents"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_price_cents must be a positive integer"})
			return
		}
		f.MaxPriceCent = n
	}

	opps, err := s.store.TopOpportunities(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]opportunityResponse, 0, len(opps))
	for _, o := range opps {
		out = append(out, opportunityResponse{
			MarketHashName: o.MarketHashName,
			DisplayName:    o.DisplayName,
			Score:          o.Score,
			PriceDevScore:  o.PriceDevScore,
			LiquidityScore: o.LiquidityScore,
			TrendScore:     o.TrendScore,
			BestAskCents:   o.BestAskCents,
			ComputedAt:     o.ComputedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"opportunities": out})
}

func (s *Server) fail(c *gin.Context, err error) {
	s.logger.Error("query failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
