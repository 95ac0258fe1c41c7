package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skinlytics/skinlytics/internal/config"
	"github.com/skinlytics/skinlytics/internal/model"
	"github.com/skinlytics/skinlytics/internal/storage"
)

// Store is the read surface the API serves from.
type Store interface {
	Ping(ctx context.Context) error
	ListItems(ctx context.Context, f storage.ItemFilter) ([]model.Item, error)
	GetItem(ctx context.Context, name string) (model.Item, error)
	ListingsForItem(ctx context.Context, name string, activeOnly bool, limit int) ([]model.Listing, error)
	HistoryForItem(ctx context.Context, name string, from, to time.Time) ([]model.PriceHistoryPoint, error)
	TopOpportunities(ctx context.Context, f storage.OpportunityFilter) ([]storage.Opportunity, error)
}

// Server hosts the query API.
type Server struct {
	store  Store
	logger *slog.Logger
	http   *http.Server
	now    func() time.Time
}

// New creates a Server. A nil logger falls back to slog.Default().
func New(cfg config.ServerConfig, store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{store: store, logger: logger, now: time.Now}
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/items", s.handleListItems)
		v1.GET("/items/:name", s.handleGetItem)
		v1.GET("/items/:name/listings", s.handleListings)
		v1.GET("/items/:name/history", s.handleHistory)
		v1.GET("/opportunities", s.handleOpportunities)
	}
	return r
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server failed", "error", err)
		}
	}()
	s.logger.Info("query api started", "addr", s.http.Addr)
	return nil
}

// Stop drains in-flight requests and shuts down.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
