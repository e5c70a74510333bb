package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/middleware/security"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SpendingReader is the read side of the store the chart page is built from.
type SpendingReader interface {
	MonthlySummary(ctx context.Context) ([]core.MonthlyRollup, error)
	MonthlyCategory(ctx context.Context, topN int) ([]core.CategoryBreakdownRow, error)
	Ping(ctx context.Context) error
}

// Server serves charts rendered from the store on every request. It never
// writes to the store.
type Server struct {
	http.Server
	reader  SpendingReader
	topN    int
	logger  *log.Logger
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run server.
func NewServer(addr string, reader SpendingReader, topN int, logger *log.Logger) *Server {
	s := &Server{
		reader:  reader,
		topN:    topN,
		logger:  logger.WithComponent(log.ComponentHTTP),
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.Middleware(s.logger))
	r.Use(log.RequestIDMiddleware(func(r *http.Request) string {
		return middleware.GetReqID(r.Context())
	}))
	r.Use(log.AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/", s.handleCharts)
	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/api/monthly", s.handleMonthlyJSON)
	r.Get("/api/categories", s.handleCategoriesJSON)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.Server.Shutdown(ctx)
	})
	return err
}
