package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"crisis-alerts/internal/alert/history"
	"crisis-alerts/internal/common/auth"
	"crisis-alerts/internal/common/aws"
	"crisis-alerts/internal/common/logger"
	"crisis-alerts/internal/models"
	crisisalertdispatch "crisis-alerts/internal/workers/alerts/crisis-alert-dispatch"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

const defaultRateLimit = "30-M"

type Dispatcher interface {
	Execute(ctx context.Context, input *crisisalertdispatch.Input) (*models.DispatchResult, error)
}

type ProviderStatusSource interface {
	Await(ctx context.Context) (aws.ProviderStatus, error)
	Reverify(ctx context.Context) aws.ProviderStatus
	Ready() bool
}

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.TokenInfo, error)
}

type Options struct {
	Address    string
	Dispatcher Dispatcher
	Providers  ProviderStatusSource
	History    HistoryReader  // optional
	Auth       TokenValidator // optional; nil leaves the API open
	RateLimit  string         // ulule format, e.g. "30-M"
	// RateLimitStore defaults to an in-memory store.
	RateLimitStore limiter.Store
	Logger         logger.Logger
}

// Server is the alert dispatch HTTP API.
type Server struct {
	dispatcher Dispatcher
	providers  ProviderStatusSource
	history    HistoryReader
	logger     logger.Logger
	handler    http.Handler
	httpServer *http.Server
}

func New(opts Options) (*Server, error) {
	if opts.Dispatcher == nil || opts.Providers == nil {
		return nil, errors.New("server: dispatcher and providers are required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.RateLimit == "" {
		opts.RateLimit = defaultRateLimit
	}
	rate, err := limiter.NewRateFromFormatted(opts.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("server: invalid rate limit %q: %w", opts.RateLimit, err)
	}
	store := opts.RateLimitStore
	if store == nil {
		store = memory.NewStore()
	}

	s := &Server{
		dispatcher: opts.Dispatcher,
		providers:  opts.Providers,
		history:    opts.History,
		logger:     opts.Logger.WithFields(map[string]interface{}{"component": "http"}),
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/alerts/dispatch", s.handleDispatch)
	api.HandleFunc("GET /api/alerts/providers", s.handleProviders)
	api.HandleFunc("POST /api/alerts/providers/verify", s.handleReverify)
	api.HandleFunc("GET /api/alerts/history", s.handleHistory)

	var protected http.Handler = api
	if opts.Auth != nil {
		protected = requireToken(opts.Auth, s.logger)(protected)
	}
	protected = rateLimit(limiter.New(store, rate), s.logger)(protected)

	mux := http.NewServeMux()
	mux.Handle("/api/", protected)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.handler = requestLogging(s.logger)(mux)
	s.httpServer = &http.Server{
		Addr:              opts.Address,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP API listening", map[string]interface{}{"address": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
