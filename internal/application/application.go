package application

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/boxplan/internal/api"
	"github.com/eugenenazirov/boxplan/internal/calculator"
	"github.com/eugenenazirov/boxplan/internal/config"
	"github.com/eugenenazirov/boxplan/internal/metrics"
	"github.com/eugenenazirov/boxplan/internal/storage"
)

//go:embed web/index.html
var indexPage []byte

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage    storage.Storage
	calculator calculator.Calculator
	metrics    *metrics.Metrics
	handler    *api.Handler
	router     http.Handler
	logger     *zap.Logger
	server     *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	table, err := cfg.Channels()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.StorageDriver, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.StorageDriver, err)
	}

	calc := calculator.New(table, calculator.WithBand(cfg.QuantityBand))
	m := metrics.New()
	handler := api.NewHandler(calc, store,
		api.WithMetrics(m),
		api.WithLogger(logger),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithRequestMetrics(m),
	)

	logger.Info("application initialized",
		zap.Strings("channels", table.Names()),
		zap.Int("quantity_min", cfg.QuantityBand.Min),
		zap.Int("quantity_max", cfg.QuantityBand.Max),
		zap.String("storage", cfg.StorageDriver),
	)

	return &App{
		storage:    store,
		calculator: calc,
		metrics:    m,
		handler:    handler,
		router:     apiRouter,
		logger:     logger,
		server:     NewServer(cfg, BuildRootHandler(apiRouter, m.Handler())),
	}, nil
}

// BuildRootHandler constructs the root HTTP handler that serves the index page,
// metrics and API requests.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(indexPage)
	}))
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Close releases the plan storage. Call it after the server has shut down.
func (a *App) Close() error {
	if a.storage == nil {
		return nil
	}
	return a.storage.Close()
}
