// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tribuna/internal/api"
	"github.com/starford/tribuna/internal/caseservice"
	"github.com/starford/tribuna/internal/datajud"
	"github.com/starford/tribuna/internal/inbox"
	"github.com/starford/tribuna/internal/mcpserver"
	"github.com/starford/tribuna/internal/monitor"
	"github.com/starford/tribuna/internal/sse"
	"github.com/starford/tribuna/internal/storage"
	"github.com/starford/tribuna/internal/store"
)

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func (a *application) logger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{
		Level: a.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// openService opens the store and builds the case service on top of it.
// The caller owns the returned DB.
func (a *application) openService(logger *slog.Logger, extra ...caseservice.Option) (*store.DB, *caseservice.Service, error) {
	cfg := a.config
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("init store: %w", err)
	}
	if cfg.Datajud.APIKey == "" {
		logger.Warn("datajud api key not set; refreshes will be rejected upstream")
	}
	client := datajud.NewClient(cfg.Datajud.BaseURL, cfg.Datajud.APIKey, cfg.Datajud.Timeout, logger)

	opts := append([]caseservice.Option{
		caseservice.WithLogger(logger),
		caseservice.WithDefaultFrequency(cfg.Monitor.DefaultFrequency),
		caseservice.WithRefreshTimeout(2*cfg.Datajud.Timeout),
	}, extra...)
	return db, caseservice.NewService(db, client, opts...), nil
}

// Run starts the HTTP API, the monitor and the inbox watcher and blocks
// until ctx is cancelled or a termination signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := app.logger()

	logger.Info("Configuration loaded",
		slog.String("version", app.version),
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("datajud_url", cfg.Datajud.BaseURL),
		slog.Bool("monitor_enabled", cfg.Monitor.Enabled),
		slog.Bool("inbox_enabled", cfg.Inbox.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	db, svc, err := app.openService(logger, caseservice.WithNotifier(broker))
	if err != nil {
		return err
	}
	defer db.Close()

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var in *inbox.Inbox
	if cfg.Inbox.Enabled {
		files, err := storage.NewFS(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("init inbox: %w", err)
		}
		in = inbox.New(files, svc, logger)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Monitor.Enabled {
		mon := monitor.New(db, svc,
			monitor.WithReporter(broker),
			monitor.WithLogger(logger),
			monitor.WithConcurrency(cfg.Monitor.Concurrency))
		g.Go(func() error {
			return mon.Run(gCtx, cfg.Monitor.Schedule)
		})
	}

	if in != nil {
		g.Go(func() error {
			return in.Watch(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdio. Logs go to stderr.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := app.logger()

	db, svc, err := app.openService(logger)
	if err != nil {
		return err
	}
	defer db.Close()

	logger.Info("MCP server starting", slog.String("version", app.version))
	return mcpserver.New(svc, app.version).ServeStdio()
}

// ImportResult is the outcome of importing one payload file.
type ImportResult struct {
	Path   string
	Result *caseservice.RefreshResult
	Err    error
}

// ImportFiles merges Datajud payload files into the store. A failing file
// does not stop the others.
func ImportFiles(ctx context.Context, paths []string, opts ...Option) ([]ImportResult, error) {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return nil, err
	}
	logger := app.logger()

	db, svc, err := app.openService(logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	out := make([]ImportResult, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			out = append(out, ImportResult{Path: p, Err: err})
			continue
		}
		res, err := svc.Import(ctx, data)
		out = append(out, ImportResult{Path: p, Result: res, Err: err})
	}
	return out, nil
}
