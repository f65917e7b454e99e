// Package server assembles the service's dependencies and runs its lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/onthisday/racewinners/internal/api"
	"github.com/onthisday/racewinners/internal/browser"
	"github.com/onthisday/racewinners/internal/clock/system"
	"github.com/onthisday/racewinners/internal/config"
	"github.com/onthisday/racewinners/internal/fetch"
	"github.com/onthisday/racewinners/internal/logging"
	"github.com/onthisday/racewinners/internal/metrics"
	"github.com/onthisday/racewinners/internal/orchestrate"
	"github.com/onthisday/racewinners/internal/parse"
)

// App contains the application's dependencies.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	apiServer *api.Server
}

// Build creates the application's dependencies.
func Build(cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	driver := browser.NewDriver(browser.Config{
		RemoteEndpoint:   cfg.Browser.RemoteEndpoint,
		AllowLocalLaunch: cfg.Browser.AllowLocalLaunch,
		UserAgent:        cfg.Crawler.UserAgent,
		NavTimeout:       time.Duration(cfg.Browser.NavTimeoutSeconds) * time.Second,
		SettleDelay:      time.Duration(cfg.Browser.SettleDelayMs) * time.Millisecond,
	}, logger.Named("browser"))
	logger.Info("browser strategy resolved", zap.Stringer("strategy", driver.Strategy()))

	fetcher := fetch.New(fetch.Config{
		UserAgent: cfg.Crawler.UserAgent,
		BaseURL:   cfg.Crawler.BaseURL,
		RelayBase: cfg.Proxy.RelayBase,
		Timeout:   time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	}, logger.Named("fetch"))

	parser := parse.New(cfg.Crawler.BaseURL, system.New())

	orch := orchestrate.New(orchestrate.Config{
		BaseURL:             cfg.Crawler.BaseURL,
		Categories:          cfg.Crawler.Categories,
		MaxLinksPerCategory: cfg.Crawler.MaxLinksPerCategory,
		RaceDelay:           time.Duration(cfg.Crawler.RaceDelayMs) * time.Millisecond,
		CategoryDelay:       time.Duration(cfg.Crawler.CategoryDelayMs) * time.Millisecond,
	}, orchestrate.DriverBrowser{Driver: driver}, fetcher, parser, logger.Named("orchestrate"))

	return &App{
		cfg:       cfg,
		logger:    logger,
		apiServer: api.NewServer(orch, cfg, logger.Named("api")),
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	a.logger.Info("shutdown complete")
	//nolint:errcheck // Sync on stderr/stdout sinks fails on some platforms.
	a.logger.Sync()
	return nil
}
