package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ideashare/api/internal/app"
	"ideashare/api/internal/blob"
	"ideashare/api/internal/config"
	"ideashare/api/internal/ledger"
	"ideashare/api/internal/metrics"
	"ideashare/api/internal/search"
	"ideashare/api/internal/store"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

// backend is the wired storage of one IDEAS_BACKEND choice.
type backend struct {
	items     app.ItemStore
	blobs     app.BlobStorage
	ledgers   app.LedgerSource
	search    *search.Service
	opener    app.BlobOpener
	bootstrap []func(context.Context) error
	closers   []io.Closer
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i].Close()
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	var (
		wired *backend
		err   error
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		wired, err = postgresBackend(ctx, cfg, logger)
	case config.BackendMemory:
		wired = memoryBackend(cfg, logger)
	default:
		err = fmt.Errorf("unknown IDEAS_BACKEND %q", cfg.Backend)
	}
	if err != nil {
		return err
	}
	defer wired.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	ideasMetrics, err := metrics.NewIdeasMetrics(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	service := app.New(wired.items, wired.blobs, wired.ledgers, app.Options{
		Search:         wired.search,
		Metrics:        ideasMetrics,
		Logger:         logger,
		BootstrapTasks: wired.bootstrap,
	})
	bootCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := service.Bootstrap(bootCtx); err != nil {
		logger.Warn("bootstrap error (will retry on next restart)", "error", err)
	}
	cancel()

	httpServer := app.NewHTTPServer(service, app.HTTPOptions{
		JWTSecret:   []byte(cfg.JWTSecret),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
		Metrics:     promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		Blobs:       wired.opener,
	})
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("ideas api listening", "addr", cfg.Addr, "backend", cfg.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-sigCh:
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	return nil
}

func postgresBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (*backend, error) {
	wired := &backend{}

	db, err := store.Open(ctx, cfg.DatabaseURL, store.DefaultPoolOptions())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	wired.closers = append(wired.closers, db)
	if _, err := store.ApplyMigrations(ctx, db, os.DirFS(cfg.MigrationsDir), logger); err != nil {
		wired.Close()
		return nil, fmt.Errorf("migrations failed: %w", err)
	}
	wired.items = store.NewPostgresStore(db)

	votes, err := ledger.NewRedisStore(cfg.RedisURL)
	if err != nil {
		wired.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	wired.closers = append(wired.closers, votes)
	wired.ledgers = func(voterID string) app.VoterLedger { return votes.For(voterID) }

	audio, err := blob.NewMinioStore(blob.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Region:    cfg.MinioRegion,
		UseSSL:    cfg.MinioUseSSL,
		URLTTL:    cfg.AudioURLTTL,
	}, logger)
	if err != nil {
		wired.Close()
		return nil, err
	}
	wired.blobs = audio

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
		wired.closers = append(wired.closers, closerFunc(meiliClient.Close))
	}
	wired.search = search.NewService(meiliClient, search.NewPgFTS(db), logger)

	wired.bootstrap = []func(context.Context) error{
		audio.EnsureBucket,
		wired.search.ReindexAllFromPG,
	}
	return wired, nil
}

func memoryBackend(cfg config.Config, logger *slog.Logger) *backend {
	items := store.NewMemoryStore()
	audio := blob.NewMemoryStore(strings.TrimRight(cfg.PublicBaseURL, "/") + "/api/blobs")
	votes := ledger.NewMemoryStore()
	logger.Warn("using in-memory backend; ideas are lost on restart")
	return &backend{
		items:   items,
		blobs:   audio,
		ledgers: func(voterID string) app.VoterLedger { return votes.For(voterID) },
		search:  search.NewService(nil, search.NewScan(items.List), logger),
		opener:  audio,
	}
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}
