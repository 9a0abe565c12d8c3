// Package server runs "pgkit serve": the HTTP API over the configured table,
// the audit log and metrics, plus a gRPC health endpoint. It wires storage,
// the upserter, audit subscriber and soft deletes, and handles graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/pgkit/internal/audit"
	"github.com/dmitrijs2005/pgkit/internal/config"
	"github.com/dmitrijs2005/pgkit/internal/grpcx"
	"github.com/dmitrijs2005/pgkit/internal/logging"
	"github.com/dmitrijs2005/pgkit/internal/metrics"
	"github.com/dmitrijs2005/pgkit/internal/softdelete"
	"github.com/dmitrijs2005/pgkit/internal/storage"
	"github.com/dmitrijs2005/pgkit/internal/upsert"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	store    *storage.Manager
	records  *upsert.SQLStore
	upserter *upsert.Upserter
	audit    *audit.Subscriber
	auditLog *audit.PostgresRepository
	deletes  *softdelete.Repository
	registry *prometheus.Registry
	keyCol   string
}

// NewApp builds the logger, opens the database and applies migrations.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Backend: c.LogBackend, Level: c.LogLevel, Format: c.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	store, err := storage.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := store.WithLogger(logger).RunMigrations(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	app, err := newApp(c, logger, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return app, nil
}

func newApp(c *config.Config, logger logging.Logger, store *storage.Manager) (*App, error) {
	naming, ok := upsert.NamingByName(c.KeyNaming)
	if !ok {
		return nil, fmt.Errorf("unknown key naming %q", c.KeyNaming)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	records := store.Upserts(store.DB())
	upserter := upsert.New(records, logger, upsert.Options{
		KeyNaming:    naming,
		DoNotUpsert:  c.DoNotUpsert,
		ChunkSize:    c.ChunkSize,
		ReturnStatus: upsert.Bool(c.ReturnStatus),
		Concurrency:  c.Concurrency,
	}).WithObserver(metrics.NewUpsertMetrics(registry))

	auditLog := store.AuditLogs(store.DB())

	return &App{
		config:   c,
		logger:   logging.OrNop(logger),
		store:    store,
		records:  records,
		upserter: upserter,
		audit:    audit.NewSubscriber(auditLog, audit.NewConfig(c.AuditExclude, c.AuditMask), logger),
		auditLog: auditLog,
		deletes:  store.SoftDeletes(c.SoftDeleteColumn),
		registry: registry,
		keyCol:   naming(c.ConflictKey),
	}, nil
}

// initSignalHandler cancels on SIGINT, SIGTERM or SIGQUIT. The returned func
// stops signal delivery.
func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
	return func() { signal.Stop(sigs) }
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	secret := []byte(app.config.SecretKey)
	s := grpcx.NewServer(app.config.GRPCAddr, app.logger, grpcx.NewInterceptors(app.logger, secret))

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
		return err
	}
	return nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) error {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", srv.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
		return err
	}
	return nil
}

// Run serves HTTP and gRPC until ctx is done, a termination signal arrives
// or one of the servers fails. The database is closed on return.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	stop := app.initSignalHandler(ctx, cancelFunc)
	defer stop()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(start func(context.Context, context.CancelFunc) error) {
		defer wg.Done()
		if err := start(ctx, cancelFunc); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	wg.Add(2)
	go run(app.startGRPCServer)
	go run(app.startHTTPServer)
	wg.Wait()

	app.logger.Info(ctx, "App stopped")

	return errors.Join(append(errs, app.store.Close())...)
}
