// Package server initializes and runs the counter ledger server.
// It opens and migrates the database, wires services, serves the JSON HTTP
// API and the gRPC health endpoint, runs periodic jobs and shuts everything
// down on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/wxcounter/internal/logging"
	"github.com/dmitrijs2005/wxcounter/internal/server/config"
	"github.com/dmitrijs2005/wxcounter/internal/server/httpapi"
	"github.com/dmitrijs2005/wxcounter/internal/server/metrics"
	"github.com/dmitrijs2005/wxcounter/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/wxcounter/internal/server/services"
	"github.com/dmitrijs2005/wxcounter/internal/server/wechat"
	"github.com/robfig/cron/v3"

	gs "github.com/dmitrijs2005/wxcounter/internal/server/grpc"
)

const (
	shutdownTimeout    = 10 * time.Second
	limiterCleanupSpec = "@every 5m"
	limiterMaxIdle     = 10 * time.Minute
	readHeaderTimeout  = 5 * time.Second
)

// seams for tests
var (
	openDB     = repomanager.OpenDB
	newManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	metrics *metrics.Metrics
	limiter *httpapi.RateLimiter
	handler http.Handler
	health  *gs.HealthServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := openDB(ctx, c.DatabaseDSN, repomanager.PoolOptions{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	app, err := newApp(ctx, c, logger, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger, db *sql.DB) (*App, error) {
	rm, err := newManager(db)
	if err != nil {
		return nil, fmt.Errorf("repository manager init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	m := metrics.New()

	cs := services.NewCounterService(db, rm, services.WithObserver(m))
	ss, err := services.NewSessionService(db, rm, wechat.NewClient(c.WxEndpoint, c.WxAppID, c.WxAppSecret, c.WxTimeout), c)
	if err != nil {
		return nil, err
	}

	deps := httpapi.Deps{
		BasePath:       c.BasePath,
		TrustedProxies: c.TrustedProxies,
		Secret:         []byte(c.SecretKey),
		Logger:         logger,
		Counters:       cs,
		Sessions:       ss,
		Metrics:        m,
		LoginLimiter:   httpapi.NewRateLimiter(c.LoginRateLimit, c.LoginRateBurst),
	}
	if c.ExportsEnabled() {
		deps.Exports = services.NewExportService(db, rm, c, m)
	}

	app := &App{
		config:  c,
		logger:  logger,
		db:      db,
		metrics: m,
		limiter: deps.LoginLimiter,
		handler: httpapi.NewRouter(deps),
	}
	if c.EndpointAddrGRPC != "" {
		app.health = gs.NewHealthServer(c.EndpointAddrGRPC, logger, db, m)
	}
	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// probe checks the database, reporting through the health server when there
// is one and straight to the gauge otherwise.
func (app *App) probe(ctx context.Context) {
	if app.health != nil {
		_ = app.health.Probe(ctx)
		return
	}
	err := app.db.PingContext(ctx)
	if err != nil {
		app.logger.Warn(ctx, "database probe failed", "error", err.Error())
	}
	app.metrics.SetDBUp(err == nil)
}

func (app *App) startScheduler(ctx context.Context) (*cron.Cron, error) {
	c := cron.New()

	if _, err := c.AddFunc(app.config.HealthProbeSpec, func() { app.probe(ctx) }); err != nil {
		return nil, fmt.Errorf("health probe schedule %q: %w", app.config.HealthProbeSpec, err)
	}
	if _, err := c.AddFunc(limiterCleanupSpec, func() {
		if n := app.limiter.Cleanup(limiterMaxIdle); n > 0 {
			app.logger.Debug(ctx, "rate limiter cleanup", "removed", n)
		}
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.EndpointAddrHTTP,
		Handler:           app.handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "http shutdown error", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP, "base_path", app.config.BasePath)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.probe(ctx)
	sched, err := app.startScheduler(ctx)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	if app.health != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startGRPCServer(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	<-sched.Stop().Done()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err.Error())
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
