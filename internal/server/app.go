// Package server wires the identity service together: configuration,
// storage, the login throttle, token issuers, services, and the HTTP and
// gRPC servers, and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/fittrack/internal/logging"
	"github.com/dmitrijs2005/fittrack/internal/server/auth"
	"github.com/dmitrijs2005/fittrack/internal/server/billing"
	"github.com/dmitrijs2005/fittrack/internal/server/config"
	"github.com/dmitrijs2005/fittrack/internal/server/httpapi"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fittrack/internal/server/services"
	"github.com/dmitrijs2005/fittrack/internal/server/throttle"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/fittrack/internal/server/grpc"
)

var (
	openDB               = repomanager.Open
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	closers      []func() error
	sessions     *auth.SessionTokens
	userService  *services.UserService
	mediaService *services.MediaService
	reconciler   *billing.Reconciler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(ctx, c.DatabaseDSN, c.DatabaseTimeout)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, db: db, closers: []func() error{db.Close}}

	if err := app.init(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}

	return app, nil
}

func (app *App) init(ctx context.Context) error {
	c := app.config

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	th, closeThrottle := newThrottle(c)
	if closeThrottle != nil {
		app.closers = append(app.closers, closeThrottle)
	}

	sessionSigner, err := auth.NewSigner([]byte(c.SessionSecret), auth.SessionAudience)
	if err != nil {
		return fmt.Errorf("session signer: %w", err)
	}
	mediaSigner, err := auth.NewSigner([]byte(c.MediaSecret), auth.MediaAudience)
	if err != nil {
		return fmt.Errorf("media signer: %w", err)
	}
	app.sessions = auth.NewSessionTokens(sessionSigner, c.SessionTokenTTL)
	mediaTokens := auth.NewMediaTokens(mediaSigner, c.MediaTokenTTL)

	prices, err := billing.NewPriceTable(c.PriceTiers)
	if err != nil {
		return err
	}

	app.userService, err = services.NewUserService(app.db, rm, c, app.sessions, th, app.logger)
	if err != nil {
		return err
	}
	app.mediaService = services.NewMediaService(app.db, rm, c, mediaTokens, app.logger)
	app.reconciler = billing.NewReconciler(app.db, rm, prices, c.BillingWebhookSecret, c.DatabaseTimeout, app.logger)

	return nil
}

// newThrottle picks the shared Redis throttle when an address is configured
// and the per-process one otherwise.
func newThrottle(c *config.Config) (throttle.Throttle, func() error) {
	p := throttle.Policy{MaxAttempts: c.MaxLoginAttempts, Window: c.LoginWindow}
	if c.RedisAddr == "" {
		return throttle.NewMemoryThrottle(p), nil
	}
	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	return throttle.NewRedisThrottle(client, p), client.Close
}

// Close releases the database and Redis connections.
func (app *App) Close() error {
	var firstErr error
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	app.closers = nil
	return firstErr
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.sessions, app.userService)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.userService, app.mediaService, app.reconciler)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves HTTP and gRPC until ctx is cancelled or a termination signal
// arrives; a failure of either server stops both.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.Close(); err != nil {
		app.logger.Error(context.Background(), "close failed", "error", err.Error())
	}
	app.logger.Info(context.Background(), "App stopped")
}
