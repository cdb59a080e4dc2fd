// Package server initializes and runs the account service: it opens the
// configured credential store, wires the user service and serves the HTTP
// API until a termination signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/usersvc/internal/cryptox"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/auth"
	"github.com/dmitrijs2005/usersvc/internal/server/config"
	"github.com/dmitrijs2005/usersvc/internal/server/httpapi"
	"github.com/dmitrijs2005/usersvc/internal/server/metrics"
	"github.com/dmitrijs2005/usersvc/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/usersvc/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	store       *repomanager.Store
	userService *services.UserService
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
}

// NewApp validates c, opens the credential store and wires the services.
// Logs go to w.
func NewApp(ctx context.Context, c *config.Config, w io.Writer) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewSlogLoggerForEnv(c.Env, w)
	if c.UsesDefaultSecret() {
		logger.Warn(ctx, "JWT secret is the built-in placeholder; set JWT_SECRET in production")
	}

	if c.Env != logging.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := repomanager.Open(ctx, c.StorageDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	registry := metrics.NewRegistry()
	m := metrics.NewMetrics(registry)

	us := services.NewUserService(
		store.Users(),
		cryptox.NewPasswordHasher(c.PasswordHashCost),
		auth.NewCodec(c.SecretKey),
		c,
		logger,
		m,
	)

	return &App{
		config:      c,
		logger:      logger,
		store:       store,
		userService: us,
		registry:    registry,
		metrics:     m,
	}, nil
}

func (app *App) newHTTPServer() *httpapi.HTTPServer {
	return httpapi.NewHTTPServer(
		app.config.EndpointAddrHTTP,
		app.logger,
		app.userService,
		app.metrics,
		app.registry,
		app.config.ShutdownTimeout,
	)
}

// Run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then closes
// the store. It returns the first server error, if any.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageDriver)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.newHTTPServer().Run(ctx)
	})

	runErr := g.Wait()
	if runErr != nil {
		app.logger.Error(ctx, "server stopped with error", "error", runErr)
	}

	closeErr := app.store.Close()
	if closeErr != nil {
		app.logger.Error(ctx, "store close failed", "error", closeErr)
	}

	app.logger.Info(ctx, "App stopped")
	return errors.Join(runErr, closeErr)
}
