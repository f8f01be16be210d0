package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/searchktools/tiny-server/config"
	"github.com/searchktools/tiny-server/core"
	"github.com/searchktools/tiny-server/core/middleware"
)

// App wires configuration, logging and tracing around an engine
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	engine *core.Engine

	shutdownTracing func(context.Context) error
}

// New builds the logger, the tracer provider and the engine from cfg
func New(cfg *config.Config) (*App, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithWorkers(cfg.Workers),
		core.WithExposing(cfg.Exposing),
		core.WithBufferSize(cfg.BufferSize),
		core.WithReadTimeout(cfg.ReadTimeout),
		core.WithWriteTimeout(cfg.WriteTimeout),
		core.WithDrainTimeout(cfg.DrainTimeout),
		core.WithQueue(cfg.QueueBound, policy),
		core.WithMaxConnections(cfg.MaxConnections),
		core.WithMiddleware(middleware.SetHeaders("Server", serviceName)),
	}

	a := &App{cfg: cfg, logger: logger}
	if cfg.Trace {
		tp, err := NewTracerProvider(os.Stdout)
		if err != nil {
			return nil, fmt.Errorf("failed to build tracer provider: %w", err)
		}
		opts = append(opts, core.WithTracerProvider(tp))
		a.shutdownTracing = tp.Shutdown
	}

	a.engine = core.NewEngine(opts...)
	return a, nil
}

// NewLogger builds a development logger in debug mode and a production one
// otherwise
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Engine returns the underlying engine for route registration
func (a *App) Engine() *core.Engine {
	return a.engine
}

func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Run serves until SIGINT or SIGTERM, or until ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.logger.Sync()

	a.logger.Info("starting server",
		zap.Int("port", a.cfg.Port),
		zap.Bool("listen", a.cfg.Listen),
		zap.String("env", a.cfg.Env),
	)

	err := a.engine.Run(ctx, core.ListenAddr(a.cfg.Port, a.cfg.Listen))
	if a.shutdownTracing != nil {
		err = errors.Join(err, a.shutdownTracing(context.Background()))
	}
	if err != nil {
		a.logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
