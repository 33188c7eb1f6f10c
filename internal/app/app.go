package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/specialistvlad/gifdeploy/internal/config"
	"github.com/specialistvlad/gifdeploy/internal/pipeline"
	"github.com/specialistvlad/gifdeploy/internal/transport"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *Config
	loader *config.Loader
	// caller replaces the configured transport when set.
	caller transport.Caller
	stages []*pipeline.Stage
}

// Option configures an App.
type Option func(*App)

// WithLoader replaces the default network file loader.
func WithLoader(l *config.Loader) Option {
	return func(a *App) { a.loader = l }
}

// WithCaller makes every run use c instead of dialing the configured
// transport. The app does not close c.
func WithCaller(c transport.Caller) Option {
	return func(a *App) { a.caller = c }
}

// WithStages replaces the default plan.
func WithStages(stages ...*pipeline.Stage) Option {
	return func(a *App) { a.stages = stages }
}

// NewApp is the constructor for the main application. The returned App has
// its own logger writing to outW.
func NewApp(outW io.Writer, cfg *Config, opts ...Option) *App {
	a := &App{
		outW:   outW,
		logger: newLogger(cfg.LogLevel, cfg.LogFormat, outW),
		config: cfg,
		loader: config.NewLoader(),
		stages: pipeline.Plan(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger.Debug("Logger configured successfully.")
	return a
}

// Logger returns the application's logger. This is primarily for testing.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

func (a *App) loadNetwork(ctx context.Context) (*config.Network, pipeline.Params, error) {
	network, err := a.loader.Load(ctx, a.config.Network, a.config.ConfigPath)
	if err != nil {
		return nil, pipeline.Params{}, err
	}
	params, err := network.Params()
	if err != nil {
		return nil, pipeline.Params{}, err
	}

	if a.config.Transport != "" {
		network.Transport = a.config.Transport
	}
	if network.Transport == "" {
		network.Transport = TransportRPC
	}
	if a.config.Endpoint != "" {
		network.Endpoint = a.config.Endpoint
	}
	if a.config.Namespace != "" {
		network.Namespace = a.config.Namespace
	}
	return network, params, nil
}
