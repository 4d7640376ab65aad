package app

import (
	"fmt"

	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/database"
	"github.com/tech-arch1tect/tokengate/handlers"
	"github.com/tech-arch1tect/tokengate/internal/options"
	"github.com/tech-arch1tect/tokengate/middleware/ratelimit"
	"github.com/tech-arch1tect/tokengate/server"
	"github.com/tech-arch1tect/tokengate/services/account"
	"github.com/tech-arch1tect/tokengate/services/admintoken"
	"github.com/tech-arch1tect/tokengate/services/auth"
	"github.com/tech-arch1tect/tokengate/services/jwt"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"github.com/tech-arch1tect/tokengate/services/password"
	"github.com/tech-arch1tect/tokengate/services/refreshtoken"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

type AppBuilder struct {
	config    *config.Config
	clock     clock.Clock
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

// New applies opts and builds the application.
func New(opts ...options.Option) (*App, error) {
	o := &options.Options{}
	for _, opt := range opts {
		opt(o)
	}

	b := NewApp()
	if o.Config != nil {
		b.WithConfig(o.Config)
	}
	if o.Clock != nil {
		b.WithClock(o.Clock)
	}
	b.WithFxOptions(o.FxOptions...)
	return b.Build()
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.errors = append(b.errors, fmt.Errorf("failed to load config: %w", err))
		return b
	}
	b.config = cfg
	return b
}

// WithClock replaces the wall clock used by the token services and the rate
// limiter.
func (b *AppBuilder) WithClock(clk clock.Clock) *AppBuilder {
	b.clock = clk
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

// Build refuses to produce an application from an invalid configuration, so
// a misconfigured process never binds its port.
func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	} else if err := b.config.Validate(); err != nil {
		return nil, err
	}

	logger, err := b.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{
		config: b.config,
		logger: logger,
	}

	fxOptions := append(b.buildFxOptions(logger),
		fx.Populate(&app.server, &app.db),
	)

	app.fx = fx.New(fxOptions...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("%w: %v", config.ErrInvalidConfig, b.errors)
	}
	return nil
}

func (b *AppBuilder) createLogger() (*logging.Service, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config required for logger creation")
	}

	return logging.NewLoggingService(b.config)
}

func (b *AppBuilder) buildFxOptions(logger *logging.Service) []fx.Option {
	clk := clock.OrReal(b.clock)

	options := []fx.Option{
		config.NewProvider(b.config),
		fx.Supply(logger),
		fx.Provide(func() clock.Clock { return clk }),
		fx.WithLogger(func() fxevent.Logger {
			if b.config.Log.Level != string(logging.Debug) {
				return fxevent.NopLogger
			}
			return &fxevent.ZapLogger{Logger: logger.Named("fx").Logger()}
		}),

		fx.Supply(database.WithModels(&account.Account{}, &refreshtoken.RefreshToken{})),
		fx.Supply(account.Dependents{&refreshtoken.RefreshToken{}}),
		database.Module,

		account.Module,
		password.Module,
		jwt.Options,
		refreshtoken.Options,
		admintoken.Module,
		auth.Module,
		ratelimit.Options,

		server.Module,
		handlers.Module,
	}

	return append(options, b.fxOptions...)
}
