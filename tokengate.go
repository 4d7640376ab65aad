// Package tokengate assembles the account and token service. Use New for an
// application wired from the environment, or pass options to override parts
// of it.
package tokengate

import (
	"github.com/tech-arch1tect/tokengate/app"
	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/internal/options"
	"go.uber.org/fx"
)

type App = app.App

func New(opts ...options.Option) (*App, error) {
	return app.New(opts...)
}

func WithConfig(cfg *config.Config) options.Option {
	return options.WithConfig(cfg)
}

func WithClock(clk clock.Clock) options.Option {
	return options.WithClock(clk)
}

func WithFxOptions(opts ...fx.Option) options.Option {
	return options.WithFxOptions(opts...)
}
