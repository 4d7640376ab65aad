package options

import (
	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"go.uber.org/fx"
)

type Options struct {
	Config    *config.Config
	Clock     clock.Clock
	FxOptions []fx.Option
}

type Option func(*Options)

func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

func WithClock(clk clock.Clock) Option {
	return func(opts *Options) {
		opts.Clock = clk
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.FxOptions = append(opts.FxOptions, fxOpts...)
	}
}
