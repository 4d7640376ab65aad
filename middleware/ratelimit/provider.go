package ratelimit

import (
	"context"
	"time"

	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"go.uber.org/fx"
)

const sweepInterval = time.Minute

func ProvideRateLimitStore(lc fx.Lifecycle, cfg *config.Config, clk clock.Clock) Store {
	store := NewStore(&cfg.RateLimit, clk)

	if mem, ok := store.(*MemoryStore); ok {
		var stop func()
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				stop = mem.StartSweeper(sweepInterval)
				return nil
			},
			OnStop: func(context.Context) error {
				if stop != nil {
					stop()
				}
				return nil
			},
		})
	}

	return store
}

var Options = fx.Options(
	fx.Provide(ProvideRateLimitStore),
)
