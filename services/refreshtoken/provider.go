package refreshtoken

import (
	"context"

	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideRefreshTokenService(lc fx.Lifecycle, db *gorm.DB, cfg *config.Config, clk clock.Clock, logger *logging.Service) (*Service, error) {
	service, err := NewService(db, cfg, clk, logger.Named("refreshtoken"))
	if err != nil {
		return nil, err
	}

	if cfg.RefreshToken.CleanupInterval > 0 {
		var stop func()
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				stop = service.StartSweeper(cfg.RefreshToken.CleanupInterval)
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

	return service, nil
}

var Options = fx.Options(
	fx.Provide(ProvideRefreshTokenService),
)
