package jwt

import (
	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/fx"
)

func NewJWTService(cfg *config.Config, clk clock.Clock, logger *logging.Service) *Service {
	return NewService(cfg, clk, logger.Named("jwt"))
}

var Options = fx.Options(
	fx.Provide(NewJWTService),
)
