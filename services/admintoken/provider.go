package admintoken

import (
	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/fx"
)

func ProvideAdminTokenService(cfg *config.Config, clk clock.Clock, logger *logging.Service) (*Service, error) {
	return NewService(cfg, clk, logger.Named("admintoken"))
}

var Module = fx.Options(
	fx.Provide(ProvideAdminTokenService),
)
