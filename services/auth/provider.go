package auth

import (
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/account"
	"github.com/tech-arch1tect/tokengate/services/jwt"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"github.com/tech-arch1tect/tokengate/services/password"
	"github.com/tech-arch1tect/tokengate/services/refreshtoken"
	"go.uber.org/fx"
)

func ProvideAuthService(cfg *config.Config, accounts *account.Repository, passwords *password.Service, access *jwt.Service, refresh *refreshtoken.Service, logger *logging.Service) *Service {
	return NewService(cfg, accounts, passwords, access, refresh, logger.Named("auth"))
}

var Module = fx.Options(
	fx.Provide(ProvideAuthService),
)
