package handlers

import (
	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	jwtmw "github.com/tech-arch1tect/tokengate/middleware/jwt"
	"github.com/tech-arch1tect/tokengate/middleware/ratelimit"
	"github.com/tech-arch1tect/tokengate/openapi"
	"github.com/tech-arch1tect/tokengate/server"
	"github.com/tech-arch1tect/tokengate/services/admintoken"
	"github.com/tech-arch1tect/tokengate/services/auth"
	"github.com/tech-arch1tect/tokengate/services/jwt"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/fx"
)

func ProvideHandler(sessions *auth.Service, admins *admintoken.Service, logger *logging.Service) *Handler {
	return New(sessions, admins, logger.Named("handlers"))
}

func ProvideGuards(cfg *config.Config, access *jwt.Service, sessions *auth.Service, admins *admintoken.Service, store ratelimit.Store, clk clock.Clock, logger *logging.Service) Guards {
	gateway := logger.Named("gateway")
	return Guards{
		Access:          jwtmw.RequireAccessToken(access, sessions, gateway),
		Admin:           jwtmw.RequireAdmin(admins, gateway),
		AdminLoginLimit: ratelimit.AdminLogin(cfg, store, clk, logger.Named("ratelimit")),
	}
}

func mountRoutes(srv *server.Server, h *Handler, guards Guards, docs *openapi.OpenAPI) {
	h.RegisterRoutes(srv.Echo(), guards, docs)
}

var Module = fx.Options(
	fx.Provide(ProvideHandler, ProvideGuards, NewDocs),
	fx.Invoke(mountRoutes),
)
