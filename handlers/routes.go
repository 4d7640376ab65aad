package handlers

import (
	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokengate/openapi"
)

// Guards are the middleware the routes depend on. All three are required.
type Guards struct {
	Access          echo.MiddlewareFunc
	Admin           echo.MiddlewareFunc
	AdminLoginLimit echo.MiddlewareFunc
}

func (h *Handler) RegisterRoutes(e *echo.Echo, guards Guards, docs *openapi.OpenAPI) {
	e.HTTPErrorHandler = ErrorHandler(h.logger)

	e.GET("/up", h.Up)
	if docs != nil {
		e.GET("/openapi.json", docs.JSONHandler())
		e.GET("/openapi.yaml", docs.YAMLHandler())
	}

	api := e.Group("/api/v1")
	api.POST("/auth/registration", h.Register)
	api.POST("/auth/session", h.Login)
	api.POST("/auth/token/refresh", h.Refresh)
	api.POST("/auth/token/refresh_token", h.Refresh)
	api.DELETE("/auth/token/logout", h.Logout, guards.Access)
	api.DELETE("/auth/token/logout_all", h.LogoutAll, guards.Access)
	api.GET("/me", h.Me, guards.Access)
	api.GET("/me/sessions", h.Sessions, guards.Access)
	api.DELETE("/me", h.DeleteAccount, guards.Access)

	admin := e.Group("/admin")
	admin.POST("/login", h.AdminLogin, guards.AdminLoginLimit)
	admin.GET("/session", h.AdminSession, guards.Admin)
}
