package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	jwtmw "github.com/tech-arch1tect/tokengate/middleware/jwt"
	"go.uber.org/zap"
)

type adminLoginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) AdminLogin(c echo.Context) error {
	var body adminLoginBody
	if err := c.Bind(&body); err != nil {
		return err
	}

	if err := h.admins.Authenticate(body.Email, body.Password); err != nil {
		if h.logger != nil {
			h.logger.Warn("admin login failed", zap.String("remote_ip", c.RealIP()))
		}
		return err
	}

	token, err := h.admins.Issue()
	if err != nil {
		return err
	}

	if h.logger != nil {
		h.logger.Info("admin logged in", zap.String("remote_ip", c.RealIP()))
	}
	return c.JSON(http.StatusOK, AdminLoginResponse{Token: token})
}

func (h *Handler) AdminSession(c echo.Context) error {
	claims := jwtmw.GetAdminClaims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	return c.JSON(http.StatusOK, AdminSessionResponse{
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt,
	})
}

func (h *Handler) Up(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
