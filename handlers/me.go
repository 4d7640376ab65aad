package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	jwtmw "github.com/tech-arch1tect/tokengate/middleware/jwt"
	"go.uber.org/zap"
)

func (h *Handler) Me(c echo.Context) error {
	acct := jwtmw.GetAccount(c)
	if acct == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	return c.JSON(http.StatusOK, MeResponse{
		ID:        acct.ID,
		Email:     acct.Email,
		CreatedAt: acct.CreatedAt,
	})
}

func (h *Handler) Sessions(c echo.Context) error {
	sessions, err := h.sessions.Sessions(c.Request().Context(), jwtmw.GetAccountID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SessionsResponse{Sessions: sessions})
}

func (h *Handler) DeleteAccount(c echo.Context) error {
	accountID := jwtmw.GetAccountID(c)
	if err := h.sessions.DeleteAccount(c.Request().Context(), accountID); err != nil {
		return err
	}
	if h.logger != nil {
		h.logger.Info("account deleted", zap.Uint("account_id", accountID))
	}
	return c.NoContent(http.StatusNoContent)
}
