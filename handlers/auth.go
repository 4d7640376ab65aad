package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	jwtmw "github.com/tech-arch1tect/tokengate/middleware/jwt"
	"github.com/tech-arch1tect/tokengate/services/auth"
	"github.com/tech-arch1tect/tokengate/services/refreshtoken"
	"go.uber.org/zap"
)

// Bodies are accepted flat or wrapped in the resource key used by older
// clients ({"user": {...}}, {"auth_registration": {...}}).
type registrationBody struct {
	auth.RegisterRequest
	Wrapped *auth.RegisterRequest `json:"auth_registration"`
}

type loginBody struct {
	auth.LoginRequest
	Wrapped *auth.LoginRequest `json:"user"`
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) Register(c echo.Context) error {
	var body registrationBody
	if err := c.Bind(&body); err != nil {
		return err
	}

	req := body.RegisterRequest
	if body.Wrapped != nil {
		req = *body.Wrapped
	}
	req.IPAddress = c.RealIP()
	req.UserAgent = c.Request().UserAgent()

	session, err := h.sessions.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, RegistrationResponse{
		Message:      "Account created",
		User:         userResponse(session.Account),
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
		TokenType:    session.Tokens.TokenType,
		ExpiresIn:    session.Tokens.ExpiresIn,
	})
}

func (h *Handler) Login(c echo.Context) error {
	var body loginBody
	if err := c.Bind(&body); err != nil {
		return err
	}

	req := body.LoginRequest
	if body.Wrapped != nil {
		req = *body.Wrapped
	}
	req.IPAddress = c.RealIP()
	req.UserAgent = c.Request().UserAgent()

	session, err := h.sessions.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, LoginResponse{
		Message:      "Signed in",
		User:         userResponse(session.Account),
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
		TokenType:    session.Tokens.TokenType,
		ExpiresIn:    session.Tokens.ExpiresIn,
	})
}

// Refresh reads the secret from the X-Refresh-Token header, falling back to
// the JSON body.
func (h *Handler) Refresh(c echo.Context) error {
	secret := strings.TrimSpace(c.Request().Header.Get(RefreshTokenHeader))
	if secret == "" {
		var body refreshBody
		if err := c.Bind(&body); err != nil {
			return err
		}
		secret = strings.TrimSpace(body.RefreshToken)
	}
	if secret == "" {
		return refreshtoken.ErrInvalidToken
	}

	result, err := h.sessions.Refresh(c.Request().Context(), secret, refreshtoken.SessionInfo{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, RefreshResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		TokenType:    result.TokenType,
		ExpiresIn:    result.ExpiresIn,
		User:         userResponse(result.Account),
	})
}

func (h *Handler) Logout(c echo.Context) error {
	accountID := jwtmw.GetAccountID(c)
	if err := h.sessions.Logout(c.Request().Context(), accountID, c.RealIP()); err != nil {
		return err
	}
	if h.logger != nil {
		h.logger.Info("account logged out", zap.Uint("account_id", accountID))
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) LogoutAll(c echo.Context) error {
	accountID := jwtmw.GetAccountID(c)
	if err := h.sessions.LogoutAll(c.Request().Context(), accountID, c.RealIP()); err != nil {
		return err
	}
	if h.logger != nil {
		h.logger.Info("account logged out everywhere", zap.Uint("account_id", accountID))
	}
	return c.NoContent(http.StatusNoContent)
}
