package jwt

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokengate/services/account"
	"github.com/tech-arch1tect/tokengate/services/admintoken"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/zap"
)

const (
	AccountIDKey = logging.AccountIDKey
	AccountKey   = "_auth_account"
	AdminKey     = "_auth_admin"

	unauthorizedMessage = "Unauthorized"
)

type AccessVerifier interface {
	Verify(token string) (uint, error)
}

type AdminVerifier interface {
	Decode(token string) (*admintoken.Claims, error)
}

// AccountResolver loads the account an access token names.
type AccountResolver interface {
	CurrentAccount(ctx context.Context, accountID uint) (*account.Account, error)
}

// RequireAccessToken admits requests carrying a valid bearer access token for
// an existing account. Every rejection looks the same to the client.
func RequireAccessToken(verifier AccessVerifier, accounts AccountResolver, logger *logging.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request())
			if !ok {
				return reject(logger, c, "missing_bearer")
			}

			accountID, err := verifier.Verify(token)
			if err != nil {
				return reject(logger, c, "invalid_token")
			}

			acct, err := accounts.CurrentAccount(c.Request().Context(), accountID)
			if err != nil {
				if errors.Is(err, account.ErrNotFound) {
					return reject(logger, c, "unknown_account")
				}
				if logger != nil {
					logger.Error("failed to resolve account", zap.Uint("account_id", accountID), zap.Error(err))
				}
				return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error").SetInternal(err)
			}

			c.Set(AccountIDKey, acct.ID)
			c.Set(AccountKey, acct)

			return next(c)
		}
	}
}

// RequireAdmin admits requests carrying a valid bearer admin token.
func RequireAdmin(verifier AdminVerifier, logger *logging.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request())
			if !ok {
				return reject(logger, c, "missing_bearer")
			}

			claims, err := verifier.Decode(token)
			if err != nil {
				return reject(logger, c, "invalid_admin_token")
			}

			c.Set(AdminKey, claims)
			return next(c)
		}
	}
}

func GetAccountID(c echo.Context) uint {
	if id, ok := c.Get(AccountIDKey).(uint); ok {
		return id
	}
	return 0
}

func GetAccount(c echo.Context) *account.Account {
	if acct, ok := c.Get(AccountKey).(*account.Account); ok {
		return acct
	}
	return nil
}

func GetAdminClaims(c echo.Context) *admintoken.Claims {
	if claims, ok := c.Get(AdminKey).(*admintoken.Claims); ok {
		return claims
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func reject(logger *logging.Service, c echo.Context, cause string) error {
	if logger != nil {
		logger.Debug("request rejected by authentication gateway",
			zap.String("cause", cause),
			zap.String("path", c.Path()),
			zap.String("remote_ip", c.RealIP()))
	}
	return echo.NewHTTPError(http.StatusUnauthorized, unauthorizedMessage)
}
