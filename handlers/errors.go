package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/tokengate/services/account"
	"github.com/tech-arch1tect/tokengate/services/admintoken"
	"github.com/tech-arch1tect/tokengate/services/auth"
	"github.com/tech-arch1tect/tokengate/services/jwt"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"github.com/tech-arch1tect/tokengate/services/refreshtoken"
	"go.uber.org/zap"
)

const (
	unauthorizedMessage = "Unauthorized"
	internalMessage     = "Internal server error"
)

// ErrorHandler renders every error returned by a handler or middleware. All
// authentication failures share one body so callers cannot tell them apart.
func ErrorHandler(logger *logging.Service) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := classify(err)
		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed",
				zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil && logger != nil {
			logger.Error("failed to write error response", zap.Error(writeErr))
		}
	}
}

func classify(err error) (int, any) {
	var verrs *auth.ValidationErrors
	if errors.As(err, &verrs) {
		return http.StatusUnprocessableEntity, ValidationErrorResponse{Errors: verrs.Fields}
	}

	if isAuthenticationFailure(err) {
		return http.StatusUnauthorized, ErrorResponse{Error: unauthorizedMessage}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Code >= http.StatusInternalServerError {
			return httpErr.Code, ErrorResponse{Error: internalMessage}
		}
		msg, ok := httpErr.Message.(string)
		if !ok {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, ErrorResponse{Error: msg}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: internalMessage}
}

func isAuthenticationFailure(err error) bool {
	for _, target := range []error{
		auth.ErrUnauthorized,
		jwt.ErrInvalidToken,
		refreshtoken.ErrInvalidToken,
		admintoken.ErrUnauthorized,
		admintoken.ErrInvalidToken,
		account.ErrNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
