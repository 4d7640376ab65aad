// Package handlers exposes the session manager and the admin token codec over
// HTTP.
package handlers

import (
	"context"
	"time"

	"github.com/tech-arch1tect/tokengate/services/account"
	"github.com/tech-arch1tect/tokengate/services/auth"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"github.com/tech-arch1tect/tokengate/services/refreshtoken"
)

const RefreshTokenHeader = "X-Refresh-Token"

type Sessions interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (*auth.Session, error)
	Refresh(ctx context.Context, secret string, info refreshtoken.SessionInfo) (*auth.RefreshResult, error)
	Logout(ctx context.Context, accountID uint, ip string) error
	LogoutAll(ctx context.Context, accountID uint, ip string) error
	Sessions(ctx context.Context, accountID uint) ([]auth.DeviceSession, error)
	DeleteAccount(ctx context.Context, accountID uint) error
}

type Admins interface {
	Authenticate(email, password string) error
	Issue() (string, error)
}

type Handler struct {
	sessions Sessions
	admins   Admins
	logger   *logging.Service
}

func New(sessions Sessions, admins Admins, logger *logging.Service) *Handler {
	return &Handler{
		sessions: sessions,
		admins:   admins,
		logger:   logger,
	}
}

type UserResponse struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
}

type MeResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type RegistrationResponse struct {
	Message      string       `json:"message"`
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
}

type LoginResponse struct {
	Message      string       `json:"message"`
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
}

type RefreshResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	User         UserResponse `json:"user"`
}

type SessionsResponse struct {
	Sessions []auth.DeviceSession `json:"sessions"`
}

type AdminLoginResponse struct {
	Token string `json:"token"`
}

type AdminSessionResponse struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Errors map[string][]string `json:"errors"`
}

func userResponse(acct *account.Account) UserResponse {
	return UserResponse{ID: acct.ID, Email: acct.Email}
}
