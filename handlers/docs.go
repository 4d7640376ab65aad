package handlers

import (
	"net/http"

	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/openapi"
	"github.com/tech-arch1tect/tokengate/services/auth"
)

const (
	accessScheme = "accessToken"
	adminScheme  = "adminToken"
)

// NewDocs describes every route RegisterRoutes mounts.
func NewDocs(cfg *config.Config) *openapi.OpenAPI {
	docs := openapi.New(cfg.App.Name, cfg.App.Version).
		Description("Account registration, token issuance and session lifecycle.").
		Server(cfg.App.URL, "").
		Tag("auth", "Registration, login and token refresh").
		Tag("account", "The authenticated account").
		Tag("admin", "Administrator access").
		BearerAuth(accessScheme, "JWT", "HS256 access token").
		BearerAuth(adminScheme, "PASETO", "v4.local administrator token")

	unauthorized := ErrorResponse{Error: unauthorizedMessage}

	docs.Document(http.MethodPost, "/api/v1/auth/registration").
		OperationID("register").
		Summary("Create an account and issue its first token pair").
		Tags("auth").
		Body(auth.RegisterRequest{}, "New account credentials").
		Response(http.StatusCreated, RegistrationResponse{}, "Account created").
		Response(http.StatusUnprocessableEntity, ValidationErrorResponse{}, "Invalid fields").
		Build()

	docs.Document(http.MethodPost, "/api/v1/auth/session").
		OperationID("login").
		Summary("Exchange credentials for a token pair").
		Tags("auth").
		Body(auth.LoginRequest{}, "Account credentials").
		Response(http.StatusOK, LoginResponse{}, "Signed in").
		Response(http.StatusUnauthorized, unauthorized, "Invalid credentials").
		Build()

	docs.Document(http.MethodPost, "/api/v1/auth/token/refresh").
		OperationID("refreshToken").
		Summary("Obtain a new access token from a refresh token").
		Tags("auth").
		HeaderParam(RefreshTokenHeader, "Refresh token; the body field is used when absent", false).
		Body(refreshBody{}, "Refresh token").
		Response(http.StatusOK, RefreshResponse{}, "New access token").
		Response(http.StatusUnauthorized, unauthorized, "Unknown, revoked or expired refresh token").
		Build()

	docs.Document(http.MethodPost, "/api/v1/auth/token/refresh_token").
		OperationID("refreshTokenLegacy").
		Summary("Same as /api/v1/auth/token/refresh, kept for older clients").
		Tags("auth").
		HeaderParam(RefreshTokenHeader, "Refresh token; the body field is used when absent", false).
		Body(refreshBody{}, "Refresh token").
		Response(http.StatusOK, RefreshResponse{}, "New access token").
		Response(http.StatusUnauthorized, unauthorized, "Unknown, revoked or expired refresh token").
		Build()

	docs.Document(http.MethodDelete, "/api/v1/auth/token/logout").
		OperationID("logout").
		Summary("Revoke the account's refresh tokens").
		Tags("auth").
		Security(accessScheme).
		Response(http.StatusNoContent, nil, "Logged out").
		Response(http.StatusUnauthorized, unauthorized, "Missing or invalid access token").
		Build()

	docs.Document(http.MethodDelete, "/api/v1/auth/token/logout_all").
		OperationID("logoutAll").
		Summary("Revoke the refresh tokens of every device").
		Tags("auth").
		Security(accessScheme).
		Response(http.StatusNoContent, nil, "Logged out everywhere").
		Response(http.StatusUnauthorized, unauthorized, "Missing or invalid access token").
		Build()

	docs.Document(http.MethodGet, "/api/v1/me").
		OperationID("me").
		Summary("The authenticated account").
		Tags("account").
		Security(accessScheme).
		Response(http.StatusOK, MeResponse{}, "Account").
		Response(http.StatusUnauthorized, unauthorized, "Missing or invalid access token").
		Build()

	docs.Document(http.MethodGet, "/api/v1/me/sessions").
		OperationID("sessions").
		Summary("Active sessions by device").
		Tags("account").
		Security(accessScheme).
		Response(http.StatusOK, SessionsResponse{}, "Active sessions").
		Response(http.StatusUnauthorized, unauthorized, "Missing or invalid access token").
		Build()

	docs.Document(http.MethodDelete, "/api/v1/me").
		OperationID("deleteAccount").
		Summary("Delete the account and all of its sessions").
		Tags("account").
		Security(accessScheme).
		Response(http.StatusNoContent, nil, "Account deleted").
		Response(http.StatusUnauthorized, unauthorized, "Missing or invalid access token").
		Build()

	docs.Document(http.MethodPost, "/admin/login").
		OperationID("adminLogin").
		Summary("Exchange administrator credentials for an admin token").
		Tags("admin").
		Body(adminLoginBody{}, "Administrator credentials").
		Response(http.StatusOK, AdminLoginResponse{}, "Admin token").
		Response(http.StatusUnauthorized, unauthorized, "Invalid credentials").
		Response(http.StatusTooManyRequests, ErrorResponse{}, "Too many attempts").
		Build()

	docs.Document(http.MethodGet, "/admin/session").
		OperationID("adminSession").
		Summary("The current admin token").
		Tags("admin").
		Security(adminScheme).
		Response(http.StatusOK, AdminSessionResponse{}, "Admin session").
		Response(http.StatusUnauthorized, unauthorized, "Missing or invalid admin token").
		Build()

	docs.Document(http.MethodGet, "/up").
		OperationID("health").
		Summary("Liveness probe").
		Response(http.StatusOK, HealthResponse{}, "Up").
		Build()

	return docs
}
