package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/account"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"github.com/tech-arch1tect/tokengate/services/password"
	"github.com/tech-arch1tect/tokengate/services/refreshtoken"
	"go.uber.org/zap"
)

const (
	TokenTypeBearer = "Bearer"

	// bcrypt ignores input past this many bytes.
	maxPasswordLength = 72
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type Accounts interface {
	Create(ctx context.Context, email, passwordHash string) (*account.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	FindByEmail(ctx context.Context, email string) (*account.Account, error)
	FindByID(ctx context.Context, id uint) (*account.Account, error)
	Delete(ctx context.Context, id uint) error
}

type Passwords interface {
	Hash(password string) (string, error)
	VerifyAccount(account password.Hashed, submitted string) bool
}

type AccessTokens interface {
	Issue(accountID uint) (string, error)
	AccessExpirySeconds() int
}

type RefreshTokens interface {
	Create(ctx context.Context, accountID uint, info refreshtoken.SessionInfo) (*refreshtoken.IssuedToken, error)
	Validate(ctx context.Context, secret string) (*refreshtoken.RefreshToken, error)
	Rotate(ctx context.Context, secret string, info refreshtoken.SessionInfo) (*refreshtoken.Rotation, error)
	Touch(ctx context.Context, tokenID uint) error
	RevokeAllForAccount(ctx context.Context, accountID uint, reason, ip string) (int64, error)
	ListActive(ctx context.Context, accountID uint) ([]refreshtoken.RefreshToken, error)
}

type RegisterRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	IPAddress            string `json:"-"`
	UserAgent            string `json:"-"`
}

type LoginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Session is the result of a successful registration or login.
type Session struct {
	Account *account.Account
	Tokens  TokenPair
}

// RefreshResult carries a new access token and the account it was issued to.
// RefreshToken is only set when the presented secret was rotated.
type RefreshResult struct {
	AccountID    uint             `json:"-"`
	Account      *account.Account `json:"-"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

type DeviceSession struct {
	ID         uint       `json:"id"`
	Device     string     `json:"device"`
	IPAddress  string     `json:"ip_address"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// Service coordinates accounts, credentials and the two token kinds.
type Service struct {
	config    *config.Config
	accounts  Accounts
	passwords Passwords
	access    AccessTokens
	refresh   RefreshTokens
	logger    *logging.Service
}

func NewService(cfg *config.Config, accounts Accounts, passwords Passwords, access AccessTokens, refresh RefreshTokens, logger *logging.Service) *Service {
	return &Service{
		config:    cfg,
		accounts:  accounts,
		passwords: passwords,
		access:    access,
		refresh:   refresh,
		logger:    logger,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email := account.NormalizeEmail(req.Email)

	verrs := s.validateRegistration(email, req)
	if !verrs.HasErrors() {
		exists, err := s.accounts.EmailExists(ctx, email)
		if err != nil {
			return nil, err
		}
		if exists {
			verrs.Add("email", "has already been taken")
		}
	}
	if verrs.HasErrors() {
		if s.logger != nil {
			s.logger.Info("registration rejected", zap.Strings("fields", fieldNames(verrs)))
		}
		return nil, verrs
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	acct, err := s.accounts.Create(ctx, email, hash)
	if err != nil {
		if errors.Is(err, account.ErrEmailTaken) {
			verrs.Add("email", "has already been taken")
			return nil, verrs
		}
		return nil, err
	}

	tokens, err := s.issuePair(ctx, acct.ID, refreshtoken.SessionInfo{IPAddress: req.IPAddress, UserAgent: req.UserAgent})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("account registered", zap.Uint("account_id", acct.ID))
	}

	return &Session{Account: acct, Tokens: *tokens}, nil
}

func (s *Service) validateRegistration(email string, req RegisterRequest) *ValidationErrors {
	verrs := &ValidationErrors{}

	switch {
	case email == "":
		verrs.Add("email", "can't be blank")
	case !emailPattern.MatchString(email):
		verrs.Add("email", "is invalid")
	}

	switch {
	case req.Password == "":
		verrs.Add("password", "can't be blank")
	case len(req.Password) < s.config.Auth.MinLength:
		verrs.Add("password", fmt.Sprintf("is too short (minimum is %d characters)", s.config.Auth.MinLength))
	case len(req.Password) > maxPasswordLength:
		verrs.Add("password", fmt.Sprintf("is too long (maximum is %d characters)", maxPasswordLength))
	}

	if req.PasswordConfirmation != req.Password {
		verrs.Add("password_confirmation", "doesn't match Password")
	}

	return verrs
}

// Login returns ErrUnauthorized for an unknown email and for a wrong password
// alike; both paths spend one bcrypt comparison.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	var hashed password.Hashed
	acct, err := s.accounts.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		hashed = acct
	case errors.Is(err, account.ErrNotFound):
	default:
		return nil, err
	}

	if !s.passwords.VerifyAccount(hashed, req.Password) || acct == nil {
		if s.logger != nil {
			s.logger.Warn("login failed", zap.String("remote_ip", req.IPAddress))
		}
		return nil, ErrUnauthorized
	}

	tokens, err := s.issuePair(ctx, acct.ID, refreshtoken.SessionInfo{IPAddress: req.IPAddress, UserAgent: req.UserAgent})
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Info("login succeeded", zap.Uint("account_id", acct.ID))
	}

	return &Session{Account: acct, Tokens: *tokens}, nil
}

// Refresh issues a new access token for the owner of secret. With rotation
// enabled the secret is exchanged for a new one as well. Everything that can
// fail runs before the exchange commits, so a rotated secret always reaches
// the caller.
func (s *Service) Refresh(ctx context.Context, secret string, info refreshtoken.SessionInfo) (*RefreshResult, error) {
	record, err := s.refresh.Validate(ctx, secret)
	if err != nil {
		return nil, err
	}

	acct, err := s.accounts.FindByID(ctx, record.AccountID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.access.Issue(acct.ID)
	if err != nil {
		return nil, err
	}

	result := &RefreshResult{
		AccountID:   acct.ID,
		Account:     acct,
		AccessToken: accessToken,
		TokenType:   TokenTypeBearer,
		ExpiresIn:   s.access.AccessExpirySeconds(),
	}

	if s.config.RefreshToken.RotationMode == config.RotationAlways {
		rotation, err := s.refresh.Rotate(ctx, secret, info)
		if err != nil {
			return nil, err
		}
		result.RefreshToken = rotation.Token.Secret
		return result, nil
	}

	if err := s.refresh.Touch(ctx, record.ID); err != nil && s.logger != nil {
		s.logger.Warn("failed to record refresh token use", zap.Uint("token_id", record.ID), zap.Error(err))
	}

	return result, nil
}

// Logout revokes every active refresh token of the account.
func (s *Service) Logout(ctx context.Context, accountID uint, ip string) error {
	_, err := s.refresh.RevokeAllForAccount(ctx, accountID, refreshtoken.ReasonUserLogout, ip)
	return err
}

func (s *Service) LogoutAll(ctx context.Context, accountID uint, ip string) error {
	_, err := s.refresh.RevokeAllForAccount(ctx, accountID, refreshtoken.ReasonUserLogoutAll, ip)
	return err
}

func (s *Service) CurrentAccount(ctx context.Context, accountID uint) (*account.Account, error) {
	return s.accounts.FindByID(ctx, accountID)
}

func (s *Service) Sessions(ctx context.Context, accountID uint) ([]DeviceSession, error) {
	tokens, err := s.refresh.ListActive(ctx, accountID)
	if err != nil {
		return nil, err
	}

	sessions := make([]DeviceSession, 0, len(tokens))
	for _, token := range tokens {
		sessions = append(sessions, DeviceSession{
			ID:         token.ID,
			Device:     token.DeviceInfo,
			IPAddress:  token.IssuedFromIP,
			CreatedAt:  token.CreatedAt,
			LastUsedAt: token.LastUsedAt,
			ExpiresAt:  token.ExpiresAt,
		})
	}
	return sessions, nil
}

// DeleteAccount removes the account together with all of its refresh tokens.
func (s *Service) DeleteAccount(ctx context.Context, accountID uint) error {
	return s.accounts.Delete(ctx, accountID)
}

func (s *Service) issuePair(ctx context.Context, accountID uint, info refreshtoken.SessionInfo) (*TokenPair, error) {
	accessToken, err := s.access.Issue(accountID)
	if err != nil {
		return nil, err
	}

	issued, err := s.refresh.Create(ctx, accountID, info)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: issued.Secret,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    s.access.AccessExpirySeconds(),
	}, nil
}

func fieldNames(verrs *ValidationErrors) []string {
	names := make([]string, 0, len(verrs.Fields))
	for name := range verrs.Fields {
		names = append(names, name)
	}
	return names
}
