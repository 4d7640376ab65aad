package admintoken

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/account"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrUnauthorized = errors.New("invalid admin credentials")
	ErrInvalidToken = errors.New("invalid admin token")
)

// keyInfo labels the derived key so it can never equal a key derived for any
// other purpose from the same secret.
const keyInfo = "tokengate/admin-token/v4.local"

type Claims struct {
	Admin     bool
	Email     string
	ID        string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service issues and checks the single administrator's tokens.
type Service struct {
	key      paseto.V4SymmetricKey
	email    string
	password string
	issuer   string
	ttl      time.Duration
	clock    clock.Clock
	logger   *logging.Service
}

func NewService(cfg *config.Config, clk clock.Clock, logger *logging.Service) (*Service, error) {
	key, err := deriveKey(cfg.JWT.SecretKey)
	if err != nil {
		return nil, err
	}

	return &Service{
		key:      key,
		email:    account.NormalizeEmail(cfg.Admin.Email),
		password: cfg.Admin.Password,
		issuer:   cfg.JWT.Issuer,
		ttl:      cfg.Admin.TokenExpiry,
		clock:    clock.OrReal(clk),
		logger:   logger,
	}, nil
}

func deriveKey(secret string) (paseto.V4SymmetricKey, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), raw); err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("failed to derive admin token key: %w", err)
	}

	key, err := paseto.V4SymmetricKeyFromBytes(raw)
	if err != nil {
		return paseto.V4SymmetricKey{}, fmt.Errorf("failed to derive admin token key: %w", err)
	}
	return key, nil
}

// Authenticate compares the submitted credentials with the configured ones in
// constant time. Both fields are always compared.
func (s *Service) Authenticate(email, password string) error {
	emailOK := constantTimeEqual(account.NormalizeEmail(email), s.email)
	passwordOK := constantTimeEqual(password, s.password)

	if emailOK&passwordOK != 1 || s.password == "" {
		if s.logger != nil {
			s.logger.Warn("admin authentication failed")
		}
		return ErrUnauthorized
	}
	return nil
}

func (s *Service) Issue() (string, error) {
	now := s.clock.Now()

	token := paseto.NewToken()
	token.SetIssuer(s.issuer)
	token.SetJti(uuid.NewString())
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.ttl))
	if err := token.Set("admin", true); err != nil {
		return "", fmt.Errorf("failed to build admin token: %w", err)
	}
	if err := token.Set("email", s.email); err != nil {
		return "", fmt.Errorf("failed to build admin token: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("admin token issued")
	}

	return token.V4Encrypt(s.key, nil), nil
}

func (s *Service) Verify(token string) error {
	_, err := s.Decode(token)
	return err
}

// Decode decrypts token and checks that it is an unexpired admin token for the
// configured administrator.
func (s *Service) Decode(token string) (*Claims, error) {
	now := s.clock.Now()

	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.IssuedBy(s.issuer))
	parser.AddRule(paseto.ValidAt(now))

	parsed, err := parser.ParseV4Local(s.key, token, nil)
	if err != nil {
		s.debug("admin token rejected", zap.String("cause", "envelope"))
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	if err := parsed.Get("admin", &claims.Admin); err != nil || !claims.Admin {
		s.debug("admin token rejected", zap.String("cause", "admin_flag"))
		return nil, ErrInvalidToken
	}

	claims.Email, err = parsed.GetString("email")
	if err != nil || constantTimeEqual(claims.Email, s.email) != 1 {
		s.debug("admin token rejected", zap.String("cause", "email"))
		return nil, ErrInvalidToken
	}

	claims.ExpiresAt, err = parsed.GetExpiration()
	if err != nil || !now.Before(claims.ExpiresAt) {
		s.debug("admin token rejected", zap.String("cause", "expired"))
		return nil, ErrInvalidToken
	}

	claims.IssuedAt, _ = parsed.GetIssuedAt()
	claims.Issuer, _ = parsed.GetIssuer()
	claims.ID, _ = parsed.GetJti()

	return claims, nil
}

func (s *Service) debug(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}

// constantTimeEqual returns 1 when a == b. Inputs are hashed first so their
// lengths do not leak through the comparison.
func constantTimeEqual(a, b string) int {
	ha := sha256.Sum256([]byte(a))
	hb := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(ha[:], hb[:])
}
