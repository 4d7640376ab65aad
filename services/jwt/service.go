package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/zap"
)

// ErrInvalidToken is the only verification failure callers ever see. The
// specific cause (expiry, signature, structure) is logged at debug level.
var ErrInvalidToken = errors.New("invalid access token")

const TokenTypeAccess = "access"

type Claims struct {
	AccountID uint   `json:"uid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
	logger *logging.Service
}

func NewService(cfg *config.Config, clk clock.Clock, logger *logging.Service) *Service {
	return &Service{
		secret: []byte(cfg.JWT.SecretKey),
		issuer: cfg.JWT.Issuer,
		ttl:    cfg.JWT.AccessExpiry,
		clock:  clock.OrReal(clk),
		logger: logger,
	}
}

func (s *Service) AccessExpirySeconds() int {
	return int(s.ttl.Seconds())
}

// Issue returns a signed access token for accountID valid for the configured TTL.
func (s *Service) Issue(accountID uint) (string, error) {
	now := s.clock.Now()
	jti := uuid.NewString()

	return s.Encode(Claims{
		AccountID: accountID,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   strconv.FormatUint(uint64(accountID), 10),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
}

func (s *Service) Encode(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to sign access token", zap.Error(err))
		}
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}
	return tokenString, nil
}

// Verify returns the account id carried by a valid access token.
func (s *Service) Verify(tokenString string) (uint, error) {
	claims, err := s.Decode(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.AccountID, nil
}

// Decode checks the signature, then expiry and the remaining registered
// claims, and returns the typed claim set.
func (s *Service) Decode(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
	)
	if err != nil {
		s.debug("access token rejected", zap.String("cause", classify(err)))
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != TokenTypeAccess || claims.AccountID == 0 ||
		claims.Subject != strconv.FormatUint(uint64(claims.AccountID), 10) {
		s.debug("access token rejected", zap.String("cause", "claims"))
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (s *Service) debug(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrSignatureInvalid):
		return "signature"
	case errors.Is(err, jwt.ErrTokenExpired):
		return "expired"
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return "not_yet_valid"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "unverifiable"
	default:
		return "claims"
	}
}
