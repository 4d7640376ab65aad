package password

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordHashingFailed = errors.New("failed to hash password")
	ErrEmptyPassword         = errors.New("password must not be empty")
)

// Service hashes passwords and verifies them against stored hashes.
type Service struct {
	cost      int
	dummyHash []byte
	logger    *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	cost := cfg.Auth.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	// Compared against when no account matches, so a miss costs one bcrypt run
	// like a wrong password does.
	dummy, err := bcrypt.GenerateFromPassword([]byte("tokengate-timing-equaliser"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare credential verifier: %w", err)
	}

	return &Service{
		cost:      cost,
		dummyHash: dummy,
		logger:    logger,
	}, nil
}

func (s *Service) Cost() int {
	return s.cost
}

func (s *Service) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("password hashing failed", zap.Error(err))
		}
		return "", ErrPasswordHashingFailed
	}

	return string(hash), nil
}

// Verify reports whether submitted matches hash. Malformed or empty hashes
// simply fail; the reason is never surfaced.
func (s *Service) Verify(hash, submitted string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(submitted))
		return false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(submitted)); err != nil {
		if s.logger != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.logger.Warn("stored password hash could not be used", zap.Error(err))
		}
		return false
	}

	return true
}

// VerifyAccount is Verify for a possibly missing account record.
func (s *Service) VerifyAccount(account Hashed, submitted string) bool {
	if account == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(submitted))
		return false
	}
	return s.Verify(account.GetPasswordHash(), submitted)
}

// Hashed is implemented by records that carry a password hash.
type Hashed interface {
	GetPasswordHash() string
}
