package refreshtoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrInvalidToken covers every reason a presented secret is refused:
	// unknown, malformed, expired, revoked, replaced or mismatched.
	ErrInvalidToken = errors.New("invalid refresh token")
	// ErrStorage means the store could not answer. It is never reported as an
	// invalid token.
	ErrStorage               = errors.New("refresh token storage failure")
	ErrTokenGenerationFailed = errors.New("failed to generate secure token")
)

// Secrets have the form "<token id>.<verifier>". The id selects the row; only
// the bcrypt hash of the verifier is stored.
const secretSeparator = "."

type Service struct {
	db        *gorm.DB
	config    *config.Config
	clock     clock.Clock
	cost      int
	dummyHash []byte
	logger    *logging.Service
}

func NewService(db *gorm.DB, cfg *config.Config, clk clock.Clock, logger *logging.Service) (*Service, error) {
	cost := cfg.RefreshToken.HashCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("tokengate-refresh-equaliser"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare refresh token store: %w", err)
	}

	if logger != nil {
		logger.Info("initializing refresh token service",
			zap.Duration("token_expiry", cfg.RefreshToken.Expiry),
			zap.Int("token_length", cfg.RefreshToken.TokenLength),
			zap.String("rotation_mode", string(cfg.RefreshToken.RotationMode)),
			zap.Duration("cleanup_interval", cfg.RefreshToken.CleanupInterval))
	}

	return &Service{
		db:        db,
		config:    cfg,
		clock:     clock.OrReal(clk),
		cost:      cost,
		dummyHash: dummy,
		logger:    logger,
	}, nil
}

// Create issues a new active token for accountID and returns its secret.
func (s *Service) Create(ctx context.Context, accountID uint, info SessionInfo) (*IssuedToken, error) {
	var issued *IssuedToken
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		issued, err = s.create(tx, accountID, info)
		return err
	})
	if err != nil {
		return nil, s.classify("failed to issue refresh token", err)
	}

	if s.logger != nil {
		s.logger.Info("refresh token issued",
			zap.Uint("account_id", accountID),
			zap.Uint("token_id", issued.TokenID),
			zap.Time("expires_at", issued.ExpiresAt))
	}

	return issued, nil
}

func (s *Service) create(tx *gorm.DB, accountID uint, info SessionInfo) (*IssuedToken, error) {
	verifier, err := s.generateVerifier()
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to generate secure refresh token", zap.Error(err))
		}
		return nil, ErrTokenGenerationFailed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(verifier), s.cost)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to hash refresh token", zap.Error(err))
		}
		return nil, ErrTokenGenerationFailed
	}

	now := s.now()
	record := RefreshToken{
		AccountID:    accountID,
		TokenHash:    string(hash),
		ExpiresAt:    now.Add(s.config.RefreshToken.Expiry),
		Status:       StatusActive,
		IssuedFromIP: info.IPAddress,
		UserAgent:    truncate(info.UserAgent, 500),
		DeviceInfo:   ParseDevice(info.UserAgent).String(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := tx.Create(&record).Error; err != nil {
		return nil, s.storageError("failed to store refresh token", err)
	}

	return &IssuedToken{
		Secret:    strconv.FormatUint(uint64(record.ID), 10) + secretSeparator + verifier,
		TokenID:   record.ID,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Validate returns the active, unexpired record matching secret.
func (s *Service) Validate(ctx context.Context, secret string) (*RefreshToken, error) {
	id, verifier, ok := parseSecret(secret)
	if !ok {
		s.equalise(verifier)
		s.debug("refresh token rejected", zap.String("cause", "malformed"))
		return nil, ErrInvalidToken
	}

	var record RefreshToken
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.equalise(verifier)
			s.debug("refresh token rejected", zap.String("cause", "unknown"))
			return nil, ErrInvalidToken
		}
		return nil, s.storageError("failed to load refresh token", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(record.TokenHash), []byte(verifier)); err != nil {
		s.debug("refresh token rejected", zap.String("cause", "mismatch"), zap.Uint("token_id", record.ID))
		return nil, ErrInvalidToken
	}

	if !record.IsActive(s.now()) {
		s.debug("refresh token rejected",
			zap.String("cause", "inactive"),
			zap.String("status", string(record.Status)),
			zap.Uint("token_id", record.ID))
		return nil, ErrInvalidToken
	}

	return &record, nil
}

// Revoke moves an active token to revoked. Tokens in any other state are left
// as they are.
func (s *Service) Revoke(ctx context.Context, tokenID uint, reason, ip string) error {
	now := s.now()
	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("id = ? AND status = ?", tokenID, StatusActive).
		Updates(map[string]any{
			"status":            StatusRevoked,
			"revoked_at":        now,
			"revocation_reason": reason,
			"revoked_from_ip":   ip,
			"updated_at":        now,
		})
	if result.Error != nil {
		return s.storageError("failed to revoke refresh token", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("refresh token revoked",
			zap.Uint("token_id", tokenID),
			zap.String("reason", reason),
			zap.Int64("affected_rows", result.RowsAffected))
	}

	return nil
}

// RevokeAllForAccount revokes every active token that belongs to accountID and
// returns how many changed state.
func (s *Service) RevokeAllForAccount(ctx context.Context, accountID uint, reason, ip string) (int64, error) {
	now := s.now()
	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("account_id = ? AND status = ?", accountID, StatusActive).
		Updates(map[string]any{
			"status":            StatusRevoked,
			"revoked_at":        now,
			"revocation_reason": reason,
			"revoked_from_ip":   ip,
			"updated_at":        now,
		})
	if result.Error != nil {
		return 0, s.storageError("failed to revoke account refresh tokens", result.Error)
	}

	if s.logger != nil {
		s.logger.Info("account refresh tokens revoked",
			zap.Uint("account_id", accountID),
			zap.String("reason", reason),
			zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// Rotate exchanges a valid secret for a new one. The predecessor is marked
// replaced in the same transaction that creates its successor; if another
// request got there first the whole exchange is rolled back.
func (s *Service) Rotate(ctx context.Context, secret string, info SessionInfo) (*Rotation, error) {
	previous, err := s.Validate(ctx, secret)
	if err != nil {
		return nil, err
	}

	var rotation *Rotation
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		issued, err := s.create(tx, previous.AccountID, info)
		if err != nil {
			return err
		}

		now := s.now()
		result := tx.Model(&RefreshToken{}).
			Where("id = ? AND status = ? AND expires_at > ?", previous.ID, StatusActive, now).
			Updates(map[string]any{
				"status":         StatusReplaced,
				"replaced_at":    now,
				"replaced_by_id": issued.TokenID,
				"last_used_at":   now,
				"updated_at":     now,
			})
		if result.Error != nil {
			return s.storageError("failed to replace refresh token", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrInvalidToken
		}

		rotation = &Rotation{
			Token:      issued,
			Previous:   previous,
			AccountID:  previous.AccountID,
			ReplacedAt: now,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			s.debug("refresh token rotation lost to a concurrent change", zap.Uint("token_id", previous.ID))
		}
		return nil, s.classify("failed to rotate refresh token", err)
	}

	if s.logger != nil {
		s.logger.Info("refresh token rotated",
			zap.Uint("account_id", rotation.AccountID),
			zap.Uint("old_token_id", previous.ID),
			zap.Uint("new_token_id", rotation.Token.TokenID))
	}

	return rotation, nil
}

// Touch records a successful use of the token.
func (s *Service) Touch(ctx context.Context, tokenID uint) error {
	err := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("id = ?", tokenID).
		Update("last_used_at", s.now()).Error
	if err != nil {
		return s.storageError("failed to update refresh token last used time", err)
	}
	return nil
}

// ListActive returns the account's usable tokens, newest first.
func (s *Service) ListActive(ctx context.Context, accountID uint) ([]RefreshToken, error) {
	var tokens []RefreshToken
	err := s.db.WithContext(ctx).
		Where("account_id = ? AND status = ? AND expires_at > ?", accountID, StatusActive, s.now()).
		Order("created_at DESC, id DESC").
		Find(&tokens).Error
	if err != nil {
		return nil, s.storageError("failed to list refresh tokens", err)
	}
	return tokens, nil
}

// SweepExpired marks active tokens past their expiry as expired.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	now := s.now()
	result := s.db.WithContext(ctx).Model(&RefreshToken{}).
		Where("status = ? AND expires_at <= ?", StatusActive, now).
		Updates(map[string]any{
			"status":     StatusExpired,
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, s.storageError("failed to sweep expired refresh tokens", result.Error)
	}

	if s.logger != nil {
		if result.RowsAffected > 0 {
			s.logger.Info("expired refresh tokens swept", zap.Int64("count", result.RowsAffected))
		} else {
			s.logger.Debug("no expired refresh tokens found to sweep")
		}
	}

	return result.RowsAffected, nil
}

// StartSweeper runs SweepExpired every interval until the returned stop
// function is called. Stop waits for an in-flight sweep to finish.
func (s *Service) StartSweeper(interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx); err != nil && ctx.Err() == nil && s.logger != nil {
					s.logger.Error("refresh token sweeper failed", zap.Error(err))
				}
			}
		}
	}()

	if s.logger != nil {
		s.logger.Info("started refresh token sweeper", zap.Duration("interval", interval))
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

func (s *Service) generateVerifier() (string, error) {
	tokenBytes := make([]byte, s.config.RefreshToken.TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(tokenBytes), nil
}

// equalise spends one bcrypt comparison so that unknown ids cost the same as
// a wrong verifier.
func (s *Service) equalise(verifier string) {
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(verifier))
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

func (s *Service) storageError(msg string, err error) error {
	if s.logger != nil {
		s.logger.Error(msg, zap.Error(err))
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

// classify passes the package's own errors through and treats anything else,
// such as a transaction that could not begin, as a storage failure.
func (s *Service) classify(msg string, err error) error {
	if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrStorage) || errors.Is(err, ErrTokenGenerationFailed) {
		return err
	}
	return s.storageError(msg, err)
}

func (s *Service) debug(msg string, fields ...zap.Field) {
	if s.logger != nil {
		s.logger.Debug(msg, fields...)
	}
}

func parseSecret(secret string) (uint, string, bool) {
	idPart, verifier, found := strings.Cut(secret, secretSeparator)
	if !found || verifier == "" || len(verifier) > 72 {
		return 0, "", false
	}

	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil || id == 0 {
		return 0, "", false
	}

	return uint(id), verifier, true
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return strings.ToValidUTF8(s[:n], "")
}
