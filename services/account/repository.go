package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound   = errors.New("account not found")
	ErrEmailTaken = errors.New("email has already been taken")
	ErrStorage    = errors.New("account storage failure")
)

// Repository persists accounts. Models passed as dependents are rows keyed by
// account_id that are deleted together with their account.
type Repository struct {
	db         *gorm.DB
	dependents []any
	logger     *logging.Service
}

func NewRepository(db *gorm.DB, logger *logging.Service, dependents ...any) *Repository {
	return &Repository{
		db:         db,
		dependents: dependents,
		logger:     logger,
	}
}

// Create stores a new account. The email is normalised before it is written;
// a case-insensitive duplicate yields ErrEmailTaken.
func (r *Repository) Create(ctx context.Context, email, passwordHash string) (*Account, error) {
	acct := &Account{
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Account{}).Where("email = ?", acct.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}
		return tx.Create(acct).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) || isUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		r.logError("failed to create account", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if r.logger != nil {
		r.logger.Info("account created", zap.Uint("account_id", acct.ID))
	}

	return acct, nil
}

func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Account{}).
		Where("email = ?", NormalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		r.logError("failed to check email", err)
		return false, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return count > 0, nil
}

func (r *Repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *Repository) FindByID(ctx context.Context, id uint) (*Account, error) {
	if id == 0 {
		return nil, ErrNotFound
	}
	return r.first(ctx, "id = ?", id)
}

// Delete removes the account and every dependent row in one transaction.
func (r *Repository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range r.dependents {
			if err := tx.Where("account_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}

		result := tx.Delete(&Account{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		r.logError("failed to delete account", err, zap.Uint("account_id", id))
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if r.logger != nil {
		r.logger.Info("account deleted", zap.Uint("account_id", id))
	}

	return nil
}

func (r *Repository) first(ctx context.Context, query string, arg any) (*Account, error) {
	var acct Account
	err := r.db.WithContext(ctx).Where(query, arg).First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		r.logError("failed to load account", err)
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return &acct, nil
}

func (r *Repository) logError(msg string, err error, fields ...zap.Field) {
	if r.logger != nil {
		r.logger.Error(msg, append(fields, zap.Error(err))...)
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
