package account

import (
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Dependents lists models that hold an account_id and must be removed when
// their account is deleted.
type Dependents []any

func ProvideRepository(db *gorm.DB, logger *logging.Service, dependents Dependents) *Repository {
	return NewRepository(db, logger.Named("account"), dependents...)
}

var Module = fx.Options(
	fx.Provide(ProvideRepository),
)
