package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/tokengate/config"
	"github.com/tech-arch1tect/tokengate/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func TestModule(t *testing.T) {
	var db *gorm.DB

	app := fx.New(
		Module,
		fx.Provide(func() *config.Config {
			cfg := createTestConfig("sqlite", ":memory:", true)
			return &cfg
		}),
		fx.Provide(func() *logging.Service { return newTestLogger() }),
		fx.Provide(func() *ModelsOption { return WithModels(&TestModel{}) }),
		fx.NopLogger,
		fx.Populate(&db),
	)
	require.NoError(t, app.Err())

	require.NoError(t, app.Start(context.Background()))
	assert.True(t, db.Migrator().HasTable(&TestModel{}))

	require.NoError(t, app.Stop(context.Background()))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}
