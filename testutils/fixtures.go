package testutils

import (
	"time"

	"github.com/tech-arch1tect/tokengate/clock"
	"github.com/tech-arch1tect/tokengate/config"
	"golang.org/x/crypto/bcrypt"
)

// Epoch is the fixed start time of test clocks. It sits on a whole second so
// that JWT NumericDate truncation does not move expiry boundaries.
var Epoch = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:    "Test App",
			URL:     "http://localhost:8080",
			Version: "test",
		},
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           "0",
			RequestTimeout: 5 * time.Second,
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "console",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		Auth: config.AuthConfig{
			MinLength:  8,
			BcryptCost: bcrypt.MinCost,
		},
		JWT: config.JWTConfig{
			SecretKey:    "a1b2c3d4e5f6g7h8i9j0k1l2m3n4o5p6q7r8s9t0",
			Algorithm:    "HS256",
			AccessExpiry: 15 * time.Minute,
			Issuer:       "test-issuer",
		},
		RefreshToken: config.RefreshTokenConfig{
			TokenLength:     32,
			Expiry:          30 * 24 * time.Hour,
			RotationMode:    config.RotationNever,
			HashCost:        bcrypt.MinCost,
			CleanupInterval: 0,
		},
		Admin: config.AdminConfig{
			Email:       "admin@example.com",
			Password:    "Adm1n-Passw0rd",
			TokenExpiry: time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			Store:       "memory",
			AdminRate:   5,
			AdminPeriod: time.Minute,
			AdminCount:  config.CountFailures,
		},
	}
}

func NewTestClock() *clock.Mock {
	return clock.NewMock(Epoch)
}

var TestAccounts = struct {
	Alice struct {
		Email    string
		Password string
	}
	Bob struct {
		Email    string
		Password string
	}
}{
	Alice: struct {
		Email    string
		Password string
	}{
		Email:    "alice@example.com",
		Password: "Secret123!",
	},
	Bob: struct {
		Email    string
		Password string
	}{
		Email:    "bob@example.com",
		Password: "Hunter22!!",
	},
}
