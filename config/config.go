package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	App          AppConfig          `envPrefix:"APP_"`
	Server       ServerConfig       `envPrefix:"SERVER_"`
	Log          LogConfig          `envPrefix:"LOG_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	Auth         AuthConfig         `envPrefix:"AUTH_"`
	JWT          JWTConfig          `envPrefix:"JWT_"`
	RefreshToken RefreshTokenConfig `envPrefix:"REFRESH_TOKEN_"`
	Admin        AdminConfig        `envPrefix:"ADMIN_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
}

type AppConfig struct {
	Name    string `env:"NAME" envDefault:"tokengate"`
	URL     string `env:"URL" envDefault:"http://localhost:8080"`
	Version string `env:"VERSION" envDefault:"1.0.0"`
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	Host           string        `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver        string        `env:"DRIVER" envDefault:"sqlite"`
	DSN           string        `env:"DSN" envDefault:"tokengate.db"`
	AutoMigrate   bool          `env:"AUTO_MIGRATE" envDefault:"true"`
	SlowThreshold time.Duration `env:"SLOW_THRESHOLD" envDefault:"200ms"`
}

type AuthConfig struct {
	MinLength  int `env:"MIN_LENGTH" envDefault:"8"`
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	Algorithm    string        `env:"ALGORITHM" envDefault:"HS256"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	Issuer       string        `env:"ISSUER" envDefault:"tokengate"`
}

type RotationMode string

const (
	RotationNever  RotationMode = "never"
	RotationAlways RotationMode = "always"
)

type RefreshTokenConfig struct {
	TokenLength     int           `env:"TOKEN_LENGTH" envDefault:"32"`
	Expiry          time.Duration `env:"EXPIRY" envDefault:"720h"`
	RotationMode    RotationMode  `env:"ROTATION_MODE" envDefault:"never"`
	HashCost        int           `env:"HASH_COST" envDefault:"10"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
}

type AdminConfig struct {
	Email       string        `env:"EMAIL"`
	Password    string        `env:"PASSWORD"`
	TokenExpiry time.Duration `env:"TOKEN_EXPIRY" envDefault:"1h"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Store       string        `env:"STORE" envDefault:"memory"`
	AdminRate   int           `env:"ADMIN_RATE" envDefault:"5"`
	AdminPeriod time.Duration `env:"ADMIN_PERIOD" envDefault:"1m"`
	AdminCount  CountingMode  `env:"ADMIN_COUNT_MODE" envDefault:"failures"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return c.Validate()
	}

	return nil
}

// Validate reports the first configuration problem that must stop the process
// from serving traffic.
func (c *Config) Validate() error {
	if err := validateJWTConfig(&c.JWT); err != nil {
		return err
	}
	if err := validateRefreshTokenConfig(&c.RefreshToken); err != nil {
		return err
	}
	if err := validateAdminConfig(&c.Admin); err != nil {
		return err
	}
	if err := validateDatabaseConfig(&c.Database); err != nil {
		return err
	}
	return nil
}

func validateJWTConfig(cfg *JWTConfig) error {
	if len(cfg.SecretKey) < 32 {
		return fmt.Errorf("%w: JWT secret key must be at least 32 characters long", ErrInvalidConfig)
	}

	lower := strings.ToLower(cfg.SecretKey)
	for _, pattern := range []string{"password", "secret", "example", "default", "change"} {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: JWT secret key contains weak patterns", ErrInvalidConfig)
		}
	}

	if cfg.Algorithm != "HS256" {
		return fmt.Errorf("%w: JWT algorithm must be HS256, got %q", ErrInvalidConfig, cfg.Algorithm)
	}

	if cfg.AccessExpiry <= 0 {
		return fmt.Errorf("%w: JWT access expiry must be positive", ErrInvalidConfig)
	}

	return nil
}

func validateRefreshTokenConfig(cfg *RefreshTokenConfig) error {
	if cfg.TokenLength < 32 {
		return fmt.Errorf("%w: refresh token length must be at least 32 bytes", ErrInvalidConfig)
	}
	// bcrypt only reads the first 72 bytes; 54 raw bytes encode to 72 base64 characters.
	if cfg.TokenLength > 54 {
		return fmt.Errorf("%w: refresh token length cannot exceed 54 bytes", ErrInvalidConfig)
	}
	if cfg.Expiry <= 0 {
		return fmt.Errorf("%w: refresh token expiry must be positive", ErrInvalidConfig)
	}

	switch cfg.RotationMode {
	case RotationNever, RotationAlways:
	default:
		return fmt.Errorf("%w: refresh token rotation mode must be: never or always", ErrInvalidConfig)
	}

	return nil
}

func validateAdminConfig(cfg *AdminConfig) error {
	if strings.TrimSpace(cfg.Email) == "" {
		return fmt.Errorf("%w: admin email is required", ErrInvalidConfig)
	}
	if cfg.Password == "" {
		return fmt.Errorf("%w: admin password is required", ErrInvalidConfig)
	}
	if cfg.TokenExpiry <= 0 {
		return fmt.Errorf("%w: admin token expiry must be positive", ErrInvalidConfig)
	}
	return nil
}

func validateDatabaseConfig(cfg *DatabaseConfig) error {
	switch cfg.Driver {
	case "sqlite", "postgres", "postgresql", "mysql":
		return nil
	default:
		return fmt.Errorf("%w: unsupported database driver: %s", ErrInvalidConfig, cfg.Driver)
	}
}
