// Package config loads runtime settings from the environment (and an optional
// .env file) through viper.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingSecret is returned when no token signing secret is configured.
var ErrMissingSecret = errors.New("JWT_SECRET is not set")

// Config holds every setting the server reads at startup.
type Config struct {
	AppPort     string `validate:"required"`
	AppEnv      string `validate:"oneof=development production test"`
	JWTSecret   string
	TokenHeader string        `validate:"required"`
	TokenTTL    time.Duration `validate:"gt=0"`
	BcryptCost  int           `validate:"gte=4,lte=31"`
	BodyLimit   int           `validate:"gt=0"`
	CORSOrigins string

	Database DatabaseConfig
	Images   ImageConfig
	Redis    RedisConfig
	Limits   RateLimitConfig

	CacheTTL    time.Duration
	RabbitMQURL string
}

type DatabaseConfig struct {
	Driver          string `validate:"oneof=postgres sqlite"`
	URL             string `validate:"required"`
	MaxOpenConns    int    `validate:"gt=0"`
	MaxIdleConns    int    `validate:"gte=0"`
	AcquireTimeout  time.Duration
	ConnMaxLifetime time.Duration
}

type ImageConfig struct {
	Store         string `validate:"oneof=imgbb s3"`
	ImgBBAPIKey   string
	ImgBBEndpoint string `validate:"required,url"`
	UploadTimeout time.Duration
	Concurrency   int `validate:"gt=0"`

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	LoginMax int
	APIMax   int
	Window   time.Duration
}

// Development reports whether diagnostic error detail may be sent to clients.
func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":4000")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("TOKEN_HEADER", "x-token")
	v.SetDefault("TOKEN_TTL", "2h")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("BODY_LIMIT", 6*1024*1024)
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "host=127.0.0.1 user=postgres password=postgres dbname=minimarket port=5432 sslmode=disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 5)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_ACQUIRE_TIMEOUT", "60s")
	v.SetDefault("DB_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("IMAGE_STORE", "imgbb")
	v.SetDefault("IMGBB_ENDPOINT", "https://api.imgbb.com/1/upload")
	v.SetDefault("IMAGE_UPLOAD_TIMEOUT", "30s")
	v.SetDefault("IMAGE_UPLOAD_CONCURRENCY", 4)
	v.SetDefault("S3_REGION", "us-east-1")

	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_LOGIN_MAX", 10)
	v.SetDefault("RATE_LIMIT_API_MAX", 200)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("CACHE_TTL", "0s")
}

// LoadDotenv loads a .env file when one is present. Variables already set in
// the process environment win.
func LoadDotenv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			slog.Info("loaded environment file", "path", p)
			return
		}
	}
}

// Load reads the configuration from v. A missing signing secret is reported as
// ErrMissingSecret so callers can abort startup.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	secret := v.GetString("JWT_SECRET")
	if secret == "" {
		// legacy name used by earlier deployments
		secret = v.GetString("FIRMA_TOKEN")
	}

	cfg := &Config{
		AppPort:     v.GetString("APP_PORT"),
		AppEnv:      strings.ToLower(v.GetString("APP_ENV")),
		JWTSecret:   secret,
		TokenHeader: v.GetString("TOKEN_HEADER"),
		TokenTTL:    v.GetDuration("TOKEN_TTL"),
		BcryptCost:  v.GetInt("BCRYPT_COST"),
		BodyLimit:   v.GetInt("BODY_LIMIT"),
		CORSOrigins: v.GetString("CORS_ORIGINS"),
		Database:    databaseConfig(v),
		Images: ImageConfig{
			Store:         v.GetString("IMAGE_STORE"),
			ImgBBAPIKey:   v.GetString("IMGBB_API_KEY"),
			ImgBBEndpoint: v.GetString("IMGBB_ENDPOINT"),
			UploadTimeout: v.GetDuration("IMAGE_UPLOAD_TIMEOUT"),
			Concurrency:   v.GetInt("IMAGE_UPLOAD_CONCURRENCY"),
			S3Bucket:      v.GetString("S3_BUCKET"),
			S3Region:      v.GetString("S3_REGION"),
			S3Endpoint:    v.GetString("S3_ENDPOINT"),
			S3AccessKey:   v.GetString("S3_ACCESS_KEY"),
			S3SecretKey:   v.GetString("S3_SECRET_KEY"),
			S3PublicURL:   v.GetString("S3_PUBLIC_URL"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Limits: RateLimitConfig{
			LoginMax: v.GetInt("RATE_LIMIT_LOGIN_MAX"),
			APIMax:   v.GetInt("RATE_LIMIT_API_MAX"),
			Window:   v.GetDuration("RATE_LIMIT_WINDOW"),
		},
		CacheTTL:    v.GetDuration("CACHE_TTL"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings, for tools that never issue
// tokens.
func LoadDatabase(v *viper.Viper) (DatabaseConfig, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	cfg := databaseConfig(v)
	if err := validator.New().Struct(cfg); err != nil {
		return DatabaseConfig{}, fmt.Errorf("invalid database configuration: %w", err)
	}
	return cfg, nil
}

func databaseConfig(v *viper.Viper) DatabaseConfig {
	return DatabaseConfig{
		Driver:          v.GetString("DB_DRIVER"),
		URL:             v.GetString("DATABASE_URL"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		AcquireTimeout:  v.GetDuration("DB_ACQUIRE_TIMEOUT"),
		ConnMaxLifetime: v.GetDuration("DB_CONN_MAX_LIFETIME"),
	}
}
