package config

import (
	"errors"
	"os"
	"strings"
)

// DevJWTSecret is the signing key used outside production when JWT_SECRET
// is not set.
const DevJWTSecret = "dev-jwt-secret-not-for-production-use"

var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set to a non-default value in production")

// Config holds application configuration
type Config struct {
	// MariaDB接続設定
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// サーバー設定
	ServerPort string
	Env        string

	// CORS / WebSocket Origin 設定
	AllowedOrigins []string

	// JWT 署名キー
	JWTSecret string
}

// UseDatabase reports whether a MariaDB database is configured.
// DB_NAME が空の場合はインメモリストアで起動する
func (c Config) UseDatabase() bool {
	return c.DBName != ""
}

// IsProduction reports whether the server runs with ENV=production.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects settings the server must not start with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrInsecureJWTSecret
	}
	if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		return ErrInsecureJWTSecret
	}
	return nil
}

// Load loads configuration from environment variables
func Load() Config {
	allowedOrigins := getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")

	cfg := Config{
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         os.Getenv("DB_USER"),
		DBPassword:     os.Getenv("DB_PASSWORD"),
		DBName:         os.Getenv("DB_NAME"),
		ServerPort:     getEnv("SERVER_PORT", "8383"),
		Env:            getEnv("ENV", "development"),
		AllowedOrigins: strings.Split(allowedOrigins, ","),
		JWTSecret:      os.Getenv("JWT_SECRET"),
	}

	// 本番環境では開発用キーにフォールバックしない
	if cfg.JWTSecret == "" && !cfg.IsProduction() {
		cfg.JWTSecret = DevJWTSecret
	}

	for i := range cfg.AllowedOrigins {
		cfg.AllowedOrigins[i] = strings.TrimSpace(cfg.AllowedOrigins[i])
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
