package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything the server reads from the environment.
type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimezone string

	Port           string
	JWTSecret      string
	AllowedOrigins []string

	DirectionsAPIKey  string
	DirectionsBaseURL string

	LogFile  string
	LogLevel string

	// FeedEnabled turns on the LISTEN connection behind /ws/routes.
	FeedEnabled bool
}

// Load reads .env (if present) and then the environment, applying defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, relying on environment variables")
	}

	return Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "routes"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBTimezone: getEnv("DB_TIMEZONE", "UTC"),

		Port:           getEnv("PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		AllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),

		DirectionsAPIKey:  getEnv("DIRECTIONS_API_KEY", ""),
		DirectionsBaseURL: getEnv("DIRECTIONS_BASE_URL", "https://api.openrouteservice.org"),

		LogFile:  getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		FeedEnabled: getBool("ROUTE_FEED_ENABLED", true),
	}
}

// minSecretLen is the shortest JWT secret accepted without a warning.
const minSecretLen = 32

// weakSecrets are placeholder values that must never sign real tokens.
var weakSecrets = []string{"secret", "supersecret", "changeme", "jwt-secret"}

// Validate refuses configurations the server must not start with.
func (c Config) Validate() error {
	secret := strings.TrimSpace(c.JWTSecret)
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	for _, weak := range weakSecrets {
		if strings.EqualFold(secret, weak) {
			return fmt.Errorf("JWT_SECRET is the placeholder %q", weak)
		}
	}
	if len(secret) < minSecretLen {
		logrus.WithField("length", len(secret)).Warnf("JWT_SECRET is shorter than %d bytes", minSecretLen)
	}
	return nil
}

// DSN builds the key/value connection string understood by both the gorm
// postgres driver and lib/pq.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, c.DBTimezone,
	)
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logrus.WithField("key", key).Warnf("Invalid boolean %q, using default %v", v, defaultValue)
		return defaultValue
	}
	return b
}

// getList reads a comma separated variable, dropping blank entries.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
