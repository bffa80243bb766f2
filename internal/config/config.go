package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"budgetapi/internal/logger"
)

// Config holds application configuration. It is built once by Load in main
// and passed by reference to the components that need it.
type Config struct {
	// Server
	Env  string
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	Mail      MailConfig
	AMQP      AMQPConfig
	Scheduler SchedulerConfig

	// InternalAPIKey guards the scheduler trigger endpoint.
	InternalAPIKey string

	// Admin account seeded at startup when AdminUsername is set.
	AdminUsername string
	AdminPassword string
	AdminEmail    string
}

// MailConfig holds outbound SMTP settings.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether SMTP delivery is configured.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.From != ""
}

// AMQPConfig holds the notification queue settings. An empty URL disables
// queued delivery and mail is sent inline.
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// SchedulerConfig controls the planned transaction sweep.
type SchedulerConfig struct {
	// Enabled runs the sweep inside the API process.
	Enabled bool
	// Hour of day (in Location) for the daily sweep.
	Hour int
	// Interval, when non-zero, replaces the daily schedule with a fixed period.
	Interval    time.Duration
	Location    *time.Location
	Concurrency int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		logger.Get().Debug("no .env file found, using process environment")
	}

	config := &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "budget"),
		DBPassword: getEnv("DB_PASSWORD", "budget"),
		DBName:     getEnv("DB_NAME", "budget"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		Mail: MailConfig{
			Host:     getEnv("MAIL_SERVER", ""),
			Port:     getEnvInt("MAIL_PORT", 587),
			Username: getEnv("MAIL_USERNAME", ""),
			Password: getEnv("MAIL_PASSWORD", ""),
			From:     getEnv("MAIL_FROM", ""),
			FromName: getEnv("MAIL_FROM_NAME", "BudgetApi"),
			TLS:      getEnvBool("MAIL_TLS", true),
		},

		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "budget"),
			Queue:    getEnv("AMQP_QUEUE", "budget.notifications"),
		},

		Scheduler: SchedulerConfig{
			Enabled:     getEnvBool("SWEEP_ENABLED", true),
			Hour:        getEnvInt("SWEEP_HOUR", 1),
			Concurrency: getEnvInt("SWEEP_CONCURRENCY", 4),
		},

		InternalAPIKey: getEnv("INTERNAL_API_KEY", ""),

		AdminUsername: getEnv("ADMIN_USERNAME", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
	}

	expStr := getEnv("JWT_EXPIRES_IN", "30m")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		logger.Get().Warnf("invalid JWT_EXPIRES_IN value '%s', falling back to 30m", expStr)
		expDur = 30 * time.Minute
	}
	config.JWTExpirationDur = expDur

	if v := getEnv("SWEEP_INTERVAL", ""); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SWEEP_INTERVAL %q: %w", v, err)
		}
		config.Scheduler.Interval = interval
	}

	loc, err := time.LoadLocation(getEnv("TZ_NAME", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TZ_NAME: %w", err)
	}
	config.Scheduler.Location = loc

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.Env == "production" && c.JWTSecret == "fallback-secret-key-for-dev-only" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.Scheduler.Hour < 0 || c.Scheduler.Hour > 23 {
		return fmt.Errorf("SWEEP_HOUR must be between 0 and 23, got %d", c.Scheduler.Hour)
	}
	if c.Scheduler.Concurrency < 1 {
		return fmt.Errorf("SWEEP_CONCURRENCY must be at least 1, got %d", c.Scheduler.Concurrency)
	}
	if c.AdminUsername != "" && c.AdminPassword == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_USERNAME is set")
	}
	return nil
}

// DatabaseURL returns the postgres:// URL used by golang-migrate.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Get().Warnf("invalid %s value '%s', falling back to %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Get().Warnf("invalid %s value '%s', falling back to %t", key, v, defaultValue)
		return defaultValue
	}
	return b
}
