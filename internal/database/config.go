package database

import (
	"fmt"

	"budgetapi/internal/config"
)

// DSN returns the PostgreSQL keyword/value connection string used by gorm.
func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
}

// MigrationsSource returns the golang-migrate source URL for dir.
func MigrationsSource(dir string) string {
	if dir == "" {
		dir = "migrations"
	}
	return "file://" + dir
}
