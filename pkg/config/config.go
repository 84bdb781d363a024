package config

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// Config holds the application configuration
type Config struct {
	Environment          string
	LogLevel             string
	BcryptCost           int
	StagingSweepInterval int // minutes between background staging sweeps
	StagingMaxAgeMinutes int // staged files older than this are swept
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	bcryptCost, err := strconv.Atoi(getEnv("BCRYPT_COST", strconv.Itoa(bcrypt.DefaultCost)))
	if err != nil {
		return nil, fmt.Errorf("invalid BCRYPT_COST: %w", err)
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST %d outside %d..%d", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	sweepInterval, err := strconv.Atoi(getEnv("STAGING_SWEEP_INTERVAL_MINUTES", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid STAGING_SWEEP_INTERVAL_MINUTES: %w", err)
	}

	maxAge, err := strconv.Atoi(getEnv("STAGING_MAX_AGE_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid STAGING_MAX_AGE_MINUTES: %w", err)
	}

	return &Config{
		Environment:          getEnv("ENVIRONMENT", "development"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		BcryptCost:           bcryptCost,
		StagingSweepInterval: sweepInterval,
		StagingMaxAgeMinutes: maxAge,
	}, nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
