package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// LoadConfig loads and validates the service configuration.
//
// It performs the following steps in order:
//  1. Enforces UTC as the process timezone to prevent drift bugs in the
//     due-date arithmetic.
//  2. Loads a .env file if present (non-fatal if missing; never overrides
//     variables already set in the environment).
//  3. Processes envconfig tags to populate the Config struct.
//  4. Validates the populated struct with go-playground/validator.
func LoadConfig() (*Config, error) {
	// Step 1: all scheduling math is done in UTC.
	time.Local = time.UTC

	// Step 2: .env seeding for local development.
	_ = godotenv.Load()

	// Step 3: populate from the environment. The empty prefix means the
	// exact tag values are read (envconfig:"PORT" reads PORT directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to process environment: %w", err)
	}

	// Step 4: struct validation (required fields, URL formats).
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}
