package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// envFiles are the dotenv files consulted before the process environment.
// Variables already set in the environment win over the files.
var envFiles = []string{".env"}

// parseEnv overlays cfg with VAULT_* variables. Unset variables leave the
// field alone; a missing .env file is not an error.
func parseEnv(cfg *Config) error {
	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}
