package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// EnvLoader loads environment variables from a .env file so that secrets
// like the GitHub API key and database password have a single source.
type EnvLoader struct {
	loaded bool
	path   string
}

// NewEnvLoader creates an environment loader
func NewEnvLoader() *EnvLoader {
	return &EnvLoader{}
}

// Load loads environment variables from .env file in project root
// This ensures all secrets come from a single source
func (e *EnvLoader) Load() error {
	if e.loaded {
		return nil // Already loaded
	}

	// Try to find .env file in current directory or parent directories
	envPath, err := findEnvFile()
	if err != nil {
		return fmt.Errorf("failed to find .env file: %w", err)
	}

	e.path = envPath

	// Load .env file
	if err := godotenv.Load(envPath); err != nil {
		return fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	e.loaded = true
	return nil
}

// Validate checks that cfg carries the database credentials a run needs,
// whether they arrived from the TOML file or from an environment override.
func (e *EnvLoader) Validate(cfg *Config) error {
	if cfg.Database.Password == "" {
		return fmt.Errorf("missing database password: set CRAWLER_DATABASE_PASSWORD or database.password in the config file")
	}
	return nil
}

// ValidateWithGitHub validates cfg including the GitHub API key, required by
// the crawl and search commands.
func (e *EnvLoader) ValidateWithGitHub(cfg *Config) error {
	if err := e.Validate(cfg); err != nil {
		return err
	}
	if cfg.Runner.GitHubAPIKey == "" {
		return fmt.Errorf("CRAWLER_GITHUB_API_KEY is required for searching GitHub.\nCreate a token at: https://github.com/settings/tokens")
	}
	return nil
}

// findEnvFile searches for .env file in current and parent directories
func findEnvFile() (string, error) {
	// Try current directory first
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	// Search up the directory tree (max 5 levels)
	searchPath := cwd
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(searchPath, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}

		// Move up one directory
		parent := filepath.Dir(searchPath)
		if parent == searchPath {
			break // Reached root
		}
		searchPath = parent
	}

	return "", fmt.Errorf(".env file not found in %s or parent directories", cwd)
}
