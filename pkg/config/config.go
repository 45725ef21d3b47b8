// Package config loads chronicler settings from the environment, with
// optional .env files in the working directory and the user's home.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config carries the tracker credentials and endpoints used by the CLI.
type Config struct {
	JiraURL   string
	JiraUser  string
	JiraToken string

	RedmineURL       string
	RedmineDirectURL string
	RedmineUser      string
	RedminePassword  string
	RedmineAPIKey    string
	RedmineProjectID string

	LogLevel string
}

// Load reads ./.env and ~/.env if present (already-set environment
// variables win) and returns the resulting configuration. Several keys
// accept legacy spellings that older setups used.
func Load() *Config {
	// Errors are ignored on purpose: a missing .env file just means
	// the environment alone drives the configuration.
	_ = godotenv.Load()
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".env"))
	}

	return &Config{
		JiraURL:   firstEnv("JIRA_URL", "JIRA_SERVER_URL"),
		JiraUser:  firstEnv("JIRA_USER", "JIRA_EMAIL"),
		JiraToken: firstEnv("JIRA_API_TOKEN", "JIRA_TOKEN"),

		RedmineURL:       getEnv("redmine_url", ""),
		RedmineDirectURL: getEnv("redmine_direct_url", ""),
		RedmineUser:      firstEnv("redmine_user_name", "redmine_user"),
		RedminePassword:  getEnv("redmine_password", ""),
		RedmineAPIKey:    firstEnv("redmine_api_key", "redmine_api_leu"),
		RedmineProjectID: getEnv("redmine_project_id", ""),

		LogLevel: getEnv("CHRONICLER_LOG_LEVEL", "info"),
	}
}

// HasRedmineBasicAuth reports whether username/password credentials are
// configured.
func (c *Config) HasRedmineBasicAuth() bool {
	return c.RedmineUser != "" && c.RedminePassword != ""
}

// HasRedmineAPIKey reports whether an API key is configured.
func (c *Config) HasRedmineAPIKey() bool {
	return c.RedmineAPIKey != ""
}

// HasJira reports whether the Jira endpoint and credentials are complete.
func (c *Config) HasJira() bool {
	return c.JiraURL != "" && c.JiraUser != "" && c.JiraToken != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}
