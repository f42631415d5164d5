package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v6"
)

// Env holds the settings read from CANTIMING_* environment variables.
// Command line flags take precedence over these.
type Env struct {
	DBPath   string `env:"CANTIMING_DB_PATH"`
	LogLevel string `env:"CANTIMING_LOG_LEVEL" envDefault:"info"`

	ServerPort int    `env:"CANTIMING_SERVER_PORT" envDefault:"2223"`
	ServerCert string `env:"CANTIMING_SERVER_CERT"`
	ServerKey  string `env:"CANTIMING_SERVER_KEY"`
	ServerCA   string `env:"CANTIMING_SERVER_CA"`

	ClientCert string `env:"CANTIMING_CLIENT_CERT"`
	ClientKey  string `env:"CANTIMING_CLIENT_KEY"`
	ClientCA   string `env:"CANTIMING_CLIENT_CA"`
}

// LoadEnv parses the environment
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return e, nil
}

// DatabasePath returns the history database location: CANTIMING_DB_PATH,
// then ~/.cantiming/history.db, then ./cantiming.db.
func (e Env) DatabasePath() string {
	if e.DBPath != "" {
		return e.DBPath
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "cantiming.db"
	}

	dir := filepath.Join(homeDir, ".cantiming")
	if err := os.MkdirAll(dir, 0o755); err == nil {
		return filepath.Join(dir, "history.db")
	}

	return "cantiming.db"
}
