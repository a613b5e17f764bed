package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads and parses a TOML config file over the defaults, then applies
// environment overrides. A missing file is not an error — the zero-config
// path works entirely from environment variables and CLI flags.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, decErr := toml.DecodeFile(path, cfg); decErr != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, decErr)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	return cfg, nil
}

// LoadDotenv loads a .env file into the process environment if one exists
// in the working directory. Values already set in the environment win.
func LoadDotenv() {
	// godotenv returns an error when no .env exists; that is the common case.
	_ = godotenv.Load()
}

// applyEnv overlays DOCSHIP_* environment variables onto cfg.
// Environment beats the config file; CLI flags beat both.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("DOCSHIP_GRAPH_BASE_URL", &cfg.GraphBaseURL)
	setString("DOCSHIP_LOG_LEVEL", &cfg.LogLevel)
	setString("DOCSHIP_TENANT_ID", &cfg.Auth.TenantID)
	setString("DOCSHIP_CLIENT_ID", &cfg.Auth.ClientID)
	setString("DOCSHIP_CERT_PATH", &cfg.Auth.CertificatePath)
	setString("DOCSHIP_CERT_PASSWORD", &cfg.Auth.CertificatePassword)
	setString("DOCSHIP_THUMBPRINT", &cfg.Auth.Thumbprint)
	setString("DOCSHIP_HOST", &cfg.Destination.Host)
	setString("DOCSHIP_SITE_PATH", &cfg.Destination.SitePath)
	setString("DOCSHIP_FOLDER_PATH", &cfg.Destination.FolderPath)
	setString("DOCSHIP_LEDGER_PATH", &cfg.Upload.LedgerPath)
	setString("DOCSHIP_JOBS_BASE_URL", &cfg.Jobs.BaseURL)

	if v := os.Getenv("DOCSHIP_TOKEN_LIFETIME_SECONDS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Auth.TokenLifetimeSeconds = n
		}
	}

	if v := os.Getenv("DOCSHIP_THROTTLE_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upload.ThrottleDelayMS = n
		}
	}
}
