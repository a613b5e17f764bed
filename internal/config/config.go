// Package config loads docship configuration from a TOML file with
// environment overrides. Precedence: defaults < config file < environment
// < CLI flags (flags are applied by the CLI layer).
package config

import (
	"errors"
	"fmt"
	"time"
)

// Default tuning values. Throttle and polling defaults match the remote
// API's published guidance; callers override per invocation when needed.
const (
	DefaultGraphBaseURL     = "https://graph.microsoft.com/v1.0"
	DefaultTokenLifetime    = 3600 * time.Second
	DefaultThrottleDelayMS  = 1000
	DefaultPollIntervalMS   = 4000
	DefaultPollFailureLimit = 6
)

// Auth is the credential block.
type Auth struct {
	TenantID        string `toml:"tenant_id"`
	ClientID        string `toml:"client_id"`
	CertificatePath string `toml:"certificate_path"`
	// CertificatePassword is normally supplied via DOCSHIP_CERT_PASSWORD
	// rather than written to the config file.
	CertificatePassword  string `toml:"certificate_password"`
	Thumbprint           string `toml:"thumbprint"`
	TokenLifetimeSeconds int64  `toml:"token_lifetime_seconds"`
}

// Destination names the remote drive folder to mirror into.
type Destination struct {
	Host       string `toml:"host"`
	SitePath   string `toml:"site_path"`
	FolderPath string `toml:"folder_path"`
}

// Upload is the mirror session tuning block.
type Upload struct {
	ThrottleDelayMS int    `toml:"throttle_delay_ms"`
	ThrottleBudget  int    `toml:"throttle_budget"` // 0 disables the circuit breaker
	LedgerPath      string `toml:"ledger_path"`     // empty disables skip-unchanged
}

// Jobs is the bulk publishing block.
type Jobs struct {
	BaseURL        string `toml:"base_url"`
	PollIntervalMS int    `toml:"poll_interval_ms"`
	FailureBudget  int    `toml:"failure_budget"`
}

// Config is the root configuration.
type Config struct {
	GraphBaseURL string      `toml:"graph_base_url"`
	LogLevel     string      `toml:"log_level"`
	Auth         Auth        `toml:"auth"`
	Destination  Destination `toml:"destination"`
	Upload       Upload      `toml:"upload"`
	Jobs         Jobs        `toml:"jobs"`
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		GraphBaseURL: DefaultGraphBaseURL,
		LogLevel:     "info",
		Auth: Auth{
			TokenLifetimeSeconds: int64(DefaultTokenLifetime / time.Second),
		},
		Upload: Upload{
			ThrottleDelayMS: DefaultThrottleDelayMS,
		},
		Jobs: Jobs{
			PollIntervalMS: DefaultPollIntervalMS,
			FailureBudget:  DefaultPollFailureLimit,
		},
	}
}

// TokenLifetime returns the requested token validity window.
func (c *Config) TokenLifetime() time.Duration {
	return time.Duration(c.Auth.TokenLifetimeSeconds) * time.Second
}

// ThrottleDelay returns the inter-file upload delay.
func (c *Config) ThrottleDelay() time.Duration {
	return time.Duration(c.Upload.ThrottleDelayMS) * time.Millisecond
}

// PollInterval returns the job polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollIntervalMS) * time.Millisecond
}

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// ValidateAuth checks the fields every authenticated command needs.
func (c *Config) ValidateAuth() error {
	switch {
	case c.Auth.TenantID == "":
		return fmt.Errorf("%w: auth.tenant_id is required", ErrInvalidConfig)
	case c.Auth.ClientID == "":
		return fmt.Errorf("%w: auth.client_id is required", ErrInvalidConfig)
	case c.Auth.CertificatePath == "":
		return fmt.Errorf("%w: auth.certificate_path is required", ErrInvalidConfig)
	case c.Auth.TokenLifetimeSeconds <= 0:
		return fmt.Errorf("%w: auth.token_lifetime_seconds must be positive", ErrInvalidConfig)
	}

	return nil
}

// ValidateDestination checks the fields the upload command needs.
func (c *Config) ValidateDestination() error {
	switch {
	case c.Destination.Host == "":
		return fmt.Errorf("%w: destination.host is required", ErrInvalidConfig)
	case c.Destination.SitePath == "":
		return fmt.Errorf("%w: destination.site_path is required", ErrInvalidConfig)
	case c.Destination.FolderPath == "":
		return fmt.Errorf("%w: destination.folder_path is required", ErrInvalidConfig)
	}

	return nil
}
