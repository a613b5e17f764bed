package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/docship/docship/internal/auth"
	"github.com/docship/docship/internal/config"
	"github.com/docship/docship/internal/graph"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// cfg holds the effective configuration loaded by PersistentPreRunE.
var cfg *config.Config

// httpClientTimeout is the default timeout for HTTP requests.
// Prevents hung connections from blocking commands indefinitely.
const httpClientTimeout = 120 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: httpClientTimeout}
}

// newRootCmd builds the fully-assembled root command. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docship",
		Short:   "Mirror a local directory into a SharePoint document library",
		Long:    "docship uploads a local directory tree into a cloud document-library drive\nusing a certificate client-assertion grant, and drives bulk preview/publish jobs.",
		Version: version,
		// Silence Cobra's default error/usage printing — main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			config.LoadDotenv()

			loaded, err := config.Load(flagConfigPath)
			if err != nil {
				return err
			}

			cfg = loaded

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newUploadCmd())
	cmd.AddCommand(newPublishCmd(jobsOperationPublish))
	cmd.AddCommand(newPublishCmd(jobsOperationPreview))
	cmd.AddCommand(newTokenCmd())

	return cmd
}

// buildLogger creates an slog.Logger from the resolved config and CLI
// flags. Flags win over the config file's log_level. Text output on
// terminals, JSON otherwise, so captured logs stay machine-parseable.
func buildLogger() *slog.Logger {
	level := slog.LevelInfo

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// acquireToken reads the certificate bundle and runs the sign + exchange
// flow. The token lives in memory for the duration of one command.
func acquireToken(ctx context.Context, logger *slog.Logger) (string, error) {
	if err := cfg.ValidateAuth(); err != nil {
		return "", err
	}

	bundle, err := os.ReadFile(cfg.Auth.CertificatePath)
	if err != nil {
		return "", fmt.Errorf("reading certificate bundle: %w", err)
	}

	cred := auth.Credential{
		TenantID:   cfg.Auth.TenantID,
		ClientID:   cfg.Auth.ClientID,
		Bundle:     bundle,
		Password:   cfg.Auth.CertificatePassword,
		Thumbprint: cfg.Auth.Thumbprint,
		Lifetime:   cfg.TokenLifetime(),
	}

	tok, err := auth.Acquire(ctx, defaultHTTPClient(), cred, "", logger)
	if err != nil {
		return "", err
	}

	return tok.AccessToken, nil
}

// newGraphClient builds the Graph client for an acquired bearer token.
func newGraphClient(token string, logger *slog.Logger) *graph.Client {
	return graph.NewClient(cfg.GraphBaseURL, defaultHTTPClient(), graph.StaticToken(token), logger)
}
