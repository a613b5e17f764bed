package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docship/docship/internal/graph"
	"github.com/docship/docship/internal/resolve"
)

// SessionConfig describes one mirror session: a local source tree, a
// destination to resolve, and the session's throttle policy.
type SessionConfig struct {
	Source         string
	Host           string
	SitePath       string
	FolderPath     string
	ThrottleDelay  time.Duration
	ThrottleBudget int    // consecutive throttled files before abort; 0 disables
	LedgerPath     string // empty disables skip-unchanged bookkeeping
}

// Run executes a full mirror session: scan the local tree, resolve the
// destination, ensure the remote folder structure, then upload files.
// It returns either a complete report (possibly containing per-file
// failures) or a fatal error — never a partial report passed off as
// success. State is scoped to the session; nothing is shared across calls.
func Run(ctx context.Context, client *graph.Client, cfg SessionConfig, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tree, err := ScanTree(cfg.Source)
	if err != nil {
		return nil, err
	}

	logger.Info("local tree scanned",
		slog.String("root", tree.Root),
		slog.Int("dirs", len(tree.Dirs)),
		slog.Int("files", len(tree.Files)),
	)

	ref, err := resolve.New(client, logger).Resolve(ctx, cfg.Host, cfg.SitePath, cfg.FolderPath)
	if err != nil {
		return nil, err
	}

	var opts []UploaderOption

	if cfg.ThrottleBudget > 0 {
		opts = append(opts, WithThrottleBudget(cfg.ThrottleBudget))
	}

	if cfg.LedgerPath != "" {
		ledger, ledgerErr := OpenLedger(ctx, cfg.LedgerPath, logger)
		if ledgerErr != nil {
			return nil, ledgerErr
		}
		defer ledger.Close()

		opts = append(opts, WithLedger(ledger))
	}

	report := &Report{}

	folders, err := NewSynchronizer(client, logger).EnsureFolders(
		ctx, ref.DriveID, ref.FolderID, tree.Dirs, report)
	if err != nil {
		return nil, err
	}

	uploader := NewUploader(client, cfg.ThrottleDelay, logger, opts...)
	if err := uploader.UploadAll(ctx, ref.DriveID, tree.Files, folders, report); err != nil {
		return nil, fmt.Errorf("mirror: session failed: %w", err)
	}

	logger.Info("mirror session complete", slog.String("report", report.Summary()))

	return report, nil
}
