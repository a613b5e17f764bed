package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/docship/docship/internal/graph"
)

// Upload retry policy: throttled (429) requests are retried on a fixed
// schedule; everything else fails the file immediately.
const (
	defaultMaxAttempts   = 3
	defaultRetryBackoff  = 5 * time.Second
	defaultThrottleDelay = 1 * time.Second
)

// ErrThrottleBudgetExhausted aborts a session after too many consecutive
// files exhausted their throttle retries. Disabled unless a budget is set.
var ErrThrottleBudgetExhausted = errors.New("mirror: consecutive throttle budget exhausted")

// Uploader streams local files to their resolved remote folders, strictly
// sequentially, sleeping the throttle delay after every attempt so one
// session never exceeds its shared rate budget.
type Uploader struct {
	client         *graph.Client
	logger         *slog.Logger
	throttleDelay  time.Duration
	retryBackoff   time.Duration
	maxAttempts    uint64
	throttleBudget int // consecutive throttled files before session abort; 0 disables
	ledger         *Ledger

	// sleepFunc waits between files and is overridden in tests.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// UploaderOption customizes an Uploader.
type UploaderOption func(*Uploader)

// WithThrottleBudget aborts the session after n consecutive files exhaust
// their throttle retries. Zero keeps the default of never aborting.
func WithThrottleBudget(n int) UploaderOption {
	return func(u *Uploader) { u.throttleBudget = n }
}

// WithLedger enables skip-unchanged bookkeeping for re-runs.
func WithLedger(l *Ledger) UploaderOption {
	return func(u *Uploader) { u.ledger = l }
}

// WithRetryBackoff overrides the fixed sleep between throttle retries.
func WithRetryBackoff(d time.Duration) UploaderOption {
	return func(u *Uploader) { u.retryBackoff = d }
}

// NewUploader creates an Uploader. throttleDelay is the fixed inter-file
// delay; zero or negative falls back to the default.
func NewUploader(client *graph.Client, throttleDelay time.Duration, logger *slog.Logger, opts ...UploaderOption) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}

	if throttleDelay <= 0 {
		throttleDelay = defaultThrottleDelay
	}

	u := &Uploader{
		client:        client,
		logger:        logger,
		throttleDelay: throttleDelay,
		retryBackoff:  defaultRetryBackoff,
		maxAttempts:   defaultMaxAttempts,
		sleepFunc:     sleepCtx,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// UploadAll transfers every file into its parent folder from folders,
// accumulating outcomes in report. A single file's failure never stops the
// loop; the only fatal errors are context cancellation and an exhausted
// throttle budget. Files under abandoned subtrees are recorded as failed
// without a network call.
func (u *Uploader) UploadAll(
	ctx context.Context, driveID string, files []FileEntry, folders FolderMap, report *Report,
) error {
	consecutiveThrottled := 0

	for _, f := range files {
		parentID, ok := folders[parentDir(f.RelPath)]
		if !ok {
			u.logger.Warn("skipping file in abandoned subtree",
				slog.String("path", f.RelPath),
			)
			report.AddFailed(f.RelPath)

			continue
		}

		if u.ledger != nil && u.ledger.Unchanged(ctx, f.RelPath, f.Size, f.Mtime.Unix()) {
			u.logger.Debug("file unchanged since last upload, skipping",
				slog.String("path", f.RelPath),
			)
			report.AddSkipped()

			continue
		}

		err := u.uploadOne(ctx, driveID, parentID, f)
		switch {
		case err == nil:
			report.AddUploaded()

			consecutiveThrottled = 0
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return fmt.Errorf("mirror: upload canceled: %w", err)
		default:
			u.logger.Warn("file upload failed",
				slog.String("path", f.RelPath),
				slog.String("error", err.Error()),
			)
			report.AddFailed(f.RelPath)

			if errors.Is(err, graph.ErrThrottled) {
				consecutiveThrottled++
				if u.throttleBudget > 0 && consecutiveThrottled >= u.throttleBudget {
					return fmt.Errorf("%w: %d consecutive files throttled out",
						ErrThrottleBudgetExhausted, consecutiveThrottled)
				}
			} else {
				consecutiveThrottled = 0
			}
		}

		if sleepErr := u.sleepFunc(ctx, u.throttleDelay); sleepErr != nil {
			return fmt.Errorf("mirror: upload canceled: %w", sleepErr)
		}
	}

	return nil
}

// uploadOne PUTs a single file, retrying only throttled responses on the
// fixed backoff schedule. The file is reopened per attempt because the
// previous attempt may have consumed the reader.
func (u *Uploader) uploadOne(ctx context.Context, driveID, parentID string, f FileEntry) error {
	backoff := retry.WithMaxRetries(u.maxAttempts-1, retry.NewConstant(u.retryBackoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		src, err := os.Open(f.LocalPath)
		if err != nil {
			return fmt.Errorf("mirror: opening %s: %w", f.LocalPath, err)
		}
		defer src.Close()

		item, err := u.client.PutContent(ctx, driveID, parentID, path.Base(f.RelPath), src, f.Size)
		if err != nil {
			if errors.Is(err, graph.ErrThrottled) {
				u.logger.Info("throttled, will retry",
					slog.String("path", f.RelPath),
					slog.Duration("backoff", u.retryBackoff),
				)

				return retry.RetryableError(err)
			}

			return err
		}

		if u.ledger != nil {
			if recErr := u.ledger.Record(ctx, f.RelPath, f.Size, f.Mtime.Unix(), item.ID); recErr != nil {
				u.logger.Warn("ledger record failed",
					slog.String("path", f.RelPath),
					slog.String("error", recErr.Error()),
				)
			}
		}

		return nil
	})
}

// parentDir returns the FolderMap key of a file's directory ("" for root).
func parentDir(relPath string) string {
	dir := path.Dir(relPath)
	if dir == "." {
		return ""
	}

	return dir
}

// sleepCtx waits for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
