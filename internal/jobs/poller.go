package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Default polling policy.
const (
	DefaultPollInterval  = 4 * time.Second
	DefaultFailureBudget = 6
)

// JobTimeoutError reports an exhausted polling failure budget. The job may
// still be running remotely — completion cannot be guaranteed.
type JobTimeoutError struct {
	JobName             string
	ConsecutiveFailures int
	LastErr             error
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("jobs: polling job %q failed %d consecutive times, completion cannot be guaranteed (last error: %v)",
		e.JobName, e.ConsecutiveFailures, e.LastErr)
}

func (e *JobTimeoutError) Unwrap() error {
	return e.LastErr
}

// Result is a terminal job's final progress.
type Result struct {
	Processed int
	Failed    int
}

// Poller drives a bulk job to completion on a fixed polling interval.
// Each Poller instance serves one SubmitAndAwait call at a time; all timer
// state lives in a per-call watch, never in package globals.
type Poller struct {
	client        *Client
	interval      time.Duration
	failureBudget int
	logger        *slog.Logger
	group         singleflight.Group
}

// NewPoller creates a Poller. Zero interval or budget fall back to defaults.
func NewPoller(client *Client, interval time.Duration, failureBudget int, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}

	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if failureBudget <= 0 {
		failureBudget = DefaultFailureBudget
	}

	return &Poller{
		client:        client,
		interval:      interval,
		failureBudget: failureBudget,
		logger:        logger,
	}
}

// watch owns the repeating timer for one job. Stop is idempotent —
// double-cancel is a no-op — and is guaranteed to run before Await
// returns on every exit path.
type watch struct {
	ticker   *time.Ticker
	stopOnce sync.Once
}

func newWatch(interval time.Duration) *watch {
	return &watch{ticker: time.NewTicker(interval)}
}

func (w *watch) Stop() {
	w.stopOnce.Do(w.ticker.Stop)
}

// pollOutcome carries one completed poll call back to the Await loop.
type pollOutcome struct {
	details *Details
	err     error
}

// SubmitAndAwait submits the bulk operation and polls until the job
// reports the terminal "stopped" state, returning its final progress.
// A fixed number of consecutive poll call failures aborts with
// JobTimeoutError.
func (p *Poller) SubmitAndAwait(ctx context.Context, req SubmitRequest) (*Result, error) {
	name, err := p.client.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	return p.Await(ctx, req.Ref, name)
}

// Await polls an already-submitted job to completion. Ticks never block on
// a slow details call: each tick dispatches through a single-flight group,
// so a tick firing while the previous call is still in flight joins it
// instead of issuing an overlapping request.
func (p *Poller) Await(ctx context.Context, ref Ref, name string) (*Result, error) {
	w := newWatch(p.interval)
	defer w.Stop()

	outcomes := make(chan pollOutcome, 1)
	consecutiveFailures := 0

	p.logger.Info("polling job",
		slog.String("job", name),
		slog.Duration("interval", p.interval),
	)

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("jobs: polling canceled: %w", ctx.Err())

		case <-w.ticker.C:
			go func() {
				// Delivery happens inside the flight function: it executes
				// exactly once per flight no matter how many ticks join,
				// so every completed call produces exactly one outcome.
				p.group.Do(name, func() (any, error) { //nolint:errcheck // outcome is delivered in-flight
					details, err := p.client.JobDetails(ctx, ref, name)

					select {
					case outcomes <- pollOutcome{details: details, err: err}:
					case <-ctx.Done():
					}

					return details, err
				})
			}()

		case out := <-outcomes:
			if out.err != nil {
				consecutiveFailures++
				p.logger.Warn("poll call failed",
					slog.String("job", name),
					slog.Int("consecutive_failures", consecutiveFailures),
					slog.String("error", out.err.Error()),
				)

				if consecutiveFailures >= p.failureBudget {
					w.Stop()

					return nil, &JobTimeoutError{
						JobName:             name,
						ConsecutiveFailures: consecutiveFailures,
						LastErr:             out.err,
					}
				}

				continue
			}

			consecutiveFailures = 0

			p.logger.Debug("job progress",
				slog.String("job", name),
				slog.String("state", out.details.State),
				slog.Int("total", out.details.Progress.Total),
				slog.Int("processed", out.details.Progress.Processed),
				slog.Int("failed", out.details.Progress.Failed),
			)

			if out.details.State == JobStateStopped {
				w.Stop()

				p.logger.Info("job stopped",
					slog.String("job", name),
					slog.Int("processed", out.details.Progress.Processed),
					slog.Int("failed", out.details.Progress.Failed),
				)

				return &Result{
					Processed: out.details.Progress.Processed,
					Failed:    out.details.Progress.Failed,
				}, nil
			}
		}
	}
}
