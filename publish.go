package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/docship/docship/internal/jobs"
)

const (
	jobsOperationPublish = jobs.OperationPublish
	jobsOperationPreview = jobs.OperationPreview
)

// newPublishCmd builds the publish or preview command; both submit a bulk
// job and poll it to completion, differing only in the operation name.
func newPublishCmd(op jobs.Operation) *cobra.Command {
	var (
		flagOwner      string
		flagRepo       string
		flagBranch     string
		flagPaths      []string
		flagForce      bool
		flagIntervalMS int
	)

	cmd := &cobra.Command{
		Use:   string(op),
		Short: fmt.Sprintf("Submit a bulk %s job and wait for it to stop", op),
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			if cfg.Jobs.BaseURL == "" {
				return fmt.Errorf("jobs.base_url is required for %s", op)
			}

			if flagOwner == "" || flagRepo == "" || flagBranch == "" {
				return fmt.Errorf("--owner, --repo, and --branch are required")
			}

			interval := cfg.PollInterval()
			if cmd.Flags().Changed("interval-ms") {
				interval = time.Duration(flagIntervalMS) * time.Millisecond
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			token, err := acquireToken(ctx, logger)
			if err != nil {
				return err
			}

			client := jobs.NewClient(cfg.Jobs.BaseURL, defaultHTTPClient(), jobsToken(token), logger)
			poller := jobs.NewPoller(client, interval, cfg.Jobs.FailureBudget, logger)

			result, err := poller.SubmitAndAwait(ctx, jobs.SubmitRequest{
				Operation:   op,
				Ref:         jobs.Ref{Owner: flagOwner, Repo: flagRepo, Branch: flagBranch},
				Paths:       flagPaths,
				ForceUpdate: flagForce,
			})
			if err != nil {
				return err
			}

			return printJobResult(result)
		},
	}

	cmd.Flags().StringVar(&flagOwner, "owner", "", "content repository owner")
	cmd.Flags().StringVar(&flagRepo, "repo", "", "content repository name")
	cmd.Flags().StringVar(&flagBranch, "branch", "", "content repository branch")
	cmd.Flags().StringSliceVar(&flagPaths, "paths", nil, "paths to include in the bulk operation")
	cmd.Flags().BoolVar(&flagForce, "force", false, "force update even for unchanged content")
	cmd.Flags().IntVar(&flagIntervalMS, "interval-ms", 0, "polling interval in milliseconds")

	return cmd
}

// jobsToken adapts a bearer string to the jobs package's TokenSource.
type jobsToken string

func (t jobsToken) Token() (string, error) {
	if t == "" {
		return "", fmt.Errorf("empty bearer token")
	}

	return string(t), nil
}

func printJobResult(result *jobs.Result) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(struct {
			Processed int `json:"processed"`
			Failed    int `json:"failed"`
		}{result.Processed, result.Failed})
	}

	fmt.Printf("processed=%d failed=%d\n", result.Processed, result.Failed)

	return nil
}
