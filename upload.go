package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docship/docship/internal/mirror"
)

// errPartialUpload signals that the session completed but some files
// failed. main exits 1 without the generic error banner — the report has
// already been printed.
var errPartialUpload = errors.New("upload completed with failures")

func newUploadCmd() *cobra.Command {
	var (
		flagHost           string
		flagSitePath       string
		flagFolderPath     string
		flagThrottleMS     int
		flagThrottleBudget int
		flagLedgerPath     string
		flagWatch          bool
	)

	cmd := &cobra.Command{
		Use:   "upload <source-dir>",
		Short: "Mirror a local directory tree into the destination drive folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			applyDestinationFlags(cmd, flagHost, flagSitePath, flagFolderPath)

			if cmd.Flags().Changed("throttle-ms") {
				cfg.Upload.ThrottleDelayMS = flagThrottleMS
			}

			if cmd.Flags().Changed("throttle-budget") {
				cfg.Upload.ThrottleBudget = flagThrottleBudget
			}

			if cmd.Flags().Changed("ledger") {
				cfg.Upload.LedgerPath = flagLedgerPath
			}

			if err := cfg.ValidateDestination(); err != nil {
				return err
			}

			logger := buildLogger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			token, err := acquireToken(ctx, logger)
			if err != nil {
				return err
			}

			session := mirror.SessionConfig{
				Source:         args[0],
				Host:           cfg.Destination.Host,
				SitePath:       cfg.Destination.SitePath,
				FolderPath:     cfg.Destination.FolderPath,
				ThrottleDelay:  cfg.ThrottleDelay(),
				ThrottleBudget: cfg.Upload.ThrottleBudget,
				LedgerPath:     cfg.Upload.LedgerPath,
			}

			client := newGraphClient(token, logger)

			if flagWatch {
				return watchAndMirror(ctx, client, session, logger)
			}

			report, err := mirror.Run(ctx, client, session, logger)
			if err != nil {
				return err
			}

			return printReport(report)
		},
	}

	cmd.Flags().StringVar(&flagHost, "host", "", "destination hostname (e.g. contoso.sharepoint.com)")
	cmd.Flags().StringVar(&flagSitePath, "site-path", "", "server-relative site path (e.g. /sites/docs)")
	cmd.Flags().StringVar(&flagFolderPath, "folder-path", "", "destination folder path within the site")
	cmd.Flags().IntVar(&flagThrottleMS, "throttle-ms", 0, "delay between file uploads in milliseconds")
	cmd.Flags().IntVar(&flagThrottleBudget, "throttle-budget", 0, "abort after N consecutive throttled files (0 disables)")
	cmd.Flags().StringVar(&flagLedgerPath, "ledger", "", "SQLite ledger path for skip-unchanged re-runs")
	cmd.Flags().BoolVar(&flagWatch, "watch", false, "keep watching the source and re-upload on change")

	return cmd
}

func applyDestinationFlags(cmd *cobra.Command, host, sitePath, folderPath string) {
	if cmd.Flags().Changed("host") {
		cfg.Destination.Host = host
	}

	if cmd.Flags().Changed("site-path") {
		cfg.Destination.SitePath = sitePath
	}

	if cmd.Flags().Changed("folder-path") {
		cfg.Destination.FolderPath = folderPath
	}
}

// printReport renders the final report and maps per-file failures to a
// non-zero exit without masking the counts.
func printReport(report *mirror.Report) error {
	if flagJSON {
		out := struct {
			Uploaded              int      `json:"uploaded"`
			Skipped               int      `json:"skipped"`
			Failed                int      `json:"failed"`
			FailedFolderCreations int      `json:"failedFolderCreations"`
			FailedPaths           []string `json:"failedPaths"`
		}{
			Uploaded:              report.Uploaded(),
			Skipped:               report.Skipped(),
			Failed:                report.Failed(),
			FailedFolderCreations: report.FailedFolderCreations(),
			FailedPaths:           report.FailedPaths(),
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		fmt.Println(report.Summary())

		for _, p := range report.FailedPaths() {
			fmt.Println("failed:", p)
		}
	}

	if report.Failed() > 0 || report.FailedFolderCreations() > 0 {
		return errPartialUpload
	}

	return nil
}
