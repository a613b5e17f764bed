package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newTokenCmd prints a freshly acquired bearer token to stdout for an
// orchestration layer that performs its own API calls. The token is never
// written anywhere else.
func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Acquire a bearer token and print it to stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			token, err := acquireToken(cmd.Context(), logger)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)

			return nil
		},
	}
}
