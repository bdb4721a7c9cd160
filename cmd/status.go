package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	v1 "github.com/sift-lang/sift/api/v1"
)

func getStatusCmd(ctx context.Context) *cobra.Command {
	// statusCmd represents the status command.
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running language server",
		Long: `Show the status of a running language server.

  Use the global --address flag to specify the URL to the API server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, "http://"+address+"/v1/status", nil)
			if err != nil {
				return err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("couldn't reach the api server at %s: %w", address, err)
			}
			defer func() { _ = resp.Body.Close() }()

			var status v1.Status
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("couldn't decode the status response: %w", err)
			}
			out, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, string(out))
			return nil
		},
	}
	return statusCmd
}
