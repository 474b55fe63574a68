package client

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"
)

// NewRunsCommand constructs the `runs` command group and subcommands.
func NewRunsCommand(baseURL BaseURLFunc) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Worker run operations (trigger, history)",
	}
	runsCmd.AddCommand(
		newRunsTriggerCommand(baseURL),
		newRunsListCommand(baseURL),
	)
	return runsCmd
}

func newRunsTriggerCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Run one worker pass over due jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			limit, _ := cmd.Flags().GetInt("limit")
			body := map[string]any{"tenant": tenant, "limit": limit}
			out, status, err := doRequest(cmd.Context(), http.MethodPost, baseURL()+"/v1/runs/trigger", body)
			if err != nil {
				return err
			}
			if err := checkStatus(status, out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "Tenant")
	cmd.Flags().Int("limit", 0, "Max jobs per pass (defaults to server limit)")
	return cmd
}

func newRunsListCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent worker runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			limit, _ := cmd.Flags().GetInt("limit")
			q := url.Values{}
			if tenant != "" {
				q.Set("tenant", tenant)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", limit))
			}
			out, status, err := doRequest(cmd.Context(), http.MethodGet, baseURL()+"/v1/runs?"+q.Encode(), nil)
			if err != nil {
				return err
			}
			if err := checkStatus(status, out); err != nil {
				return err
			}
			printJSON(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().String("tenant", "", "Tenant")
	cmd.Flags().Int("limit", 50, "Max runs to return")
	return cmd
}
