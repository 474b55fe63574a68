// Package client contains Cobra CLI commands for jobq.
package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

// NewJobsCommand constructs the `jobs` command group and subcommands.
func NewJobsCommand(baseURL BaseURLFunc) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Job operations (enqueue, inspect, requeue)",
	}
	jobsCmd.AddCommand(
		newJobsEnqueueCommand(baseURL),
		newJobsGetCommand(baseURL),
		newJobsListCommand(baseURL),
		newJobsDLQCommand(baseURL),
		newJobsRequeueCommand(baseURL),
	)
	return jobsCmd
}

func newJobsEnqueueCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Enqueue a job",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			typ, _ := cmd.Flags().GetString("type")
			payload, _ := cmd.Flags().GetString("payload")
			payloadFile, _ := cmd.Flags().GetString("payload-file")
			key, _ := cmd.Flags().GetString("key")

			raw := json.RawMessage(payload)
			if payloadFile != "" {
				b, err := os.ReadFile(payloadFile)
				if err != nil {
					return err
				}
				raw = b
			}
			if !json.Valid(raw) {
				return fmt.Errorf("payload is not valid JSON")
			}
			body := map[string]any{
				"tenant":         tenant,
				"type":           typ,
				"payload":        raw,
				"idempotencyKey": key,
			}
			out, status, err := doRequest(cmd.Context(), http.MethodPost, baseURL()+"/v1/jobs/enqueue", body)
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
	cmd.Flags().String("tenant", "", "Tenant (defaults to server default)")
	cmd.Flags().String("type", "", "Job type (required)")
	cmd.Flags().String("payload", "{}", "Payload JSON")
	cmd.Flags().String("payload-file", "", "Read payload JSON from file")
	cmd.Flags().String("key", "", "Idempotency key (derived from payload when empty)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newJobsGetCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Fetch one job by id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			id, _ := cmd.Flags().GetString("id")
			q := url.Values{"id": {id}}
			if tenant != "" {
				q.Set("tenant", tenant)
			}
			out, status, err := doRequest(cmd.Context(), http.MethodGet, baseURL()+"/v1/jobs/get?"+q.Encode(), nil)
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
	cmd.Flags().String("id", "", "Job id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newJobsListCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally narrowed by status and a CEL filter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			statusFlag, _ := cmd.Flags().GetString("status")
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")

			q := url.Values{}
			if tenant != "" {
				q.Set("tenant", tenant)
			}
			if statusFlag != "" {
				q.Set("status", statusFlag)
			}
			if filter != "" {
				q.Set("filter", filter)
			}
			if limit > 0 {
				q.Set("limit", fmt.Sprintf("%d", limit))
			}
			out, status, err := doRequest(cmd.Context(), http.MethodGet, baseURL()+"/v1/jobs?"+q.Encode(), nil)
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
	cmd.Flags().String("status", "", "Status: queued|claimed|completed|error|dead_letter")
	cmd.Flags().String("filter", "", `CEL filter, e.g. 'attempts > 2 && status == "error"'`)
	cmd.Flags().Int("limit", 100, "Max jobs to return")
	return cmd
}

func newJobsDLQCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "List dead-lettered jobs",
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
			out, status, err := doRequest(cmd.Context(), http.MethodGet, baseURL()+"/v1/jobs/dlq?"+q.Encode(), nil)
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
	cmd.Flags().Int("limit", 100, "Max jobs to return")
	return cmd
}

func newJobsRequeueCommand(baseURL BaseURLFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requeue",
		Short: "Requeue a dead-lettered or stuck job (operator role required)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, _ := cmd.Flags().GetString("tenant")
			id, _ := cmd.Flags().GetString("id")
			body := map[string]string{"tenant": tenant, "id": id}
			out, status, err := doRequest(cmd.Context(), http.MethodPost, baseURL()+"/v1/jobs/requeue", body)
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
	cmd.Flags().String("id", "", "Job id (required)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
