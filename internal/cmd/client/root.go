package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the jobq client.
// It registers the jobs and runs command groups.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	if baseURL == nil {
		baseURL = apiURLFromEnv
	}
	root := &cobra.Command{
		Use:   "jobq",
		Short: "jobq client commands",
	}
	root.AddCommand(NewJobsCommand(baseURL))
	root.AddCommand(NewRunsCommand(baseURL))
	return root
}
