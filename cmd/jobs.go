package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"memcat/internal/clix"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect background categorization jobs",
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded background jobs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		jobs, err := appInstance.Store.ListJobs(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(jobs) == 0 {
			fmt.Fprintln(out, "No background jobs found.")
			return nil
		}

		table := newTable(out, "Job ID", "Type", "Queue", "Status", "Memory", "Error", "Updated")
		for _, j := range jobs {
			related := "N/A"
			if j.RelatedEntityID != nil {
				related = j.RelatedEntityID.String()
			}
			errMsg := ""
			if j.Error != nil {
				errMsg = snippet(*j.Error, 40)
			}
			table.Append([]string{
				j.JobID.String(),
				j.TaskType,
				j.Queue,
				jobStatusString(j.Status),
				related,
				errMsg,
				j.UpdatedAt.Format(timeLayout),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(jobsListCmd)
	jobsListCmd.Flags().IntP("limit", "l", 20, "Maximum number of jobs to list")
	jobsListCmd.Flags().IntP("offset", "o", 0, "Number of jobs to skip")
}
