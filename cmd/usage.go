package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"memcat/internal/clix"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "View recorded LLM usage and costs",
	Long:  `Provides subcommands to list individual LLM calls and view an aggregate cost summary.`,
}

var usageListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded LLM calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		logs, err := appInstance.UsageService.ListUsage(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list usage logs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(logs) == 0 {
			fmt.Fprintln(out, "No usage logs found.")
			return nil
		}

		table := newTable(out, "ID", "Timestamp", "Provider", "Service", "Model", "In", "Out", "Cost", "Memory", "Job")
		for _, l := range logs {
			memoryID := "N/A"
			if l.RelatedMemoryID != nil {
				memoryID = l.RelatedMemoryID.String()
			}
			jobID := "N/A"
			if l.RelatedJobID != nil {
				jobID = l.RelatedJobID.String()
			}
			table.Append([]string{
				strconv.FormatInt(l.ID, 10),
				l.Timestamp.Format(timeLayout),
				l.ProviderName,
				l.ServiceType,
				l.ModelName,
				strconv.Itoa(l.InputTokens),
				strconv.Itoa(l.OutputTokens),
				fmt.Sprintf("%.8f", l.Cost),
				memoryID,
				jobID,
			})
		}
		table.Render()
		return nil
	},
}

var usageSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show total LLM calls, tokens and cost",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		summary, err := appInstance.UsageService.GetSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get usage summary: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Calls:         %d\n", summary.Calls)
		fmt.Fprintf(out, "Input tokens:  %d\n", summary.TotalInputTokens)
		fmt.Fprintf(out, "Output tokens: %d\n", summary.TotalOutputTokens)
		fmt.Fprintf(out, "Total cost:    $%.6f\n", summary.TotalCost)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageListCmd, usageSummaryCmd)
	usageListCmd.Flags().IntP("limit", "l", 20, "Maximum number of logs to list")
	usageListCmd.Flags().IntP("offset", "o", 0, "Number of logs to skip")
}
