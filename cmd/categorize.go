package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"memcat/pkg/categorizer"
)

var categorizeJSON bool

// categorizeCmd prints the categories the model suggests for a piece of text.
var categorizeCmd = &cobra.Command{
	Use:   "categorize <text...>",
	Short: "Suggest categories for a piece of text",
	Long: `Runs the configured categorization provider on the given text without
storing anything. An empty result means the model had nothing to offer or
categorization is disabled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		text := strings.Join(args, " ")

		res, err := appInstance.CategorizationService.Suggest(cmd.Context(), text)
		if err != nil {
			return fmt.Errorf("categorization failed: %w", err)
		}

		out := cmd.OutOrStdout()
		if categorizeJSON {
			return printJSON(out, struct {
				Categories []string           `json:"categories"`
				Status     categorizer.Status `json:"status"`
			}{res.Labels, res.Status})
		}
		if len(res.Labels) == 0 {
			fmt.Fprintf(out, "No categories (%s).\n", statusString(res.Status))
			return nil
		}
		for _, label := range res.Labels {
			fmt.Fprintln(out, label)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categorizeCmd)
	categorizeCmd.Flags().BoolVar(&categorizeJSON, "json", false, "Print the result as JSON")
}
