package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"memcat/internal/clix"
)

var categoriesJSON bool

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"category"},
	Short:   "Inspect categories assigned to memories",
}

var categoriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List categories with the number of memories in each",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}

		cats, err := appInstance.CategorizationService.ListCategories(cmd.Context(), pagination.Limit, pagination.Offset)
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}

		out := cmd.OutOrStdout()
		if categoriesJSON {
			return printJSON(out, cats)
		}
		if len(cats) == 0 {
			fmt.Fprintln(out, "No categories found.")
			return nil
		}

		table := newTable(out, "Name", "Description", "Memories")
		for _, c := range cats {
			desc := ""
			if c.Description != nil {
				desc = *c.Description
			}
			table.Append([]string{c.Name, desc, strconv.FormatInt(c.MemoryCount, 10)})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	categoriesCmd.AddCommand(categoriesListCmd)
	categoriesListCmd.Flags().BoolVar(&categoriesJSON, "json", false, "Print results as JSON")
	categoriesListCmd.Flags().IntP("limit", "l", 50, "Maximum number of categories to list")
	categoriesListCmd.Flags().IntP("offset", "o", 0, "Number of categories to skip")
}
