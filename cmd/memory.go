package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"memcat/internal/clix"
	"memcat/internal/models"
	"memcat/internal/services"
	"memcat/internal/util"
)

var (
	memoryAddUser  string
	memoryListUser string
	memoryApp      string
	memoryFile     string
	memoryCategory string
	memoryJSON     bool
)

var memoryCmd = &cobra.Command{
	Use:     "memory",
	Aliases: []string{"memories", "mem"},
	Short:   "Create, list and manage memories",
}

var memoryAddCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Store a new memory and categorize it",
	Long: `Stores a memory for a user. The text is taken from the arguments or,
with --file, from a text file. Categories are assigned according to the
configured categorization mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}

		content := strings.Join(args, " ")
		if memoryFile != "" {
			if len(args) > 0 {
				return fmt.Errorf("give the memory as arguments or --file, not both")
			}
			isBin, err := util.IsLikelyBinary(memoryFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", memoryFile, err)
			}
			if isBin {
				return fmt.Errorf("%s looks like a binary file", memoryFile)
			}
			raw, err := os.ReadFile(memoryFile)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", memoryFile, err)
			}
			content = string(raw)
		}
		if strings.TrimSpace(content) == "" {
			return fmt.Errorf("memory text is required")
		}

		meta, err := clix.ParseMetadata(cmd.Flags())
		if err != nil {
			return err
		}

		mem, err := appInstance.MemoryService.CreateMemory(cmd.Context(), services.CreateMemoryParams{
			UserID:   memoryAddUser,
			AppName:  memoryApp,
			Content:  content,
			Metadata: meta,
		})
		if err != nil {
			return fmt.Errorf("failed to add memory: %w", err)
		}
		return printMemory(cmd, mem)
	},
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		pagination, err := clix.ParsePagination(cmd.Flags())
		if err != nil {
			return fmt.Errorf("invalid pagination flags: %w", err)
		}
		state, err := clix.ParseState(cmd.Flags())
		if err != nil {
			return err
		}

		memories, err := appInstance.MemoryService.ListMemories(cmd.Context(), models.MemoryFilter{
			UserID:   memoryListUser,
			Category: memoryCategory,
			State:    state,
			Limit:    pagination.Limit,
			Offset:   pagination.Offset,
		})
		if err != nil {
			return fmt.Errorf("failed to list memories: %w", err)
		}

		out := cmd.OutOrStdout()
		if memoryJSON {
			return printJSON(out, memories)
		}
		if len(memories) == 0 {
			fmt.Fprintln(out, "No memories found.")
			return nil
		}

		table := newTable(out, "ID", "User", "State", "Categories", "Content", "Created")
		for _, m := range memories {
			table.Append([]string{
				m.ID.String(),
				m.UserID,
				stateString(m.State),
				joinCategories(m.Categories),
				snippet(m.Content, 60),
				m.CreatedAt.Format(timeLayout),
			})
		}
		table.Render()
		return nil
	},
}

var memoryShowCmd = &cobra.Command{
	Use:   "show <memory-id>",
	Short: "Show a single memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := parseMemoryID(args[0])
		if err != nil {
			return err
		}
		mem, err := appInstance.MemoryService.GetMemory(cmd.Context(), id)
		if err != nil {
			return err
		}
		return printMemory(cmd, mem)
	},
}

var memoryArchiveCmd = &cobra.Command{
	Use:   "archive <memory-id>",
	Short: "Archive a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := parseMemoryID(args[0])
		if err != nil {
			return err
		}
		mem, err := appInstance.MemoryService.ArchiveMemory(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to archive memory: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Memory %s archived.\n", mem.ID)
		return nil
	},
}

var memoryDeleteCmd = &cobra.Command{
	Use:   "delete <memory-id>",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := parseMemoryID(args[0])
		if err != nil {
			return err
		}
		if err := appInstance.MemoryService.DeleteMemory(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete memory: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Memory %s deleted.\n", id)
		return nil
	},
}

var memoryRecategorizeCmd = &cobra.Command{
	Use:   "recategorize <memory-id>",
	Short: "Run categorization again for a stored memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		id, err := parseMemoryID(args[0])
		if err != nil {
			return err
		}
		mem, err := appInstance.MemoryService.RecategorizeMemory(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to recategorize memory: %w", err)
		}
		return printMemory(cmd, mem)
	},
}

func parseMemoryID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid memory id %q: %w", raw, err)
	}
	return id, nil
}

func printMemory(cmd *cobra.Command, m *models.Memory) error {
	out := cmd.OutOrStdout()
	if memoryJSON {
		return printJSON(out, m)
	}
	fmt.Fprintf(out, "ID:         %s\n", m.ID)
	fmt.Fprintf(out, "User:       %s\n", m.UserID)
	if m.AppName != "" {
		fmt.Fprintf(out, "App:        %s\n", m.AppName)
	}
	fmt.Fprintf(out, "State:      %s\n", stateString(m.State))
	fmt.Fprintf(out, "Categories: %s\n", joinCategories(m.Categories))
	if len(m.Metadata) > 0 {
		fmt.Fprintf(out, "Metadata:   %s\n", m.Metadata)
	}
	fmt.Fprintf(out, "Created:    %s\n", m.CreatedAt.Format(timeLayout))
	if m.ArchivedAt != nil {
		fmt.Fprintf(out, "Archived:   %s\n", formatNullTime(m.ArchivedAt))
	}
	fmt.Fprintf(out, "\n%s\n", m.Content)
	return nil
}

func init() {
	rootCmd.AddCommand(memoryCmd)
	memoryCmd.AddCommand(memoryAddCmd, memoryListCmd, memoryShowCmd, memoryArchiveCmd, memoryDeleteCmd, memoryRecategorizeCmd)

	memoryCmd.PersistentFlags().BoolVar(&memoryJSON, "json", false, "Print results as JSON")

	memoryAddCmd.Flags().StringVarP(&memoryAddUser, "user", "u", "default", "User the memory belongs to")
	memoryAddCmd.Flags().StringVar(&memoryApp, "app", "", "Name of the app that created the memory")
	memoryAddCmd.Flags().StringVarP(&memoryFile, "file", "f", "", "Read the memory text from a file")
	memoryAddCmd.Flags().StringArray("meta", nil, "Metadata as key=value (repeatable)")

	memoryListCmd.Flags().StringVarP(&memoryListUser, "user", "u", "", "Only list memories of this user")
	memoryListCmd.Flags().StringVarP(&memoryCategory, "category", "c", "", "Only list memories with this category")
	memoryListCmd.Flags().String("state", "", "Only list memories in this state (active, paused, archived, deleted)")
	memoryListCmd.Flags().IntP("limit", "l", 20, "Maximum number of memories to list")
	memoryListCmd.Flags().IntP("offset", "o", 0, "Number of memories to skip")
}
