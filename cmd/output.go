package cmd

import (
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"memcat/internal/models"
	"memcat/pkg/categorizer"
)

const timeLayout = "2006-01-02 15:04:05"

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	return table
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stateString(s models.MemoryState) string {
	switch s {
	case models.MemoryStateActive:
		return color.GreenString(string(s))
	case models.MemoryStateArchived, models.MemoryStatePaused:
		return color.YellowString(string(s))
	case models.MemoryStateDeleted:
		return color.RedString(string(s))
	}
	return string(s)
}

func statusString(s categorizer.Status) string {
	switch s {
	case categorizer.StatusOK:
		return color.GreenString(string(s))
	case categorizer.StatusDisabled, categorizer.StatusEmptyResponse:
		return color.YellowString(string(s))
	}
	return color.RedString(string(s))
}

func jobStatusString(s string) string {
	switch s {
	case models.JobStatusCompleted:
		return color.GreenString(s)
	case models.JobStatusFailed:
		return color.RedString(s)
	}
	return color.YellowString(s)
}

func joinCategories(cats []string) string {
	if len(cats) == 0 {
		return "-"
	}
	return strings.Join(cats, ", ")
}

func snippet(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

// Helper function to format nullable time
func formatNullTime(t *time.Time) string {
	if t != nil {
		return t.Format(timeLayout)
	}
	return "N/A"
}
