package clix

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"memcat/internal/models"
)

type PaginationParams struct {
	Limit  int
	Offset int
}

func ParsePagination(flags *pflag.FlagSet) (PaginationParams, error) {
	limit, _ := flags.GetInt("limit")
	offset, _ := flags.GetInt("offset")
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return PaginationParams{Limit: limit, Offset: offset}, nil
}

// ParseMetadata turns repeated --meta key=value flags into a JSON object.
// It returns nil when no metadata was given.
func ParseMetadata(flags *pflag.FlagSet) (json.RawMessage, error) {
	pairs, _ := flags.GetStringArray("meta")
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta %q: want key=value", p)
		}
		meta[key] = strings.TrimSpace(value)
	}
	return json.Marshal(meta)
}

// ParseState reads --state, accepting only known memory states.
func ParseState(flags *pflag.FlagSet) (models.MemoryState, error) {
	raw, _ := flags.GetString("state")
	state := models.MemoryState(strings.ToLower(strings.TrimSpace(raw)))
	if state != "" && !state.Valid() {
		return "", fmt.Errorf("invalid --state %q (want active, paused, archived or deleted)", raw)
	}
	return state, nil
}
