package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// defaultPromptDir is the subdirectory within the user's home directory.
const defaultPromptDir = ".config/memcat/prompts"

// ErrPromptNotFound is returned when no prompt file exists at the resolved path.
var ErrPromptNotFound = errors.New("prompt file not found")

// LoadPromptContent resolves the path for a prompt template and reads its content.
// An absolute configuredPath is used directly. A relative or empty one is a
// filename within ~/.config/memcat/prompts/, defaulting to defaultFilename.
func LoadPromptContent(configuredPath, defaultFilename string) (string, error) {
	finalPath := configuredPath
	if !filepath.IsAbs(configuredPath) {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		filename := configuredPath
		if filename == "" {
			filename = defaultFilename
		}
		finalPath = filepath.Join(homeDir, defaultPromptDir, filename)
	}

	promptBytes, err := os.ReadFile(finalPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w at '%s'", ErrPromptNotFound, finalPath)
		}
		return "", fmt.Errorf("failed to read prompt file '%s': %w", finalPath, err)
	}
	return string(promptBytes), nil
}

// CategorizationPrompt returns the configured prompt override, or the built-in
// prompt when none is installed.
func (c *Config) CategorizationPrompt() string {
	content, err := LoadPromptContent(c.Categorization.PromptTemplate, "categorize.txt")
	if err != nil {
		if errors.Is(err, ErrPromptNotFound) && c.Categorization.PromptTemplate == "" {
			return DefaultCategorizationPrompt
		}
		log.Warnf("Failed to load categorization prompt: %v. Using the built-in prompt.", err)
		return DefaultCategorizationPrompt
	}
	return content
}
