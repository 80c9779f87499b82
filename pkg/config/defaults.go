package config

import (
	"os"
	"path/filepath"
)

// defaultClaudeDirs returns the default Claude Code project directories.
//
// Searches in order:
// 1. ~/.config/claude/projects/ (new default)
// 2. ~/.claude/projects/ (legacy)
//
// Returns all directories that exist on the filesystem.
func defaultClaudeDirs() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return []string{"."}
	}

	candidates := []string{
		filepath.Join(homeDir, ".config", "claude", "projects"),
		filepath.Join(homeDir, ".claude", "projects"),
	}

	var dirs []string
	for _, dir := range candidates {
		if _, err := os.Stat(dir); err == nil {
			dirs = append(dirs, dir)
		}
	}

	// Keep the legacy path so the agent reports "unavailable" rather than
	// failing validation on hosts without any logs yet.
	if len(dirs) == 0 {
		return []string{filepath.Join(homeDir, ".claude", "projects")}
	}

	return dirs
}

// stateDir returns ~/.config/agentpulse.
func stateDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".config", "agentpulse")
}

// defaultOffsetDBPath returns ~/.config/agentpulse/offsets.db.
func defaultOffsetDBPath() string {
	return filepath.Join(stateDir(), "offsets.db")
}

// DefaultConfigPath returns ~/.config/agentpulse/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(stateDir(), "config.yaml")
}
