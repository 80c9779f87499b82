// Package discovery finds agent session files and maps them to projects.
//
// Session logs are laid out as basedir/<project>/<session>.jsonl, one
// directory per project and one append-only file per session.
//
// Example usage:
//
//	d := discovery.New([]string{"~/.claude/projects"}, log)
//	files, err := d.ModifiedSince(ctx, time.Now().AddDate(0, 0, -30))
//	if err != nil {
//	    return err
//	}
//	for _, f := range files {
//	    fmt.Printf("%s %s\n", f.Project, f.SessionID)
//	}
package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Logger defines the logging interface used by the discovery package.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

// SessionFile represents a discovered session JSONL file.
type SessionFile struct {
	// SessionID is the file name without the .jsonl extension.
	SessionID string

	// Path is the path to the JSONL file.
	Path string

	// Project is the name of the containing directory.
	Project string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time
}

// Discoverer provides methods for discovering session files.
type Discoverer interface {
	// Discover returns every session file under the configured directories.
	// Missing base directories are skipped.
	Discover(ctx context.Context) ([]SessionFile, error)

	// ModifiedSince returns session files whose modification time is at or
	// after cutoff.
	ModifiedSince(ctx context.Context, cutoff time.Time) ([]SessionFile, error)

	// DiscoverProject returns session files for a single project directory.
	DiscoverProject(projectPath string) ([]SessionFile, error)

	// Roots returns the configured base directories that currently exist.
	Roots() []string
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	baseDirs []string
	logger   Logger
}

// New creates a new Discoverer over baseDirs.
func New(baseDirs []string, logger Logger) Discoverer {
	return &discoverer{
		baseDirs: baseDirs,
		logger:   logger,
	}
}

// Discover implements Discoverer.Discover.
func (d *discoverer) Discover(ctx context.Context) ([]SessionFile, error) {
	return d.ModifiedSince(ctx, time.Time{})
}

// ModifiedSince implements Discoverer.ModifiedSince.
func (d *discoverer) ModifiedSince(ctx context.Context, cutoff time.Time) ([]SessionFile, error) {
	var all []SessionFile

	for _, baseDir := range d.Roots() {
		entries, err := os.ReadDir(baseDir)
		if err != nil {
			d.logger.Warn("failed to read base directory", "path", baseDir, "error", err)
			continue
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if !entry.IsDir() {
				continue
			}

			projectDir := filepath.Join(baseDir, entry.Name())
			files, err := d.scanProjectDirectory(projectDir, cutoff)
			if err != nil {
				d.logger.Warn("failed to scan project directory",
					"path", projectDir,
					"error", err)
				continue
			}
			all = append(all, files...)
		}
	}

	d.logger.Debug("discovery complete", "files", len(all), "cutoff", cutoff)
	return all, nil
}

// DiscoverProject implements Discoverer.DiscoverProject.
func (d *discoverer) DiscoverProject(projectPath string) ([]SessionFile, error) {
	expandedPath := expandHome(projectPath)

	if _, err := os.Stat(expandedPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, expandedPath)
		}
		return nil, fmt.Errorf("failed to stat directory %s: %w", expandedPath, err)
	}

	return d.scanProjectDirectory(expandedPath, time.Time{})
}

// Roots implements Discoverer.Roots.
func (d *discoverer) Roots() []string {
	roots := make([]string, 0, len(d.baseDirs))
	for _, baseDir := range d.baseDirs {
		expanded := expandHome(baseDir)
		info, err := os.Stat(expanded)
		if err != nil || !info.IsDir() {
			continue
		}
		roots = append(roots, expanded)
	}
	return roots
}

// scanProjectDirectory lists the session files of one project.
func (d *discoverer) scanProjectDirectory(projectDir string, cutoff time.Time) ([]SessionFile, error) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	project := filepath.Base(projectDir)
	files := make([]SessionFile, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}

		filePath := filepath.Join(projectDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			d.logger.Debug("failed to get file info", "path", filePath, "error", err)
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}

		files = append(files, SessionFile{
			SessionID: strings.TrimSuffix(entry.Name(), ".jsonl"),
			Path:      filePath,
			Project:   project,
			Size:      info.Size(),
			ModTime:   info.ModTime(),
		})
	}

	return files, nil
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
