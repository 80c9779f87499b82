//go:build !unix

package reader

import (
	"errors"
	"fmt"
	"os"
)

// statFile returns the size of path. File identity is unknown on this
// platform; rotation then degrades to the truncation rule.
func statFile(path string) (fileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return fileStat{}, ErrFileNotFound
		case errors.Is(err, os.ErrPermission):
			return fileStat{}, ErrPermissionDenied
		default:
			return fileStat{}, fmt.Errorf("failed to stat file: %w", err)
		}
	}
	return fileStat{size: info.Size()}, nil
}
