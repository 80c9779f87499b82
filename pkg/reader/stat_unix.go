//go:build unix

package reader

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// statFile returns the size of path and its "device:inode" identity, so a
// rotated file that reuses the same path can be told apart from a
// truncated one. Both come from the same stat call.
func statFile(path string) (fileStat, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		switch {
		case errors.Is(err, os.ErrNotExist):
			return fileStat{}, ErrFileNotFound
		case errors.Is(err, os.ErrPermission):
			return fileStat{}, ErrPermissionDenied
		default:
			return fileStat{}, fmt.Errorf("failed to stat file: %w", err)
		}
	}
	return fileStat{
		size:     st.Size,
		identity: fmt.Sprintf("%d:%d", st.Dev, st.Ino),
	}, nil
}
