package processor

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// LocateBand walks root recursively and returns the file whose name ends with pattern.
// If several files match, the lexicographically smallest path is returned.
func LocateBand(root, pattern string) (string, bool, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), pattern) {
			return nil
		}
		if found == "" || path < found {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("LocateBand.WalkDir: %w", err)
	}
	return found, found != "", nil
}
