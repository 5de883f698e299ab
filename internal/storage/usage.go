package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// UsageBytes sums the on-disk size of the given data paths (the SQLite file, its WAL and the
// vector persist directory). Paths that do not exist count as zero.
func UsageBytes(paths ...string) (int64, error) {
	var total int64
	for _, root := range paths {
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
			return nil
		})
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}
