package recovery

import (
	"fmt"
	"os"
	"path/filepath"

	"overdub/internal/fileutil"
)

// RepairResult reports what a filesystem repair pass actually did.
type RepairResult struct {
	CreatedDirs   []string
	RestoredFiles []string
}

// RepairWorkspace recreates missing directories and restores artifacts from
// their backups. paths lists the artifact files a stage depends on; their
// parent directories are created and any missing file with an intact .bak
// sibling is restored.
func RepairWorkspace(root string, paths ...string) (RepairResult, error) {
	result := RepairResult{}
	if root != "" {
		if err := os.MkdirAll(root, 0o755); err != nil {
			return result, fmt.Errorf("repair: create %s: %w", root, err)
		}
		result.CreatedDirs = append(result.CreatedDirs, root)
	}

	for _, path := range paths {
		dir := filepath.Dir(path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return result, fmt.Errorf("repair: create %s: %w", dir, err)
			}
			result.CreatedDirs = append(result.CreatedDirs, dir)
		}
		if fileutil.NonEmptyFile(path) {
			continue
		}
		restored, err := fileutil.RestoreBackup(path)
		if err != nil {
			return result, fmt.Errorf("repair: restore %s: %w", path, err)
		}
		if restored {
			result.RestoredFiles = append(result.RestoredFiles, path)
		}
	}
	return result, nil
}
