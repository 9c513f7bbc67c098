package index

import (
	"os"
	"path/filepath"
)

// AtomicSwap replaces destDir with srcDir by renaming. The previous destDir
// is kept as destDir.bak until the swap succeeds and restored if it fails.
func AtomicSwap(srcDir, destDir string) error {
	if err := os.MkdirAll(filepath.Dir(destDir), 0o755); err != nil {
		return err
	}
	backup := destDir + ".bak"
	_ = os.RemoveAll(backup)

	hadDest := false
	if _, err := os.Stat(destDir); err == nil {
		if err := os.Rename(destDir, backup); err != nil {
			return err
		}
		hadDest = true
	}
	if err := os.Rename(srcDir, destDir); err != nil {
		if hadDest {
			_ = os.Rename(backup, destDir)
		}
		return err
	}
	return os.RemoveAll(backup)
}
