package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/harunnryd/opsgate/internal/pathutil"
)

const lockFileName = "opsgate.lock"

// ResolveStateDir resolves the configured state directory.
// If empty, it falls back to ~/.opsgate.
func ResolveStateDir(stateDir string) (string, error) {
	if trimmed := strings.TrimSpace(stateDir); trimmed != "" {
		return pathutil.Expand(trimmed)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".opsgate"), nil
}

// LockPath returns the instance lock file inside stateDir.
func LockPath(stateDir string) string {
	return filepath.Join(stateDir, lockFileName)
}
