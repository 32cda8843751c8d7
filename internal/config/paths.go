package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultStoragePath returns the path of the native key-value store.
func DefaultStoragePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return filepath.Join(dir, "apikit", "store.db"), nil
}
