package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/kasm/internal/config"
)

// CheckExisting returns an error if dir already holds a kasm.yml.
func CheckExisting(dir string) error {
	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("project already initialized\n\nFound existing: %s\n\nUse 'kasm init --force' to reinitialize (this will overwrite existing configuration)", config.FileName)
	}
	return nil
}
