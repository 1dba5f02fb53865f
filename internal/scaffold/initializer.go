// Package scaffold creates the kasm.yml of a new grading project.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dyluth/kasm/internal/config"
)

// Initialize validates cfg and writes it as dir/kasm.yml. Without force an
// existing kasm.yml is left alone and an error is returned.
func Initialize(dir string, cfg *config.Config, force bool) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid configuration: %w", err)
	}

	if !force {
		if err := CheckExisting(dir); err != nil {
			return "", err
		}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, config.FileName)
	if err := config.Save(path, cfg); err != nil {
		return "", err
	}

	if err := validateCreatedFile(path); err != nil {
		return "", err
	}

	return path, nil
}

// validateCreatedFile loads the written configuration back through the
// regular loader.
func validateCreatedFile(path string) error {
	if _, err := config.Load(path); err != nil {
		return fmt.Errorf("created %s is not loadable: %w", config.FileName, err)
	}
	return nil
}
