package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrExists is returned by Create when the ledger file already exists.
var ErrExists = errors.New("ledger already exists")

// Load reads and validates the ledger at path.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var l Ledger
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", path, err)
	}

	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger %s: %w", path, err)
	}

	return &l, nil
}

// Create writes l to path, failing with ErrExists if the file is already
// present. Ledgers are never merged.
func Create(path string, l *Ledger) error {
	data, err := marshal(l)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s: %w", path, ErrExists)
		}
		return fmt.Errorf("failed to create ledger: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return f.Close()
}

// Save overwrites the ledger at path in place.
// The write is not atomic: concurrent writers or a crash can truncate the file.
func Save(path string, l *Ledger) error {
	data, err := marshal(l)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

func marshal(l *Ledger) ([]byte, error) {
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger: %w", err)
	}
	data, err := yaml.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger: %w", err)
	}
	return data, nil
}
