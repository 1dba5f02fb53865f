// Package workdir describes the on-disk working directory created by unpack
// and consumed by grade and repack.
//
// Layout:
//
//	unpack_<sheet>/
//	  original.csv        filtered roster
//	  grades.yml          ledger
//	  <unit label>/...    extracted submission files
package workdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dyluth/kasm/pkg/ledger"
)

const (
	// Prefix is prepended to the sheet id to form the directory name.
	Prefix = "unpack_"

	// RosterFile is the filtered roster inside the directory.
	RosterFile = "original.csv"
)

var (
	// ErrExists is returned when a working directory is about to be created but already exists.
	ErrExists = errors.New("already exists")

	// ErrMissing is returned when a required path of the working directory is absent.
	ErrMissing = errors.New("not found")
)

// Dir is a working directory rooted at Path.
type Dir struct {
	Path string
}

// ForSheet returns the working directory of sheetID under base.
func ForSheet(base, sheetID string) Dir {
	return Dir{Path: filepath.Join(base, Prefix+sheetID)}
}

// LedgerPath returns the path of the ledger file.
func (d Dir) LedgerPath() string {
	return filepath.Join(d.Path, ledger.FileName)
}

// RosterPath returns the path of the filtered roster.
func (d Dir) RosterPath() string {
	return filepath.Join(d.Path, RosterFile)
}

// UnitPath returns the directory holding the files of one unit label.
func (d Dir) UnitPath(label string) string {
	return filepath.Join(d.Path, label)
}

// RequireAbsent returns ErrExists if anything exists at the directory path.
func (d Dir) RequireAbsent() error {
	if _, err := os.Stat(d.Path); err == nil {
		return fmt.Errorf("working directory %s: %w", d.Path, ErrExists)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to check working directory %s: %w", d.Path, err)
	}
	return nil
}

// Create makes the directory. It never reuses an existing one.
func (d Dir) Create() error {
	if err := d.RequireAbsent(); err != nil {
		return err
	}

	if err := os.MkdirAll(d.Path, 0755); err != nil {
		return fmt.Errorf("failed to create working directory %s: %w", d.Path, err)
	}
	return nil
}

// RequireDir returns ErrMissing if the directory does not exist.
func (d Dir) RequireDir() error {
	info, err := os.Stat(d.Path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("working directory %s: %w", d.Path, ErrMissing)
	}
	return nil
}

// RequireLedger returns ErrMissing if the ledger file does not exist.
func (d Dir) RequireLedger() error {
	return requireFile(d.LedgerPath(), "ledger")
}

// RequireRoster returns ErrMissing if the filtered roster does not exist.
func (d Dir) RequireRoster() error {
	return requireFile(d.RosterPath(), "roster")
}

func requireFile(path, what string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%s %s: %w", what, path, ErrMissing)
	}
	return nil
}

// FindLedger walks from start towards the filesystem root and returns the
// first ledger file found.
func FindLedger(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	for {
		candidate := filepath.Join(dir, ledger.FileName)
		if requireFile(candidate, "ledger") == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s in %s or any parent: %w", ledger.FileName, start, ErrMissing)
		}
		dir = parent
	}
}
