// Package repack assembles the graded working directory into a feedback
// archive and a regraded roster that can be uploaded back to the platform.
package repack

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dyluth/kasm/internal/config"
	"github.com/dyluth/kasm/internal/matcher"
	"github.com/dyluth/kasm/internal/roster"
	"github.com/dyluth/kasm/internal/workdir"
	"github.com/dyluth/kasm/pkg/ledger"
	"github.com/klauspost/compress/flate"
	"go.uber.org/zap"
)

// Options configures one repack run.
type Options struct {
	WorkDir    workdir.Dir
	SheetID    string
	OutputDir  string // Default "."
	Classifier *matcher.Classifier
	AllowList  *matcher.AllowList // nil keeps every file
	Input      config.Structure
	Output     config.Structure
	Now        func() time.Time // Default time.Now
	Logger     *zap.Logger
}

// PackedUnit is a unit that made it into the output archive.
type PackedUnit struct {
	Label   string
	Folders []string
	Files   int // Archive entries written, summed over Folders
	Rows    int // Roster rows written
	Grade   string
}

// Skip is a unit left out of the output, with the reason.
type Skip struct {
	Label  string
	Reason string
}

// Result describes the produced output. Skipped units do not fail the run.
type Result struct {
	Strategy    string
	ArchivePath string
	RosterPath  string // Empty when the ledger origin carries no roster
	Packed      []PackedUnit
	Skipped     []Skip
}

// ArchiveName returns the output archive file name for a sheet and packing time.
func ArchiveName(sheetID string, stamp int64) string {
	return fmt.Sprintf("feedback_%s_%d.zip", sheetID, stamp)
}

// RosterName returns the output roster file name for a sheet and packing time.
func RosterName(sheetID string, stamp int64) string {
	return fmt.Sprintf("grades_%s_%d.csv", sheetID, stamp)
}

// Repack writes a new archive (and, for locally built ledgers, a roster) from
// the working directory. Configuration and precondition problems fail before
// any output file is created.
func Repack(opts Options) (*Result, error) {
	if opts.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if opts.SheetID == "" {
		return nil, fmt.Errorf("sheet id is required")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	strategy, err := ResolveStrategy(opts.Input, opts.Output)
	if err != nil {
		return nil, err
	}

	dir := opts.WorkDir
	if err := dir.RequireDir(); err != nil {
		return nil, err
	}
	if err := dir.RequireLedger(); err != nil {
		return nil, err
	}

	l, err := ledger.Load(dir.LedgerPath())
	if err != nil {
		return nil, err
	}
	if err := strategy.supports(l.Origin); err != nil {
		return nil, err
	}

	table := &roster.Table{}
	writeRoster := l.Origin == ledger.OriginRosterAndArchive
	if writeRoster {
		if err := dir.RequireRoster(); err != nil {
			return nil, err
		}
		table, err = roster.ReadFile(dir.RosterPath())
		if err != nil {
			return nil, err
		}
	}

	units, err := unitDirs(dir, opts.Classifier)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", opts.OutputDir, err)
	}

	stamp := opts.Now().UnixMilli()
	res := &Result{
		Strategy:    strategy.Name(),
		ArchivePath: filepath.Join(opts.OutputDir, ArchiveName(opts.SheetID, stamp)),
	}
	log.Info("repacking",
		zap.String("strategy", strategy.Name()),
		zap.String("archive", res.ArchivePath),
		zap.Int("units", len(units)))

	p := &packer{
		ledger: l,
		table:  table,
		allow:  opts.AllowList,
		log:    log,
		result: res,
	}

	archiveFile, err := os.Create(res.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}
	defer archiveFile.Close()
	p.zip = zip.NewWriter(archiveFile)
	p.zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.BestCompression)
	})

	if writeRoster {
		res.RosterPath = filepath.Join(opts.OutputDir, RosterName(opts.SheetID, stamp))
		p.rosterOut, err = roster.Create(res.RosterPath, table.Header, roster.QuoteAlways)
		if err != nil {
			return nil, err
		}
		defer p.rosterOut.Close()
	}

	for _, label := range units {
		log.Debug("packing unit", zap.String("group", label))
		if err := strategy.packUnit(p, label, dir.UnitPath(label)); err != nil {
			return nil, err
		}
	}

	if err := p.zip.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalise archive: %w", err)
	}
	if err := archiveFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	if p.rosterOut != nil {
		if err := p.rosterOut.Close(); err != nil {
			return nil, fmt.Errorf("failed to flush roster: %w", err)
		}
	} else {
		log.Warn("ledger was fetched remotely: no roster was generated", zap.String("origin", string(l.Origin)))
	}

	return res, nil
}

// unitDirs lists the subdirectories of the working directory whose name the
// classifier matches, in name order.
func unitDirs(dir workdir.Dir, c *matcher.Classifier) ([]string, error) {
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list working directory: %w", err)
	}

	var units []string
	for _, e := range entries {
		if e.IsDir() && c.Matches(e.Name()) {
			units = append(units, e.Name())
		}
	}
	return units, nil
}

// packer carries the shared output state through a strategy run.
type packer struct {
	ledger    *ledger.Ledger
	table     *roster.Table
	allow     *matcher.AllowList
	zip       *zip.Writer
	rosterOut *roster.Writer // nil when no roster is written
	log       *zap.Logger
	result    *Result
}

func (p *packer) skip(label, reason string) {
	p.log.Warn("skipping group", zap.String("group", label), zap.String("reason", reason))
	p.result.Skipped = append(p.result.Skipped, Skip{Label: label, Reason: reason})
}

func (p *packer) packed(u PackedUnit) {
	p.result.Packed = append(p.result.Packed, u)
}

// writeRows writes every roster row of label with grade, if a roster is being written.
func (p *packer) writeRows(label, grade string) (int, error) {
	if p.rosterOut == nil {
		return 0, nil
	}
	rows := p.table.InGroup(label)
	for _, r := range rows {
		if err := p.rosterOut.Write(r.WithGrade(grade)); err != nil {
			return 0, fmt.Errorf("failed to write roster row: %w", err)
		}
	}
	return len(rows), nil
}

// copyFiles adds every allow-listed regular file of unitPath to the archive
// under folder and returns how many were added.
func (p *packer) copyFiles(unitPath, folder string) (int, error) {
	entries, err := os.ReadDir(unitPath)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", unitPath, err)
	}

	count := 0
	for _, e := range entries {
		if !e.Type().IsRegular() || !p.allow.Allows(e.Name()) {
			continue
		}
		if err := p.addFile(filepath.Join(unitPath, e.Name()), folder+"/"+e.Name()); err != nil {
			return 0, err
		}
		p.log.Debug("packed file", zap.String("file", e.Name()), zap.String("folder", folder))
		count++
	}
	return count, nil
}

func (p *packer) addFile(src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}

	header := &zip.FileHeader{Name: name, Method: zip.Deflate, Modified: info.ModTime()}
	w, err := p.zip.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", name, err)
	}
	return nil
}
