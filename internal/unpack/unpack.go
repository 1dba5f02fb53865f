// Package unpack builds a fresh working directory for one sheet from the
// platform's submissions archive and grading roster, keeping only the units
// of the configured exercise group.
package unpack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dyluth/kasm/internal/config"
	"github.com/dyluth/kasm/internal/matcher"
	"github.com/dyluth/kasm/internal/roster"
	"github.com/dyluth/kasm/internal/workdir"
	"github.com/dyluth/kasm/pkg/ledger"
	"go.uber.org/zap"
)

// LabelDelimiter separates the unit label from the platform's suffix in the
// first path component of every archive entry, e.g.
// "(12) Team A (07)_4711_assignsubmission_file/report.pdf".
const LabelDelimiter = "_"

// ErrNoMatchingRows is returned when no roster row classifies to the configured unit.
var ErrNoMatchingRows = errors.New("no roster rows match the configured group")

// Options configures one ingestion run.
type Options struct {
	ArchivePath string
	RosterPath  string
	SheetID     string
	BaseDir     string // Parent of the working directory, default "."
	Unit        matcher.UnitID
	Classifier  *matcher.Classifier
	Structure   config.Structure
	Logger      *zap.Logger
}

// SkippedEntry is an archive entry that classified to the unit but was not extracted.
type SkippedEntry struct {
	Name   string
	Reason string
}

// Result summarises a completed ingestion.
type Result struct {
	Dir            workdir.Dir
	KeptRows       int
	Units          []string // Distinct group labels of the kept rows, in roster order
	Extracted      []string // Paths relative to Dir.Path
	SkippedRows    []roster.SkippedRow
	SkippedEntries []SkippedEntry
	Ledger         *ledger.Ledger
}

func (o *Options) validate() error {
	if o.SheetID == "" {
		return fmt.Errorf("sheet id is required")
	}
	if o.Classifier == nil {
		return fmt.Errorf("classifier is required")
	}
	if o.Unit.IsZero() {
		return fmt.Errorf("unit filter value is required")
	}
	if _, err := config.ParseStructure(string(o.Structure)); err != nil {
		return err
	}
	if o.BaseDir == "" {
		o.BaseDir = "."
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}

// Ingest creates the working directory for opts.SheetID and fills it with the
// filtered roster, the initial ledger and the extracted files of every matching
// unit. It refuses to touch an existing directory. A failure part way through
// leaves the partially built directory in place.
func Ingest(opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid unpack options: %w", err)
	}
	log := opts.Logger

	dir := workdir.ForSheet(opts.BaseDir, opts.SheetID)
	if err := dir.RequireAbsent(); err != nil {
		return nil, err
	}

	table, err := roster.ReadFile(opts.RosterPath)
	if err != nil {
		return nil, err
	}
	log.Info("read roster", zap.Int("records", len(table.Rows)), zap.Int("skipped", len(table.Skipped)))
	for _, s := range table.Skipped {
		log.Debug("skipped roster line", zap.Int("line", s.Line), zap.String("reason", s.Reason))
	}

	kept, skipped := filterRows(table.Rows, opts.Classifier, opts.Unit, opts.Structure)
	for _, s := range skipped {
		log.Warn("skipped roster row", zap.Int("line", s.Line), zap.String("reason", s.Reason))
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: group %s", ErrNoMatchingRows, opts.Unit)
	}
	log.Info("found matching records", zap.Int("count", len(kept)), zap.Stringer("group", opts.Unit))

	log.Info("creating working directory", zap.String("path", dir.Path))
	if err := dir.Create(); err != nil {
		return nil, err
	}

	if err := writeRoster(dir.RosterPath(), table.Header, kept); err != nil {
		return nil, err
	}

	l, units := buildLedger(dir, opts.SheetID, opts.Structure, kept)
	log.Info("discrete groups in roster", zap.Int("count", len(units)))

	res := &Result{
		Dir:         dir,
		KeptRows:    len(kept),
		Units:       units,
		SkippedRows: append(table.Skipped, skipped...),
		Ledger:      l,
	}

	internalIDs, err := extract(opts, dir, res)
	if err != nil {
		return nil, err
	}

	if opts.Structure == config.StructureGroups {
		for i := range l.Grades {
			if id, ok := internalIDs[l.Grades[i].Target]; ok {
				l.Grades[i].InternalID = id
			}
		}
	}

	log.Info("writing ledger", zap.String("path", dir.LedgerPath()))
	if err := ledger.Create(dir.LedgerPath(), l); err != nil {
		return nil, err
	}

	return res, nil
}

// filterRows keeps the rows of unit. In the individuals shape a row without
// a university id has no ledger target and is skipped instead.
func filterRows(rows []roster.Row, c *matcher.Classifier, unit matcher.UnitID, structure config.Structure) ([]roster.Row, []roster.SkippedRow) {
	var kept []roster.Row
	var skipped []roster.SkippedRow
	for _, r := range rows {
		if !c.Is(r.Group, unit) {
			continue
		}
		if structure == config.StructureIndividuals && strings.TrimSpace(r.UniID) == "" {
			skipped = append(skipped, roster.SkippedRow{Line: r.Line, Reason: "no university id"})
			continue
		}
		kept = append(kept, r)
	}
	return kept, skipped
}

func writeRoster(path string, header []string, rows []roster.Row) error {
	w, err := roster.Create(path, header, roster.QuoteNecessary)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r); err != nil {
			w.Close()
			return fmt.Errorf("failed to write roster row: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to flush roster: %w", err)
	}
	return nil
}

// buildLedger seeds one entry per distinct group label (groups shape) or per
// distinct submitter (individuals shape), graded with the best grade so far.
func buildLedger(dir workdir.Dir, sheetID string, structure config.Structure, rows []roster.Row) (*ledger.Ledger, []string) {
	l := &ledger.Ledger{
		Location: dir.LedgerPath(),
		SheetID:  sheetID,
		Origin:   ledger.OriginRosterAndArchive,
	}

	var units []string
	seenGroups := make(map[string]bool)
	seenSubmitters := make(map[string]bool)
	for _, r := range rows {
		if !seenGroups[r.Group] {
			seenGroups[r.Group] = true
			units = append(units, r.Group)
			if structure == config.StructureGroups {
				l.Grades = append(l.Grades, ledger.Entry{Target: r.Group, Grade: r.BestGrade})
			}
		}
		if structure == config.StructureIndividuals && !seenSubmitters[r.UniID] {
			seenSubmitters[r.UniID] = true
			l.Grades = append(l.Grades, ledger.Entry{Target: r.UniID, Grade: r.BestGrade})
		}
	}
	return l, units
}

// extract streams the archive and writes every entry that classifies to the
// unit to <dir>/<label>/<base name>. It returns the platform internal id found
// in each label's folder name.
func extract(opts Options, dir workdir.Dir, res *Result) (map[string]string, error) {
	log := opts.Logger
	log.Info("extracting archive", zap.String("path", opts.ArchivePath))

	zr, err := zip.OpenReader(opts.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", opts.ArchivePath, err)
	}
	defer zr.Close()

	internalIDs := make(map[string]string)
	written := make(map[string]bool)

	for _, f := range zr.File {
		if !opts.Classifier.Is(f.Name, opts.Unit) {
			continue
		}
		if f.FileInfo().IsDir() {
			continue
		}

		label, internalID, base, err := splitEntry(f.Name)
		if err != nil {
			return nil, err
		}
		if _, ok := internalIDs[label]; !ok && internalID != "" {
			internalIDs[label] = internalID
		}

		rel := filepath.Join(label, base)
		if written[rel] {
			log.Warn("duplicate archive entry, keeping first", zap.String("entry", f.Name), zap.String("target", rel))
			res.SkippedEntries = append(res.SkippedEntries, SkippedEntry{Name: f.Name, Reason: "duplicate of " + rel})
			continue
		}
		written[rel] = true

		if err := extractFile(f, dir.UnitPath(label), base); err != nil {
			return nil, err
		}
		log.Debug("extracted", zap.String("entry", f.Name), zap.String("target", rel))
		res.Extracted = append(res.Extracted, rel)
	}

	return internalIDs, nil
}

// splitEntry derives the unit label, the platform internal id and the base
// name from an archive entry name.
func splitEntry(name string) (label, internalID, base string, err error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", "", fmt.Errorf("archive entry %q escapes the working directory", name)
	}

	first, _, _ := strings.Cut(clean, "/")
	label, rest, found := strings.Cut(first, LabelDelimiter)
	if !found || label == "" || label == "." || label == ".." {
		return "", "", "", fmt.Errorf("archive entry %q has no unit label before %q", name, LabelDelimiter)
	}
	internalID, _, _ = strings.Cut(rest, LabelDelimiter)

	return label, internalID, path.Base(clean), nil
}

func extractFile(f *zip.File, unitDir, base string) error {
	if err := os.MkdirAll(unitDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", unitDir, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer src.Close()

	target := filepath.Join(unitDir, base)
	dst, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return dst.Close()
}
