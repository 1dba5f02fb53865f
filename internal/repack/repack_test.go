package repack

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/dyluth/kasm/internal/config"
	"github.com/dyluth/kasm/internal/matcher"
	"github.com/dyluth/kasm/internal/roster"
	"github.com/dyluth/kasm/internal/workdir"
	"github.com/dyluth/kasm/pkg/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rosterHeader = `ID,Vollständiger Name,Matrikelnummer,Status,Gruppe,Bewertung,Bestwertung,Bewertung kann geändert werden,Zuletzt geändert (Abgabe),Zuletzt geändert (Bewertung),Feedback als Kommentar`

var (
	classifier = matcher.MustNew(`\(([0-9]{2})\).+\([0-9]{2}\)`)
	fixedNow   = func() time.Time { return time.UnixMilli(1700000000123) }
)

// setupWorkdir builds an already unpacked sheet 07 with two graded teams and
// a third team directory that has no ledger entry.
func setupWorkdir(t *testing.T, origin ledger.Origin, entries []ledger.Entry) workdir.Dir {
	t.Helper()
	d := workdir.ForSheet(t.TempDir(), "07")
	require.NoError(t, d.Create())

	if origin == ledger.OriginRosterAndArchive {
		content := rosterHeader + "\n" + strings.Join([]string{
			`Teilnehmer/in101,Jane Doe,123456,Abgegeben,(12)TeamA(07),,"1,0",Ja,Mo,Di,`,
			`Teilnehmer/in102,John Roe,123457,Abgegeben,(12)TeamA(07),,"1,0",Ja,Mo,Di,`,
			`Teilnehmer/in103,Max Muster,123458,Abgegeben,(12)TeamB(07),,"1,3",Ja,Mo,Di,`,
		}, "\n") + "\n"
		require.NoError(t, os.WriteFile(d.RosterPath(), []byte(content), 0644))
	}

	for _, label := range []string{"(12)TeamA(07)", "(12)TeamB(07)", "(12)TeamZ(07)"} {
		unit := d.UnitPath(label)
		require.NoError(t, os.MkdirAll(filepath.Join(unit, "nested"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(unit, "feedback.pdf"), []byte("feedback "+label), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(unit, "report.pdf"), []byte("report "+label), 0644))
		require.NoError(t, os.WriteFile(filepath.Join(unit, "nested", "ignored.txt"), []byte("x"), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(d.Path, "scratch"), 0755))

	require.NoError(t, ledger.Create(d.LedgerPath(), &ledger.Ledger{
		Location: d.LedgerPath(),
		SheetID:  "07",
		Origin:   origin,
		Grades:   entries,
	}))
	return d
}

func localEntries() []ledger.Entry {
	return []ledger.Entry{
		{Target: "(12)TeamA(07)", InternalID: "991", Grade: "1,7"},
		{Target: "(12)TeamB(07)", Grade: "2,3"},
	}
}

func archiveNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		assert.Equal(t, zip.Deflate, f.Method)
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func options(d workdir.Dir, out string, output config.Structure) Options {
	return Options{
		WorkDir:    d,
		SheetID:    "07",
		OutputDir:  out,
		Classifier: classifier,
		Input:      config.StructureGroups,
		Output:     output,
		Now:        fixedNow,
	}
}

func TestRepack_GroupsToGroups(t *testing.T) {
	d := setupWorkdir(t, ledger.OriginRosterAndArchive, localEntries())
	out := t.TempDir()

	res, err := Repack(options(d, out, config.StructureGroups))
	require.NoError(t, err)

	assert.Equal(t, "groups->groups", res.Strategy)
	assert.Equal(t, filepath.Join(out, "feedback_07_1700000000123.zip"), res.ArchivePath)
	assert.Equal(t, filepath.Join(out, "grades_07_1700000000123.csv"), res.RosterPath)

	// TeamB has no internal id and TeamZ has no ledger entry
	assert.Equal(t, []Skip{
		{Label: "(12)TeamB(07)", Reason: "ledger entry has no internal id"},
		{Label: "(12)TeamZ(07)", Reason: "no ledger entry"},
	}, res.Skipped)
	require.Len(t, res.Packed, 1)
	assert.Equal(t, 2, res.Packed[0].Files)
	assert.Equal(t, 2, res.Packed[0].Rows)

	assert.Equal(t, []string{
		"(12)TeamA(07)_991_assignsubmission_file/feedback.pdf",
		"(12)TeamA(07)_991_assignsubmission_file/report.pdf",
	}, archiveNames(t, res.ArchivePath))

	data, err := os.ReadFile(res.RosterPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], `"ID","Vollständiger Name"`))
	assert.Equal(t, `"Teilnehmer/in101","Jane Doe","123456","Abgegeben","(12)TeamA(07)","1,7","1,0","Ja","Mo","Di",""`, lines[1])

	table, err := roster.ReadFile(res.RosterPath)
	require.NoError(t, err)
	for _, r := range table.Rows {
		assert.Equal(t, "1,7", r.Grade)
	}
}

func TestRepack_GroupsToIndividuals(t *testing.T) {
	d := setupWorkdir(t, ledger.OriginRosterAndArchive, localEntries())
	out := t.TempDir()

	res, err := Repack(options(d, out, config.StructureIndividuals))
	require.NoError(t, err)
	assert.Equal(t, "groups->individuals", res.Strategy)

	assert.Equal(t, []string{
		"(12)TeamA(07)_Jane Doe_101_assignsubmission_file_/feedback.pdf",
		"(12)TeamA(07)_Jane Doe_101_assignsubmission_file_/report.pdf",
		"(12)TeamA(07)_John Roe_102_assignsubmission_file_/feedback.pdf",
		"(12)TeamA(07)_John Roe_102_assignsubmission_file_/report.pdf",
		"(12)TeamB(07)_Max Muster_103_assignsubmission_file_/feedback.pdf",
		"(12)TeamB(07)_Max Muster_103_assignsubmission_file_/report.pdf",
	}, archiveNames(t, res.ArchivePath))

	table, err := roster.ReadFile(res.RosterPath)
	require.NoError(t, err)
	grades := map[string]string{}
	for _, r := range table.Rows {
		grades[r.UniID] = r.Grade
	}
	assert.Equal(t, map[string]string{"123456": "1,7", "123457": "1,7", "123458": "2,3"}, grades)

	assert.Equal(t, []Skip{{Label: "(12)TeamZ(07)", Reason: "no ledger entry"}}, res.Skipped)
}

func TestRepack_AllowList(t *testing.T) {
	d := setupWorkdir(t, ledger.OriginRosterAndArchive, localEntries())
	allow, err := matcher.NewAllowList(`^feedback`)
	require.NoError(t, err)

	opts := options(d, t.TempDir(), config.StructureGroups)
	opts.AllowList = allow
	res, err := Repack(opts)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"(12)TeamA(07)_991_assignsubmission_file/feedback.pdf",
	}, archiveNames(t, res.ArchivePath))
}

func TestRepack_RemoteFetchWritesNoRoster(t *testing.T) {
	d := setupWorkdir(t, ledger.OriginRemoteFetch, []ledger.Entry{
		{Target: "(12)TeamA(07)", InternalID: "991", Members: []string{"123456"}, Grade: "1,0"},
	})
	out := t.TempDir()

	res, err := Repack(options(d, out, config.StructureGroups))
	require.NoError(t, err)
	assert.Empty(t, res.RosterPath)
	assert.FileExists(t, res.ArchivePath)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRepack_RemoteFetchToIndividualsUnsupported(t *testing.T) {
	d := setupWorkdir(t, ledger.OriginRemoteFetch, []ledger.Entry{
		{Target: "(12)TeamA(07)", InternalID: "991", Grade: "1,0"},
	})
	out := t.TempDir()

	_, err := Repack(options(d, out, config.StructureIndividuals))
	require.Error(t, err)
	var unsupported *UnsupportedError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, ledger.OriginRemoteFetch, unsupported.Origin)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRepack_UnsupportedShapeCreatesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	opts := options(workdir.ForSheet(t.TempDir(), "07"), out, config.StructureGroups)
	opts.Input = config.StructureIndividuals

	_, err := Repack(opts)
	require.Error(t, err)
	var unsupported *UnsupportedError
	require.True(t, errors.As(err, &unsupported))
	assert.Contains(t, err.Error(), "individuals->groups")
	assert.NoDirExists(t, out)
}

func TestRepack_MissingPreconditions(t *testing.T) {
	t.Run("working directory", func(t *testing.T) {
		_, err := Repack(options(workdir.ForSheet(t.TempDir(), "07"), t.TempDir(), config.StructureGroups))
		require.Error(t, err)
		assert.True(t, errors.Is(err, workdir.ErrMissing))
	})

	t.Run("ledger", func(t *testing.T) {
		d := setupWorkdir(t, ledger.OriginRosterAndArchive, localEntries())
		require.NoError(t, os.Remove(d.LedgerPath()))
		out := t.TempDir()

		_, err := Repack(options(d, out, config.StructureGroups))
		require.Error(t, err)
		assert.True(t, errors.Is(err, workdir.ErrMissing))

		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("roster", func(t *testing.T) {
		d := setupWorkdir(t, ledger.OriginRosterAndArchive, localEntries())
		require.NoError(t, os.Remove(d.RosterPath()))
		out := t.TempDir()

		_, err := Repack(options(d, out, config.StructureGroups))
		require.Error(t, err)
		assert.True(t, errors.Is(err, workdir.ErrMissing))

		entries, err := os.ReadDir(out)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestResolveStrategy(t *testing.T) {
	tests := []struct {
		in, out config.Structure
		want    string
	}{
		{config.StructureGroups, config.StructureGroups, "groups->groups"},
		{config.StructureGroups, config.StructureIndividuals, "groups->individuals"},
		{config.StructureIndividuals, config.StructureIndividuals, ""},
		{config.StructureIndividuals, config.StructureGroups, ""},
	}
	for _, tt := range tests {
		s, err := ResolveStrategy(tt.in, tt.out)
		if tt.want == "" {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.Name())
	}
}
