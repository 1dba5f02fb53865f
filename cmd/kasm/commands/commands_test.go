package commands

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/kasm/internal/printer"
	"github.com/dyluth/kasm/pkg/handoff"
	"github.com/dyluth/kasm/pkg/ledger"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rosterCSV = `ID,Vollständiger Name,Matrikelnummer,Status,Gruppe,Bewertung,Bestwertung,Bewertung kann geändert werden,Zuletzt geändert (Abgabe),Zuletzt geändert (Bewertung),Feedback als Kommentar
Teilnehmer/in101,Jane Doe,123456,Abgegeben,(12)TeamA(07),,"1,0",Ja,Mo,Di,
Teilnehmer/in102,John Roe,123457,Abgegeben,(12)TeamA(07),,"1,0",Ja,Mo,Di,
Teilnehmer/in104,Eva Other,123459,Abgegeben,(13)TeamC(07),,"2,0",Ja,Mo,Di,
`

// resetFlags restores every flag to its default so package-level flag
// variables do not leak between test invocations.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runKasm executes the root command in dir and captures everything printed.
func runKasm(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(dir)
	resetFlags(rootCmd)

	prevNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prevNoColor }()

	var out, errOut bytes.Buffer
	restore := printer.SetOutput(&out, &errOut)
	defer restore()

	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := Execute()
	return out.String(), errOut.String(), err
}

// setupExports writes a roster and a submissions archive into dir.
func setupExports(t *testing.T, dir string) (string, string) {
	t.Helper()
	rosterPath := filepath.Join(dir, "grades.csv")
	require.NoError(t, os.WriteFile(rosterPath, []byte(rosterCSV), 0644))

	archivePath := filepath.Join(dir, "submissions.zip")
	f, err := os.Create(archivePath)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		"(12)TeamA(07)_991_assignsubmission_file/report.pdf": "team a",
		"(12)TeamA(07)_991_assignsubmission_file/notes.txt":  "scratch",
		"(13)TeamC(07)_993_assignsubmission_file/report.pdf": "team c",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	return rosterPath, archivePath
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	out, _, err := runKasm(t, t.TempDir())
	assert.NoError(t, err)
	assert.Contains(t, out, "Usage:")
	assert.Contains(t, out, "kasm")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	_, _, err := runKasm(t, t.TempDir(), "--unknown-flag", "value")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestWorkflow(t *testing.T) {
	dir := t.TempDir()
	rosterPath, archivePath := setupExports(t, dir)

	_, _, err := runKasm(t, dir, "init", "--group", "12", "--filter", `\.pdf$`)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "kasm.yml"))

	out, _, err := runKasm(t, dir, "unpack", "--sheet", "07", "--zip", archivePath, "--csv", rosterPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Unpacked sheet 07")
	assert.Contains(t, out, "2 roster rows, 1 groups, 2 files")

	unitDir := filepath.Join(dir, "unpack_07", "(12)TeamA(07)")
	out, _, err = runKasm(t, unitDir, "grade", "1,7")
	require.NoError(t, err)
	assert.Contains(t, out, "Graded (12)TeamA(07) with 1,7")
	assert.Contains(t, out, "previous grade: 1,0")

	out, _, err = runKasm(t, dir, "grades", "--sheet", "07", "--output", "jsonl")
	require.NoError(t, err)
	assert.Equal(t, `{"sheet_id":"07","target":"(12)TeamA(07)","internal_id":"991","grade":"1,7"}`+"\n", out)

	outDir := filepath.Join(dir, "upload")
	out, _, err = runKasm(t, dir, "repack", "--sheet", "07", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Packed 1 groups (groups->groups)")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.True(t, strings.HasPrefix(names[0], "feedback_07_"))
	assert.True(t, strings.HasPrefix(names[1], "grades_07_"))

	zr, err := zip.OpenReader(filepath.Join(outDir, names[0]))
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "(12)TeamA(07)_991_assignsubmission_file/report.pdf", zr.File[0].Name)
}

func TestUnpack_RefusesExistingDirectory(t *testing.T) {
	dir := t.TempDir()
	rosterPath, archivePath := setupExports(t, dir)
	_, _, err := runKasm(t, dir, "init", "--group", "12")
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "unpack_07"), 0755))

	_, errOut, err := runKasm(t, dir, "unpack", "--sheet", "07", "--zip", archivePath, "--csv", rosterPath)
	require.Error(t, err)
	assert.Equal(t, "working directory already exists", err.Error())
	assert.Contains(t, errOut, "unpack_07 is already unpacked")
}

func TestUnpack_RequiresFlags(t *testing.T) {
	_, _, err := runKasm(t, t.TempDir(), "unpack", "--sheet", "07")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestCommands_WithoutConfig(t *testing.T) {
	_, errOut, err := runKasm(t, t.TempDir(), "repack", "--sheet", "07")
	require.Error(t, err)
	assert.Equal(t, "no kasm.yml found", err.Error())
	assert.Contains(t, errOut, "kasm init --group")
}

func TestInit_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runKasm(t, dir, "init", "--group", "12")
	require.NoError(t, err)

	_, errOut, err := runKasm(t, dir, "init", "--group", "13")
	require.Error(t, err)
	assert.Contains(t, errOut, "project already initialized")

	_, _, err = runKasm(t, dir, "init", "--group", "13", "--force")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "kasm.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `group: "13"`)
}

func TestGrade_NoMatchingGroup(t *testing.T) {
	dir := t.TempDir()
	rosterPath, archivePath := setupExports(t, dir)
	_, _, err := runKasm(t, dir, "init", "--group", "12")
	require.NoError(t, err)
	_, _, err = runKasm(t, dir, "unpack", "--sheet", "07", "--zip", archivePath, "--csv", rosterPath)
	require.NoError(t, err)

	_, errOut, err := runKasm(t, filepath.Join(dir, "unpack_07"), "grade", "--target", "99", "1,0")
	require.Error(t, err)
	assert.Equal(t, "no matching group", err.Error())
	assert.Contains(t, errOut, "no matching group found for '99'")
}

func TestGrades_InvalidOutputFormat(t *testing.T) {
	_, errOut, err := runKasm(t, t.TempDir(), "grades", "--output", "csv")
	require.Error(t, err)
	assert.Equal(t, "invalid output format", err.Error())
	assert.Contains(t, errOut, "Valid formats")
}

func TestPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()
	rosterPath, archivePath := setupExports(t, dir)

	_, _, err := runKasm(t, dir, "init", "--group", "12", "--redis-url", "redis://"+mr.Addr()+"/0", "--namespace", "ws24")
	require.NoError(t, err)
	_, _, err = runKasm(t, dir, "unpack", "--sheet", "07", "--zip", archivePath, "--csv", rosterPath)
	require.NoError(t, err)

	out, _, err := runKasm(t, dir, "publish", "--sheet", "07")
	require.NoError(t, err)
	assert.Contains(t, out, "Published sheet 07 (1 entries)")

	client, err := handoff.NewClient(&redis.Options{Addr: mr.Addr()}, "ws24")
	require.NoError(t, err)
	defer client.Close()

	snap, err := client.Fetch(t.Context(), "07")
	require.NoError(t, err)
	assert.Equal(t, ledger.OriginRosterAndArchive, snap.Origin)
	assert.Equal(t, []ledger.Entry{{Target: "(12)TeamA(07)", InternalID: "991", Grade: "1,0"}}, snap.Grades)
	assert.Contains(t, out, snap.PublicationID)
}

func TestPublish_WithoutHandoff(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runKasm(t, dir, "init", "--group", "12")
	require.NoError(t, err)

	_, _, err = runKasm(t, dir, "publish", "--sheet", "07")
	require.Error(t, err)
	assert.Equal(t, "handoff not configured", err.Error())
}

func TestGrades_Filters(t *testing.T) {
	dir := t.TempDir()
	rosterPath, archivePath := setupExports(t, dir)
	_, _, err := runKasm(t, dir, "init", "--group", "12")
	require.NoError(t, err)
	_, _, err = runKasm(t, dir, "unpack", "--sheet", "07", "--zip", archivePath, "--csv", rosterPath)
	require.NoError(t, err)

	out, _, err := runKasm(t, dir, "grades", "--sheet", "07", "--match", "(12)*")
	require.NoError(t, err)
	assert.Contains(t, out, "(12)TeamA(07)")

	out, _, err = runKasm(t, dir, "grades", "--sheet", "07", "--ungraded")
	require.NoError(t, err)
	assert.Contains(t, out, "No grades recorded for sheet '07'")

	_, _, err = runKasm(t, dir, "grades", "--sheet", "07", "--match", "[")
	require.Error(t, err)
	assert.Equal(t, "invalid --match pattern", err.Error())
}

func TestWatch_RequiresHandoff(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runKasm(t, dir, "init", "--group", "12")
	require.NoError(t, err)

	_, _, err = runKasm(t, dir, "watch")
	require.Error(t, err)
	assert.Equal(t, "handoff not configured", err.Error())

	_, _, err = runKasm(t, dir, "watch", "--output", "yaml")
	require.Error(t, err)
	assert.Equal(t, "invalid output format", err.Error())
}
