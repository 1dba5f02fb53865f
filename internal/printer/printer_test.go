package printer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	var out, errOut bytes.Buffer
	restore := SetOutput(&out, &errOut)
	t.Cleanup(func() {
		restore()
		color.NoColor = prev
	})
	return &out, &errOut
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		_, errOut := capture(t)
		err := Error("Working directory missing", "unpack_07 does not exist", nil)
		require.Error(t, err)
		assert.Equal(t, "Working directory missing", err.Error())
		assert.Contains(t, errOut.String(), "unpack_07 does not exist")
	})

	t.Run("single suggestion is printed verbatim", func(t *testing.T) {
		_, errOut := capture(t)
		_ = Error("Title", "Explanation", []string{"Run: kasm unpack --sheet 07"})
		assert.Contains(t, errOut.String(), "\nRun: kasm unpack --sheet 07\n")
		assert.NotContains(t, errOut.String(), "Either:")
	})

	t.Run("multiple suggestions are numbered", func(t *testing.T) {
		_, errOut := capture(t)
		_ = Error("Title", "Explanation", []string{"First option", "Second option"})
		assert.Contains(t, errOut.String(), "Either:\n  1. First option\n  2. Second option\n")
	})
}

func TestErrorWithContext(t *testing.T) {
	_, errOut := capture(t)
	err := ErrorWithContext("Title", "", map[string]string{
		"Sheet":  "07",
		"Ledger": "unpack_07/grades.yml",
	}, nil)
	require.Equal(t, "Title", err.Error())

	out := errOut.String()
	assert.Less(t, strings.Index(out, "Ledger:"), strings.Index(out, "Sheet:"))
}

func TestOutputHelpers(t *testing.T) {
	out, errOut := capture(t)

	Success("Graded %s", "(12)TeamA(07)")
	Step("Extracting %d files", 3)
	Info("plain %s", "line")
	Item("(12)TeamB(07)", "no internal id")
	Item("(12)TeamC(07)", "")
	Warning("recursive unzip is not implemented")

	assert.Equal(t,
		"✓ Graded (12)TeamA(07)\n→ Extracting 3 files\nplain line\n  • (12)TeamB(07) (no internal id)\n  • (12)TeamC(07)\n",
		out.String())
	assert.Contains(t, errOut.String(), "recursive unzip is not implemented")
	assert.Equal(t, out, Out())
}
