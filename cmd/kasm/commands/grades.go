package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/kasm/internal/filter"
	"github.com/dyluth/kasm/internal/printer"
	"github.com/dyluth/kasm/internal/report"
	"github.com/dyluth/kasm/internal/workdir"
	"github.com/dyluth/kasm/pkg/ledger"
	"github.com/spf13/cobra"
)

var (
	gradesSheet        string
	gradesOutputFormat string
	gradesFile         string
	gradesMatch        string
	gradesUngraded     bool
)

var gradesCmd = &cobra.Command{
	Use:   "grades",
	Short: "Show the grade ledger of a sheet",
	Long: `Show the grade ledger of a sheet.

Without --sheet the nearest grades.yml above the current directory is used.

Output Formats:
  default - Human-readable table
  json    - The whole ledger as JSON
  jsonl   - One JSON object per entry, for piping to jq
  xlsx    - Excel workbook written to --file

Filters:
  --match    - Only targets matching a glob pattern, e.g. "(12)*"
  --ungraded - Only entries without a grade`,
	Example: `  kasm grades --sheet 07
  kasm grades --output=jsonl | jq 'select(.grade == "")'
  kasm grades --sheet 07 --output xlsx --file grades_07.xlsx`,
	Args: cobra.NoArgs,
	RunE: runGrades,
}

func init() {
	gradesCmd.Flags().StringVar(&gradesSheet, "sheet", "", "Sheet id (default: nearest ledger above the current directory)")
	gradesCmd.Flags().StringVarP(&gradesOutputFormat, "output", "o", "default", "Output format: default, json, jsonl or xlsx")
	gradesCmd.Flags().StringVar(&gradesFile, "file", "", "Workbook path for --output xlsx (default: grades_<sheet>.xlsx)")
	gradesCmd.Flags().StringVar(&gradesMatch, "match", "", "Only show targets matching this glob pattern")
	gradesCmd.Flags().BoolVar(&gradesUngraded, "ungraded", false, "Only show entries without a grade")
	rootCmd.AddCommand(gradesCmd)
}

func runGrades(cmd *cobra.Command, args []string) error {
	switch gradesOutputFormat {
	case "default", "json", "jsonl", "xlsx":
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", gradesOutputFormat),
			[]string{"Valid formats: default, json, jsonl, xlsx"},
		)
	}

	criteria := filter.Criteria{TargetGlob: gradesMatch, Ungraded: gradesUngraded}
	if err := criteria.Validate(); err != nil {
		return printer.Error("invalid --match pattern", err.Error(), nil)
	}

	path, err := ledgerPath(gradesSheet)
	if errors.Is(err, workdir.ErrMissing) {
		return printer.Error(
			"no ledger found",
			err.Error(),
			[]string{"Pass --sheet or run inside an unpacked sheet directory"},
		)
	}
	if err != nil {
		return failed("failed to locate ledger", err)
	}

	l, err := ledger.Load(path)
	if err != nil {
		return failed("failed to read ledger", err)
	}
	if criteria.HasFilters() {
		l = criteria.Apply(l)
	}

	out := printer.Out()
	switch gradesOutputFormat {
	case "json":
		err = report.FormatJSON(out, l)
	case "jsonl":
		err = report.FormatJSONL(out, l)
	case "xlsx":
		file := gradesFile
		if file == "" {
			file = fmt.Sprintf("grades_%s.xlsx", l.SheetID)
		}
		if err = report.SaveXLSX(file, l); err == nil {
			printer.Success("Wrote %d entries to %s", len(l.Grades), file)
		}
	default:
		report.FormatTable(out, l)
	}
	if err != nil {
		return failed("failed to write grades", err)
	}
	return nil
}

// ledgerPath resolves the ledger of sheet, or the nearest one when sheet is empty.
func ledgerPath(sheet string) (string, error) {
	if sheet != "" {
		dir := workdir.ForSheet(".", sheet)
		if err := dir.RequireLedger(); err != nil {
			return "", err
		}
		return dir.LedgerPath(), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return workdir.FindLedger(cwd)
}
