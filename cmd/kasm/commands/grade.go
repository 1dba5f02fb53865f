package commands

import (
	"errors"
	"os"

	"github.com/dyluth/kasm/internal/grade"
	"github.com/dyluth/kasm/internal/printer"
	"github.com/dyluth/kasm/internal/workdir"
	"github.com/spf13/cobra"
)

var gradeTarget string

var gradeCmd = &cobra.Command{
	Use:   "grade [--target GROUP] GRADE",
	Short: "Record a grade in the ledger",
	Long: `Record GRADE for one group in the nearest grades.yml.

Without --target the group is taken from the current path, so running
'kasm grade "1,7"' inside a group's directory grades that group. The grade
is stored verbatim.`,
	Example: `  kasm grade --target 12 "1,7"
  cd "unpack_07/(12) Team A (07)" && kasm grade "2,0"`,
	Args: cobra.ExactArgs(1),
	RunE: runGrade,
}

func init() {
	gradeCmd.Flags().StringVarP(&gradeTarget, "target", "t", "", "Group id to grade (default: inferred from the current path)")
	rootCmd.AddCommand(gradeCmd)
}

func runGrade(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return failed("grading failed", err)
	}

	res, err := grade.Apply(grade.Options{
		WorkingPath: cwd,
		Target:      gradeTarget,
		Grade:       args[0],
		Classifier:  cfg.Classifier(),
		Logger:      logger,
	})
	switch {
	case errors.Is(err, grade.ErrCannotInfer):
		return printer.Error(
			"no group to grade",
			err.Error(),
			[]string{"Pass the group explicitly:\n  kasm grade --target <group> <grade>"},
		)
	case grade.IsNotFoundError(err):
		return printer.Error(
			"no matching group",
			err.Error(),
			[]string{"List the ledger with:\n  kasm grades"},
		)
	case errors.Is(err, workdir.ErrMissing):
		return printer.Error(
			"no ledger found",
			err.Error(),
			[]string{"Run kasm grade inside an unpacked sheet directory"},
		)
	case err != nil:
		return failed("grading failed", err)
	}

	printer.Success("Graded %s with %s", res.Entry.Target, res.Entry.Grade)
	if res.PreviousGrade != "" && res.PreviousGrade != res.Entry.Grade {
		printer.Info("  previous grade: %s", res.PreviousGrade)
	}
	return nil
}
