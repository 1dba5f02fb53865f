package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/kasm/internal/printer"
	"github.com/dyluth/kasm/internal/repack"
	"github.com/dyluth/kasm/internal/workdir"
	"github.com/spf13/cobra"
)

var (
	repackSheet  string
	repackOutDir string
)

var repackCmd = &cobra.Command{
	Use:   "repack",
	Short: "Pack feedback and grades for upload",
	Long: `Pack the graded working directory of a sheet into upload-ready files:
  • feedback_<sheet>_<time>.zip - one folder per group or per submitter
  • grades_<sheet>_<time>.csv   - the roster with the recorded grades

The output shape follows repack_structure in kasm.yml; repack_filter limits
which files are packed. Groups without a ledger entry are skipped and listed.`,
	Example: `  kasm repack --sheet 07
  kasm repack --sheet 07 --out uploads/`,
	Args: cobra.NoArgs,
	RunE: runRepack,
}

func init() {
	repackCmd.Flags().StringVar(&repackSheet, "sheet", "", "Sheet id (required)")
	repackCmd.Flags().StringVar(&repackOutDir, "out", ".", "Directory receiving the output files")
	_ = repackCmd.MarkFlagRequired("sheet")
	rootCmd.AddCommand(repackCmd)
}

func runRepack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := repack.Repack(repack.Options{
		WorkDir:    workdir.ForSheet(".", repackSheet),
		SheetID:    repackSheet,
		OutputDir:  repackOutDir,
		Classifier: cfg.Classifier(),
		AllowList:  cfg.AllowList(),
		Input:      cfg.UnpackStructure,
		Output:     cfg.RepackStructure,
		Logger:     logger,
	})

	var unsupported *repack.UnsupportedError
	switch {
	case errors.As(err, &unsupported):
		return printer.Error(
			"unsupported repack",
			err.Error(),
			[]string{"Change unpack_structure or repack_structure in kasm.yml"},
		)
	case errors.Is(err, workdir.ErrMissing):
		return printer.Error(
			"sheet not unpacked",
			err.Error(),
			[]string{fmt.Sprintf("Unpack it first:\n  kasm unpack --sheet %s --zip <archive> --csv <roster>", repackSheet)},
		)
	case err != nil:
		return failed("repack failed", err)
	}

	files, rows := 0, 0
	for _, u := range res.Packed {
		files += u.Files
		rows += u.Rows
	}

	printer.Success("Packed %d groups (%s)", len(res.Packed), res.Strategy)
	printer.Item(res.ArchivePath, fmt.Sprintf("%d files", files))
	if res.RosterPath != "" {
		printer.Item(res.RosterPath, fmt.Sprintf("%d rows", rows))
	} else {
		printer.Warning("No roster written for a remotely fetched ledger; use 'kasm publish --sheet %s'", repackSheet)
	}

	if len(res.Skipped) > 0 {
		printer.Warning("Skipped %d groups", len(res.Skipped))
		for _, s := range res.Skipped {
			printer.Item(s.Label, s.Reason)
		}
	}
	return nil
}
