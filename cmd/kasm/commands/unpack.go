package commands

import (
	"errors"
	"fmt"

	"github.com/dyluth/kasm/internal/printer"
	"github.com/dyluth/kasm/internal/unpack"
	"github.com/dyluth/kasm/internal/workdir"
	"github.com/spf13/cobra"
)

var (
	unpackSheet   string
	unpackArchive string
	unpackRoster  string
)

var unpackCmd = &cobra.Command{
	Use:   "unpack",
	Short: "Create the working directory of a sheet from the platform exports",
	Long: `Create unpack_<sheet>/ from the submissions archive and the grading roster.

Only roster rows and archive entries of your exercise group are kept. The
working directory receives:
  • original.csv  - the filtered roster
  • grades.yml    - the grade ledger, seeded with the best grades so far
  • <group>/      - the submitted files of every group

An existing working directory is never touched.`,
	Example: `  kasm unpack --sheet 07 --zip submissions.zip --csv grades.csv`,
	Args:    cobra.NoArgs,
	RunE:    runUnpack,
}

func init() {
	unpackCmd.Flags().StringVar(&unpackSheet, "sheet", "", "Sheet id (required)")
	unpackCmd.Flags().StringVar(&unpackArchive, "zip", "", "Submissions archive exported from the platform (required)")
	unpackCmd.Flags().StringVar(&unpackRoster, "csv", "", "Grading roster exported from the platform (required)")
	_ = unpackCmd.MarkFlagRequired("sheet")
	_ = unpackCmd.MarkFlagRequired("zip")
	_ = unpackCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(unpackCmd)
}

func runUnpack(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	res, err := unpack.Ingest(unpack.Options{
		ArchivePath: unpackArchive,
		RosterPath:  unpackRoster,
		SheetID:     unpackSheet,
		Unit:        cfg.Unit(),
		Classifier:  cfg.Classifier(),
		Structure:   cfg.UnpackStructure,
		Logger:      logger,
	})
	switch {
	case errors.Is(err, workdir.ErrExists):
		return printer.Error(
			"working directory already exists",
			fmt.Sprintf("%s is already unpacked.", workdir.Prefix+unpackSheet),
			[]string{"Continue grading in the existing directory", "Remove it and unpack again"},
		)
	case errors.Is(err, unpack.ErrNoMatchingRows):
		return printer.ErrorWithContext(
			"no submissions for your group",
			err.Error(),
			map[string]string{"Group": cfg.Group, "Expression": cfg.GroupsRegex},
			[]string{"Check 'group' and 'groups_regex' in kasm.yml"},
		)
	case err != nil:
		return failed("unpack failed", err)
	}

	printer.Success("Unpacked sheet %s into %s", unpackSheet, res.Dir.Path)
	printer.Info("  %d roster rows, %d groups, %d files", res.KeptRows, len(res.Units), len(res.Extracted))

	if len(res.SkippedRows) > 0 {
		printer.Warning("%d roster lines could not be read", len(res.SkippedRows))
		for _, s := range res.SkippedRows {
			printer.Item(fmt.Sprintf("line %d", s.Line), s.Reason)
		}
	}
	if len(res.SkippedEntries) > 0 {
		printer.Warning("%d archive entries were not extracted", len(res.SkippedEntries))
		for _, s := range res.SkippedEntries {
			printer.Item(s.Name, s.Reason)
		}
	}
	return nil
}
