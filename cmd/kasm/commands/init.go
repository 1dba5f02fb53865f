package commands

import (
	"os"

	"github.com/dyluth/kasm/internal/config"
	"github.com/dyluth/kasm/internal/printer"
	"github.com/dyluth/kasm/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	initGroup           string
	initRegex           string
	initFilter          string
	initUnpackStructure string
	initRepackStructure string
	initRedisURL        string
	initNamespace       string
	forceInit           bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create kasm.yml in the current directory",
	Long: `Create the kasm.yml master configuration in the current directory.

The configuration names your exercise group and how group labels are
recognised in the platform's exports. Every other command looks for the
nearest kasm.yml above the directory it runs in.

Use --force to overwrite an existing kasm.yml.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().StringVar(&initGroup, "group", "", "Your exercise group id, e.g. 12 (required)")
	initCmd.Flags().StringVar(&initRegex, "regex", config.DefaultGroupsRegex, "Expression whose first capture group is the exercise group id")
	initCmd.Flags().StringVar(&initFilter, "filter", "", "Only repack files whose name matches this expression")
	initCmd.Flags().StringVar(&initUnpackStructure, "unpack-structure", string(config.StructureGroups), "Shape of the submissions: groups or individuals")
	initCmd.Flags().StringVar(&initRepackStructure, "repack-structure", string(config.StructureGroups), "Shape of the feedback upload: groups or individuals")
	initCmd.Flags().StringVar(&initRedisURL, "redis-url", "", "Redis URL for 'kasm publish' (optional)")
	initCmd.Flags().StringVar(&initNamespace, "namespace", "", "Handoff namespace for 'kasm publish' (default: default)")
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing kasm.yml")
	_ = initCmd.MarkFlagRequired("group")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg := &config.Config{
		GroupsRegex:     initRegex,
		Group:           initGroup,
		RepackFilter:    initFilter,
		UnpackStructure: config.Structure(initUnpackStructure),
		RepackStructure: config.Structure(initRepackStructure),
	}
	if initRedisURL != "" {
		cfg.Handoff = &config.HandoffConfig{RedisURL: initRedisURL, Namespace: initNamespace}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return failed("initialization failed", err)
	}

	path, err := scaffold.Initialize(cwd, cfg, forceInit)
	if err != nil {
		return printer.Error("initialization failed", err.Error(), nil)
	}

	printer.Success("Created %s", path)
	printer.Info("\nNext steps:")
	printer.Info("  1. Export the submissions archive and grading roster of a sheet")
	printer.Info("  2. Run 'kasm unpack --sheet <id> --zip <archive> --csv <roster>'")
	return nil
}
