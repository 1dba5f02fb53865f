package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/dyluth/kasm/internal/config"
	"github.com/dyluth/kasm/internal/logging"
	"github.com/dyluth/kasm/internal/printer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	version string
	commit  string
	date    string

	configPath string
	verbose    bool
	logJSON    bool

	// logger is replaced in PersistentPreRunE before any command runs.
	logger = zap.NewNop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kasm",
	Short: "kasm - grading workflow for team submissions",
	Long: `kasm turns the submissions archive and grading roster exported by the
learning platform into a working directory per sheet, keeps a grade ledger
while you correct, and packs feedback and grades back into upload-ready files.

Typical workflow:
  kasm init --group 12
  kasm unpack --sheet 07 --zip submissions.zip --csv grades.csv
  kasm grade --target 12 "1,7"
  kasm repack --sheet 07`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logging.Options{Verbose: verbose, JSON: logJSON})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	// Prevent silent success when unknown flags are passed to root command
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to kasm.yml (default: nearest kasm.yml above the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")
}

// loadConfig reads the --config file or the nearest kasm.yml.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path, err = config.Find(cwd)
		if errors.Is(err, config.ErrNotFound) {
			return nil, printer.Error(
				"no kasm.yml found",
				fmt.Sprintf("No %s in the current directory or any parent.", config.FileName),
				[]string{"Create one with:\n  kasm init --group <your exercise group>"},
			)
		}
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid configuration",
			err.Error(),
			map[string]string{"Config": path},
			[]string{"Fix the file or regenerate it with 'kasm init --force'"},
		)
	}

	logger.Debug("loaded configuration", zap.String("path", path), zap.String("group", cfg.Group))
	if cfg.RecursiveUnzip {
		logger.Warn("recursive_unzip is set but nested archives are not extracted")
	}
	return cfg, nil
}

// failed reports an unexpected error through the printer so it is not
// swallowed by the silenced cobra error output.
func failed(title string, err error) error {
	return printer.Error(title, err.Error(), nil)
}
