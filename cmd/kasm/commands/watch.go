package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/kasm/internal/printer"
	"github.com/dyluth/kasm/internal/watch"
	"github.com/dyluth/kasm/pkg/handoff"
	"github.com/spf13/cobra"
)

var (
	watchSheet        string
	watchOutputFormat string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow ledger publications on the handoff",
	Long: `Print every ledger snapshot published to the handoff namespace of kasm.yml
as it arrives. Stop with Ctrl-C.

Output Formats:
  default - One human-readable line per snapshot
  json    - Line-delimited JSON, the full snapshot per line`,
	Example: `  kasm watch
  kasm watch --sheet 07 --output=json > publications.jsonl`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSheet, "sheet", "", "Only show snapshots of this sheet")
	watchCmd.Flags().StringVarP(&watchOutputFormat, "output", "o", "default", "Output format (default or json)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	var outputFormat watch.OutputFormat
	switch watchOutputFormat {
	case "default":
		outputFormat = watch.OutputFormatDefault
	case "json":
		outputFormat = watch.OutputFormatJSON
	default:
		return printer.Error(
			"invalid output format",
			fmt.Sprintf("Unknown format: %s", watchOutputFormat),
			[]string{"Valid formats: default, json"},
		)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Handoff == nil {
		return printer.Error("handoff not configured", "kasm.yml has no 'handoff' section.", nil)
	}

	client, err := handoff.Dial(cfg.Handoff.RedisURL, cfg.Handoff.Namespace)
	if err != nil {
		return failed("invalid handoff configuration", err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sub, err := client.Subscribe(ctx)
	if err != nil {
		return printer.ErrorWithContext(
			"Redis not reachable",
			err.Error(),
			map[string]string{"Redis": cfg.Handoff.RedisURL},
			[]string{"Check handoff.redis_url in kasm.yml"},
		)
	}
	defer sub.Close()

	printer.Step("Watching namespace %s", cfg.Handoff.Namespace)
	return watch.Stream(ctx, sub, watchSheet, outputFormat, printer.Out(), logger)
}
