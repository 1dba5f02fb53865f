package commands

import (
	"context"
	"errors"
	"time"

	"github.com/dyluth/kasm/internal/printer"
	"github.com/dyluth/kasm/internal/workdir"
	"github.com/dyluth/kasm/pkg/handoff"
	"github.com/dyluth/kasm/pkg/ledger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	publishSheet   string
	publishTimeout time.Duration
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Hand the grade ledger of a sheet to the sync worker",
	Long: `Publish the grade ledger of a sheet to the Redis handoff configured under
'handoff' in kasm.yml. The sync worker picks it up from there and pushes the
grades to the platform. Publishing again replaces the previous snapshot.`,
	Example: `  kasm publish --sheet 07`,
	Args:    cobra.NoArgs,
	RunE:    runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishSheet, "sheet", "", "Sheet id (default: nearest ledger above the current directory)")
	publishCmd.Flags().DurationVar(&publishTimeout, "timeout", 10*time.Second, "Timeout for talking to Redis")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Handoff == nil {
		return printer.Error(
			"handoff not configured",
			"kasm.yml has no 'handoff' section.",
			[]string{"Add one:\n  handoff:\n    redis_url: redis://localhost:6379/0"},
		)
	}

	path, err := ledgerPath(publishSheet)
	if errors.Is(err, workdir.ErrMissing) {
		return printer.Error("no ledger found", err.Error(), []string{"Pass --sheet or run inside an unpacked sheet directory"})
	}
	if err != nil {
		return failed("failed to locate ledger", err)
	}

	l, err := ledger.Load(path)
	if err != nil {
		return failed("failed to read ledger", err)
	}

	client, err := handoff.Dial(cfg.Handoff.RedisURL, cfg.Handoff.Namespace)
	if err != nil {
		return failed("invalid handoff configuration", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		return printer.ErrorWithContext(
			"Redis not reachable",
			err.Error(),
			map[string]string{"Redis": cfg.Handoff.RedisURL},
			[]string{"Check handoff.redis_url in kasm.yml"},
		)
	}

	snap, err := client.Publish(ctx, l)
	if err != nil {
		return failed("publish failed", err)
	}

	logger.Info("published ledger",
		zap.String("sheet", snap.SheetID),
		zap.String("publication_id", snap.PublicationID),
		zap.String("namespace", cfg.Handoff.Namespace))
	printer.Success("Published sheet %s (%d entries)", snap.SheetID, len(snap.Grades))
	printer.Item("publication id", snap.PublicationID)
	return nil
}
