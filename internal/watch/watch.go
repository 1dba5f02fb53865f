// Package watch streams ledger snapshots as they are published to the handoff.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dyluth/kasm/pkg/handoff"
	"go.uber.org/zap"
)

// OutputFormat selects how snapshots are rendered.
type OutputFormat string

const (
	// OutputFormatDefault prints one human-readable line per snapshot
	OutputFormatDefault OutputFormat = "default"

	// OutputFormatJSON prints one JSON object per line
	OutputFormatJSON OutputFormat = "json"
)

// Source delivers published snapshots. *handoff.Subscription implements it.
type Source interface {
	Events() <-chan *handoff.Snapshot
	Errors() <-chan error
}

// Stream writes every snapshot from src to w until ctx is cancelled or the
// source closes. Snapshots of other sheets are dropped when sheetID is set.
// Malformed events are logged and skipped.
func Stream(ctx context.Context, src Source, sheetID string, format OutputFormat, w io.Writer, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	events, errs := src.Events(), src.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case s, ok := <-events:
			if !ok {
				return nil
			}
			if sheetID != "" && s.SheetID != sheetID {
				log.Debug("ignoring snapshot of other sheet", zap.String("sheet", s.SheetID))
				continue
			}
			if err := write(w, s, format); err != nil {
				return err
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Warn("skipping malformed ledger event", zap.Error(err))
		}
	}
}

func write(w io.Writer, s *handoff.Snapshot, format OutputFormat) error {
	switch format {
	case OutputFormatJSON:
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	default:
		at := time.UnixMilli(s.PublishedAtMs).Format("15:04:05")
		_, err := fmt.Fprintf(w, "[%s] sheet %s published (%d entries, %s) %s\n",
			at, s.SheetID, len(s.Grades), s.Origin, s.PublicationID)
		return err
	}
}
