// Package report renders a ledger for people and scripts: a console table,
// JSON, line-delimited JSON and an XLSX workbook.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dyluth/kasm/pkg/ledger"
)

// FormatTable writes the ledger entries as a table and returns the number of entries.
func FormatTable(w io.Writer, l *ledger.Ledger) int {
	if len(l.Grades) == 0 {
		fmt.Fprintf(w, "No grades recorded for sheet '%s'\n", l.SheetID)
		return 0
	}

	fmt.Fprintf(w, "Grades for sheet '%s' (%s):\n\n", l.SheetID, l.Origin)

	fmt.Fprintf(w, "%-32s %-10s %-8s %s\n", "TARGET", "ID", "GRADE", "MEMBERS")
	fmt.Fprintf(w, "%-32s %-10s %-8s %s\n",
		"--------------------------------", "----------", "--------", "------------------------------")

	for _, e := range l.Grades {
		fmt.Fprintf(w, "%-32s %-10s %-8s %s\n",
			formatTarget(e.Target),
			orDash(e.InternalID),
			orDash(e.Grade),
			formatMembers(e.Members),
		)
	}

	noun := "entry"
	if len(l.Grades) != 1 {
		noun = "entries"
	}
	fmt.Fprintf(w, "\n%d %s, %d graded\n", len(l.Grades), noun, countGraded(l))

	return len(l.Grades)
}

// FormatJSON writes the whole ledger as pretty-printed JSON.
func FormatJSON(w io.Writer, l *ledger.Ledger) error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger to JSON: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write JSON output: %w", err)
	}
	fmt.Fprintln(w)

	return nil
}

// jsonlRow is one ledger entry tagged with its sheet, so concatenated
// outputs of several sheets stay distinguishable.
type jsonlRow struct {
	SheetID string `json:"sheet_id"`
	ledger.Entry
}

// FormatJSONL writes one JSON object per ledger entry, one per line.
func FormatJSONL(w io.Writer, l *ledger.Ledger) error {
	for _, e := range l.Grades {
		data, err := json.Marshal(jsonlRow{SheetID: l.SheetID, Entry: e})
		if err != nil {
			return fmt.Errorf("failed to marshal entry to JSON: %w", err)
		}

		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}

	return nil
}

func countGraded(l *ledger.Ledger) int {
	n := 0
	for _, e := range l.Grades {
		if strings.TrimSpace(e.Grade) != "" {
			n++
		}
	}
	return n
}

// formatTarget truncates long group labels for display.
func formatTarget(target string) string {
	if len(target) > 32 {
		return target[:29] + "..."
	}
	return target
}

func formatMembers(members []string) string {
	if len(members) == 0 {
		return "-"
	}
	return strings.Join(members, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
