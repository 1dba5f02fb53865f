// Package roster reads and writes the tabular grading roster exported by the
// learning platform (one row per submitter).
package roster

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Recognised header names of the platform's grading export.
const (
	ColumnID                   = "ID"
	ColumnFullName             = "Vollständiger Name"
	ColumnUniID                = "Matrikelnummer"
	ColumnStatus               = "Status"
	ColumnGroup                = "Gruppe"
	ColumnGrade                = "Bewertung"
	ColumnBestGrade            = "Bestwertung"
	ColumnGradeLocked          = "Bewertung kann geändert werden"
	ColumnLastChangeSubmission = "Zuletzt geändert (Abgabe)"
	ColumnLastChangeGrade      = "Zuletzt geändert (Bewertung)"
	ColumnFeedbackComment      = "Feedback als Kommentar"
)

// Columns lists the recognised columns in export order.
var Columns = []string{
	ColumnID,
	ColumnFullName,
	ColumnUniID,
	ColumnStatus,
	ColumnGroup,
	ColumnGrade,
	ColumnBestGrade,
	ColumnGradeLocked,
	ColumnLastChangeSubmission,
	ColumnLastChangeGrade,
	ColumnFeedbackComment,
}

// ParticipantPrefix is prepended to every submitter ID in the export.
const ParticipantPrefix = "Teilnehmer/in"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Row is one submitter's roster record. Rows are values; use WithGrade to
// derive a regraded copy.
type Row struct {
	ID                   string
	FullName             string
	UniID                string
	Status               string
	Group                string
	Grade                string
	BestGrade            string
	GradeLocked          string
	LastChangeSubmission string
	LastChangeGrade      string
	FeedbackComment      string

	// Line is the line of the record in the source file.
	Line int

	// raw holds every column of the source record so unrecognised columns
	// survive a rewrite in their original position.
	raw []string
}

// WithGrade returns a copy of r with Grade replaced.
func (r Row) WithGrade(grade string) Row {
	r.Grade = grade
	return r
}

// ParticipantNumber returns the submitter ID without ParticipantPrefix.
func (r Row) ParticipantNumber() string {
	return strings.TrimPrefix(r.ID, ParticipantPrefix)
}

// SkippedRow records a roster line that could not be parsed.
type SkippedRow struct {
	Line   int
	Reason string
}

// Table is a parsed roster.
type Table struct {
	Header  []string
	Rows    []Row
	Skipped []SkippedRow
}

// ReadFile parses the roster at path.
func ReadFile(path string) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("could not find roster %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("roster %s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses a roster from r. The first record is the header.
// Records with the wrong number of fields, or any record when a recognised
// column is absent from the header, are reported in Table.Skipped.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = 0

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("roster is empty")
		}
		return nil, fmt.Errorf("failed to read roster header: %w", err)
	}
	header = append([]string(nil), header...)

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	var missing []string
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}

	table := &Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				table.Skipped = append(table.Skipped, SkippedRow{Line: parseErr.StartLine, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("failed to read roster: %w", err)
		}
		if len(missing) > 0 {
			line, _ := reader.FieldPos(0)
			table.Skipped = append(table.Skipped, SkippedRow{
				Line:   line,
				Reason: fmt.Sprintf("missing column %q", missing[0]),
			})
			continue
		}

		field := func(name string) string { return record[index[name]] }
		line, _ := reader.FieldPos(0)
		table.Rows = append(table.Rows, Row{
			Line:                 line,
			ID:                   field(ColumnID),
			FullName:             field(ColumnFullName),
			UniID:                field(ColumnUniID),
			Status:               field(ColumnStatus),
			Group:                field(ColumnGroup),
			Grade:                field(ColumnGrade),
			BestGrade:            field(ColumnBestGrade),
			GradeLocked:          field(ColumnGradeLocked),
			LastChangeSubmission: field(ColumnLastChangeSubmission),
			LastChangeGrade:      field(ColumnLastChangeGrade),
			FeedbackComment:      field(ColumnFeedbackComment),
			raw:                  append([]string(nil), record...),
		})
	}

	return table, nil
}

// InGroup returns the rows whose group label equals label exactly.
func (t *Table) InGroup(label string) []Row {
	var rows []Row
	for _, r := range t.Rows {
		if r.Group == label {
			rows = append(rows, r)
		}
	}
	return rows
}

// Record renders r as a record laid out according to header. Recognised
// columns are taken from the struct fields; all other positions keep the
// value the row was parsed with.
func (r Row) Record(header []string) []string {
	record := make([]string, len(header))
	copy(record, r.raw)
	for i, name := range header {
		switch name {
		case ColumnID:
			record[i] = r.ID
		case ColumnFullName:
			record[i] = r.FullName
		case ColumnUniID:
			record[i] = r.UniID
		case ColumnStatus:
			record[i] = r.Status
		case ColumnGroup:
			record[i] = r.Group
		case ColumnGrade:
			record[i] = r.Grade
		case ColumnBestGrade:
			record[i] = r.BestGrade
		case ColumnGradeLocked:
			record[i] = r.GradeLocked
		case ColumnLastChangeSubmission:
			record[i] = r.LastChangeSubmission
		case ColumnLastChangeGrade:
			record[i] = r.LastChangeGrade
		case ColumnFeedbackComment:
			record[i] = r.FeedbackComment
		}
	}
	return record
}
