// Package ledger defines the persisted grade ledger of one sheet.
//
// The ledger is the only artefact shared between the local pipeline (unpack,
// grade, repack) and the remote synchronisation worker, so its shape is kept
// in pkg/ and is deliberately free of matcher or roster types.
package ledger

import "fmt"

// FileName is the ledger's file name inside a working directory.
const FileName = "grades.yml"

// Origin records which workflow created a ledger.
type Origin string

const (
	// OriginRosterAndArchive marks a ledger built locally from a roster export and a submissions archive.
	OriginRosterAndArchive Origin = "roster_and_archive"

	// OriginRemoteFetch marks a ledger built by fetching per-group files from the platform API.
	OriginRemoteFetch Origin = "remote_fetch"
)

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return o == OriginRosterAndArchive || o == OriginRemoteFetch
}

// Ledger is the grade map of one sheet.
type Ledger struct {
	Location string  `yaml:"location" json:"location"`
	SheetID  string  `yaml:"sheet_id" json:"sheet_id"`
	AssignID string  `yaml:"assign_id,omitempty" json:"assign_id,omitempty"`
	Origin   Origin  `yaml:"origin" json:"origin"`
	Grades   []Entry `yaml:"grades" json:"grades"`
}

// Entry is one grading target and its current grade.
// Grade is free text (the platform uses a locale decimal comma) and is never validated.
type Entry struct {
	Target     string   `yaml:"target" json:"target"`
	InternalID string   `yaml:"internal_id,omitempty" json:"internal_id,omitempty"`
	Members    []string `yaml:"members,omitempty" json:"members,omitempty"`
	Grade      string   `yaml:"grade" json:"grade"`
}

// Validate checks the structural invariants of the ledger.
func (l *Ledger) Validate() error {
	if l.SheetID == "" {
		return fmt.Errorf("sheet_id is required")
	}
	if !l.Origin.Valid() {
		return fmt.Errorf("invalid origin: %q (must be %q or %q)", l.Origin, OriginRosterAndArchive, OriginRemoteFetch)
	}
	for i, e := range l.Grades {
		if e.Target == "" {
			return fmt.Errorf("grades[%d]: target is required", i)
		}
		if len(e.Members) > 0 && l.Origin != OriginRemoteFetch {
			return fmt.Errorf("grades[%d]: members are only allowed for origin %q", i, OriginRemoteFetch)
		}
	}
	return nil
}

// Find returns the index of the first entry whose target satisfies match, or -1.
// Later entries with the same target are never reached.
func (l *Ledger) Find(match func(target string) bool) int {
	for i := range l.Grades {
		if match(l.Grades[i].Target) {
			return i
		}
	}
	return -1
}

// ByTarget returns the first entry whose target equals label exactly.
func (l *Ledger) ByTarget(label string) (*Entry, bool) {
	i := l.Find(func(target string) bool { return target == label })
	if i < 0 {
		return nil, false
	}
	return &l.Grades[i], true
}

// SetGrade overwrites the grade of the entry at index i.
func (l *Ledger) SetGrade(i int, grade string) {
	l.Grades[i].Grade = grade
}
