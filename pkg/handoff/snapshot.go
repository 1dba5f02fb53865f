package handoff

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dyluth/kasm/pkg/ledger"
	"github.com/google/uuid"
)

// Snapshot is one published state of a sheet's ledger.
type Snapshot struct {
	PublicationID string         `json:"publication_id"`
	SheetID       string         `json:"sheet_id"`
	AssignID      string         `json:"assign_id,omitempty"`
	Origin        ledger.Origin  `json:"origin"`
	PublishedAtMs int64          `json:"published_at_ms"`
	Grades        []ledger.Entry `json:"grades"`
}

// NewSnapshot captures l with a fresh publication id.
func NewSnapshot(l *ledger.Ledger, now time.Time) *Snapshot {
	return &Snapshot{
		PublicationID: uuid.New().String(),
		SheetID:       l.SheetID,
		AssignID:      l.AssignID,
		Origin:        l.Origin,
		PublishedAtMs: now.UnixMilli(),
		Grades:        copyGrades(l.Grades),
	}
}

// Validate checks the snapshot before it is written.
func (s *Snapshot) Validate() error {
	if _, err := uuid.Parse(s.PublicationID); err != nil {
		return fmt.Errorf("publication_id must be a valid UUID: %w", err)
	}
	return s.Ledger("").Validate()
}

// Ledger rebuilds a ledger from the snapshot. location is where the caller
// intends to store it and may be empty.
func (s *Snapshot) Ledger(location string) *ledger.Ledger {
	return &ledger.Ledger{
		Location: location,
		SheetID:  s.SheetID,
		AssignID: s.AssignID,
		Origin:   s.Origin,
		Grades:   copyGrades(s.Grades),
	}
}

func copyGrades(grades []ledger.Entry) []ledger.Entry {
	out := make([]ledger.Entry, len(grades))
	for i, e := range grades {
		if e.Members != nil {
			e.Members = append([]string(nil), e.Members...)
		}
		out[i] = e
	}
	return out
}

// SnapshotToHash converts a snapshot to Redis hash fields.
// The grades list is stored JSON-encoded in a single field.
func SnapshotToHash(s *Snapshot) (map[string]interface{}, error) {
	gradesJSON, err := json.Marshal(s.Grades)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal grades: %w", err)
	}

	return map[string]interface{}{
		"publication_id":  s.PublicationID,
		"sheet_id":        s.SheetID,
		"assign_id":       s.AssignID,
		"origin":          string(s.Origin),
		"published_at_ms": s.PublishedAtMs,
		"grades":          string(gradesJSON),
	}, nil
}

// HashToSnapshot converts Redis hash fields back to a snapshot.
func HashToSnapshot(hash map[string]string) (*Snapshot, error) {
	publishedAt, err := strconv.ParseInt(hash["published_at_ms"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid published_at_ms field: %w", err)
	}

	var grades []ledger.Entry
	if raw := hash["grades"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &grades); err != nil {
			return nil, fmt.Errorf("failed to unmarshal grades: %w", err)
		}
	}
	if grades == nil {
		grades = []ledger.Entry{}
	}

	return &Snapshot{
		PublicationID: hash["publication_id"],
		SheetID:       hash["sheet_id"],
		AssignID:      hash["assign_id"],
		Origin:        ledger.Origin(hash["origin"]),
		PublishedAtMs: publishedAt,
		Grades:        grades,
	}, nil
}
