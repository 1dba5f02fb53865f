package filter

import (
	"path/filepath"
	"strings"

	"github.com/dyluth/kasm/pkg/ledger"
)

// Criteria defines filtering criteria for ledger entries.
// All filters are ANDed together - an entry must match ALL criteria to pass.
type Criteria struct {
	TargetGlob string // Glob pattern for the entry target, empty = no filter
	Ungraded   bool   // Only entries whose grade is blank
}

// Validate reports a malformed glob pattern.
func (c *Criteria) Validate() error {
	if c.TargetGlob == "" {
		return nil
	}
	_, err := filepath.Match(c.TargetGlob, "")
	return err
}

// Matches returns true if the entry matches all filter criteria.
func (c *Criteria) Matches(e ledger.Entry) bool {
	if c.TargetGlob != "" {
		matched, err := filepath.Match(c.TargetGlob, e.Target)
		if err != nil || !matched {
			return false
		}
	}

	if c.Ungraded && strings.TrimSpace(e.Grade) != "" {
		return false
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.TargetGlob != "" || c.Ungraded
}

// Apply returns a copy of l holding only the matching entries.
func (c *Criteria) Apply(l *ledger.Ledger) *ledger.Ledger {
	out := *l
	out.Grades = nil
	for _, e := range l.Grades {
		if c.Matches(e) {
			out.Grades = append(out.Grades, e)
		}
	}
	return &out
}
