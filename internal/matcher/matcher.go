// Package matcher classifies free text (roster group labels, archive paths,
// working directory names) into unit ids using a single regular expression
// whose first capture group is the id.
package matcher

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// UnitID identifies one grading unit (a team or an individual submitter).
// Values come from Classifier.Classify or, for operator input, from Literal.
// Two ids are equal only if their raw text is equal; no normalisation is applied.
type UnitID struct {
	value string
}

// Literal wraps an operator-supplied value (configured group, explicit grading
// target) so it can be compared against classified ids.
func Literal(value string) UnitID {
	return UnitID{value: value}
}

// String returns the raw id text.
func (u UnitID) String() string {
	return u.value
}

// IsZero reports whether the id is empty.
func (u UnitID) IsZero() bool {
	return u.value == ""
}

// Classifier extracts unit ids from text using the first capture group of a
// compiled expression.
type Classifier struct {
	expr *regexp.Regexp
}

// New compiles expr into a Classifier.
// Returns an error if the expression is malformed or has no capture group.
func New(expr string) (*Classifier, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid classifier expression %q: %w", expr, err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("classifier expression %q has no capture group", expr)
	}
	return &Classifier{expr: re}, nil
}

// MustNew is like New but panics on error. Intended for tests and constants.
func MustNew(expr string) *Classifier {
	c, err := New(expr)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the source expression.
func (c *Classifier) String() string {
	return c.expr.String()
}

// Classify returns the text of the first capture group of the leftmost match.
// Returns false if the expression does not match or the group did not participate.
func (c *Classifier) Classify(text string) (UnitID, bool) {
	loc := c.expr.FindStringSubmatchIndex(text)
	if loc == nil || loc[2] < 0 {
		return UnitID{}, false
	}
	return UnitID{value: text[loc[2]:loc[3]]}, true
}

// Matches reports whether the expression matches anywhere in text.
func (c *Classifier) Matches(text string) bool {
	return c.expr.MatchString(text)
}

// Is reports whether text classifies to id.
func (c *Classifier) Is(text string, id UnitID) bool {
	got, ok := c.Classify(text)
	return ok && got == id
}

// Infer classifies the segments of path from the most specific (last) segment
// outward and returns the first successful classification.
func (c *Classifier) Infer(path string) (UnitID, bool) {
	segments := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] == "" {
			continue
		}
		if id, ok := c.Classify(segments[i]); ok {
			return id, true
		}
	}
	return UnitID{}, false
}

// AllowList is a boolean filter over leaf filenames.
// A nil or empty AllowList allows every name.
type AllowList struct {
	expr *regexp.Regexp
}

// NewAllowList compiles expr. An empty expression matches everything.
func NewAllowList(expr string) (*AllowList, error) {
	if expr == "" {
		return &AllowList{}, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid repack filter %q: %w", expr, err)
	}
	return &AllowList{expr: re}, nil
}

// Allows reports whether name passes the filter.
func (a *AllowList) Allows(name string) bool {
	if a == nil || a.expr == nil {
		return true
	}
	return a.expr.MatchString(name)
}
