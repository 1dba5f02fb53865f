package repack

import (
	"fmt"

	"github.com/dyluth/kasm/internal/config"
	"github.com/dyluth/kasm/pkg/ledger"
	"go.uber.org/zap"
)

// Strategy turns one unit directory into output folders. The set of
// strategies is closed: ResolveStrategy is the only constructor.
type Strategy interface {
	// Name identifies the strategy as "<input>-><output>".
	Name() string

	supports(origin ledger.Origin) error
	packUnit(p *packer, label, unitPath string) error
}

// UnsupportedError reports a shape or origin combination no strategy handles.
type UnsupportedError struct {
	Input  config.Structure
	Output config.Structure
	Origin ledger.Origin // empty when the shape pair alone is unsupported
}

func (e *UnsupportedError) Error() string {
	if e.Origin != "" {
		return fmt.Sprintf("repacking %s->%s is not supported for ledgers with origin %s", e.Input, e.Output, e.Origin)
	}
	return fmt.Sprintf("repacking %s->%s is not supported", e.Input, e.Output)
}

// ResolveStrategy selects the strategy for an (input, output) shape pair.
func ResolveStrategy(input, output config.Structure) (Strategy, error) {
	switch {
	case input == config.StructureGroups && output == config.StructureGroups:
		return groupsToGroups{}, nil
	case input == config.StructureGroups && output == config.StructureIndividuals:
		return groupsToIndividuals{}, nil
	default:
		return nil, &UnsupportedError{Input: input, Output: output}
	}
}

// groupsToGroups keeps one output folder per team, named with the platform's
// internal group id.
type groupsToGroups struct{}

func (groupsToGroups) Name() string { return "groups->groups" }

func (groupsToGroups) supports(ledger.Origin) error { return nil }

func (groupsToGroups) packUnit(p *packer, label, unitPath string) error {
	entry, ok := p.ledger.ByTarget(label)
	if !ok {
		p.skip(label, "no ledger entry")
		return nil
	}
	if entry.InternalID == "" {
		p.skip(label, "ledger entry has no internal id")
		return nil
	}

	folder := fmt.Sprintf("%s_%s_assignsubmission_file", label, entry.InternalID)
	files, err := p.copyFiles(unitPath, folder)
	if err != nil {
		return err
	}

	rows, err := p.writeRows(label, entry.Grade)
	if err != nil {
		return err
	}

	p.packed(PackedUnit{Label: label, Folders: []string{folder}, Files: files, Rows: rows, Grade: entry.Grade})
	return nil
}

// groupsToIndividuals explodes each team into one folder per member, every
// member receiving the team's grade.
type groupsToIndividuals struct{}

func (groupsToIndividuals) Name() string { return "groups->individuals" }

func (groupsToIndividuals) supports(origin ledger.Origin) error {
	if origin == ledger.OriginRemoteFetch {
		return &UnsupportedError{Input: config.StructureGroups, Output: config.StructureIndividuals, Origin: origin}
	}
	return nil
}

func (groupsToIndividuals) packUnit(p *packer, label, unitPath string) error {
	entry, ok := p.ledger.ByTarget(label)
	if !ok {
		p.skip(label, "no ledger entry")
		return nil
	}

	members := p.table.InGroup(label)
	if len(members) == 0 {
		p.skip(label, "no roster rows")
		return nil
	}

	unit := PackedUnit{Label: label, Grade: entry.Grade}
	for _, m := range members {
		folder := fmt.Sprintf("%s_%s_%s_assignsubmission_file_", label, m.FullName, m.ParticipantNumber())
		files, err := p.copyFiles(unitPath, folder)
		if err != nil {
			return err
		}
		if p.rosterOut != nil {
			if err := p.rosterOut.Write(m.WithGrade(entry.Grade)); err != nil {
				return fmt.Errorf("failed to write roster row: %w", err)
			}
		}
		p.log.Debug("packed submitter", zap.String("group", label), zap.String("folder", folder))
		unit.Folders = append(unit.Folders, folder)
		unit.Files += files
		unit.Rows++
	}

	p.packed(unit)
	return nil
}
