// Package grade edits one entry of a working directory's ledger.
package grade

import (
	"errors"
	"fmt"

	"github.com/dyluth/kasm/internal/matcher"
	"github.com/dyluth/kasm/internal/workdir"
	"github.com/dyluth/kasm/pkg/ledger"
	"go.uber.org/zap"
)

// ErrCannotInfer is returned when no target was given and none of the
// working path's segments classifies to a unit id.
var ErrCannotInfer = errors.New("no target given and none could be inferred from the current path")

// NotFoundError indicates that no ledger entry classifies to the target.
type NotFoundError struct {
	Target matcher.UnitID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no matching group found for '%s'", e.Target)
}

// IsNotFoundError checks if an error is a NotFoundError.
func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// Options configures one grading edit.
type Options struct {
	LedgerPath  string // Defaults to the nearest ledger above WorkingPath
	WorkingPath string // Used for ledger discovery and target inference
	Target      string // Explicit unit id; inferred from WorkingPath when empty
	Grade       string
	Classifier  *matcher.Classifier
	Logger      *zap.Logger
}

// Result describes the applied edit.
type Result struct {
	LedgerPath    string
	Target        matcher.UnitID
	Inferred      bool
	Entry         ledger.Entry // Entry after the edit
	PreviousGrade string
}

// Apply overwrites the grade of the first ledger entry whose target
// classifies to the resolved unit id and saves the ledger. The ledger file is
// left untouched if no entry matches.
func Apply(opts Options) (*Result, error) {
	if opts.Classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	target, inferred, err := resolveTarget(opts)
	if err != nil {
		return nil, err
	}
	if inferred {
		log.Info("inferred group from path", zap.Stringer("group", target), zap.String("path", opts.WorkingPath))
	}

	ledgerPath := opts.LedgerPath
	if ledgerPath == "" {
		ledgerPath, err = workdir.FindLedger(opts.WorkingPath)
		if err != nil {
			return nil, err
		}
	}

	l, err := ledger.Load(ledgerPath)
	if err != nil {
		return nil, err
	}

	log.Info("grading", zap.Stringer("group", target), zap.String("grade", opts.Grade))

	i := l.Find(func(entryTarget string) bool {
		return opts.Classifier.Is(entryTarget, target)
	})
	if i < 0 {
		return nil, &NotFoundError{Target: target}
	}

	previous := l.Grades[i].Grade
	l.SetGrade(i, opts.Grade)

	log.Info("writing ledger", zap.String("path", ledgerPath), zap.String("entry", l.Grades[i].Target))
	if err := ledger.Save(ledgerPath, l); err != nil {
		return nil, err
	}

	return &Result{
		LedgerPath:    ledgerPath,
		Target:        target,
		Inferred:      inferred,
		Entry:         l.Grades[i],
		PreviousGrade: previous,
	}, nil
}

func resolveTarget(opts Options) (matcher.UnitID, bool, error) {
	if opts.Target != "" {
		return matcher.Literal(opts.Target), false, nil
	}
	id, ok := opts.Classifier.Infer(opts.WorkingPath)
	if !ok {
		return matcher.UnitID{}, false, ErrCannotInfer
	}
	return id, true, nil
}
