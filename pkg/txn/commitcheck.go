package txn

import (
	"context"

	"github.com/cuemby/estore/pkg/estoreerr"
)

// CommitCheck is a named guard run against the pending change set
// immediately before a transaction commits. Returning a non-nil error
// aborts the commit.
type CommitCheck struct {
	Name string
	Func func(ctx context.Context, cs *ChangeSet) error
}

// CommitCheckRegistry holds the commit checks every Save runs.
type CommitCheckRegistry struct {
	checks []CommitCheck
}

// NewCommitCheckRegistry returns an empty registry.
func NewCommitCheckRegistry() *CommitCheckRegistry {
	return &CommitCheckRegistry{}
}

// Register adds check to the registry.
func (r *CommitCheckRegistry) Register(check CommitCheck) {
	r.checks = append(r.checks, check)
}

// ExecuteAll runs every registered check against cs. Under failFast, it
// returns *estoreerr.CommitCheckFailed at the first failure. Otherwise
// every check runs; a single failure is still reported as
// CommitCheckFailed, while two or more are reported together as
// *estoreerr.MultipleCommitCheckFailures.
func (r *CommitCheckRegistry) ExecuteAll(ctx context.Context, cs *ChangeSet, failFast bool) error {
	var failures []estoreerr.CommitCheckFailure
	for _, check := range r.checks {
		if err := check.Func(ctx, cs); err != nil {
			f := estoreerr.CommitCheckFailure{Name: check.Name, Reason: err.Error()}
			if failFast {
				return &estoreerr.CommitCheckFailed{Failure: f}
			}
			failures = append(failures, f)
		}
	}
	switch len(failures) {
	case 0:
		return nil
	case 1:
		return &estoreerr.CommitCheckFailed{Failure: failures[0]}
	default:
		return &estoreerr.MultipleCommitCheckFailures{Failures: failures}
	}
}
