// Package store persists call runs: each lead's dispatch outcome and,
// once the call completes, the state of its post-call processing. It
// backs the runs/reprocess operability commands.
package store

import (
	"context"

	"github.com/sells-group/dialer-cli/internal/model"
)

// RunFilter specifies criteria for listing call runs.
type RunFilter struct {
	Outcome       model.Outcome       `json:"outcome,omitempty"`
	ProcessStatus model.ProcessStatus `json:"process_status,omitempty"`
	Limit         int                 `json:"limit,omitempty"`
}

// Store defines the persistence interface for call runs.
type Store interface {
	// CreateCallRun records a new dispatch attempt for a lead.
	CreateCallRun(ctx context.Context, lead model.Lead, to string) (*model.CallRun, error)

	// SetOutcome records the terminal dispatch outcome for a run. The
	// call SID is set on successful placement and immutable thereafter.
	SetOutcome(ctx context.Context, runID string, outcome model.Outcome, callSID, errMsg string) error

	// SetProcessStatus updates post-call processing state for the run
	// identified by call SID.
	SetProcessStatus(ctx context.Context, callSID string, status model.ProcessStatus, errMsg string) error

	// GetByCallSID returns the run for a placed call.
	GetByCallSID(ctx context.Context, callSID string) (*model.CallRun, error)

	// ListRuns returns runs matching the filter, newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]model.CallRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned when no run matches the lookup key.
type ErrNotFound struct {
	Key string
}

func (e *ErrNotFound) Error() string {
	return "store: no call run for " + e.Key
}
