package state

import (
	"ringiflow/bizerror"

	"github.com/fundwit/go-commons/types"
)

const (
	StateDraft            = "draft"
	StatePending          = "pending"
	StateInProgress       = "in_progress"
	StateApproved         = "approved"
	StateRejected         = "rejected"
	StateChangesRequested = "changes_requested"
	StateCancelled        = "cancelled"
)

// InstanceState is the state of one workflow instance. Each variant carries
// exactly the fields valid in that state, so a holder never has to guess
// which timestamps are meaningful.
type InstanceState interface {
	Name() string
	Terminal() bool

	sealedInstanceState()
}

type Draft struct{}

type Pending struct {
	SubmittedAt types.Timestamp
}

type InProgress struct {
	CurrentStepID types.ID
	SubmittedAt   types.Timestamp
}

type Approved struct {
	CurrentStepID types.ID
	SubmittedAt   types.Timestamp
	CompletedAt   types.Timestamp
}

type Rejected struct {
	CurrentStepID types.ID
	SubmittedAt   types.Timestamp
	CompletedAt   types.Timestamp
}

type ChangesRequested struct {
	CurrentStepID types.ID
	SubmittedAt   types.Timestamp
}

// Cancelled is reachable from every non-terminal state, so the fields
// inherited from its predecessor may be absent (zero).
type Cancelled struct {
	CurrentStepID types.ID
	SubmittedAt   types.Timestamp
	CompletedAt   types.Timestamp
}

func (Draft) Name() string            { return StateDraft }
func (Pending) Name() string          { return StatePending }
func (InProgress) Name() string       { return StateInProgress }
func (Approved) Name() string         { return StateApproved }
func (Rejected) Name() string         { return StateRejected }
func (ChangesRequested) Name() string { return StateChangesRequested }
func (Cancelled) Name() string        { return StateCancelled }

func (Draft) Terminal() bool            { return false }
func (Pending) Terminal() bool          { return false }
func (InProgress) Terminal() bool       { return false }
func (Approved) Terminal() bool         { return true }
func (Rejected) Terminal() bool         { return true }
func (ChangesRequested) Terminal() bool { return false }
func (Cancelled) Terminal() bool        { return true }

func (Draft) sealedInstanceState()            {}
func (Pending) sealedInstanceState()          {}
func (InProgress) sealedInstanceState()       {}
func (Approved) sealedInstanceState()         {}
func (Rejected) sealedInstanceState()         {}
func (ChangesRequested) sealedInstanceState() {}
func (Cancelled) sealedInstanceState()        {}

func Submit(s InstanceState, submittedAt types.Timestamp) (InstanceState, error) {
	if _, ok := s.(Draft); !ok {
		return nil, &bizerror.StateError{Subject: "instance", Operation: "submit", Current: s.Name(), Expected: StateDraft}
	}
	return Pending{SubmittedAt: submittedAt}, nil
}

func Resubmit(s InstanceState, submittedAt types.Timestamp) (InstanceState, error) {
	if _, ok := s.(ChangesRequested); !ok {
		return nil, &bizerror.StateError{Subject: "instance", Operation: "resubmit", Current: s.Name(), Expected: StateChangesRequested}
	}
	return Pending{SubmittedAt: submittedAt}, nil
}

func WithCurrentStep(s InstanceState, stepID types.ID) (InstanceState, error) {
	pending, ok := s.(Pending)
	if !ok {
		return nil, &bizerror.StateError{Subject: "instance", Operation: "with_current_step", Current: s.Name(), Expected: StatePending}
	}
	return InProgress{CurrentStepID: stepID, SubmittedAt: pending.SubmittedAt}, nil
}

// AdvanceToStep moves the active cursor to the next step of a running
// instance.
func AdvanceToStep(s InstanceState, stepID types.ID) (InstanceState, error) {
	running, ok := s.(InProgress)
	if !ok {
		return nil, &bizerror.StateError{Subject: "instance", Operation: "advance_to_step", Current: s.Name(), Expected: StateInProgress}
	}
	return InProgress{CurrentStepID: stepID, SubmittedAt: running.SubmittedAt}, nil
}

func CompleteWithApproval(s InstanceState, completedAt types.Timestamp) (InstanceState, error) {
	running, ok := s.(InProgress)
	if !ok {
		return nil, &bizerror.StateError{Subject: "instance", Operation: "complete_with_approval", Current: s.Name(), Expected: StateInProgress}
	}
	return Approved{CurrentStepID: running.CurrentStepID, SubmittedAt: running.SubmittedAt, CompletedAt: completedAt}, nil
}

func CompleteWithRejection(s InstanceState, completedAt types.Timestamp) (InstanceState, error) {
	running, ok := s.(InProgress)
	if !ok {
		return nil, &bizerror.StateError{Subject: "instance", Operation: "complete_with_rejection", Current: s.Name(), Expected: StateInProgress}
	}
	return Rejected{CurrentStepID: running.CurrentStepID, SubmittedAt: running.SubmittedAt, CompletedAt: completedAt}, nil
}

func CompleteWithRequestChanges(s InstanceState, completedAt types.Timestamp) (InstanceState, error) {
	running, ok := s.(InProgress)
	if !ok {
		return nil, &bizerror.StateError{Subject: "instance", Operation: "complete_with_request_changes", Current: s.Name(), Expected: StateInProgress}
	}
	return ChangesRequested{CurrentStepID: running.CurrentStepID, SubmittedAt: running.SubmittedAt}, nil
}

// Cancel carries forward whatever fields the predecessor state held.
func Cancel(s InstanceState, completedAt types.Timestamp) (InstanceState, error) {
	switch v := s.(type) {
	case Draft:
		return Cancelled{CompletedAt: completedAt}, nil
	case Pending:
		return Cancelled{SubmittedAt: v.SubmittedAt, CompletedAt: completedAt}, nil
	case InProgress:
		return Cancelled{CurrentStepID: v.CurrentStepID, SubmittedAt: v.SubmittedAt, CompletedAt: completedAt}, nil
	case ChangesRequested:
		return Cancelled{CurrentStepID: v.CurrentStepID, SubmittedAt: v.SubmittedAt, CompletedAt: completedAt}, nil
	default:
		return nil, &bizerror.StateError{Subject: "instance", Operation: "cancel", Current: s.Name(), Expected: "non-terminal"}
	}
}

// ReconstructInstanceState rebuilds the state from its stored columns.
// Columns are nullable at the storage level; their completeness per state is
// re-validated here instead of being assumed.
func ReconstructInstanceState(name string, currentStepID types.ID, submittedAt, completedAt types.Timestamp) (InstanceState, error) {
	switch name {
	case StateDraft:
		if !submittedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "submitted_at must be empty"}
		}
		return Draft{}, nil
	case StatePending:
		if submittedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "submitted_at is missing"}
		}
		return Pending{SubmittedAt: submittedAt}, nil
	case StateInProgress:
		if submittedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "submitted_at is missing"}
		}
		if currentStepID == 0 {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "current_step_id is missing"}
		}
		return InProgress{CurrentStepID: currentStepID, SubmittedAt: submittedAt}, nil
	case StateApproved, StateRejected:
		if submittedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "submitted_at is missing"}
		}
		if currentStepID == 0 {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "current_step_id is missing"}
		}
		if completedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "completed_at is missing"}
		}
		if name == StateApproved {
			return Approved{CurrentStepID: currentStepID, SubmittedAt: submittedAt, CompletedAt: completedAt}, nil
		}
		return Rejected{CurrentStepID: currentStepID, SubmittedAt: submittedAt, CompletedAt: completedAt}, nil
	case StateChangesRequested:
		if submittedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "submitted_at is missing"}
		}
		if currentStepID == 0 {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "current_step_id is missing"}
		}
		return ChangesRequested{CurrentStepID: currentStepID, SubmittedAt: submittedAt}, nil
	case StateCancelled:
		if completedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "completed_at is missing"}
		}
		return Cancelled{CurrentStepID: currentStepID, SubmittedAt: submittedAt, CompletedAt: completedAt}, nil
	default:
		return nil, &bizerror.InvalidStateRecordError{Subject: "instance", State: name, Reason: "unknown state"}
	}
}
