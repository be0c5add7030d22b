package state

import (
	"ringiflow/bizerror"

	"github.com/fundwit/go-commons/types"
)

const (
	StepStatePending   = "pending"
	StepStateActive    = "active"
	StepStateCompleted = "completed"
	StepStateSkipped   = "skipped"
)

type Decision string

const (
	DecisionApproved       Decision = "approved"
	DecisionRejected       Decision = "rejected"
	DecisionRequestChanges Decision = "request_changes"
)

// StepState is the state of one approver's slot within an instance.
type StepState interface {
	Name() string

	sealedStepState()
}

type StepPending struct{}

type StepActive struct {
	StartedAt types.Timestamp
}

type StepCompleted struct {
	Decision    Decision
	Comment     string
	StartedAt   types.Timestamp
	CompletedAt types.Timestamp
}

// StepSkipped is reserved for steps bypassed by an upstream decision.
// No transition currently produces it, but stored rows may carry it.
type StepSkipped struct{}

func (StepPending) Name() string   { return StepStatePending }
func (StepActive) Name() string    { return StepStateActive }
func (StepCompleted) Name() string { return StepStateCompleted }
func (StepSkipped) Name() string   { return StepStateSkipped }

func (StepPending) sealedStepState()   {}
func (StepActive) sealedStepState()    {}
func (StepCompleted) sealedStepState() {}
func (StepSkipped) sealedStepState()   {}

func Activate(s StepState, startedAt types.Timestamp) (StepState, error) {
	if _, ok := s.(StepPending); !ok {
		return nil, &bizerror.StateError{Subject: "step", Operation: "activate", Current: s.Name(), Expected: StepStatePending}
	}
	return StepActive{StartedAt: startedAt}, nil
}

func Decide(s StepState, decision Decision, comment string, completedAt types.Timestamp) (StepState, error) {
	active, ok := s.(StepActive)
	if !ok {
		return nil, &bizerror.StateError{Subject: "step", Operation: string(decision), Current: s.Name(), Expected: StepStateActive}
	}
	return StepCompleted{Decision: decision, Comment: comment, StartedAt: active.StartedAt, CompletedAt: completedAt}, nil
}

func ReconstructStepState(name string, decision Decision, comment string, startedAt, completedAt types.Timestamp) (StepState, error) {
	switch name {
	case StepStatePending:
		if !startedAt.IsZero() || !completedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "step", State: name, Reason: "timestamps must be empty"}
		}
		return StepPending{}, nil
	case StepStateActive:
		if startedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "step", State: name, Reason: "started_at is missing"}
		}
		return StepActive{StartedAt: startedAt}, nil
	case StepStateCompleted:
		if startedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "step", State: name, Reason: "started_at is missing"}
		}
		if completedAt.IsZero() {
			return nil, &bizerror.InvalidStateRecordError{Subject: "step", State: name, Reason: "completed_at is missing"}
		}
		if decision != DecisionApproved && decision != DecisionRejected && decision != DecisionRequestChanges {
			return nil, &bizerror.InvalidStateRecordError{Subject: "step", State: name, Reason: "decision '" + string(decision) + "' is invalid"}
		}
		return StepCompleted{Decision: decision, Comment: comment, StartedAt: startedAt, CompletedAt: completedAt}, nil
	case StepStateSkipped:
		return StepSkipped{}, nil
	default:
		return nil, &bizerror.InvalidStateRecordError{Subject: "step", State: name, Reason: "unknown state"}
	}
}
