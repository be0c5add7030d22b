package instance

import (
	"context"
	"errors"
	"ringiflow/bizerror"
	"ringiflow/domain/state"
	"ringiflow/event"
	"ringiflow/persistence"
	"ringiflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

var (
	ApproveStepFunc        = ApproveStep
	RejectStepFunc         = RejectStep
	RequestStepChangesFunc = RequestStepChanges
)

// terminationKind parameterizes the reject / request_changes flow, which
// differ only in the step decision, the instance transition and the audit
// event they record.
type terminationKind struct {
	action     string
	decision   state.Decision
	category   event.EventCategory
	transition func(state.InstanceState, types.Timestamp) (state.InstanceState, error)
}

var (
	rejection = terminationKind{action: "reject", decision: state.DecisionRejected,
		category: event.EventCategoryStepRejected, transition: state.CompleteWithRejection}
	changesRequest = terminationKind{action: "request_changes", decision: state.DecisionRequestChanges,
		category: event.EventCategoryStepChangesRequested, transition: state.CompleteWithRequestChanges}
)

// ApproveStep completes the addressed step with an approval. When a later
// pending step exists it becomes active and the instance stays running;
// when the approved step was the last one the instance is finalized.
func ApproveStep(ctx context.Context, stepID types.ID, req *DecisionRequest, sec *session.Context) (*WorkflowInstanceDetail, error) {
	var detail *WorkflowInstanceDetail
	var ev *event.EventRecord

	err1 := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		record, instanceRecord, steps, err := loadDecisionTargets(tx, stepID, req, sec)
		if err != nil {
			return err
		}

		now := types.CurrentTimestamp()
		if err := applyStepDecision(tx, record, state.DecisionApproved, req, now); err != nil {
			return err
		}

		instanceState, err := instanceRecord.State()
		if err != nil {
			return err
		}
		originState := instanceRecord.StateName

		next := nextPendingStep(steps, record.DisplayNumber)
		if next != nil {
			nextState, err := next.State()
			if err != nil {
				return err
			}
			activated, err := state.Activate(nextState, now)
			if err != nil {
				return err
			}
			next.ApplyState(activated)
			if err := saveStep(tx, next, next.Version); err != nil {
				return err
			}

			advanced, err := state.AdvanceToStep(instanceState, next.ID)
			if err != nil {
				return err
			}
			instanceRecord.ApplyState(advanced)
		} else {
			approved, err := state.CompleteWithApproval(instanceState, now)
			if err != nil {
				return err
			}
			instanceRecord.ApplyState(approved)
		}
		if err := saveInstance(tx, instanceRecord, instanceRecord.Version); err != nil {
			return err
		}

		ev, err = CreateStepDecidedEvent(instanceRecord, record, event.EventCategoryStepApproved,
			stateUpdatedProperty(originState, instanceRecord.StateName), &sec.Identity, now, tx)
		if err != nil {
			return err
		}

		detail = assembleDetail(instanceRecord, steps)
		return nil
	})
	if err1 != nil {
		return nil, err1
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return detail, nil
}

func RejectStep(ctx context.Context, stepID types.ID, req *DecisionRequest, sec *session.Context) (*WorkflowInstanceDetail, error) {
	return terminateStep(ctx, rejection, stepID, req, sec)
}

func RequestStepChanges(ctx context.Context, stepID types.ID, req *DecisionRequest, sec *session.Context) (*WorkflowInstanceDetail, error) {
	return terminateStep(ctx, changesRequest, stepID, req, sec)
}

// terminateStep finalizes the instance immediately; later pending steps are
// left untouched.
func terminateStep(ctx context.Context, kind terminationKind, stepID types.ID, req *DecisionRequest, sec *session.Context) (*WorkflowInstanceDetail, error) {
	var detail *WorkflowInstanceDetail
	var ev *event.EventRecord

	err1 := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		record, instanceRecord, steps, err := loadDecisionTargets(tx, stepID, req, sec)
		if err != nil {
			return err
		}

		now := types.CurrentTimestamp()
		if err := applyStepDecision(tx, record, kind.decision, req, now); err != nil {
			return err
		}

		instanceState, err := instanceRecord.State()
		if err != nil {
			return err
		}
		originState := instanceRecord.StateName

		finalized, err := kind.transition(instanceState, now)
		if err != nil {
			return err
		}
		instanceRecord.ApplyState(finalized)
		if err := saveInstance(tx, instanceRecord, instanceRecord.Version); err != nil {
			return err
		}

		ev, err = CreateStepDecidedEvent(instanceRecord, record, kind.category,
			stateUpdatedProperty(originState, instanceRecord.StateName), &sec.Identity, now, tx)
		if err != nil {
			return err
		}

		detail = assembleDetail(instanceRecord, steps)
		return nil
	})
	if err1 != nil {
		return nil, err1
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return detail, nil
}

// loadDecisionTargets reads the addressed step, its instance and all sibling
// steps, and applies the approver and version checks shared by every
// decision command. The returned step points into the returned slice.
func loadDecisionTargets(tx *gorm.DB, stepID types.ID, req *DecisionRequest, sec *session.Context) (*WorkflowStep, *WorkflowInstance, []WorkflowStep, error) {
	record := WorkflowStep{}
	if err := tx.Where(&WorkflowStep{ID: stepID}).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, bizerror.ErrNotFound
		}
		return nil, nil, nil, err
	}
	if record.ApproverID != sec.Identity.ID {
		return nil, nil, nil, bizerror.ErrForbidden
	}
	if req.Version != record.Version {
		return nil, nil, nil, bizerror.ErrConflict
	}

	instanceRecord, err := findInstance(tx, record.InstanceID)
	if err != nil {
		return nil, nil, nil, err
	}

	steps, err := loadSteps(tx, record.InstanceID)
	if err != nil {
		return nil, nil, nil, err
	}
	for idx := range steps {
		if steps[idx].ID == stepID {
			return &steps[idx], instanceRecord, steps, nil
		}
	}
	return nil, nil, nil, bizerror.ErrNotFound
}

func applyStepDecision(tx *gorm.DB, record *WorkflowStep, decision state.Decision, req *DecisionRequest, now types.Timestamp) error {
	current, err := record.State()
	if err != nil {
		return err
	}
	completed, err := state.Decide(current, decision, req.Comment, now)
	if err != nil {
		return err
	}
	record.ApplyState(completed)
	return saveStep(tx, record, req.Version)
}

func nextPendingStep(steps []WorkflowStep, after int) *WorkflowStep {
	for idx := range steps {
		if steps[idx].DisplayNumber > after && steps[idx].StateName == state.StepStatePending {
			return &steps[idx]
		}
	}
	return nil
}

func assembleDetail(instanceRecord *WorkflowInstance, steps []WorkflowStep) *WorkflowInstanceDetail {
	return &WorkflowInstanceDetail{WorkflowInstance: *instanceRecord, Steps: steps}
}
