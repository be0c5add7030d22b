package instance

import (
	"context"
	"errors"
	"fmt"
	"ringiflow/bizerror"
	"ringiflow/domain/flow"
	"ringiflow/domain/state"
	"ringiflow/event"
	"ringiflow/idgen"
	"ringiflow/persistence"
	"ringiflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
	"github.com/sony/sonyflake"
)

var (
	instanceIdWorker = sonyflake.NewSonyflake(sonyflake.Settings{})

	CreateInstanceFunc   = CreateInstance
	SubmitInstanceFunc   = SubmitInstance
	ResubmitInstanceFunc = ResubmitInstance
	CancelInstanceFunc   = CancelInstance
	DetailInstanceFunc   = DetailInstance
	QueryInstancesFunc   = QueryInstances

	FindStepInstanceIDFunc = FindStepInstanceID
)

// submissionKind parameterizes the shared submit/resubmit flow: the two
// differ only in the legal source state and the audit event they record.
type submissionKind struct {
	action     string
	category   event.EventCategory
	transition func(state.InstanceState, types.Timestamp) (state.InstanceState, error)
	clearSteps bool
}

var (
	submission   = submissionKind{action: "submit", category: event.EventCategoryInstanceSubmitted, transition: state.Submit}
	resubmission = submissionKind{action: "resubmit", category: event.EventCategoryInstanceResubmitted, transition: state.Resubmit, clearSteps: true}
)

func CreateInstance(ctx context.Context, c *InstanceCreation, sec *session.Context) (*WorkflowInstance, error) {
	definition, err := flow.DetailDefinitionFunc(ctx, c.DefinitionID)
	if err != nil {
		return nil, err
	}
	if definition.Status != flow.DefinitionStatusPublished {
		return nil, bizerror.ErrDefinitionNotPublished
	}
	if _, err := definition.ApprovalSteps(); err != nil {
		return nil, err
	}

	now := types.CurrentTimestamp()
	record := &WorkflowInstance{
		ID:           idgen.NextID(instanceIdWorker),
		DefinitionID: definition.ID,
		Title:        c.Title,
		Form:         c.Form,
		Version:      1,
		CreatorID:    sec.Identity.ID,
		CreatorName:  sec.Identity.Name,
		CreateTime:   now,
	}
	record.ApplyState(state.Draft{})

	var ev *event.EventRecord
	err1 := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		ev, err = CreateInstanceLifecycleEvent(record, event.EventCategoryInstanceCreated, nil, &sec.Identity, now, tx)
		return err
	})
	if err1 != nil {
		return nil, err1
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return record, nil
}

func SubmitInstance(ctx context.Context, id types.ID, req *SubmitRequest, sec *session.Context) (*WorkflowInstanceDetail, error) {
	return submitInstance(ctx, submission, id, req, sec)
}

func ResubmitInstance(ctx context.Context, id types.ID, req *SubmitRequest, sec *session.Context) (*WorkflowInstanceDetail, error) {
	return submitInstance(ctx, resubmission, id, req, sec)
}

func submitInstance(ctx context.Context, kind submissionKind, id types.ID, req *SubmitRequest, sec *session.Context) (*WorkflowInstanceDetail, error) {
	var detail *WorkflowInstanceDetail
	var ev *event.EventRecord

	err1 := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := findInstance(tx, id)
		if err != nil {
			return err
		}
		if record.CreatorID != sec.Identity.ID {
			return bizerror.ErrForbidden
		}
		if req.Version != record.Version {
			return bizerror.ErrConflict
		}
		originState := record.StateName

		current, err := record.State()
		if err != nil {
			return err
		}

		definition, err := flow.DetailDefinitionFunc(ctx, record.DefinitionID)
		if err != nil {
			return err
		}
		if definition.Status != flow.DefinitionStatusPublished {
			return bizerror.ErrDefinitionNotPublished
		}
		approvals, err := definition.ApprovalSteps()
		if err != nil {
			return err
		}
		if err := validateApprovers(approvals, req.Approvers); err != nil {
			return err
		}

		now := types.CurrentTimestamp()
		steps := buildSteps(record.ID, approvals, req.Approvers, now)

		pending, err := kind.transition(current, now)
		if err != nil {
			return err
		}
		running, err := state.WithCurrentStep(pending, steps[0].ID)
		if err != nil {
			return err
		}
		record.ApplyState(running)

		if err := saveInstance(tx, record, req.Version); err != nil {
			return err
		}
		if kind.clearSteps {
			if err := tx.Delete(&WorkflowStep{}, "instance_id = ?", record.ID).Error; err != nil {
				return err
			}
		}
		for idx := range steps {
			if err := tx.Create(&steps[idx]).Error; err != nil {
				return err
			}
		}

		ev, err = CreateInstanceLifecycleEvent(record, kind.category,
			stateUpdatedProperty(originState, record.StateName), &sec.Identity, now, tx)
		if err != nil {
			return err
		}

		detail = &WorkflowInstanceDetail{WorkflowInstance: *record, Steps: steps}
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

func CancelInstance(ctx context.Context, id types.ID, req *CancelRequest, sec *session.Context) (*WorkflowInstance, error) {
	var record *WorkflowInstance
	var ev *event.EventRecord

	err1 := persistence.ActiveDataSourceManager.GormDB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		record, err = findInstance(tx, id)
		if err != nil {
			return err
		}
		if record.CreatorID != sec.Identity.ID {
			return bizerror.ErrForbidden
		}
		if req.Version != record.Version {
			return bizerror.ErrConflict
		}
		originState := record.StateName

		current, err := record.State()
		if err != nil {
			return err
		}
		now := types.CurrentTimestamp()
		cancelled, err := state.Cancel(current, now)
		if err != nil {
			return err
		}
		record.ApplyState(cancelled)

		if err := saveInstance(tx, record, req.Version); err != nil {
			return err
		}

		ev, err = CreateInstanceLifecycleEvent(record, event.EventCategoryInstanceCancelled,
			stateUpdatedProperty(originState, record.StateName), &sec.Identity, now, tx)
		return err
	})
	if err1 != nil {
		return nil, err1
	}

	if event.InvokeHandlersFunc != nil {
		event.InvokeHandlersFunc(ev)
	}

	return record, nil
}

func DetailInstance(ctx context.Context, id types.ID, sec *session.Context) (*WorkflowInstanceDetail, error) {
	detail := WorkflowInstanceDetail{}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)

	if err := db.Where(&WorkflowInstance{ID: id}).First(&detail.WorkflowInstance).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	if _, err := detail.State(); err != nil {
		return nil, err
	}

	steps, err := loadSteps(db, id)
	if err != nil {
		return nil, err
	}
	detail.Steps = steps

	return &detail, nil
}

func QueryInstances(ctx context.Context, sec *session.Context) ([]WorkflowInstance, error) {
	records := []WorkflowInstance{}
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	if err := db.Where(&WorkflowInstance{CreatorID: sec.Identity.ID}).Order("ID ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// FindStepInstanceID resolves the owning instance of a step.
func FindStepInstanceID(ctx context.Context, stepID types.ID) (types.ID, error) {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)
	step := WorkflowStep{}
	if err := db.Where(&WorkflowStep{ID: stepID}).First(&step).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, bizerror.ErrNotFound
		}
		return 0, err
	}
	return step.InstanceID, nil
}

func findInstance(db *gorm.DB, id types.ID) (*WorkflowInstance, error) {
	record := WorkflowInstance{}
	if err := db.Where(&WorkflowInstance{ID: id}).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, bizerror.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

func loadSteps(db *gorm.DB, instanceID types.ID) ([]WorkflowStep, error) {
	steps := []WorkflowStep{}
	if err := db.Where(WorkflowStep{InstanceID: instanceID}).Order("display_number ASC").Find(&steps).Error; err != nil {
		return nil, err
	}
	for idx := range steps {
		if _, err := steps[idx].State(); err != nil {
			return nil, err
		}
	}
	return steps, nil
}

// validateApprovers requires exactly one assignment per approval template,
// in template order.
func validateApprovers(approvals []flow.StepTemplate, assignments []ApproverAssignment) error {
	if len(assignments) != len(approvals) {
		return &bizerror.ErrBadParam{Cause: fmt.Errorf(
			"expected %d approvers, got %d", len(approvals), len(assignments))}
	}
	for idx, template := range approvals {
		if assignments[idx].TemplateID != template.ID {
			return &bizerror.ErrBadParam{Cause: fmt.Errorf(
				"approver at position %d is bound to template %d, expected %d", idx+1, assignments[idx].TemplateID, template.ID)}
		}
	}
	return nil
}

// buildSteps constructs the ordered step list for one run: the first step
// active, the remainder pending.
func buildSteps(instanceID types.ID, approvals []flow.StepTemplate, assignments []ApproverAssignment, now types.Timestamp) []WorkflowStep {
	steps := make([]WorkflowStep, 0, len(approvals))
	for idx, template := range approvals {
		step := WorkflowStep{
			ID:            idgen.NextID(instanceIdWorker),
			InstanceID:    instanceID,
			DisplayNumber: idx + 1,
			Name:          template.Name,
			ApproverID:    assignments[idx].ApproverID,
			ApproverName:  assignments[idx].ApproverName,
			Version:       1,
		}
		if idx == 0 {
			step.ApplyState(state.StepActive{StartedAt: now})
		} else {
			step.ApplyState(state.StepPending{})
		}
		steps = append(steps, step)
	}
	return steps
}

// saveInstance applies a conditional update on the previously read version.
// Zero rows affected means a concurrent writer won; the caller sees Conflict
// and the transaction rolls back.
func saveInstance(tx *gorm.DB, record *WorkflowInstance, expectedVersion int) error {
	record.Version = expectedVersion + 1
	db := tx.Model(&WorkflowInstance{}).Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]interface{}{
			"state_name":      record.StateName,
			"current_step_id": record.CurrentStepID,
			"submitted_at":    record.SubmittedAt,
			"completed_at":    record.CompletedAt,
			"version":         record.Version,
		})
	if err := db.Error; err != nil {
		return err
	}
	if db.RowsAffected != 1 {
		return bizerror.ErrConflict
	}
	return nil
}

func saveStep(tx *gorm.DB, record *WorkflowStep, expectedVersion int) error {
	record.Version = expectedVersion + 1
	db := tx.Model(&WorkflowStep{}).Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]interface{}{
			"state_name":   record.StateName,
			"decision":     record.Decision,
			"comment":      record.Comment,
			"started_at":   record.StartedAt,
			"completed_at": record.CompletedAt,
			"version":      record.Version,
		})
	if err := db.Error; err != nil {
		return err
	}
	if db.RowsAffected != 1 {
		return bizerror.ErrConflict
	}
	return nil
}
