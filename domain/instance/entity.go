package instance

import (
	"ringiflow/domain/state"

	"github.com/fundwit/go-commons/types"
)

// WorkflowInstance is the stored shape of one submission. State-dependent
// columns are nullable at the storage level; State()/ApplyState convert
// between them and the typed state, re-validating completeness on the way
// out of storage.
type WorkflowInstance struct {
	ID           types.ID `json:"id" sql:"type:BIGINT UNSIGNED NOT NULL" gorm:"primary_key"`
	DefinitionID types.ID `json:"definitionId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	Title string `json:"title"`
	Form  string `json:"form" sql:"type:TEXT"`

	StateName     string          `json:"stateName"`
	CurrentStepID types.ID        `json:"currentStepId" sql:"type:BIGINT UNSIGNED"`
	SubmittedAt   types.Timestamp `json:"submittedAt" sql:"type:DATETIME(6)"`
	CompletedAt   types.Timestamp `json:"completedAt" sql:"type:DATETIME(6)"`

	Version int `json:"version"`

	CreatorID   types.ID        `json:"creatorId"`
	CreatorName string          `json:"creatorName"`
	CreateTime  types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (r *WorkflowInstance) TableName() string {
	return "workflow_instances"
}

func (r *WorkflowInstance) State() (state.InstanceState, error) {
	return state.ReconstructInstanceState(r.StateName, r.CurrentStepID, r.SubmittedAt, r.CompletedAt)
}

func (r *WorkflowInstance) ApplyState(s state.InstanceState) {
	r.StateName = s.Name()
	switch v := s.(type) {
	case state.Draft:
		r.CurrentStepID, r.SubmittedAt, r.CompletedAt = 0, types.Timestamp{}, types.Timestamp{}
	case state.Pending:
		r.CurrentStepID, r.SubmittedAt, r.CompletedAt = 0, v.SubmittedAt, types.Timestamp{}
	case state.InProgress:
		r.CurrentStepID, r.SubmittedAt, r.CompletedAt = v.CurrentStepID, v.SubmittedAt, types.Timestamp{}
	case state.Approved:
		r.CurrentStepID, r.SubmittedAt, r.CompletedAt = v.CurrentStepID, v.SubmittedAt, v.CompletedAt
	case state.Rejected:
		r.CurrentStepID, r.SubmittedAt, r.CompletedAt = v.CurrentStepID, v.SubmittedAt, v.CompletedAt
	case state.ChangesRequested:
		r.CurrentStepID, r.SubmittedAt, r.CompletedAt = v.CurrentStepID, v.SubmittedAt, types.Timestamp{}
	case state.Cancelled:
		r.CurrentStepID, r.SubmittedAt, r.CompletedAt = v.CurrentStepID, v.SubmittedAt, v.CompletedAt
	}
}

// WorkflowStep is one approver's slot within an instance, totally ordered
// by DisplayNumber.
type WorkflowStep struct {
	ID         types.ID `json:"id" sql:"type:BIGINT UNSIGNED NOT NULL" gorm:"primary_key"`
	InstanceID types.ID `json:"instanceId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	DisplayNumber int    `json:"displayNumber"`
	Name          string `json:"name"`

	ApproverID   types.ID `json:"approverId" sql:"type:BIGINT UNSIGNED NOT NULL"`
	ApproverName string   `json:"approverName"`

	StateName   string          `json:"stateName"`
	Decision    state.Decision  `json:"decision"`
	Comment     string          `json:"comment" sql:"type:TEXT"`
	StartedAt   types.Timestamp `json:"startedAt" sql:"type:DATETIME(6)"`
	CompletedAt types.Timestamp `json:"completedAt" sql:"type:DATETIME(6)"`

	Version int `json:"version"`
}

func (r *WorkflowStep) TableName() string {
	return "workflow_steps"
}

func (r *WorkflowStep) State() (state.StepState, error) {
	return state.ReconstructStepState(r.StateName, r.Decision, r.Comment, r.StartedAt, r.CompletedAt)
}

func (r *WorkflowStep) ApplyState(s state.StepState) {
	r.StateName = s.Name()
	switch v := s.(type) {
	case state.StepPending:
		r.Decision, r.Comment, r.StartedAt, r.CompletedAt = "", "", types.Timestamp{}, types.Timestamp{}
	case state.StepActive:
		r.Decision, r.Comment, r.StartedAt, r.CompletedAt = "", "", v.StartedAt, types.Timestamp{}
	case state.StepCompleted:
		r.Decision, r.Comment, r.StartedAt, r.CompletedAt = v.Decision, v.Comment, v.StartedAt, v.CompletedAt
	case state.StepSkipped:
		r.Decision, r.Comment, r.StartedAt, r.CompletedAt = "", "", types.Timestamp{}, types.Timestamp{}
	}
}

type WorkflowInstanceDetail struct {
	WorkflowInstance

	Steps []WorkflowStep `json:"steps"`
}

type InstanceCreation struct {
	DefinitionID types.ID `json:"definitionId" binding:"required"`
	Title        string   `json:"title" binding:"required"`
	Form         string   `json:"form"`
}

type ApproverAssignment struct {
	TemplateID   types.ID `json:"templateId" binding:"required"`
	ApproverID   types.ID `json:"approverId" binding:"required"`
	ApproverName string   `json:"approverName"`
}

type SubmitRequest struct {
	Approvers []ApproverAssignment `json:"approvers" binding:"required,dive"`

	// version of the instance observed by the caller
	Version int `json:"version" binding:"required"`
}

type DecisionRequest struct {
	Comment string `json:"comment"`

	// version of the step observed by the caller
	Version int `json:"version" binding:"required"`
}

type CancelRequest struct {
	Version int `json:"version" binding:"required"`
}
