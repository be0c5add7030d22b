package flow

import (
	"ringiflow/bizerror"

	"github.com/fundwit/go-commons/types"
)

type StepType string

const (
	StepTypeStart    StepType = "start"
	StepTypeApproval StepType = "approval"
	StepTypeEnd      StepType = "end"
)

const (
	DefinitionStatusDraft     = "draft"
	DefinitionStatusPublished = "published"
	DefinitionStatusArchived  = "archived"
)

type DefinitionCreation struct {
	Name string `json:"name" binding:"required"`

	StepTemplates []StepTemplateCreation `json:"stepTemplates" binding:"required,dive"`
}

type StepTemplateCreation struct {
	Name string   `json:"name" binding:"required"`
	Type StepType `json:"type" binding:"required"`
}

type WorkflowDefinition struct {
	ID   types.ID `json:"id" sql:"type:BIGINT UNSIGNED NOT NULL" gorm:"primary_key"`
	Name string   `json:"name"`

	Status string `json:"status"`

	CreatorID  types.ID        `json:"creatorId"`
	CreateTime types.Timestamp `json:"createTime" sql:"type:DATETIME(6) NOT NULL"`
}

func (d *WorkflowDefinition) TableName() string {
	return "workflow_definitions"
}

type StepTemplate struct {
	ID           types.ID `json:"id" sql:"type:BIGINT UNSIGNED NOT NULL" gorm:"primary_key"`
	DefinitionID types.ID `json:"definitionId" sql:"type:BIGINT UNSIGNED NOT NULL"`

	OrderNum int      `json:"orderNum"`
	Name     string   `json:"name"`
	Type     StepType `json:"type"`
}

func (t *StepTemplate) TableName() string {
	return "workflow_step_templates"
}

type WorkflowDefinitionDetail struct {
	WorkflowDefinition

	StepTemplates []StepTemplate `json:"stepTemplates"`
}

// ApprovalSteps returns the approval-typed templates in order. A definition
// whose run would complete without any approver is unusable.
func (d *WorkflowDefinitionDetail) ApprovalSteps() ([]StepTemplate, error) {
	approvals := []StepTemplate{}
	for _, t := range d.StepTemplates {
		if t.Type == StepTypeApproval {
			approvals = append(approvals, t)
		}
	}
	if len(approvals) == 0 {
		return nil, bizerror.ErrNoApprovalStep
	}
	return approvals, nil
}
