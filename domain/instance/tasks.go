package instance

import (
	"context"
	"ringiflow/domain/state"
	"ringiflow/persistence"
	"ringiflow/session"

	"github.com/fundwit/go-commons/types"
)

var QueryMyTasksFunc = QueryMyTasks

// TaskItem is one active step assigned to the caller, joined with the
// owning instance.
type TaskItem struct {
	WorkflowStep

	Workflow WorkflowInstance `json:"workflow"`
}

// QueryMyTasks returns the caller's pending work: every active step whose
// approver is the caller, ordered by step id.
func QueryMyTasks(ctx context.Context, sec *session.Context) ([]TaskItem, error) {
	db := persistence.ActiveDataSourceManager.GormDB(ctx)

	steps := []WorkflowStep{}
	if err := db.Where(&WorkflowStep{ApproverID: sec.Identity.ID, StateName: state.StepStateActive}).
		Order("ID ASC").Find(&steps).Error; err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return []TaskItem{}, nil
	}

	instanceIDs := make([]types.ID, 0, len(steps))
	for idx := range steps {
		instanceIDs = append(instanceIDs, steps[idx].InstanceID)
	}
	instances := []WorkflowInstance{}
	if err := db.Where("id IN (?)", instanceIDs).Find(&instances).Error; err != nil {
		return nil, err
	}
	instanceByID := map[types.ID]WorkflowInstance{}
	for idx := range instances {
		instanceByID[instances[idx].ID] = instances[idx]
	}

	tasks := make([]TaskItem, 0, len(steps))
	for idx := range steps {
		tasks = append(tasks, TaskItem{WorkflowStep: steps[idx], Workflow: instanceByID[steps[idx].InstanceID]})
	}
	return tasks, nil
}
