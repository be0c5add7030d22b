package instance

import (
	"ringiflow/event"
	"ringiflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/jinzhu/gorm"
)

func CreateInstanceLifecycleEvent(i *WorkflowInstance, category event.EventCategory, updates event.UpdatedProperties,
	identity *session.Identity, timestamp types.Timestamp, db *gorm.DB) (*event.EventRecord, error) {
	return event.CreateEvent("WORKFLOW_INSTANCE", i.ID, i.Title, category, updates, identity, timestamp, db)
}

func CreateStepDecidedEvent(i *WorkflowInstance, s *WorkflowStep, category event.EventCategory, updates event.UpdatedProperties,
	identity *session.Identity, timestamp types.Timestamp, db *gorm.DB) (*event.EventRecord, error) {
	return event.CreateEvent("WORKFLOW_STEP", s.ID, i.Title+" / "+s.Name, category, updates, identity, timestamp, db)
}

func stateUpdatedProperty(oldState, newState string) event.UpdatedProperties {
	return event.UpdatedProperties{{
		PropertyName: "StateName", PropertyDesc: "StateName",
		OldValue: oldState, OldValueDesc: oldState,
		NewValue: newState, NewValueDesc: newState,
	}}
}
