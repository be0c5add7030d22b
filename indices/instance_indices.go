package indices

import (
	"context"
	"fmt"
	"ringiflow/client/es"
	"ringiflow/domain/instance"
	"ringiflow/event"
	"ringiflow/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	InstanceIndexName = "workflow_instances"

	InstanceIndexEventHandlerName = "instanceIndexer"
	indexRobot                    = &session.Context{
		Identity: session.Identity{ID: 10, Name: "index-robot"},
	}

	IndexInstancesFunc = IndexInstances
)

type InstanceDocument struct {
	instance.WorkflowInstanceDetail
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func IndexInstances(ctx context.Context, details []instance.WorkflowInstanceDetail) error {
	docs := make([]InstanceDocument, 0, len(details))
	for _, detail := range details {
		docs = append(docs, InstanceDocument{WorkflowInstanceDetail: detail})
	}

	if err := saveInstanceDocuments(ctx, docs); err != nil {
		return err
	}
	return nil
}

func saveInstanceDocuments(ctx context.Context, docs []InstanceDocument) BatchActionError {
	errs := BatchActionError{}

	for _, doc := range docs {
		if err := es.IndexFunc(ctx, InstanceIndexName, doc.ID, doc); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index instance %d %s %s\n", doc.ID, doc.Title, err)
		} else {
			logrus.Infof("index instance %d %s successfully\n", doc.ID, doc.Title)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// IndexInstanceEventHandle keeps the instance index in step with lifecycle
// and decision events. Failures are reported, never propagated.
func IndexInstanceEventHandle(e *event.EventRecord) *event.EventHandleResult {
	ctx := context.Background()

	var instanceID types.ID
	switch e.SourceType {
	case "WORKFLOW_INSTANCE":
		instanceID = e.Event.SourceId
	case "WORKFLOW_STEP":
		id, err := instance.FindStepInstanceIDFunc(ctx, e.Event.SourceId)
		if err != nil {
			return &event.EventHandleResult{
				Message:           fmt.Sprintf("resolve instance of step %d, %v", e.Event.SourceId, err),
				HandlerIdentifier: InstanceIndexEventHandlerName,
			}
		}
		instanceID = id
	default:
		return nil
	}

	detail, err := instance.DetailInstanceFunc(ctx, instanceID, indexRobot)
	if err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("detail instance when index instance %d, %v", instanceID, err),
			HandlerIdentifier: InstanceIndexEventHandlerName,
		}
	}
	if err := IndexInstancesFunc(ctx, []instance.WorkflowInstanceDetail{*detail}); err != nil {
		return &event.EventHandleResult{
			Message:           fmt.Sprintf("index instance %d, %v", instanceID, err),
			HandlerIdentifier: InstanceIndexEventHandlerName,
		}
	}
	return &event.EventHandleResult{Success: true, HandlerIdentifier: InstanceIndexEventHandlerName}
}
