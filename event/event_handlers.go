package event

import (
	"github.com/sirupsen/logrus"
)

// EventHandler consumes one recorded event. A handler returns nil for
// events it does not support.
type EventHandler func(e *EventRecord) *EventHandleResult

type EventHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

var EventHandlers []EventHandler

var InvokeHandlersFunc = invokeHandlers

// invokeHandlers runs every registered handler against the record and
// collects the results of the handlers which accepted it. Handler failures
// are logged, never propagated.
func invokeHandlers(record *EventRecord) []EventHandleResult {
	results := []EventHandleResult{}
	for _, handle := range EventHandlers {
		r := handle(record)
		if r == nil {
			continue
		}
		results = append(results, *r)

		if r.Success {
			logrus.Infof("event %s of %s %d handled by %s",
				record.EventCategory, record.SourceType, record.SourceId, r.HandlerIdentifier)
		} else {
			logrus.Errorf("event %s of %s %d failed in %s, %s",
				record.EventCategory, record.SourceType, record.SourceId, r.HandlerIdentifier, r.Message)
		}
	}
	return results
}
