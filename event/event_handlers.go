package event

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// EventHandler returns nil if the event is not supported.
type EventHandler func(e *EventRecord) *EventHandleResult

type EventHandleResult struct {
	Success           bool
	Message           string
	HandlerIdentifier string
}

// EventHandlers are invoked in order after a change has been recorded. Handlers must not block:
// they run on the goroutine of the request that made the change.
var EventHandlers []EventHandler

var InvokeHandlersFunc = invokeHandlers

func invokeHandlers(record *EventRecord) []EventHandleResult {
	results := []EventHandleResult{}
	for i, handler := range EventHandlers {
		r := safeInvoke(i, handler, record)
		if r == nil {
			continue
		}
		results = append(results, *r)

		fields := logrus.Fields{"handler": r.HandlerIdentifier, "source": record.SourceType, "sourceId": record.SourceId}
		if r.Success {
			logrus.WithFields(fields).Debugf("%s event handled", record.EventCategory)
		} else {
			logrus.WithFields(fields).Errorf("failed to handle %s event: %s", record.EventCategory, r.Message)
		}
	}
	return results
}

// safeInvoke turns a panicking handler into a failed result, so one handler can not starve the others.
func safeInvoke(index int, handler EventHandler, record *EventRecord) (result *EventHandleResult) {
	defer func() {
		if err := recover(); err != nil {
			result = &EventHandleResult{Success: false, Message: fmt.Sprintf("%v", err), HandlerIdentifier: fmt.Sprintf("handler#%d", index)}
		}
	}()
	return handler(record)
}
