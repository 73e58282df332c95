package events

import (
	"time"

	"github.com/ferrovia/tasktree/internal/task"
)

// Event is one task status transition. The topic is the target status,
// so a consumer can subscribe to, say, every failure.
type Event struct {
	TaskID string
	From   task.Status
	To     task.Status
	Error  string
	At     time.Time
}

// Topic returns the pub/sub topic the event publishes under.
func (e Event) Topic() string {
	return string(e.To)
}

// Transition builds a status-transition event stamped with the current
// time.
func Transition(taskID string, from, to task.Status, errMsg string) Event {
	return Event{
		TaskID: taskID,
		From:   from,
		To:     to,
		Error:  errMsg,
		At:     time.Now(),
	}
}
