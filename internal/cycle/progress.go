package cycle

import "time"

// Stage names one phase of an update cycle.
type Stage string

const (
	StageClean   Stage = "clean"
	StageAcquire Stage = "acquire"
	StageFilter  Stage = "filter"
	StagePublish Stage = "publish"
)

// Event is a progress notification emitted while a cycle runs. Current and
// Total are item counts within the stage; stages without per-item granularity
// emit only start and completion events.
type Event struct {
	Stage     Stage  `json:"stage"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// Notifier receives progress events. Implementations must not block: the
// runner calls Notify inline between fetches.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

func newEvent(stage Stage, current, total int, message string) Event {
	return Event{
		Stage:     stage,
		Current:   current,
		Total:     total,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
