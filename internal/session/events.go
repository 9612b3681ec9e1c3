package session

// EventKind identifies one lifecycle event.
type EventKind string

const (
	EventStarted           EventKind = "started"
	EventStopped           EventKind = "stopped"
	EventProcessingStarted EventKind = "processingStarted"
	EventCompleted         EventKind = "completed"
	EventFailed            EventKind = "failed"
)

// Event is one lifecycle notification delivered on the controller's outbound
// channel. Reason is set for EventFailed only.
type Event struct {
	Kind      EventKind
	SessionID string
	Reason    string
}
