package projection

type EventKind int

const (
	EventReset EventKind = iota
	EventInitialLoaded
	EventPrepended
	EventAppended
	EventHistoryFailed
	EventPendingChanged
	EventUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventReset:
		return "reset"
	case EventInitialLoaded:
		return "initial_loaded"
	case EventPrepended:
		return "prepended"
	case EventAppended:
		return "appended"
	case EventHistoryFailed:
		return "history_failed"
	case EventPendingChanged:
		return "pending_changed"
	case EventUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Event describes one committed change of a timeline.
// AnchorIndex is the absolute index of the oldest item after the change,
// Count the number of items the change inserted.
type Event struct {
	Kind        EventKind
	Scope       string
	Generation  uint64
	AnchorIndex int
	Count       int
	Err         error
}

// Sink receives timeline events in commit order.
// Consume must not mutate the timeline it is attached to.
type Sink interface {
	Consume(evt Event)
}

type SinkFunc func(evt Event)

func (f SinkFunc) Consume(evt Event) { f(evt) }
