package watcher

import "time"

// Operation represents the type of file system operation.
type Operation int

const (
	OpModify Operation = iota
	OpDelete
)

// String returns the string representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is a debounced change delivered to the handler.
type Event struct {
	Path      string
	Operation Operation
	Time      time.Time
}

// Config holds file watcher configuration.
type Config struct {
	Enabled    bool
	Debounce   time.Duration
	MaxWatches int
}

// FileChangeHandler is a callback for file change events. Paths are absolute.
type FileChangeHandler func(path string, op Operation)

// Stats holds watcher statistics.
type Stats struct {
	Running      bool
	WatchedPaths int
	Events       int64
	Recent       []Event
}

// eventBuffer is a circular buffer for recent events.
type eventBuffer struct {
	events []Event
	head   int
	count  int
}

func newEventBuffer(capacity int) *eventBuffer {
	if capacity < 1 {
		capacity = 20
	}
	return &eventBuffer{events: make([]Event, capacity)}
}

func (b *eventBuffer) add(event Event) {
	b.events[b.head] = event
	b.head = (b.head + 1) % len(b.events)
	if b.count < len(b.events) {
		b.count++
	}
}

// recent returns up to n events, oldest first.
func (b *eventBuffer) recent(n int) []Event {
	if n > b.count {
		n = b.count
	}
	if n <= 0 {
		return nil
	}
	size := len(b.events)
	result := make([]Event, n)
	for i := 0; i < n; i++ {
		result[i] = b.events[(b.head-n+i+size)%size]
	}
	return result
}
