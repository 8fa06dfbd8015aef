package provisioning

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

// Observer receives progress output from pipeline phases.
type Observer interface {
	// Printf logs a formatted progress message.
	Printf(format string, v ...interface{})

	// Event emits a structured event.
	Event(event Event)
}

// Event is one structured pipeline occurrence.
type Event struct {
	Type      EventType
	Phase     string // emitting phase, e.g. "images" or "stack"
	Message   string
	Resource  string
	Timestamp time.Time
	Fields    map[string]string
}

// EventType classifies pipeline events.
type EventType string

const (
	EventResourceCreating EventType = "resource.creating"
	EventResourceCreated  EventType = "resource.created"
	EventResourceExists   EventType = "resource.exists"
	EventResourceDeleting EventType = "resource.deleting"
	EventResourceDeleted  EventType = "resource.deleted"
	// EventSoftFailure reports a condition that does not abort the run.
	EventSoftFailure EventType = "soft.failure"
	EventProgress    EventType = "progress"
)

// ConsoleObserver writes events through the standard log package.
type ConsoleObserver struct{}

// NewConsoleObserver creates a new console-based observer.
func NewConsoleObserver() *ConsoleObserver {
	return &ConsoleObserver{}
}

// Printf implements Observer.
func (o *ConsoleObserver) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}

// Event implements Observer. Fields are rendered in key order so output
// is stable across runs.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var b strings.Builder
	b.WriteString(string(event.Type))
	if event.Phase != "" {
		fmt.Fprintf(&b, " [%s]", event.Phase)
	}
	if event.Resource != "" {
		fmt.Fprintf(&b, " resource=%s", event.Resource)
	}
	b.WriteString(" ")
	b.WriteString(event.Message)
	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for k := range event.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = k + "=" + event.Fields[k]
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(pairs, ", "))
	}

	log.Print(b.String())
}

// LogResourceCreated logs a successful resource creation event.
func LogResourceCreated(observer Observer, phase, resourceType, resourceName, resourceID string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Phase:    phase,
		Resource: resourceName,
		Message:  resourceType + " created",
		Fields:   map[string]string{"type": resourceType, "id": resourceID},
	})
}

// LogResourceExists logs when a resource already existed and was reused.
func LogResourceExists(observer Observer, phase, resourceType, resourceName, resourceID string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Phase:    phase,
		Resource: resourceName,
		Message:  resourceType + " already exists",
		Fields:   map[string]string{"type": resourceType, "id": resourceID},
	})
}

// LogResourceDeleted logs a successful resource deletion event.
func LogResourceDeleted(observer Observer, phase, resourceType, resourceName string) {
	observer.Event(Event{
		Type:     EventResourceDeleted,
		Phase:    phase,
		Resource: resourceName,
		Message:  resourceType + " deleted",
		Fields:   map[string]string{"type": resourceType},
	})
}

// LogSoftFailure logs a condition reported without aborting the run.
func LogSoftFailure(observer Observer, phase, resource, msg string) {
	observer.Event(Event{
		Type:     EventSoftFailure,
		Phase:    phase,
		Resource: resource,
		Message:  msg,
	})
}
