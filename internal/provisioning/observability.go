package provisioning

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// Observer defines the interface for structured output during provisioning.
type Observer interface {
	// Printf emits a free-form progress line.
	Printf(format string, v ...any)

	// Event emits a structured event.
	Event(event Event)

	// Progress reports progress for a phase.
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields.
	WithFields(fields map[string]string) Observer
}

// Event represents a structured provisioning event.
type Event struct {
	Type      EventType
	Phase     string // e.g. "bring-up", "reachability", "deploy"
	Message   string
	Resource  string // node, service or container the event is about
	Timestamp time.Time
	Fields    map[string]string
	Err       error
}

// EventType represents the type of provisioning event.
type EventType string

const (
	EventPhaseStarted   EventType = "phase.started"
	EventPhaseCompleted EventType = "phase.completed"
	EventPhaseFailed    EventType = "phase.failed"

	EventNodeAttempt    EventType = "node.attempt"
	EventNodeConfigured EventType = "node.configured"
	EventNodeFailed     EventType = "node.failed"

	EventResourceCreating EventType = "resource.creating"
	EventResourceExists   EventType = "resource.exists"
	EventResourceDeleting EventType = "resource.deleting"
	EventResourceFailed   EventType = "resource.failed"

	// EventDiagnostic carries output collected to explain a failure, such
	// as task status or container logs.
	EventDiagnostic EventType = "diagnostic"

	EventProgress EventType = "progress"
)

// ConsoleObserver writes events through a logr logger.
type ConsoleObserver struct {
	log    logr.Logger
	fields map[string]string
}

// NewConsoleObserver creates an observer printing to stderr.
func NewConsoleObserver() *ConsoleObserver {
	return NewWriterObserver(os.Stderr, true)
}

// NewWriterObserver creates an observer printing to w.
func NewWriterObserver(w io.Writer, timestamps bool) *ConsoleObserver {
	sink := funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = fmt.Fprintf(w, "%s: %s\n", prefix, args)
			return
		}
		_, _ = fmt.Fprintln(w, args)
	}, funcr.Options{LogTimestamp: timestamps})
	return NewLogrObserver(sink)
}

// NewLogrObserver creates an observer on top of an existing logger.
func NewLogrObserver(log logr.Logger) *ConsoleObserver {
	return &ConsoleObserver{log: log, fields: map[string]string{}}
}

// Printf implements Observer.
func (o *ConsoleObserver) Printf(format string, v ...any) {
	o.log.Info(fmt.Sprintf(format, v...), o.keyValues(nil)...)
}

// Event implements Observer.
func (o *ConsoleObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	kv := []any{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}
	kv = append(kv, o.keyValues(event.Fields)...)

	if event.Err != nil {
		o.log.Error(event.Err, event.Message, kv...)
		return
	}
	o.log.Info(event.Message, kv...)
}

// Progress implements Observer.
func (o *ConsoleObserver) Progress(phase string, current, total int) {
	kv := []any{"event", string(EventProgress), "phase", phase, "current", current, "total", total}
	if total > 0 {
		kv = append(kv, "percent", current*100/total)
	}
	o.log.Info("progress", append(kv, o.keyValues(nil)...)...)
}

// WithFields implements Observer.
func (o *ConsoleObserver) WithFields(fields map[string]string) Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &ConsoleObserver{log: o.log, fields: merged}
}

// keyValues flattens context fields and extra fields, extra taking
// precedence, in sorted key order.
func (o *ConsoleObserver) keyValues(extra map[string]string) []any {
	merged := make(map[string]string, len(o.fields)+len(extra))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kv := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		kv = append(kv, k, merged[k])
	}
	return kv
}

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase, resource string) {
	observer.Event(Event{
		Type:     EventPhaseStarted,
		Phase:    phase,
		Resource: resource,
		Message:  "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase, resource string, duration time.Duration) {
	observer.Event(Event{
		Type:     EventPhaseCompleted,
		Phase:    phase,
		Resource: resource,
		Message:  fmt.Sprintf("completed in %v", duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase, resource string, err error) {
	observer.Event(Event{
		Type:     EventPhaseFailed,
		Phase:    phase,
		Resource: resource,
		Message:  "failed",
		Err:      err,
	})
}

// LogDiagnostic emits collected diagnostic output for resource.
func LogDiagnostic(observer Observer, phase, resource, output string) {
	observer.Event(Event{
		Type:     EventDiagnostic,
		Phase:    phase,
		Resource: resource,
		Message:  output,
	})
}
