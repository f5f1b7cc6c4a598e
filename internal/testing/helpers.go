package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/imamik/stagehand/internal/provisioning"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// RecordingSleeper records requested pauses instead of sleeping.
type RecordingSleeper struct {
	mu     sync.Mutex
	pauses []time.Duration
}

// Sleep matches retry.Sleeper.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.pauses = append(s.pauses, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Pauses returns the recorded pauses.
func (s *RecordingSleeper) Pauses() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.pauses...)
}

// Count returns how many pauses were requested.
func (s *RecordingSleeper) Count() int {
	return len(s.Pauses())
}

// RecordingObserver collects everything emitted through provisioning.Observer.
type RecordingObserver struct {
	mu     sync.Mutex
	lines  []string
	events []provisioning.Event
}

var _ provisioning.Observer = (*RecordingObserver)(nil)

// NewRecordingObserver creates an empty observer.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{}
}

// Printf implements provisioning.Observer.
func (o *RecordingObserver) Printf(format string, v ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lines = append(o.lines, fmt.Sprintf(format, v...))
}

// Event implements provisioning.Observer.
func (o *RecordingObserver) Event(event provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

// Progress implements provisioning.Observer.
func (o *RecordingObserver) Progress(phase string, current, total int) {
	o.Event(provisioning.Event{
		Type:    provisioning.EventProgress,
		Phase:   phase,
		Message: fmt.Sprintf("%d/%d", current, total),
	})
}

// WithFields implements provisioning.Observer. The returned observer shares
// the recorded output.
func (o *RecordingObserver) WithFields(map[string]string) provisioning.Observer {
	return o
}

// Lines returns recorded Printf output.
func (o *RecordingObserver) Lines() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.lines...)
}

// Events returns recorded events.
func (o *RecordingObserver) Events() []provisioning.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]provisioning.Event(nil), o.events...)
}

// EventsOfType returns recorded events of type t.
func (o *RecordingObserver) EventsOfType(t provisioning.EventType) []provisioning.Event {
	var out []provisioning.Event
	for _, e := range o.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Contains reports whether any line or event message contains substr.
func (o *RecordingObserver) Contains(substr string) bool {
	for _, l := range o.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	for _, e := range o.Events() {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
