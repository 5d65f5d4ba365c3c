package testing

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kubeci-dev/ciprov/internal/provisioning"
)

// RecordingObserver keeps every message and event in order.
// Observers derived with WithFields share the same log.
type RecordingObserver struct {
	mu     *sync.Mutex
	log    *[]string
	events *[]provisioning.Event
	fields map[string]string
}

// NewRecordingObserver creates an empty recording observer.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{
		mu:     &sync.Mutex{},
		log:    &[]string{},
		events: &[]provisioning.Event{},
		fields: map[string]string{},
	}
}

// Printf records the formatted message.
func (o *RecordingObserver) Printf(format string, v ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*o.log = append(*o.log, fmt.Sprintf(format, v...))
}

// Event records the event and its message.
func (o *RecordingObserver) Event(event provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if event.Fields == nil {
		event.Fields = map[string]string{}
	}
	for k, v := range o.fields {
		if _, ok := event.Fields[k]; !ok {
			event.Fields[k] = v
		}
	}
	*o.events = append(*o.events, event)
	*o.log = append(*o.log, event.Message)
}

// WithFields returns an observer sharing this one's log.
func (o *RecordingObserver) WithFields(fields map[string]string) provisioning.Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RecordingObserver{mu: o.mu, log: o.log, events: o.events, fields: merged}
}

// Messages returns every recorded message in order.
func (o *RecordingObserver) Messages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), *o.log...)
}

// Events returns every recorded event in order.
func (o *RecordingObserver) Events() []provisioning.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]provisioning.Event(nil), *o.events...)
}

// EventsOfType filters recorded events by type.
func (o *RecordingObserver) EventsOfType(t provisioning.EventType) []provisioning.Event {
	var out []provisioning.Event
	for _, e := range o.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// IndexOf returns the position of the first message containing substr, or -1.
func (o *RecordingObserver) IndexOf(substr string) int {
	for i, m := range o.Messages() {
		if strings.Contains(m, substr) {
			return i
		}
	}
	return -1
}
