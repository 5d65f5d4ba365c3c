package provisioning

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockObserver is a test implementation of Observer that records events.
type MockObserver struct {
	events   []Event
	messages []string
	fields   map[string]string
}

func NewMockObserver() *MockObserver {
	return &MockObserver{fields: make(map[string]string)}
}

func (m *MockObserver) Printf(format string, v ...any) {
	m.messages = append(m.messages, fmt.Sprintf(format, v...))
}

func (m *MockObserver) Event(event Event) {
	m.events = append(m.events, event)
}

func (m *MockObserver) WithFields(fields map[string]string) Observer {
	next := NewMockObserver()
	for k, v := range m.fields {
		next.fields[k] = v
	}
	for k, v := range fields {
		next.fields[k] = v
	}
	return next
}

func (m *MockObserver) types() []EventType {
	out := make([]EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

// captureLogger returns a logr.Logger writing one line per record into lines.
func captureLogger(lines *[]string) *LogObserver {
	log := funcr.New(func(prefix, args string) {
		*lines = append(*lines, prefix+" "+args)
	}, funcr.Options{})
	return NewLogObserver(log)
}

func TestLogObserver_Printf(t *testing.T) {
	t.Parallel()
	var lines []string
	obs := captureLogger(&lines)

	obs.Printf("staged %d sources", 2)

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg"="staged 2 sources"`)
}

func TestLogObserver_EventFields(t *testing.T) {
	t.Parallel()
	var lines []string
	obs := captureLogger(&lines).WithFields(map[string]string{"run": "run-1"})

	LogResourceExists(obs, "cluster", "cluster", "ci-cluster")

	require.Len(t, lines, 1)
	line := lines[0]
	assert.Contains(t, line, `"msg"="cluster already exists"`)
	assert.Contains(t, line, `"event"="resource.exists"`)
	assert.Contains(t, line, `"phase"="cluster"`)
	assert.Contains(t, line, `"resource"="ci-cluster"`)
	assert.Contains(t, line, `"run"="run-1"`)
	assert.Less(t, strings.Index(line, `"kind"`), strings.Index(line, `"run"`), "fields are sorted")
}

func TestLogObserver_FailuresLoggedAsErrors(t *testing.T) {
	t.Parallel()
	var lines []string
	obs := captureLogger(&lines)

	LogPhaseFailed(obs, "deploy", fmt.Errorf("exit 2"))

	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"error"=null`)
	assert.Contains(t, lines[0], "failed: exit 2")
}

func TestLogObserver_WarningsSurviveWarnLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	obs := NewLogObserver(logr.FromSlogHandler(handler)).WithFields(map[string]string{"run": "run-1"})

	obs.Printf("staged sources")
	LogResourceExists(obs, "cluster", "cluster", "ci-cluster")
	LogWarning(obs, "kube-context", "context mismatch")
	LogResourceUnknown(obs, "storage", "pvc", "jenkins-pvc")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"WARN"`)
	assert.Contains(t, lines[0], `"event":"validation.warning"`)
	assert.Contains(t, lines[0], `"run":"run-1"`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"event":"resource.unknown"`)
	assert.Contains(t, lines[1], `"resource":"jenkins-pvc"`)
}

func TestLogObserver_WithFieldsDoesNotLeak(t *testing.T) {
	t.Parallel()
	var lines []string
	base := captureLogger(&lines)
	_ = base.WithFields(map[string]string{"run": "run-1"})

	base.Printf("hello")

	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "run-1")
}

func TestResourceHelpers(t *testing.T) {
	t.Parallel()
	obs := NewMockObserver()

	LogResourceCreating(obs, "storage", "disk", "jenkins-disk")
	LogResourceCreated(obs, "storage", "disk", "jenkins-disk")
	LogResourceUnknown(obs, "storage", "pvc", "jenkins-pvc")
	LogResourceFailed(obs, "storage", "pvc", "jenkins-pvc", fmt.Errorf("denied"))
	LogWarning(obs, "kube-context", "context mismatch")

	assert.Equal(t, []EventType{
		EventResourceCreating,
		EventResourceCreated,
		EventResourceUnknown,
		EventResourceFailed,
		EventValidationWarning,
	}, obs.types())
	assert.Equal(t, "creating disk", obs.events[0].Message)
	assert.Equal(t, "disk", obs.events[0].Fields["kind"])
	assert.Equal(t, "jenkins-disk", obs.events[1].Resource)
	assert.Contains(t, obs.events[2].Message, "treating as absent")
	assert.Equal(t, "failed to create pvc: denied", obs.events[3].Message)
}

func TestLogPhaseComplete_RoundsDuration(t *testing.T) {
	t.Parallel()
	obs := NewMockObserver()

	LogPhaseComplete(obs, "stage", 1234567*time.Microsecond)

	require.Len(t, obs.events, 1)
	assert.Equal(t, "completed in 1.235s", obs.events[0].Message)
}
