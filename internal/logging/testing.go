package logging

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger is a Logger whose entries are kept in memory for assertions.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates a logger that observes every level down to Trace.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

// All returns every entry logged so far.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// Reset drops the entries logged so far.
func (t *TestLogger) Reset() {
	t.observed.TakeAll()
}

func (t *TestLogger) matching(level zapcore.Level, snippet string) *observer.ObservedLogs {
	return t.observed.FilterLevelExact(level).FilterMessageSnippet(snippet)
}

// AssertLogged fails tb unless an entry at level contains snippet.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if t.matching(level, snippet).Len() == 0 {
		tb.Errorf("expected log at %v containing %q, logs: %+v", level, snippet, t.observed.All())
	}
}

// AssertNotLogged fails tb if an entry at level contains snippet.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, snippet string) {
	tb.Helper()
	if n := t.matching(level, snippet).Len(); n > 0 {
		tb.Errorf("unexpected log at %v containing %q (%d entries)", level, snippet, n)
	}
}

// AssertField fails tb unless an entry with message msg carries key=expected.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected interface{}) {
	tb.Helper()
	for _, entry := range t.observed.FilterMessage(msg).All() {
		if got, ok := entry.ContextMap()[key]; ok && reflect.DeepEqual(got, expected) {
			return
		}
	}
	tb.Errorf("field %q=%v not found in message %q", key, expected, msg)
}

// AssertRequestID fails tb unless msg was logged with request.id set to id.
func (t *TestLogger) AssertRequestID(tb testing.TB, msg, id string) {
	tb.Helper()
	t.AssertField(tb, msg, "request.id", id)
}
