package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry at trace level and above so tests can
// assert on what a component logged.
type TestLogger struct {
	*Logger
	observed *observer.ObservedLogs
}

// NewTestLogger creates an observing logger.
func NewTestLogger() *TestLogger {
	core, observed := observer.New(TraceLevel)
	return &TestLogger{
		Logger:   &Logger{zap: zap.New(core), config: NewDefaultConfig()},
		observed: observed,
	}
}

// All returns the recorded entries.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.observed.All()
}

// AssertLogged fails tb unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	for _, e := range t.observed.All() {
		if e.Level == level && strings.Contains(e.Message, msg) {
			return
		}
	}
	tb.Errorf("no %v entry containing %q in %d entries", level, msg, t.observed.Len())
}

// AssertField fails tb unless an entry with message msg carries key=want.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		got, ok := e.ContextMap()[key]
		if ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("field %s=%v not logged with %q", key, want, msg)
}

// AssertRunCorrelation fails tb unless the entry with message msg carries
// the run.id field added by WithRunID.
func (t *TestLogger) AssertRunCorrelation(tb testing.TB, msg string) {
	tb.Helper()
	for _, e := range t.observed.FilterMessage(msg).All() {
		if _, ok := e.ContextMap()["run.id"]; ok {
			return
		}
	}
	tb.Errorf("%q logged without run.id", msg)
}
