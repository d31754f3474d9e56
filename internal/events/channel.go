package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/archharness/internal/logging"
	"github.com/fyrsmithlabs/archharness/internal/secrets"
)

// Subscriber receives each event after it has been persisted.
// It runs on the emitting goroutine and must not block.
type Subscriber func(Event)

// Sink is an optional fan-out destination such as a message bus.
// Publish failures are logged and never fail the run.
type Sink interface {
	Publish(ev Event) error
	Close() error
}

// Option configures a Channel.
type Option func(*Channel)

// WithSubscriber attaches the live subscriber.
func WithSubscriber(fn Subscriber) Option {
	return func(c *Channel) { c.subscriber = fn }
}

// WithSink adds a fan-out sink.
func WithSink(s Sink) Option {
	return func(c *Channel) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

// WithScrubber sets the redaction filter. The default uses the built-in
// token-shape rules.
func WithScrubber(s secrets.Scrubber) Option {
	return func(c *Channel) { c.scrubber = s }
}

// WithLogger sets the operational logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

// Channel appends events for one run.
type Channel struct {
	mu         sync.Mutex
	runID      string
	path       string
	file       *os.File
	scrubber   secrets.Scrubber
	subscriber Subscriber
	sinks      []Sink
	logger     *logging.Logger
	now        func() time.Time
	count      int
	closed     bool
}

// Open creates (or appends to) the event log at path.
func Open(path, runID string, opts ...Option) (*Channel, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log %s: %w", path, err)
	}

	c := &Channel{
		runID: runID,
		path:  path,
		file:  f,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scrubber == nil {
		c.scrubber = secrets.MustNew(secrets.DefaultConfig())
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	return c, nil
}

// RunID returns the run this channel belongs to.
func (c *Channel) RunID() string { return c.runID }

// Path returns the event log location.
func (c *Channel) Path() string { return c.path }

// Count returns the number of events appended so far.
func (c *Channel) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// Emit builds and appends an event.
func (c *Channel) Emit(source Source, role, typ string, level Level, message string, data map[string]any) (Event, error) {
	return c.Append(Event{
		Source:    source,
		AgentRole: role,
		Type:      typ,
		Level:     level,
		Message:   message,
		Data:      data,
	})
}

// Append stamps, redacts and persists ev, then forwards the persisted form.
// The subscriber and sinks never see an event the file does not hold.
func (c *Channel) Append(ev Event) (Event, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Event{}, fmt.Errorf("event log %s is closed", c.path)
	}

	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	ev.RunID = c.runID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = c.now()
	}
	if ev.Level == "" {
		ev.Level = LevelInfo
	}
	ev.Message = secrets.RedactString(c.scrubber, ev.Message)
	ev.Data = secrets.RedactMap(c.scrubber, ev.Data)
	if ev.Data == nil {
		ev.Data = map[string]any{}
	}

	line, err := json.Marshal(ev)
	if err != nil {
		c.mu.Unlock()
		return Event{}, fmt.Errorf("encoding event %s: %w", ev.Type, err)
	}
	if _, err := c.file.Write(append(line, '\n')); err != nil {
		c.mu.Unlock()
		return Event{}, fmt.Errorf("writing event %s: %w", ev.Type, err)
	}
	c.count++
	subscriber, sinks := c.subscriber, c.sinks
	c.mu.Unlock()

	if subscriber != nil {
		subscriber(ev)
	}
	for _, s := range sinks {
		if err := s.Publish(ev); err != nil {
			c.logger.Warn(c.logCtx(), "event sink publish failed",
				zap.String("event.type", ev.Type),
				zap.Error(err))
		}
	}
	return ev, nil
}

// Close flushes the file and closes every sink.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var firstErr error
	if err := c.file.Sync(); err != nil {
		firstErr = fmt.Errorf("syncing event log: %w", err)
	}
	if err := c.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing event log: %w", err)
	}
	for _, s := range c.sinks {
		if err := s.Close(); err != nil {
			c.logger.Warn(c.logCtx(), "event sink close failed", zap.Error(err))
		}
	}
	return firstErr
}

func (c *Channel) logCtx() context.Context {
	return logging.WithRunID(context.Background(), c.runID)
}
