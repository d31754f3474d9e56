package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject prefixes published event subjects.
const DefaultSubject = "archharness.events"

// NATSSink publishes every event to <subject>.<runId>.
type NATSSink struct {
	nc      *nats.Conn
	subject string
	owned   bool
}

// NewNATSSink publishes on an existing connection. Close flushes but leaves
// the connection open.
func NewNATSSink(nc *nats.Conn, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{nc: nc, subject: subject}
}

// ConnectNATS dials url and returns a sink that owns the connection.
func ConnectNATS(url, subject, token string) (*NATSSink, error) {
	opts := []nats.Option{
		nats.Name("archharness"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1 * time.Second),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	s := NewNATSSink(nc, subject)
	s.owned = true
	return s, nil
}

// Subject returns the subject events for runID are published on.
func (s *NATSSink) Subject(runID string) string {
	return s.subject + "." + runID
}

// Publish sends ev as JSON.
func (s *NATSSink) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.nc.Publish(s.Subject(ev.RunID), data); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes an owned connection.
func (s *NATSSink) Close() error {
	err := s.nc.FlushTimeout(2 * time.Second)
	if s.owned {
		s.nc.Close()
	}
	if err != nil && err != nats.ErrConnectionClosed {
		return fmt.Errorf("flushing NATS: %w", err)
	}
	return nil
}

var _ Sink = (*NATSSink)(nil)
