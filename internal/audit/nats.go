package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes events to NATS subjects of the form
// <prefix>.<kind>, letting consumers subscribe per event kind.
type NATSSink struct {
	conn    *nats.Conn
	prefix  string
	ownConn bool
}

// NewNATSSink connects to the given NATS URL. Prefix defaults to
// "agentgov.audit" when empty.
func NewNATSSink(url, prefix string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("agentgov-audit"))
	if err != nil {
		return nil, fmt.Errorf("connecting to nats: %w", err)
	}
	sink := WrapNATSConn(conn, prefix)
	sink.ownConn = true
	return sink, nil
}

// WrapNATSConn builds a sink over an existing connection. The caller
// keeps ownership of the connection.
func WrapNATSConn(conn *nats.Conn, prefix string) *NATSSink {
	if prefix == "" {
		prefix = "agentgov.audit"
	}
	return &NATSSink{conn: conn, prefix: prefix}
}

// Write publishes the event, fire-and-forget.
func (s *NATSSink) Write(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	subject := s.prefix + "." + event.Kind
	if err := s.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing audit event to %s: %w", subject, err)
	}
	return nil
}

// Close drains the connection if this sink owns it.
func (s *NATSSink) Close() error {
	if !s.ownConn {
		return nil
	}
	return s.conn.Drain()
}
