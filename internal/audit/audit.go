package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Event is one audit record. Payload holds kind-specific detail.
type Event struct {
	ID        string                 `json:"id"`
	TS        time.Time              `json:"ts"`
	Kind      string                 `json:"kind"`
	SessionID string                 `json:"session_id,omitempty"`
	TaskID    string                 `json:"task_id,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// Sink persists events somewhere.
type Sink interface {
	Write(ctx context.Context, event Event) error
	Close() error
}

// Recorder fans events out to its sinks. Safe for concurrent use as
// long as each sink is.
type Recorder struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewRecorder creates a Recorder over the given sinks. A nil logger
// uses a no-op.
func NewRecorder(logger *zap.Logger, sinks ...Sink) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{sinks: sinks, logger: logger}
}

// Record builds an event and writes it to every sink. Sink failures
// are logged, not returned: auditing never vetoes the decision it
// records.
func (r *Recorder) Record(ctx context.Context, kind, sessionID, taskID string, payload map[string]interface{}) Event {
	event := Event{
		ID:        uuid.NewString(),
		TS:        time.Now().UTC(),
		Kind:      kind,
		SessionID: sessionID,
		TaskID:    taskID,
		Payload:   payload,
	}

	for _, sink := range r.sinks {
		if err := sink.Write(ctx, event); err != nil {
			r.logger.Warn("audit sink write failed",
				zap.String("kind", kind),
				zap.Error(err),
			)
		}
	}
	return event
}

// Close closes every sink, returning the first error.
func (r *Recorder) Close() error {
	var first error
	for _, sink := range r.sinks {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
