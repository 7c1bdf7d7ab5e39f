package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestFileSink_AppendsJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "events.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)

	recorder := NewRecorder(nil, sink)
	recorder.Record(context.Background(), "REVIEW_PASS", "sess-1", "task-1", map[string]interface{}{
		"rules_hash": "abc123",
	})
	recorder.Record(context.Background(), "STATIC_REJECT", "sess-1", "task-2", map[string]interface{}{
		"violations": 3,
	})
	require.NoError(t, recorder.Close())

	events := readEvents(t, path)
	require.Len(t, events, 2)

	assert.Equal(t, "REVIEW_PASS", events[0].Kind)
	assert.Equal(t, "sess-1", events[0].SessionID)
	assert.Equal(t, "task-1", events[0].TaskID)
	assert.Equal(t, "abc123", events[0].Payload["rules_hash"])
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].TS.IsZero())
	assert.Equal(t, time.UTC, events[0].TS.Location())

	assert.Equal(t, "STATIC_REJECT", events[1].Kind)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestFileSink_AppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	for i := 0; i < 2; i++ {
		sink, err := NewFileSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Write(context.Background(), Event{ID: "e", Kind: "TASK_STOPPED"}))
		require.NoError(t, sink.Close())
	}

	assert.Len(t, readEvents(t, path), 2)
}

type failingSink struct{ closed bool }

func (s *failingSink) Write(context.Context, Event) error { return errors.New("sink down") }
func (s *failingSink) Close() error                       { s.closed = true; return nil }

func TestRecorder_SinkFailureDoesNotBlock(t *testing.T) {
	failing := &failingSink{}
	path := filepath.Join(t.TempDir(), "events.jsonl")
	file, err := NewFileSink(path)
	require.NoError(t, err)

	recorder := NewRecorder(nil, failing, file)
	event := recorder.Record(context.Background(), "REVIEW_REJECT", "s", "t", nil)

	assert.NotEmpty(t, event.ID, "record returns the event despite a failing sink")
	require.NoError(t, recorder.Close())
	assert.True(t, failing.closed)
	assert.Len(t, readEvents(t, path), 1, "healthy sinks still receive the event")
}
