// internal/events/dispatcher_test.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"admission-workers/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T) *Dispatcher {
	return NewDispatcher(logger.NewTestLogger(t))
}

func TestDispatcher_ValidPayloadReachesHandler(t *testing.T) {
	d := newTestDispatcher(t)

	var received OcrCreatedEvent
	err := d.Register(EventOcrCreated, OcrCreatedSchema, func(ctx context.Context, payload json.RawMessage) error {
		return json.Unmarshal(payload, &received)
	})
	require.NoError(t, err)

	d.Publish(context.Background(), EventOcrCreated, OcrCreatedEvent{
		OcrResultIDs: []string{"a", "b", "c"},
		StudentID:    "s-1",
	})

	assert.Equal(t, "s-1", received.StudentID)
	assert.Len(t, received.OcrResultIDs, 3)
}

func TestDispatcher_MalformedPayloadDropped(t *testing.T) {
	d := newTestDispatcher(t)

	invoked := false
	require.NoError(t, d.Register(EventOcrCreated, OcrCreatedSchema, func(ctx context.Context, payload json.RawMessage) error {
		invoked = true
		return nil
	}))

	// missing required studentId
	d.Dispatch(context.Background(), EventOcrCreated, json.RawMessage(`{"ocrResultIds":["a"]}`))
	assert.False(t, invoked)

	// not JSON at all
	d.Dispatch(context.Background(), EventOcrCreated, json.RawMessage(`not-json`))
	assert.False(t, invoked)
}

func TestDispatcher_UnregisteredEventDropped(t *testing.T) {
	d := newTestDispatcher(t)
	// must not panic
	d.Dispatch(context.Background(), "unknown.event", json.RawMessage(`{}`))
}

func TestDispatcher_HandlerErrorDoesNotPropagate(t *testing.T) {
	d := newTestDispatcher(t)

	calls := 0
	require.NoError(t, d.Register(EventTranscriptUpdated, TranscriptUpdatedSchema, func(ctx context.Context, payload json.RawMessage) error {
		calls++
		return fmt.Errorf("downstream failure")
	}))
	require.NoError(t, d.Register(EventTranscriptUpdated, "", func(ctx context.Context, payload json.RawMessage) error {
		calls++
		return nil
	}))

	d.Publish(context.Background(), EventTranscriptUpdated, TranscriptUpdatedEvent{
		StudentID:    "s-1",
		TranscriptID: "t-1",
	})

	// first handler's error never blocks the second
	assert.Equal(t, 2, calls)
}

func TestDispatcher_HandlerPanicRecovered(t *testing.T) {
	d := newTestDispatcher(t)

	require.NoError(t, d.Register(EventOcrCreated, OcrCreatedSchema, func(ctx context.Context, payload json.RawMessage) error {
		panic("listener bug")
	}))

	assert.NotPanics(t, func() {
		d.Publish(context.Background(), EventOcrCreated, OcrCreatedEvent{
			OcrResultIDs: []string{"a"},
			StudentID:    "s-1",
		})
	})
}

func TestDispatcher_FirstRegistrationRequiresSchema(t *testing.T) {
	d := newTestDispatcher(t)
	err := d.Register("some.event", "", func(ctx context.Context, payload json.RawMessage) error { return nil })
	assert.Error(t, err)
}
