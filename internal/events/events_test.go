package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func TestDispatcherRunsTypedAndWildcardHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var got []string
	d.Subscribe(EventTicketCreated, func(_ context.Context, e Event) error {
		got = append(got, "typed:"+string(e.Type))
		return nil
	})
	d.Subscribe(EventTicketAssigned, func(_ context.Context, e Event) error {
		got = append(got, "other")
		return nil
	})
	d.SubscribeAll(func(_ context.Context, e Event) error {
		got = append(got, "all:"+string(e.Type))
		return errors.New("sink down")
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	require.Error(t, err)
	assert.Equal(t, []string{"typed:ticket_created", "all:ticket_created"}, got)
}

func TestKafkaPublisherWritesKeyedJSON(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisherWithWriter(w, nil)
	d := NewInMemoryDispatcher()
	p.Attach(d)

	ts := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, d.Publish(context.Background(), Event{
		ID:        "e1",
		Type:      EventTicketStatusChanged,
		TicketID:  "ticket-1",
		Timestamp: ts,
		Payload:   TicketStatusChangedPayload{OldStatus: "new", NewStatus: "acknowledged"},
	}))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "ticket-1", string(msg.Key))
	assert.Equal(t, "ticket_status_changed", string(msg.Headers[0].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "ticket_status_changed", decoded["type"])
	payload := decoded["payload"].(map[string]any)
	assert.Equal(t, "acknowledged", payload["new_status"])
}

func TestKafkaPublisherFailureDoesNotFailDispatch(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker unreachable")}
	d := NewInMemoryDispatcher()
	NewKafkaPublisherWithWriter(w, nil).Attach(d)
	assert.NoError(t, d.Publish(context.Background(), Event{Type: EventFollowUpDue, TicketID: "t"}))
}
