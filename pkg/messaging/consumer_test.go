package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/signflow/signflow-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustEventBody(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	event, err := NewEvent(eventType, "document-service", "corr-1", data)
	require.NoError(t, err)
	body, err := json.Marshal(event)
	require.NoError(t, err)
	return body
}

func TestConsumer_Dispatch(t *testing.T) {
	body := mustEventBody(t, EventDocumentDeleted, DocumentDeletedEvent{DocumentID: "doc-1"})

	t.Run("malformed body is rejected", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		assert.Equal(t, OutcomeReject, c.Dispatch(context.Background(), []byte("{nope"), 0))
	})

	t.Run("unknown event type is acked", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		assert.Equal(t, OutcomeAck, c.Dispatch(context.Background(), body, 0))
	})

	t.Run("handler receives payload and correlation id", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		var got DocumentDeletedEvent
		var corr string
		c.RegisterHandler(EventDocumentDeleted, func(ctx context.Context, e *Event) error {
			corr = CorrelationID(ctx)
			return e.UnmarshalData(&got)
		})

		assert.Equal(t, OutcomeAck, c.Dispatch(context.Background(), body, 0))
		assert.Equal(t, "doc-1", got.DocumentID)
		assert.Equal(t, "corr-1", corr)
	})

	t.Run("failing handler is requeued then dead-lettered", func(t *testing.T) {
		c := newConsumer(nil, "q", logger.Nop())
		c.RegisterHandler(EventDocumentDeleted, func(ctx context.Context, e *Event) error {
			return errors.New("db down")
		})

		assert.Equal(t, OutcomeRequeue, c.Dispatch(context.Background(), body, 1))
		assert.Equal(t, OutcomeReject, c.Dispatch(context.Background(), body, maxDeliveries))
	})
}

func TestNewEvent(t *testing.T) {
	event, err := NewEvent(EventFieldsSaved, "field-service", "", FieldsSavedEvent{DocumentID: "doc-9", FieldCount: 3})
	require.NoError(t, err)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventFieldsSaved, event.Type)
	assert.Equal(t, "field-service", event.Source)

	var data FieldsSavedEvent
	require.NoError(t, event.UnmarshalData(&data))
	assert.Equal(t, "doc-9", data.DocumentID)
	assert.Equal(t, 3, data.FieldCount)
}
