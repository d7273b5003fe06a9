package consumers

import (
	"context"
	"fmt"

	"github.com/signflow/signflow-backend/pkg/logger"
	"github.com/signflow/signflow-backend/pkg/messaging"
)

// FieldDeleter removes the stored fields of a document
type FieldDeleter interface {
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
}

// DocumentCache drops whatever is held in memory for a document, such as
// page measurements or viewer scales
type DocumentCache interface {
	Forget(documentID string)
}

// DocumentEventConsumer cleans up after documents removed by the document service
type DocumentEventConsumer struct {
	consumer *messaging.Consumer
	fields   FieldDeleter
	caches   []DocumentCache
	logger   *logger.Logger
}

// NewDocumentEventConsumer subscribes to document events. Messages that
// keep failing end up in dlq.field-service.
func NewDocumentEventConsumer(
	rmq *messaging.RabbitMQ,
	fields FieldDeleter,
	log *logger.Logger,
	caches ...DocumentCache,
) (*DocumentEventConsumer, error) {
	if err := rmq.DeclareDeadLetterQueue("field-service"); err != nil {
		return nil, err
	}

	consumer, err := messaging.NewConsumer(rmq, "field-service.document-events", log)
	if err != nil {
		return nil, err
	}

	if err := consumer.Subscribe(messaging.ExchangeDocumentEvents, "document.#"); err != nil {
		return nil, err
	}

	c := &DocumentEventConsumer{
		consumer: consumer,
		fields:   fields,
		caches:   caches,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventDocumentDeleted, c.HandleDocumentDeleted)

	return c, nil
}

// Start starts consuming messages
func (c *DocumentEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

// HandleDocumentDeleted removes the deleted document's fields. Returning an
// error requeues the message.
func (c *DocumentEventConsumer) HandleDocumentDeleted(ctx context.Context, event *messaging.Event) error {
	var data messaging.DocumentDeletedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if data.DocumentID == "" {
		c.logger.Warn().Str("event_id", event.ID).Msg("document deleted event without document id")
		return nil
	}

	n, err := c.fields.DeleteByDocument(ctx, data.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to delete fields of %s: %w", data.DocumentID, err)
	}
	for _, cache := range c.caches {
		cache.Forget(data.DocumentID)
	}

	c.logger.Info().
		Str("document_id", data.DocumentID).
		Int64("fields_removed", n).
		Msg("removed fields of deleted document")

	return nil
}
