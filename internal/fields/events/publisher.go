package events

import (
	"context"

	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/pkg/actor"
	"github.com/signflow/signflow-backend/pkg/logger"
	"github.com/signflow/signflow-backend/pkg/messaging"
)

// Publisher is the transport the field events go out on
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// FieldEventPublisher publishes field-related events
type FieldEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewFieldEventPublisher creates a publisher on the field events exchange
func NewFieldEventPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*FieldEventPublisher, error) {
	publisher, err := messaging.NewPublisher(rmq, messaging.ExchangeFieldEvents, "field-service", log)
	if err != nil {
		return nil, err
	}
	return NewFieldEventPublisherWith(publisher, log), nil
}

// NewFieldEventPublisherWith wraps an existing transport
func NewFieldEventPublisherWith(publisher Publisher, log *logger.Logger) *FieldEventPublisher {
	return &FieldEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

// PublishFieldsSaved announces that a document's field list was replaced.
// Failures are logged; the save itself already succeeded.
func (p *FieldEventPublisher) PublishFieldsSaved(ctx context.Context, documentID string, fields []domain.Field) {
	data := messaging.FieldsSavedEvent{
		DocumentID: documentID,
		FieldCount: len(fields),
		SignerIDs:  domain.SignerIDs(fields),
	}
	if a := actor.FromContext(ctx); a != nil {
		data.SavedBy = a.ID
	}

	if err := p.publisher.Publish(ctx, messaging.EventFieldsSaved, data); err != nil {
		p.logger.Warn().Err(err).Str("document_id", documentID).Msg("failed to publish fields saved event")
	}
}
