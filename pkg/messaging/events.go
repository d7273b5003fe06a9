package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Field events
	EventFieldsSaved = "fields.saved"

	// Document events (published by the document service)
	EventDocumentDeleted = "document.deleted"
)

// Exchange names
const (
	ExchangeFieldEvents    = "field.events"
	ExchangeDocumentEvents = "document.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.New().String(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// FieldsSavedEvent is published after a document's field list was replaced
type FieldsSavedEvent struct {
	DocumentID string   `json:"document_id"`
	FieldCount int      `json:"field_count"`
	SignerIDs  []string `json:"signer_ids,omitempty"`
	SavedBy    string   `json:"saved_by,omitempty"`
}

// DocumentDeletedEvent is consumed when the document service removes a document
type DocumentDeletedEvent struct {
	DocumentID string `json:"document_id"`
	DeletedBy  string `json:"deleted_by,omitempty"`
}
