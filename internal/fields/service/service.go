// Package service ties the field engine to storage, page measurement and
// events. Every call works on its own collection; nothing about a
// document's fields is kept between requests.
package service

import (
	"context"
	"sync"

	"github.com/signflow/signflow-backend/internal/documents/pages"
	"github.com/signflow/signflow-backend/internal/fields/collection"
	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/internal/fields/geometry"
	"github.com/signflow/signflow-backend/internal/fields/validation"
	"github.com/signflow/signflow-backend/pkg/actor"
	"github.com/signflow/signflow-backend/pkg/config"
	apperrors "github.com/signflow/signflow-backend/pkg/errors"
	"github.com/signflow/signflow-backend/pkg/logger"
)

// FieldStore persists the ordered field list of a document
type FieldStore interface {
	ListByDocument(ctx context.Context, documentID string) ([]domain.Field, error)
	ReplaceAll(ctx context.Context, documentID string, fields []domain.Field) error
}

// PageMeasurer reports intrinsic page sizes
type PageMeasurer interface {
	PageDims(ctx context.Context, documentID string) ([]pages.Dim, error)
}

// EventPublisher announces saved field lists
type EventPublisher interface {
	PublishFieldsSaved(ctx context.Context, documentID string, fields []domain.Field)
}

// FieldService handles field placement and validation for documents
type FieldService struct {
	store     FieldStore
	measurer  PageMeasurer
	publisher EventPublisher
	validator *validation.Validator
	overlay   config.OverlayConfig
	logger    *logger.Logger

	mu         sync.Mutex
	saving     map[string]struct{}
	// trackers holds the last measured scale per document and viewer
	trackers   map[string]map[string]*geometry.ScaleTracker
	trackLimit int
}

// Option configures a FieldService
type Option func(*FieldService)

// WithValidator replaces the default validator, e.g. to pin the clock in tests
func WithValidator(v *validation.Validator) Option {
	return func(s *FieldService) { s.validator = v }
}

// NewFieldService creates a new field service
func NewFieldService(
	store FieldStore,
	measurer PageMeasurer,
	publisher EventPublisher,
	overlay config.OverlayConfig,
	log *logger.Logger,
	opts ...Option,
) *FieldService {
	s := &FieldService{
		store:      store,
		measurer:   measurer,
		publisher:  publisher,
		validator:  validation.New(),
		overlay:    overlay,
		logger:     log.WithComponent("field-service"),
		saving:     make(map[string]struct{}),
		trackers:   make(map[string]map[string]*geometry.ScaleTracker),
		trackLimit: maxTrackedDocuments,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load hydrates a fresh collection with the document's persisted fields.
// New fields added to it are centred on the measured page when the PDF
// can be read.
func (s *FieldService) Load(ctx context.Context, documentID string) (*collection.Manager, error) {
	if err := authorizeView(ctx, documentID); err != nil {
		return nil, err
	}

	fields, err := s.store.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	dims := s.pageDims(ctx, documentID)
	m := collection.New(collection.WithPageSize(func(page int) (float64, float64, bool) {
		if page < 1 || page > len(dims) {
			return 0, 0, false
		}
		return dims[page-1].Width, dims[page-1].Height, true
	}))
	m.Hydrate(fields)
	return m, nil
}

// List returns the document's fields with type defaults applied
func (s *FieldService) List(ctx context.Context, documentID string) ([]domain.Field, error) {
	m, err := s.Load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return m.Fields(), nil
}

// Defaults synthesizes the field the palette would drop on page. Nothing is persisted.
func (s *FieldService) Defaults(ctx context.Context, documentID string, t domain.FieldType, page int) (domain.Field, error) {
	if err := authorizeEdit(ctx, documentID); err != nil {
		return domain.Field{}, err
	}
	if !t.Valid() {
		return domain.Field{}, apperrors.BadRequest("unknown field type: " + string(t))
	}

	m, err := s.Load(ctx, documentID)
	if err != nil {
		return domain.Field{}, err
	}

	if dims := s.pageDims(ctx, documentID); len(dims) > 0 && page > len(dims) {
		return domain.Field{}, apperrors.BadRequest("page is beyond the end of the document")
	}

	f, err := m.Add(t, page)
	if err != nil {
		return domain.Field{}, apperrors.BadRequest(err.Error())
	}
	return f, nil
}

// Validate checks raw records without saving them
func (s *FieldService) Validate(ctx context.Context, raws []domain.RawField) (validation.AllResult, error) {
	fields, err := domain.NormalizeAll(raws)
	if err != nil {
		return validation.AllResult{}, normalizeFailure(err)
	}
	return s.validator.ValidateAll(fields), nil
}

// Pages returns the intrinsic size of every page of the document
func (s *FieldService) Pages(ctx context.Context, documentID string) ([]pages.Dim, error) {
	if err := authorizeView(ctx, documentID); err != nil {
		return nil, err
	}
	dims, err := s.measurer.PageDims(ctx, documentID)
	if err != nil {
		return nil, measureFailure(err)
	}
	return dims, nil
}

// pageDims measures the document, returning nil when it cannot be read
func (s *FieldService) pageDims(ctx context.Context, documentID string) []pages.Dim {
	if s.measurer == nil {
		return nil
	}
	dims, err := s.measurer.PageDims(ctx, documentID)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("document_id", documentID).
			Msg("page measurement unavailable")
		return nil
	}
	return dims
}

func authorizeView(ctx context.Context, documentID string) error {
	if !actor.FromContext(ctx).CanView(documentID) {
		return apperrors.Forbidden("signing link is not valid for this document")
	}
	return nil
}

// authorizeEdit keeps signers out of placement changes
func authorizeEdit(ctx context.Context, documentID string) error {
	if a := actor.FromContext(ctx); a != nil && a.Role == actor.RoleSigner {
		return apperrors.Forbidden("signers cannot change field placement")
	}
	return authorizeView(ctx, documentID)
}

func normalizeFailure(err error) error {
	var ne *domain.NormalizeError
	if apperrors.As(err, &ne) {
		return apperrors.Validation(map[string]string{
			ne.FieldID + "." + ne.Attribute: ne.Err.Error(),
		})
	}
	return apperrors.BadRequest(err.Error())
}

func measureFailure(err error) error {
	switch {
	case apperrors.Is(err, pages.ErrDocumentNotFound):
		return apperrors.NotFound("document")
	case apperrors.Is(err, pages.ErrInvalidDocument):
		return apperrors.BadRequest("invalid document id")
	case apperrors.Is(err, pages.ErrDocumentTooLarge):
		return apperrors.Unprocessable("DOCUMENT_TOO_LARGE", "document exceeds the size limit")
	case apperrors.Is(err, pages.ErrPageOutOfRange):
		return apperrors.NotFound("page")
	}
	return err
}
