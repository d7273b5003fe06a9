package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/internal/fields/overlay"
	"github.com/signflow/signflow-backend/internal/fields/service"
	"github.com/signflow/signflow-backend/pkg/errors"
	"github.com/signflow/signflow-backend/pkg/httputil"
	"github.com/signflow/signflow-backend/pkg/logger"
)

func init() {
	if err := httputil.RegisterCustomValidation("fieldtype", func(fl validator.FieldLevel) bool {
		return domain.FieldType(fl.Field().String()).Valid()
	}); err != nil {
		panic(err)
	}
}

// FieldHandler handles field placement endpoints
type FieldHandler struct {
	service *service.FieldService
	logger  *logger.Logger
}

// NewFieldHandler creates a new field handler
func NewFieldHandler(svc *service.FieldService, log *logger.Logger) *FieldHandler {
	return &FieldHandler{
		service: svc,
		logger:  log,
	}
}

// RegisterRoutes mounts the document field routes on r
func (h *FieldHandler) RegisterRoutes(r chi.Router) {
	r.Route("/documents/{documentId}", func(r chi.Router) {
		r.Get("/fields", h.List)
		r.Put("/fields", h.Save)
		r.Post("/fields/validate", h.Validate)
		r.Post("/fields/defaults", h.Defaults)
		r.Get("/pages", h.Pages)
		r.Get("/pages/{page}/overlay", h.Overlay)
		r.Post("/pages/{page}/overlay", h.Overlay)
	})
}

type saveRequest struct {
	Fields []domain.RawField `json:"fields" validate:"required"`
}

type defaultsRequest struct {
	Type       string `json:"type" validate:"required,fieldtype"`
	PageNumber int    `json:"page_number" validate:"required,gte=1"`
}

type signerDTO struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email" validate:"omitempty,email"`
	Color string `json:"color" validate:"omitempty,hexcolor"`
}

type overlayRequest struct {
	RenderedWidth float64     `json:"rendered_width" validate:"gte=0"`
	Zoom          float64     `json:"zoom" validate:"gte=0"`
	Mode          string      `json:"mode" validate:"omitempty,oneof=edit sign preview"`
	SignerID      string      `json:"signer_id"`
	SelectedID    string      `json:"selected_id"`
	Signers       []signerDTO `json:"signers" validate:"dive"`
}

// List returns the document's fields
func (h *FieldHandler) List(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentIDParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	fields, err := h.service.List(r.Context(), documentID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, fields, &httputil.Meta{Total: int64(len(fields))})
}

// Save replaces the document's field list
func (h *FieldHandler) Save(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentIDParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req saveRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Save(r.Context(), documentID, req.Fields)
	if err != nil {
		var gate *service.GateError
		switch {
		case errors.As(err, &gate):
			httputil.Reject(w, http.StatusUnprocessableEntity, "FIELD_VALIDATION_FAILED", gate.Error(), gate.Result)
		case errors.Is(err, service.ErrSaveInProgress):
			httputil.Error(w, errors.Conflict("a save for this document is already in progress"))
		default:
			httputil.Error(w, err)
		}
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Validate runs the validation engine over the posted fields without saving
func (h *FieldHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if _, err := documentIDParam(r); err != nil {
		httputil.Error(w, err)
		return
	}

	var req saveRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	result, err := h.service.Validate(r.Context(), req.Fields)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, result)
}

// Defaults returns the field a palette drop would create
func (h *FieldHandler) Defaults(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentIDParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req defaultsRequest
	if err := httputil.DecodeAndValidate(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	field, err := h.service.Defaults(r.Context(), documentID, domain.FieldType(req.Type), req.PageNumber)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, field)
}

// Pages returns the intrinsic page sizes
func (h *FieldHandler) Pages(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentIDParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	dims, err := h.service.Pages(r.Context(), documentID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, dims, &httputil.Meta{Total: int64(len(dims))})
}

// Overlay renders one page's placements. GET takes the view parameters
// from the query string; POST takes them from the body, along with the
// signer records used for colours and names.
func (h *FieldHandler) Overlay(w http.ResponseWriter, r *http.Request) {
	documentID, err := documentIDParam(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	page, err := domain.ParsePageNumber(chi.URLParam(r, "page"))
	if err != nil {
		httputil.Error(w, errors.BadRequest("page must be a positive integer"))
		return
	}

	var req overlayRequest
	if r.Method == http.MethodPost {
		err = httputil.DecodeAndValidate(r, &req)
	} else {
		req, err = overlayQuery(r)
	}
	if err != nil {
		httputil.Error(w, err)
		return
	}

	q := service.OverlayQuery{
		DocumentID:    documentID,
		Page:          page,
		RenderedWidth: req.RenderedWidth,
		Zoom:          req.Zoom,
		Mode:          overlay.Mode(req.Mode),
		SignerID:      req.SignerID,
		SelectedID:    req.SelectedID,
	}
	for _, s := range req.Signers {
		q.Signers = append(q.Signers, domain.Signer{ID: s.ID, Name: s.Name, Email: s.Email, Color: s.Color})
	}

	view, err := h.service.Overlay(r.Context(), q)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, view)
}

func overlayQuery(r *http.Request) (overlayRequest, error) {
	query := r.URL.Query()
	req := overlayRequest{
		Mode:       query.Get("mode"),
		SignerID:   query.Get("signer_id"),
		SelectedID: query.Get("selected_id"),
	}

	var err error
	if req.RenderedWidth, err = floatParam(query.Get("rendered_width")); err != nil {
		return req, errors.Validation(map[string]string{"rendered_width": "must be a number"})
	}
	if req.Zoom, err = floatParam(query.Get("zoom")); err != nil {
		return req, errors.Validation(map[string]string{"zoom": "must be a number"})
	}

	return req, httputil.Validate(req)
}

func floatParam(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return cast.ToFloat64E(s)
}

func documentIDParam(r *http.Request) (string, error) {
	id := chi.URLParam(r, "documentId")
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.BadRequest("invalid document id")
	}
	return id, nil
}
