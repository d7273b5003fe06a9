package service

import (
	"context"

	"github.com/signflow/signflow-backend/internal/documents/pages"
	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/internal/fields/geometry"
	"github.com/signflow/signflow-backend/internal/fields/overlay"
	"github.com/signflow/signflow-backend/pkg/actor"
	apperrors "github.com/signflow/signflow-backend/pkg/errors"
)

// OverlayQuery describes the page a viewer is looking at
type OverlayQuery struct {
	DocumentID string
	Page       int
	// RenderedWidth is the on-screen width of the page canvas in pixels; 0 when unknown
	RenderedWidth float64
	// Zoom is the viewer's requested zoom, used when RenderedWidth is unknown
	Zoom       float64
	Mode       overlay.Mode
	SignerID   string
	SelectedID string
	Signers    []domain.Signer
}

// OverlayView is one rendered page overlay
type OverlayView struct {
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	PageCount  int    `json:"page_count"`
	// PageSize is the intrinsic size in points, zero when the PDF could not be measured
	PageSize      pages.Dim           `json:"page_size"`
	Scale         float64             `json:"scale"`
	ScaleMeasured bool                `json:"scale_measured"`
	Mode          overlay.Mode        `json:"mode"`
	Placements    []overlay.Placement `json:"placements"`
}

// Overlay renders the field placements of one page in screen coordinates.
// A signer viewer always gets the signing view of their own link.
func (s *FieldService) Overlay(ctx context.Context, q OverlayQuery) (*OverlayView, error) {
	if err := authorizeView(ctx, q.DocumentID); err != nil {
		return nil, err
	}
	if q.Page < 1 {
		return nil, apperrors.BadRequest("page must be positive")
	}

	if q.Mode == "" {
		q.Mode = overlay.ModeEdit
	}
	if !q.Mode.Valid() {
		return nil, apperrors.BadRequest("unknown overlay mode: " + string(q.Mode))
	}

	a := actor.FromContext(ctx)
	if id := a.SignerID(); id != "" {
		q.SignerID = id
		if q.Mode == overlay.ModeEdit {
			q.Mode = overlay.ModeSign
		}
	}

	fields, err := s.store.ListByDocument(ctx, q.DocumentID)
	if err != nil {
		return nil, err
	}

	dims := s.pageDims(ctx, q.DocumentID)
	var size pages.Dim
	if q.Page <= len(dims) {
		size = dims[q.Page-1]
	}

	scale, measured := s.scaleFor(a, q, size.Width)

	signers := make(map[string]domain.Signer, len(q.Signers))
	for _, sg := range q.Signers {
		signers[sg.ID] = sg
	}

	placements := overlay.Render(overlay.Request{
		Fields:          fields,
		Page:            q.Page,
		PageCount:       len(dims),
		Scale:           scale,
		Mode:            q.Mode,
		CurrentSignerID: q.SignerID,
		Signers:         signers,
		SelectedID:      q.SelectedID,
	})

	return &OverlayView{
		DocumentID:    q.DocumentID,
		Page:          q.Page,
		PageCount:     len(dims),
		PageSize:      size,
		Scale:         scale,
		ScaleMeasured: measured,
		Mode:          q.Mode,
		Placements:    placements,
	}, nil
}

// maxTrackedDocuments bounds how many documents keep per-viewer scales
const maxTrackedDocuments = 1024

// scaleFor prefers a measured factor, then the requested zoom, then the
// last factor measured for this viewer and document. Anonymous viewers
// cannot be told apart, so nothing is remembered for them.
func (s *FieldService) scaleFor(a *actor.Actor, q OverlayQuery, intrinsicWidth float64) (float64, bool) {
	tracker := geometry.NewScaleTracker(s.overlay.NominalZoom)
	if a != nil {
		tracker = s.tracker(q.DocumentID, string(a.Role)+":"+a.ID)
	}

	scale, measured := tracker.Observe(q.RenderedWidth, intrinsicWidth)
	if measured {
		return scale, true
	}

	if q.Zoom > 0 {
		scale = geometry.ClampZoom(q.Zoom, s.overlay.MinZoom, s.overlay.MaxZoom)
	}
	if q.RenderedWidth > 0 {
		s.logger.Warn().
			Str("document_id", q.DocumentID).
			Float64("scale", scale).
			Msg("page width unavailable, using fallback scale")
	}
	return scale, false
}

func (s *FieldService) tracker(documentID, viewer string) *geometry.ScaleTracker {
	s.mu.Lock()
	defer s.mu.Unlock()

	viewers, ok := s.trackers[documentID]
	if !ok {
		for len(s.trackers) > 0 && len(s.trackers) >= s.trackLimit {
			for id := range s.trackers {
				delete(s.trackers, id)
				break
			}
		}
		viewers = make(map[string]*geometry.ScaleTracker)
		s.trackers[documentID] = viewers
	}

	t, ok := viewers[viewer]
	if !ok {
		t = geometry.NewScaleTracker(s.overlay.NominalZoom)
		viewers[viewer] = t
	}
	return t
}

// Forget drops the viewer scales remembered for a document
func (s *FieldService) Forget(documentID string) {
	s.mu.Lock()
	delete(s.trackers, documentID)
	s.mu.Unlock()
}
