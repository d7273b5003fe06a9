package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/signflow/signflow-backend/internal/documents/pages"
	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/internal/fields/events"
	"github.com/signflow/signflow-backend/internal/fields/overlay"
	"github.com/signflow/signflow-backend/internal/fields/validation"
	"github.com/signflow/signflow-backend/pkg/actor"
	"github.com/signflow/signflow-backend/pkg/config"
	apperrors "github.com/signflow/signflow-backend/pkg/errors"
	"github.com/signflow/signflow-backend/pkg/logger"
	"github.com/signflow/signflow-backend/pkg/messaging"
	"github.com/signflow/signflow-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	docID   = "6f1c2b9e-8a43-4d1f-9a57-0c3b7f2e5d10"
	fieldA  = "0b6e3c1a-2f4d-4e8b-9c7a-1d2e3f4a5b6c"
	fieldB  = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	pngData = "data:image/png;base64,iVBORw0KGgo="
)

type fakeStore struct {
	mu       sync.Mutex
	fields   []domain.Field
	replaced [][]domain.Field
	err      error

	// entered and release let a test hold ReplaceAll open
	entered chan struct{}
	release chan struct{}
}

func (f *fakeStore) ListByDocument(ctx context.Context, documentID string) ([]domain.Field, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields, f.err
}

func (f *fakeStore) ReplaceAll(ctx context.Context, documentID string, fields []domain.Field) error {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.replaced = append(f.replaced, fields)
	f.fields = fields
	return nil
}

type fakeMeasurer struct {
	dims []pages.Dim
	err  error
}

func (f *fakeMeasurer) PageDims(ctx context.Context, documentID string) ([]pages.Dim, error) {
	return f.dims, f.err
}

func overlayConfig() config.OverlayConfig {
	return config.OverlayConfig{NominalZoom: 1, MinZoom: 0.5, MaxZoom: 2}
}

func newTestService(store *fakeStore, measurer *fakeMeasurer) (*FieldService, *testutil.MockPublisher) {
	mock := testutil.NewMockPublisher()
	log := logger.Nop()
	today := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := NewFieldService(
		store,
		measurer,
		events.NewFieldEventPublisherWith(mock, log),
		overlayConfig(),
		log,
		WithValidator(validation.New(validation.WithClock(func() time.Time { return today }))),
	)
	return svc, mock
}

func letter() *fakeMeasurer {
	return &fakeMeasurer{dims: []pages.Dim{{Width: 612, Height: 792}, {Width: 612, Height: 792}}}
}

func TestSave_AssignsIDsAndRetargetsLogic(t *testing.T) {
	store := &fakeStore{}
	svc, mock := newTestService(store, letter())

	raws := []domain.RawField{
		{ID: "temp-1", Type: "checkbox", PageNumber: 1, X: 10, Y: 10, Width: 24, Height: 24, Value: "true"},
		{
			ID: "temp-2", Type: "text", PageNumber: "1", X: "40", Y: 10, Width: 150, Height: 30,
			Required: true, Value: "Acme",
			ConditionalLogic: `{"condition":"checked","action":"show","targetFieldId":"temp-1"}`,
		},
		{ID: fieldA, Type: "signature", PageNumber: 2, X: 0, Y: 0, Width: 200, Height: 60, Value: pngData},
	}

	res, err := svc.Save(context.Background(), docID, raws)
	require.NoError(t, err)

	require.Len(t, res.IDMapping, 2)
	newCheckbox := res.IDMapping["temp-1"]
	assert.True(t, testutil.IsUUID(newCheckbox))
	assert.True(t, testutil.IsUUID(res.IDMapping["temp-2"]))

	require.Len(t, res.Fields, 3)
	assert.Equal(t, newCheckbox, res.Fields[0].ID)
	assert.Equal(t, fieldA, res.Fields[2].ID, "persisted ids are kept")
	assert.JSONEq(t,
		`{"condition":"checked","action":"show","targetFieldId":"`+newCheckbox+`"}`,
		res.Fields[1].ConditionalLogic)
	assert.Equal(t, 40.0, res.Fields[1].X)

	require.Len(t, store.replaced, 1)
	assert.Equal(t, res.Fields, store.replaced[0])

	mock.AssertEventPublished(t, messaging.EventFieldsSaved)
}

func TestSave_GateBlocksInvalidVisibleFields(t *testing.T) {
	store := &fakeStore{}
	svc, mock := newTestService(store, letter())

	raws := []domain.RawField{
		{ID: "temp-sig", Type: "signature", PageNumber: 1, Width: 200, Height: 60, Required: true},
		{ID: "temp-mail", Type: "email", PageNumber: 1, Width: 200, Height: 30, Value: "not-an-email"},
	}

	_, err := svc.Save(context.Background(), docID, raws)

	var gate *GateError
	require.ErrorAs(t, err, &gate)
	assert.False(t, gate.Result.Valid)
	require.Contains(t, gate.Result.ErrorsByFieldID, "temp-sig")
	assert.Equal(t, validation.CodeRequired, gate.Result.ErrorsByFieldID["temp-sig"][0].Code)
	require.Contains(t, gate.Result.ErrorsByFieldID, "temp-mail")
	assert.Equal(t, validation.CodeFormat, gate.Result.ErrorsByFieldID["temp-mail"][0].Code)

	assert.Empty(t, store.replaced)
	mock.AssertNoEventsPublished(t)
}

func TestSave_HiddenRequiredFieldDoesNotBlock(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newTestService(store, letter())

	raws := []domain.RawField{
		{ID: "temp-1", Type: "checkbox", PageNumber: 1, Width: 24, Height: 24, Value: "false"},
		{
			ID: "temp-2", Type: "text", PageNumber: 1, Width: 150, Height: 30, Required: true,
			ConditionalLogic: `{"condition":"checked","action":"show","targetFieldId":"temp-1"}`,
		},
	}

	_, err := svc.Save(context.Background(), docID, raws)
	require.NoError(t, err)
	require.Len(t, store.replaced, 1)
}

func TestSave_ValueShape(t *testing.T) {
	tests := []struct {
		name  string
		raw   domain.RawField
		valid bool
	}{
		{"signature data url", domain.RawField{Type: "signature", Value: pngData}, true},
		{"signature plain text", domain.RawField{Type: "signature", Value: "John"}, false},
		{"image url", domain.RawField{Type: "image", Value: "https://example.com/a.png"}, false},
		{"checkbox bool", domain.RawField{Type: "checkbox", Value: "TRUE"}, true},
		{"checkbox junk", domain.RawField{Type: "checkbox", Value: "yes"}, false},
		{"dropdown option", domain.RawField{Type: "dropdown", Options: `["A","B"]`, Value: "B"}, true},
		{"dropdown unknown", domain.RawField{Type: "dropdown", Options: `["A","B"]`, Value: "C"}, false},
		{"radio malformed options", domain.RawField{Type: "radio", Options: `A,B`, Value: "A"}, false},
		{"hidden signature still checked", domain.RawField{
			Type: "signature", Value: "John",
			ConditionalLogic: `{"condition":"not_empty","action":"show","targetFieldId":"missing"}`,
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc, _ := newTestService(store, letter())

			raw := tt.raw
			raw.ID = "temp-x"
			raw.PageNumber = 1
			raw.Width = 100
			raw.Height = 40

			_, err := svc.Save(context.Background(), docID, []domain.RawField{raw})
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var gate *GateError
			require.ErrorAs(t, err, &gate)
			assert.Equal(t, validation.CodeFormat, gate.Result.ErrorsByFieldID["temp-x"][0].Code)
		})
	}
}

func TestSave_RejectsBadRecords(t *testing.T) {
	tests := []struct {
		name string
		raws []domain.RawField
	}{
		{"unparseable number", []domain.RawField{{ID: "a", Type: "text", PageNumber: 1, X: "left", Width: 10, Height: 10}}},
		{"unknown type", []domain.RawField{{ID: "a", Type: "hologram", PageNumber: 1, Width: 10, Height: 10}}},
		{"zero width", []domain.RawField{{ID: "a", Type: "text", PageNumber: 1, Width: 0, Height: 10}}},
		{"page zero", []domain.RawField{{ID: "a", Type: "text", PageNumber: 0, Width: 10, Height: 10}}},
		{"duplicate ids", []domain.RawField{
			{ID: "a", Type: "text", PageNumber: 1, Width: 10, Height: 10},
			{ID: "a", Type: "text", PageNumber: 1, Width: 10, Height: 10},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			svc, _ := newTestService(store, letter())

			_, err := svc.Save(context.Background(), docID, tt.raws)

			var appErr *apperrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, 400, appErr.StatusCode)
			assert.Empty(t, store.replaced)
		})
	}
}

func TestSave_RejectsConcurrentSaveOfSameDocument(t *testing.T) {
	store := &fakeStore{entered: make(chan struct{}), release: make(chan struct{})}
	svc, _ := newTestService(store, letter())

	raws := []domain.RawField{{ID: "temp-1", Type: "text", PageNumber: 1, Width: 100, Height: 30}}

	done := make(chan error, 1)
	go func() {
		_, err := svc.Save(context.Background(), docID, raws)
		done <- err
	}()
	<-store.entered

	_, err := svc.Save(context.Background(), docID, raws)
	assert.ErrorIs(t, err, ErrSaveInProgress)

	close(store.release)
	require.NoError(t, <-done)

	store.entered = nil
	_, err = svc.Save(context.Background(), docID, raws)
	assert.NoError(t, err, "guard is released after the first save")
}

func TestSave_StoreFailureIsReturned(t *testing.T) {
	store := &fakeStore{err: errors.New("connection reset")}
	svc, mock := newTestService(store, letter())

	_, err := svc.Save(context.Background(), docID, []domain.RawField{
		{ID: "temp-1", Type: "text", PageNumber: 1, Width: 100, Height: 30},
	})
	assert.EqualError(t, err, "connection reset")
	mock.AssertNoEventsPublished(t)
}

func TestSave_SignerIsForbidden(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newTestService(store, letter())
	ctx := actor.WithActor(context.Background(), &actor.Actor{ID: "S1", Role: actor.RoleSigner, DocumentID: docID})

	_, err := svc.Save(ctx, docID, nil)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestValidate(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, letter())

	res, err := svc.Validate(context.Background(), []domain.RawField{
		{ID: "n", Type: "number", PageNumber: 1, Width: 80, Height: 30, Value: "15", ValidationRule: "range:1,10"},
		{ID: "t", Type: "text", PageNumber: 1, Width: 80, Height: 30, Value: "ok"},
	})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, validation.CodeRange, res.ErrorsByFieldID["n"][0].Code)
	assert.NotContains(t, res.ErrorsByFieldID, "t")
}

func TestDefaults_CentersOnMeasuredPage(t *testing.T) {
	store := &fakeStore{}
	svc, _ := newTestService(store, &fakeMeasurer{dims: []pages.Dim{{Width: 600, Height: 800}}})

	f, err := svc.Defaults(context.Background(), docID, domain.TypeSignature, 1)
	require.NoError(t, err)

	assert.True(t, f.IsTemporary())
	assert.Equal(t, 200.0, f.X)
	assert.Equal(t, 370.0, f.Y)
	assert.Empty(t, store.replaced, "defaults are never persisted")
}

func TestDefaults_RejectsPageBeyondDocument(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, &fakeMeasurer{dims: []pages.Dim{{Width: 600, Height: 800}}})

	_, err := svc.Defaults(context.Background(), docID, domain.TypeText, 3)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 400, appErr.StatusCode)
}

func TestLoad_UnmeasurableDocumentUsesLetter(t *testing.T) {
	store := &fakeStore{fields: []domain.Field{{ID: fieldA, Type: domain.TypeText, PageNumber: 1, Width: 150, Height: 30}}}
	svc, _ := newTestService(store, &fakeMeasurer{err: pages.ErrDocumentNotFound})

	m, err := svc.Load(context.Background(), docID)
	require.NoError(t, err)
	require.Equal(t, 1, m.Len())

	f, err := m.Add(domain.TypeCheckbox, 1)
	require.NoError(t, err)
	assert.Equal(t, (612.0-24)/2+12, f.X)
}

func TestPages_MapsMeasurementErrors(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, &fakeMeasurer{err: pages.ErrDocumentNotFound})

	_, err := svc.Pages(context.Background(), docID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestOverlay_ScaleFromMeasurementThenLastKnown(t *testing.T) {
	store := &fakeStore{fields: []domain.Field{
		{ID: fieldA, Type: domain.TypeText, PageNumber: 1, X: 100, Y: 200, Width: 150, Height: 30},
		{ID: fieldB, Type: domain.TypeText, PageNumber: 2, X: 0, Y: 0, Width: 150, Height: 30},
	}}
	measurer := letter()
	svc, _ := newTestService(store, measurer)
	ctx := actor.WithActor(context.Background(), &actor.Actor{ID: "U1", Role: actor.RoleEditor})

	view, err := svc.Overlay(ctx, OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 918})
	require.NoError(t, err)
	assert.Equal(t, 1.5, view.Scale)
	assert.True(t, view.ScaleMeasured)
	assert.Equal(t, 2, view.PageCount)
	require.Len(t, view.Placements, 1)
	assert.Equal(t, 150.0, view.Placements[0].Rect.X)
	assert.Equal(t, 300.0, view.Placements[0].Rect.Y)
	assert.Equal(t, 225.0, view.Placements[0].Rect.Width)

	measurer.err = errors.New("pdf unreadable")
	view, err = svc.Overlay(ctx, OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 918})
	require.NoError(t, err)
	assert.Equal(t, 1.5, view.Scale, "last known factor")
	assert.False(t, view.ScaleMeasured)
	assert.Zero(t, view.PageCount)
}

func TestOverlay_AnonymousViewersShareNoScale(t *testing.T) {
	measurer := letter()
	svc, _ := newTestService(&fakeStore{}, measurer)

	view, err := svc.Overlay(context.Background(), OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 918})
	require.NoError(t, err)
	assert.Equal(t, 1.5, view.Scale)

	measurer.err = errors.New("pdf unreadable")
	view, err = svc.Overlay(context.Background(), OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 306})
	require.NoError(t, err)
	assert.Equal(t, 1.0, view.Scale, "another anonymous viewer gets the nominal zoom")
	assert.False(t, view.ScaleMeasured)
	assert.Empty(t, svc.trackers)
}

func TestOverlay_ViewersKeepTheirOwnScale(t *testing.T) {
	measurer := letter()
	svc, _ := newTestService(&fakeStore{}, measurer)
	alice := actor.WithActor(context.Background(), &actor.Actor{ID: "U1", Role: actor.RoleEditor})
	bob := actor.WithActor(context.Background(), &actor.Actor{ID: "U2", Role: actor.RoleEditor})

	_, err := svc.Overlay(alice, OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 918})
	require.NoError(t, err)
	_, err = svc.Overlay(bob, OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 306})
	require.NoError(t, err)

	measurer.err = errors.New("pdf unreadable")
	view, err := svc.Overlay(alice, OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 918})
	require.NoError(t, err)
	assert.Equal(t, 1.5, view.Scale)
	view, err = svc.Overlay(bob, OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 306})
	require.NoError(t, err)
	assert.Equal(t, 0.5, view.Scale)
}

func TestOverlay_ForgetDropsDocumentScales(t *testing.T) {
	measurer := letter()
	svc, _ := newTestService(&fakeStore{}, measurer)
	ctx := actor.WithActor(context.Background(), &actor.Actor{ID: "U1", Role: actor.RoleEditor})

	_, err := svc.Overlay(ctx, OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 918})
	require.NoError(t, err)
	require.Len(t, svc.trackers, 1)

	svc.Forget(docID)
	assert.Empty(t, svc.trackers)

	measurer.err = errors.New("pdf unreadable")
	view, err := svc.Overlay(ctx, OverlayQuery{DocumentID: docID, Page: 1, RenderedWidth: 918})
	require.NoError(t, err)
	assert.Equal(t, 1.0, view.Scale, "nominal zoom after forget")
}

func TestOverlay_TrackedDocumentsAreCapped(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, letter())
	svc.trackLimit = 3
	ctx := actor.WithActor(context.Background(), &actor.Actor{ID: "U1", Role: actor.RoleEditor})

	for i := 0; i < 10; i++ {
		_, err := svc.Overlay(ctx, OverlayQuery{DocumentID: fmt.Sprintf("doc-%d", i), Page: 1, RenderedWidth: 612})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(svc.trackers), 3)
	}
	assert.Contains(t, svc.trackers, "doc-9")
}

func TestOverlay_ZoomFallbackIsClamped(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, letter())

	view, err := svc.Overlay(context.Background(), OverlayQuery{DocumentID: docID, Page: 1, Zoom: 5})
	require.NoError(t, err)
	assert.Equal(t, 2.0, view.Scale)

	view, err = svc.Overlay(context.Background(), OverlayQuery{DocumentID: docID, Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, view.Scale, "nominal zoom")
}

func TestOverlay_PageBeyondDocumentIsEmpty(t *testing.T) {
	store := &fakeStore{fields: []domain.Field{
		{ID: fieldA, Type: domain.TypeText, PageNumber: 3, Width: 150, Height: 30},
	}}
	svc, _ := newTestService(store, letter())

	view, err := svc.Overlay(context.Background(), OverlayQuery{DocumentID: docID, Page: 3, RenderedWidth: 612})
	require.NoError(t, err)
	assert.Empty(t, view.Placements)
	assert.NotNil(t, view.Placements)
}

func TestOverlay_SignerGetsSigningView(t *testing.T) {
	store := &fakeStore{fields: []domain.Field{
		{ID: fieldA, Type: domain.TypeSignature, PageNumber: 1, Width: 200, Height: 60, SignerID: "S1"},
		{ID: fieldB, Type: domain.TypeSignature, PageNumber: 1, Width: 200, Height: 60, SignerID: "S2"},
	}}
	svc, _ := newTestService(store, letter())
	ctx := actor.WithActor(context.Background(), &actor.Actor{ID: "S1", Role: actor.RoleSigner, DocumentID: docID})

	view, err := svc.Overlay(ctx, OverlayQuery{
		DocumentID: docID,
		Page:       1,
		Mode:       overlay.ModeEdit,
		SignerID:   "S2",
		Signers:    []domain.Signer{{ID: "S2", Name: "Bob", Color: "#3366ff"}},
	})
	require.NoError(t, err)

	assert.Equal(t, overlay.ModeSign, view.Mode)
	require.Len(t, view.Placements, 2)
	assert.True(t, view.Placements[0].Interactive)
	assert.Equal(t, "Click to sign", view.Placements[0].Content.Text)
	assert.False(t, view.Placements[1].Interactive)
	assert.Equal(t, "Waiting for Bob", view.Placements[1].Content.Text)
	assert.Equal(t, "#3366ff33", view.Placements[1].Style.BackgroundColor)
}

func TestOverlay_SignerScopedToOwnDocument(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, letter())
	ctx := actor.WithActor(context.Background(), &actor.Actor{ID: "S1", Role: actor.RoleSigner, DocumentID: "other-doc"})

	_, err := svc.Overlay(ctx, OverlayQuery{DocumentID: docID, Page: 1})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestOverlay_RejectsUnknownMode(t *testing.T) {
	svc, _ := newTestService(&fakeStore{}, letter())

	_, err := svc.Overlay(context.Background(), OverlayQuery{DocumentID: docID, Page: 1, Mode: "print"})
	assert.ErrorIs(t, err, apperrors.ErrBadRequest)
}
