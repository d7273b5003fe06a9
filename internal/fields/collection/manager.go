// Package collection keeps the in-memory field list of one document while
// it is being edited.
//
// A Manager belongs to exactly one editing session and is not safe for
// concurrent use. It never persists anything; callers hand Fields() to the
// store when the user saves.
package collection

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/signflow/signflow-backend/internal/fields/domain"
)

// GeometryTolerance is the smallest geometry change, in points, that counts as an edit
const GeometryTolerance = 0.01

// cascadeStep offsets each additional field placed on the same page
const cascadeStep = 12.0

var (
	ErrFieldNotFound   = errors.New("field not found")
	ErrInvalidGeometry = errors.New("invalid field geometry")
	ErrInvalidType     = errors.New("unknown field type")
)

// PageSize reports the intrinsic size of a page in points. ok is false when
// the page is unknown, in which case US Letter is assumed.
type PageSize func(page int) (width, height float64, ok bool)

// Letter is the page size used when no measurement is available
const (
	LetterWidth  = 612.0
	LetterHeight = 792.0
)

// Manager holds the ordered fields of one document
type Manager struct {
	fields   []domain.Field
	selected string
	version  uint64
	pageSize PageSize
	newID    func() string
}

// Option configures a Manager
type Option func(*Manager)

// WithPageSize lets Add center new fields on the real page
func WithPageSize(ps PageSize) Option {
	return func(m *Manager) { m.pageSize = ps }
}

// WithIDGenerator replaces the temp id source, for deterministic tests
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) { m.newID = gen }
}

// New creates an empty manager
func New(opts ...Option) *Manager {
	m := &Manager{
		fields: []domain.Field{},
		newID: func() string {
			return domain.TempIDPrefix + uuid.New().String()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hydrate replaces the collection with persisted records. Missing optional
// attributes are filled from the type defaults. Selection is cleared.
func (m *Manager) Hydrate(fields []domain.Field) {
	next := make([]domain.Field, len(fields))
	for i, f := range fields {
		domain.ApplyDefaults(&f)
		next[i] = f
	}
	m.fields = next
	m.selected = ""
	m.version++
}

// HydrateRaw normalizes loosely typed records and hydrates from them
func (m *Manager) HydrateRaw(raws []domain.RawField) error {
	fields, err := domain.NormalizeAll(raws)
	if err != nil {
		return err
	}
	m.Hydrate(fields)
	return nil
}

// Fields returns the current list. The returned slice is never modified
// afterwards; every change produces a new slice.
func (m *Manager) Fields() []domain.Field {
	return m.fields
}

// Version increases whenever Fields would return a different slice
func (m *Manager) Version() uint64 {
	return m.version
}

// Len returns the number of fields
func (m *Manager) Len() int {
	return len(m.fields)
}

// Get looks up a field by id
func (m *Manager) Get(id string) (domain.Field, bool) {
	if i := m.indexOf(id); i >= 0 {
		return m.fields[i], true
	}
	return domain.Field{}, false
}

// Add places a new field of type t on page and selects it. The field is
// centred on the page and cascaded below any fields already placed there.
func (m *Manager) Add(t domain.FieldType, page int) (domain.Field, error) {
	if !t.Valid() {
		return domain.Field{}, fmt.Errorf("%w: %q", ErrInvalidType, t)
	}
	if page < 1 {
		return domain.Field{}, fmt.Errorf("%w: page %d", ErrInvalidGeometry, page)
	}

	f := domain.Field{ID: m.newID(), Type: t, PageNumber: page}
	domain.ApplyDefaults(&f)
	f.X, f.Y = m.initialPosition(page, f.Width, f.Height)

	m.fields = append(m.clone(), f)
	m.selected = f.ID
	m.version++
	return f, nil
}

func (m *Manager) initialPosition(page int, w, h float64) (float64, float64) {
	pw, ph := LetterWidth, LetterHeight
	if m.pageSize != nil {
		if mw, mh, ok := m.pageSize(page); ok && mw > 0 && mh > 0 {
			pw, ph = mw, mh
		}
	}

	onPage := 0
	for _, f := range m.fields {
		if f.PageNumber == page {
			onPage++
		}
	}

	offset := cascadeStep * float64(onPage)
	x := (pw-w)/2 + offset
	y := (ph-h)/2 + offset

	return clamp(x, 0, math.Max(0, pw-w)), clamp(y, 0, math.Max(0, ph-h))
}

// Update replaces the stored record with the same id. It reports false and
// leaves Fields untouched when nothing changed beyond GeometryTolerance.
func (m *Manager) Update(f domain.Field) (bool, error) {
	i := m.indexOf(f.ID)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrFieldNotFound, f.ID)
	}
	if err := Sanitize(&f); err != nil {
		return false, err
	}
	if Equivalent(m.fields[i], f) {
		return false, nil
	}

	next := m.clone()
	next[i] = f
	m.fields = next
	m.version++
	return true, nil
}

// UpdateRaw normalizes a loosely typed record before updating
func (m *Manager) UpdateRaw(raw domain.RawField) (bool, error) {
	f, err := raw.Normalize()
	if err != nil {
		return false, err
	}
	return m.Update(f)
}

// Delete removes a field and clears the selection if it pointed at it
func (m *Manager) Delete(id string) error {
	i := m.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}

	next := make([]domain.Field, 0, len(m.fields)-1)
	next = append(next, m.fields[:i]...)
	next = append(next, m.fields[i+1:]...)
	m.fields = next
	if m.selected == id {
		m.selected = ""
	}
	m.version++
	return nil
}

// Select marks a field as active. An empty id clears the selection.
func (m *Manager) Select(id string) error {
	if id == "" {
		m.selected = ""
		return nil
	}
	if m.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrFieldNotFound, id)
	}
	m.selected = id
	return nil
}

// Selected returns the active field, if any
func (m *Manager) Selected() (domain.Field, bool) {
	if m.selected == "" {
		return domain.Field{}, false
	}
	return m.Get(m.selected)
}

// Clear empties the collection and the selection
func (m *Manager) Clear() {
	m.fields = []domain.Field{}
	m.selected = ""
	m.version++
}

// Equivalent reports whether b differs from a by less than
// GeometryTolerance in every geometric attribute and not at all otherwise.
func Equivalent(a, b domain.Field) bool {
	if !near(a.X, b.X) || !near(a.Y, b.Y) || !near(a.Width, b.Width) || !near(a.Height, b.Height) {
		return false
	}
	a.X, a.Y, a.Width, a.Height = b.X, b.Y, b.Width, b.Height
	return a == b
}

func near(a, b float64) bool {
	return math.Abs(a-b) < GeometryTolerance
}

// Sanitize enforces the placement invariants on an incoming record. Negative
// coordinates are clamped to zero; everything else invalid is an error.
func Sanitize(f *domain.Field) error {
	if !f.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, f.Type)
	}
	for _, v := range []float64{f.X, f.Y, f.Width, f.Height, f.FontSize} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value on %s", ErrInvalidGeometry, f.ID)
		}
	}
	if f.PageNumber < 1 {
		return fmt.Errorf("%w: page %d on %s", ErrInvalidGeometry, f.PageNumber, f.ID)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: non-positive size on %s", ErrInvalidGeometry, f.ID)
	}
	f.X = math.Max(0, f.X)
	f.Y = math.Max(0, f.Y)
	return nil
}

func (m *Manager) indexOf(id string) int {
	for i := range m.fields {
		if m.fields[i].ID == id {
			return i
		}
	}
	return -1
}

func (m *Manager) clone() []domain.Field {
	next := make([]domain.Field, len(m.fields), len(m.fields)+1)
	copy(next, m.fields)
	return next
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
