package pages

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/signflow/signflow-backend/pkg/logger"
)

// Dim is the intrinsic size of one page in PDF points
type Dim struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DimsReader extracts page sizes from PDF bytes
type DimsReader func(rs io.ReadSeeker) ([]Dim, error)

var disableConfigDir sync.Once

// PDFCPUDims reads page sizes with pdfcpu in relaxed validation mode
func PDFCPUDims(rs io.ReadSeeker) ([]Dim, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	dims, err := api.PageDims(rs, conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read page dimensions: %w", err)
	}

	out := make([]Dim, len(dims))
	for i, d := range dims {
		out[i] = Dim{Width: d.Width, Height: d.Height}
	}
	return out, nil
}

// Measurer caches page sizes per document. PDFs are immutable once
// uploaded, so entries only leave the cache through Forget.
type Measurer struct {
	source Source
	read   DimsReader
	logger *logger.Logger

	mu    sync.Mutex
	cache map[string][]Dim
}

// NewMeasurer creates a measurer. A nil reader means PDFCPUDims.
func NewMeasurer(source Source, read DimsReader, log *logger.Logger) *Measurer {
	if read == nil {
		read = PDFCPUDims
	}
	return &Measurer{
		source: source,
		read:   read,
		logger: log.WithComponent("page-measurer"),
		cache:  make(map[string][]Dim),
	}
}

// PageDims returns every page's size, in page order
func (m *Measurer) PageDims(ctx context.Context, documentID string) ([]Dim, error) {
	m.mu.Lock()
	dims, ok := m.cache[documentID]
	m.mu.Unlock()
	if ok {
		return dims, nil
	}

	rc, err := m.source.Open(ctx, documentID)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dims, err = m.read(rc)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[documentID] = dims
	m.mu.Unlock()

	m.logger.Debug().
		Str("document_id", documentID).
		Int("pages", len(dims)).
		Msg("measured document pages")

	return dims, nil
}

// Page returns the size of page n (1-based)
func (m *Measurer) Page(ctx context.Context, documentID string, n int) (Dim, error) {
	dims, err := m.PageDims(ctx, documentID)
	if err != nil {
		return Dim{}, err
	}
	if n < 1 || n > len(dims) {
		return Dim{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, n, len(dims))
	}
	return dims[n-1], nil
}

// Forget drops a document from the cache, e.g. after it was deleted
func (m *Measurer) Forget(documentID string) {
	m.mu.Lock()
	delete(m.cache, documentID)
	m.mu.Unlock()
}
