// Package geometry maps between PDF space (points) and screen space (pixels).
//
// All conversions are pure. Screen values are rounded to three decimals;
// PDF values are kept at full precision.
package geometry

import (
	"math"
	"sync"
)

// screenPrecision is the rounding applied to screen-space values
const screenPrecision = 1000

// Rect is an axis-aligned rectangle. The unit depends on the space it lives in.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DeriveScaleFactor returns rendered/intrinsic when both are positive and
// finite, otherwise fallback.
func DeriveScaleFactor(renderedPixelWidth, intrinsicPDFWidth, fallback float64) float64 {
	if !positive(renderedPixelWidth) || !positive(intrinsicPDFWidth) {
		return fallback
	}
	return renderedPixelWidth / intrinsicPDFWidth
}

// ToScreen converts a PDF-space length or offset to pixels
func ToScreen(v, scale float64) float64 {
	return round3(v * scale)
}

// ToPDF converts a pixel length or offset back to PDF points.
// A non-positive scale leaves v unchanged.
func ToPDF(v, scale float64) float64 {
	if !positive(scale) {
		return v
	}
	return v / scale
}

// RectToScreen applies ToScreen to each component independently
func RectToScreen(r Rect, scale float64) Rect {
	return Rect{
		X:      ToScreen(r.X, scale),
		Y:      ToScreen(r.Y, scale),
		Width:  ToScreen(r.Width, scale),
		Height: ToScreen(r.Height, scale),
	}
}

// RectToPDF applies ToPDF to each component independently
func RectToPDF(r Rect, scale float64) Rect {
	return Rect{
		X:      ToPDF(r.X, scale),
		Y:      ToPDF(r.Y, scale),
		Width:  ToPDF(r.Width, scale),
		Height: ToPDF(r.Height, scale),
	}
}

// ClampZoom bounds a requested zoom level. Non-finite input yields min.
func ClampZoom(zoom, min, max float64) float64 {
	if math.IsNaN(zoom) {
		return min
	}
	return math.Max(min, math.Min(max, zoom))
}

func round3(v float64) float64 {
	return math.Round(v*screenPrecision) / screenPrecision
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// ScaleTracker remembers the last scale factor derived from a real
// measurement so a later failed measurement can reuse it.
type ScaleTracker struct {
	mu       sync.Mutex
	last     float64
	fallback float64
}

// NewScaleTracker creates a tracker that starts at the nominal zoom
func NewScaleTracker(nominal float64) *ScaleTracker {
	return &ScaleTracker{fallback: nominal}
}

// Observe derives the scale factor from a measurement. When the measurement
// is unusable it returns the last known factor, or the nominal zoom if
// nothing was measured yet. The second return reports whether the result
// came from the measurement.
func (t *ScaleTracker) Observe(renderedPixelWidth, intrinsicPDFWidth float64) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if positive(renderedPixelWidth) && positive(intrinsicPDFWidth) {
		t.last = renderedPixelWidth / intrinsicPDFWidth
		return t.last, true
	}
	if t.last > 0 {
		return t.last, false
	}
	return t.fallback, false
}

// Last returns the last measured factor, or the nominal zoom
func (t *ScaleTracker) Last() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last > 0 {
		return t.last
	}
	return t.fallback
}
