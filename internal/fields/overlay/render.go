// Package overlay computes where and how fields are drawn over a rendered
// PDF page, and drives the pointer gestures used to move and resize them.
package overlay

import (
	"strings"

	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/internal/fields/geometry"
	"github.com/signflow/signflow-backend/internal/fields/visibility"
)

// Mode is the rendering context
type Mode string

const (
	ModeEdit    Mode = "edit"    // owner placing fields; everything is interactive
	ModeSign    Mode = "sign"    // signer filling fields assigned to them
	ModePreview Mode = "preview" // read-only, nothing is interactive
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeEdit || m == ModeSign || m == ModePreview
}

// ContentKind says what a placement shows
type ContentKind string

const (
	ContentImage       ContentKind = "image"
	ContentText        ContentKind = "text"
	ContentPlaceholder ContentKind = "placeholder"
	ContentCheckbox    ContentKind = "checkbox"
	ContentLabel       ContentKind = "label"
)

// Owner classifies whose input a placeholder asks for
type Owner string

const (
	OwnerAnyone Owner = "anyone"
	OwnerYou    Owner = "you"
	OwnerOther  Owner = "other"
)

const (
	glyphChecked   = "☑"
	glyphUnchecked = "☐"
)

// Content is the resolved display of one field
type Content struct {
	Kind    ContentKind `json:"kind"`
	Text    string      `json:"text,omitempty"`
	Image   string      `json:"image,omitempty"`
	Checked bool        `json:"checked,omitempty"`
	Owner   Owner       `json:"owner,omitempty"`
}

// Style is the effective presentation after signer colour inheritance
type Style struct {
	Color           string  `json:"color,omitempty"`
	BackgroundColor string  `json:"background_color,omitempty"`
	BorderColor     string  `json:"border_color,omitempty"`
	TextColor       string  `json:"text_color,omitempty"`
	FontFamily      string  `json:"font_family,omitempty"`
	FontSize        float64 `json:"font_size,omitempty"`
}

// Placement is one field positioned in screen space
type Placement struct {
	FieldID     string           `json:"field_id"`
	Type        domain.FieldType `json:"type"`
	Label       string           `json:"label"`
	Required    bool             `json:"required"`
	SignerID    string           `json:"signer_id,omitempty"`
	Rect        geometry.Rect    `json:"rect"`
	Content     Content          `json:"content"`
	Style       Style            `json:"style"`
	Interactive bool             `json:"interactive"`
	Selected    bool             `json:"selected,omitempty"`
}

// Request describes one page render
type Request struct {
	Fields []domain.Field
	Page   int
	// PageCount is the number of pages in the document; 0 means unknown
	PageCount int
	Scale     float64
	Mode      Mode

	CurrentSignerID string
	Signers         map[string]domain.Signer
	SelectedID      string
}

// Render returns the placements for the visible fields on req.Page in
// collection order. A page outside the document yields no placements.
func Render(req Request) []Placement {
	placements := []Placement{}
	if req.Page < 1 || (req.PageCount > 0 && req.Page > req.PageCount) {
		return placements
	}

	idx := visibility.NewIndex(req.Fields)
	for _, f := range req.Fields {
		if f.PageNumber != req.Page || !idx.IsVisible(f) {
			continue
		}
		placements = append(placements, place(f, req))
	}
	return placements
}

func place(f domain.Field, req Request) Placement {
	signer, known := req.Signers[f.SignerID]

	return Placement{
		FieldID:  f.ID,
		Type:     f.Type,
		Label:    f.Label,
		Required: f.Required,
		SignerID: f.SignerID,
		Rect: geometry.RectToScreen(geometry.Rect{
			X: f.X, Y: f.Y, Width: f.Width, Height: f.Height,
		}, req.Scale),
		Content:     resolveContent(f, req, signer, known),
		Style:       resolveStyle(f, signer, known),
		Interactive: interactive(f, req),
		Selected:    req.Mode == ModeEdit && req.SelectedID != "" && req.SelectedID == f.ID,
	}
}

func interactive(f domain.Field, req Request) bool {
	switch req.Mode {
	case ModeEdit:
		return true
	case ModeSign:
		return f.AssignableTo(req.CurrentSignerID)
	default:
		return false
	}
}

func resolveContent(f domain.Field, req Request, signer domain.Signer, known bool) Content {
	switch f.Type {
	case domain.TypeSignature, domain.TypeInitial:
		if f.HasValue() {
			return Content{Kind: ContentImage, Image: f.Value}
		}
		return signaturePlaceholder(f, req, signer, known)

	case domain.TypeImage:
		if isImageData(f.Value) {
			return Content{Kind: ContentImage, Image: f.Value}
		}
		return Content{Kind: ContentLabel, Text: f.Label}

	case domain.TypeText, domain.TypeTextarea, domain.TypeDate, domain.TypeNumber, domain.TypeEmail, domain.TypePhone:
		if f.HasValue() {
			return Content{Kind: ContentText, Text: f.Value}
		}
		return Content{Kind: ContentPlaceholder, Text: firstNonEmpty(f.Placeholder, f.Label)}

	case domain.TypeCheckbox:
		if f.Checked() {
			return Content{Kind: ContentCheckbox, Text: glyphChecked, Checked: true}
		}
		return Content{Kind: ContentCheckbox, Text: glyphUnchecked}

	default:
		return Content{Kind: ContentLabel, Text: f.Label}
	}
}

func signaturePlaceholder(f domain.Field, req Request, signer domain.Signer, known bool) Content {
	verb := "sign"
	if f.Type == domain.TypeInitial {
		verb = "initial"
	}

	if req.Mode == ModeEdit {
		text := f.Placeholder
		if known && signer.Name != "" {
			text = signer.Name + " will " + verb + " here"
		}
		return Content{Kind: ContentPlaceholder, Text: firstNonEmpty(text, f.Label), Owner: ownerOf(f, req)}
	}

	switch ownerOf(f, req) {
	case OwnerYou, OwnerAnyone:
		if req.Mode == ModePreview {
			return Content{Kind: ContentPlaceholder, Text: firstNonEmpty(f.Placeholder, f.Label), Owner: ownerOf(f, req)}
		}
		return Content{Kind: ContentPlaceholder, Text: "Click to " + verb, Owner: ownerOf(f, req)}
	default:
		name := "another signer"
		if known && signer.Name != "" {
			name = signer.Name
		}
		return Content{Kind: ContentPlaceholder, Text: "Waiting for " + name, Owner: OwnerOther}
	}
}

func ownerOf(f domain.Field, req Request) Owner {
	switch {
	case f.SignerID == "":
		return OwnerAnyone
	case f.SignerID == req.CurrentSignerID:
		return OwnerYou
	default:
		return OwnerOther
	}
}

// resolveStyle fills unset colours from the assigned signer's colour.
// The background is a translucent tint of it.
func resolveStyle(f domain.Field, signer domain.Signer, known bool) Style {
	s := Style{
		Color:           f.Color,
		BackgroundColor: f.BackgroundColor,
		BorderColor:     f.BorderColor,
		TextColor:       f.TextColor,
		FontFamily:      f.FontFamily,
		FontSize:        f.FontSize,
	}
	if !known || signer.Color == "" {
		return s
	}

	if s.Color == "" {
		s.Color = signer.Color
	}
	if s.BorderColor == "" {
		s.BorderColor = signer.Color
	}
	if s.BackgroundColor == "" {
		s.BackgroundColor = tint(signer.Color)
	}
	return s
}

// tint adds a 20% alpha channel to a #rrggbb colour; other notations are
// returned unchanged.
func tint(color string) string {
	if len(color) == 7 && strings.HasPrefix(color, "#") {
		return color + "33"
	}
	return color
}

func isImageData(v string) bool {
	return strings.HasPrefix(strings.TrimSpace(v), "data:image/")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
