// Package domain holds the field record shared by the editor, the signing
// view and persistence.
//
// Geometry is always in PDF points. Screen positions are derived on demand
// by the geometry package and never stored.
package domain

import (
	"encoding/json"
	"strings"
)

// TempIDPrefix marks ids generated in an editing session that have not
// been persisted yet.
const TempIDPrefix = "temp-"

// FieldType is the closed set of placeable field kinds
type FieldType string

const (
	TypeSignature FieldType = "signature"
	TypeInitial   FieldType = "initial"
	TypeText      FieldType = "text"
	TypeTextarea  FieldType = "textarea"
	TypeDate      FieldType = "date"
	TypeCheckbox  FieldType = "checkbox"
	TypeDropdown  FieldType = "dropdown"
	TypeEmail     FieldType = "email"
	TypePhone     FieldType = "phone"
	TypeImage     FieldType = "image"
	TypeFormula   FieldType = "formula"
	TypeRadio     FieldType = "radio"
	TypePayment   FieldType = "payment"
	TypeNumber    FieldType = "number"
)

// AllTypes lists every field type in palette order
var AllTypes = []FieldType{
	TypeSignature, TypeInitial, TypeText, TypeTextarea, TypeDate, TypeCheckbox, TypeDropdown,
	TypeEmail, TypePhone, TypeImage, TypeFormula, TypeRadio, TypePayment, TypeNumber,
}

// Valid reports whether t is a known field type
func (t FieldType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ValueShape describes how a field's string value is to be read.
type ValueShape int

const (
	ShapeText    ValueShape = iota // free text
	ShapeImage                     // data URL
	ShapeBool                      // "true" / "false"
	ShapeOption                    // one entry of the field's options
	ShapeDate                      // parseable date
	ShapeNumber                    // finite number
)

// Shape returns the value contract for the type
func (t FieldType) Shape() ValueShape {
	switch t {
	case TypeSignature, TypeInitial, TypeImage:
		return ShapeImage
	case TypeCheckbox:
		return ShapeBool
	case TypeDropdown, TypeRadio:
		return ShapeOption
	case TypeDate:
		return ShapeDate
	case TypeNumber:
		return ShapeNumber
	default:
		return ShapeText
	}
}

// Field is one placeable element on a document page.
type Field struct {
	ID         string    `json:"id" db:"id"`
	PageNumber int       `json:"page_number" db:"page_number"`
	X          float64   `json:"x" db:"x"`
	Y          float64   `json:"y" db:"y"`
	Width      float64   `json:"width" db:"width"`
	Height     float64   `json:"height" db:"height"`
	Type       FieldType `json:"type" db:"type"`

	Label       string `json:"label" db:"label"`
	Required    bool   `json:"required" db:"required"`
	Placeholder string `json:"placeholder,omitempty" db:"placeholder"`
	Value       string `json:"value" db:"value"`
	Options     string `json:"options,omitempty" db:"options"` // JSON array for dropdown/radio

	SignerID string `json:"signer_id,omitempty" db:"signer_id"`

	Color           string  `json:"color,omitempty" db:"color"`
	BackgroundColor string  `json:"background_color,omitempty" db:"background_color"`
	BorderColor     string  `json:"border_color,omitempty" db:"border_color"`
	TextColor       string  `json:"text_color,omitempty" db:"text_color"`
	FontFamily      string  `json:"font_family,omitempty" db:"font_family"`
	FontSize        float64 `json:"font_size,omitempty" db:"font_size"`

	ValidationRule   string `json:"validation_rule,omitempty" db:"validation_rule"`
	ConditionalLogic string `json:"conditional_logic,omitempty" db:"conditional_logic"`
}

// IsTemporary reports whether the field has not been persisted yet
func (f *Field) IsTemporary() bool {
	return f.ID == "" || strings.HasPrefix(f.ID, TempIDPrefix)
}

// HasValue reports whether the value is non-blank
func (f *Field) HasValue() bool {
	return strings.TrimSpace(f.Value) != ""
}

// Checked reads a checkbox value. Anything but "true" is unchecked.
func (f *Field) Checked() bool {
	return strings.EqualFold(strings.TrimSpace(f.Value), "true")
}

// OptionList decodes the options JSON array. An empty string yields no options.
func (f *Field) OptionList() ([]string, error) {
	if strings.TrimSpace(f.Options) == "" {
		return nil, nil
	}
	var opts []string
	if err := json.Unmarshal([]byte(f.Options), &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// AssignableTo reports whether a viewer with the given signer id may fill
// the field. Unassigned fields are open to any signer.
func (f *Field) AssignableTo(signerID string) bool {
	return f.SignerID == "" || f.SignerID == signerID
}

// Signer is the subset of a signer record the overlay needs
type Signer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Color string `json:"color,omitempty"`
}

// SignerIDs returns the distinct signer ids referenced by fields, in first-seen order
func SignerIDs(fields []Field) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, f := range fields {
		if f.SignerID == "" {
			continue
		}
		if _, ok := seen[f.SignerID]; ok {
			continue
		}
		seen[f.SignerID] = struct{}{}
		ids = append(ids, f.SignerID)
	}
	return ids
}
