package domain

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/spf13/cast"
)

// RawField is a field record as it arrives from a UI control or an older
// client: numeric attributes may be strings and booleans may be "true".
// Normalize turns it into a Field; this is the only place such coercion happens.
type RawField struct {
	ID         string      `json:"id"`
	PageNumber interface{} `json:"page_number"`
	X          interface{} `json:"x"`
	Y          interface{} `json:"y"`
	Width      interface{} `json:"width"`
	Height     interface{} `json:"height"`
	Type       string      `json:"type"`

	Label       string      `json:"label"`
	Required    interface{} `json:"required"`
	Placeholder string      `json:"placeholder"`
	Value       interface{} `json:"value"`
	Options     interface{} `json:"options"`

	SignerID string `json:"signer_id"`

	Color           string      `json:"color"`
	BackgroundColor string      `json:"background_color"`
	BorderColor     string      `json:"border_color"`
	TextColor       string      `json:"text_color"`
	FontFamily      string      `json:"font_family"`
	FontSize        interface{} `json:"font_size"`

	ValidationRule   string      `json:"validation_rule"`
	ConditionalLogic interface{} `json:"conditional_logic"`
}

// NormalizeError names the attribute that could not be coerced
type NormalizeError struct {
	FieldID   string
	Attribute string
	Err       error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("field %q: %s: %v", e.FieldID, e.Attribute, e.Err)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// Normalize coerces the raw record into a Field. Absent numbers become zero;
// values that cannot be read as numbers are reported as *NormalizeError.
func (r RawField) Normalize() (Field, error) {
	f := Field{
		ID:              r.ID,
		Type:            FieldType(r.Type),
		Label:           r.Label,
		Placeholder:     r.Placeholder,
		SignerID:        r.SignerID,
		Color:           r.Color,
		BackgroundColor: r.BackgroundColor,
		BorderColor:     r.BorderColor,
		TextColor:       r.TextColor,
		FontFamily:      r.FontFamily,
		ValidationRule:  r.ValidationRule,
	}

	var err error
	if f.PageNumber, err = toInt(r.PageNumber); err != nil {
		return Field{}, &NormalizeError{r.ID, "page_number", err}
	}

	nums := []struct {
		name string
		in   interface{}
		out  *float64
	}{
		{"x", r.X, &f.X},
		{"y", r.Y, &f.Y},
		{"width", r.Width, &f.Width},
		{"height", r.Height, &f.Height},
		{"font_size", r.FontSize, &f.FontSize},
	}
	for _, n := range nums {
		if *n.out, err = toFloat(n.in); err != nil {
			return Field{}, &NormalizeError{r.ID, n.name, err}
		}
	}

	if r.Required != nil && r.Required != "" {
		if f.Required, err = cast.ToBoolE(r.Required); err != nil {
			return Field{}, &NormalizeError{r.ID, "required", err}
		}
	}

	f.Value = textOf(r.Value)
	f.Options = textOf(r.Options)
	f.ConditionalLogic = textOf(r.ConditionalLogic)

	return f, nil
}

// NormalizeAll normalizes a list, stopping at the first failure
func NormalizeAll(raws []RawField) ([]Field, error) {
	fields := make([]Field, 0, len(raws))
	for _, r := range raws {
		f, err := r.Normalize()
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// ParsePageNumber reads a 1-based page number written in decimal
func ParsePageNumber(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("missing page number")
	}
	n, err := toInt(s)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("page number must be positive: %d", n)
	}
	return n, nil
}

func toInt(v interface{}) (int, error) {
	if v == nil || v == "" {
		return 0, nil
	}
	// "2.0" and 2.0 both mean page 2
	fv, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(fv) || math.IsInf(fv, 0) || fv != math.Trunc(fv) {
		return 0, fmt.Errorf("not a whole number: %v", v)
	}
	return int(fv), nil
}

func toFloat(v interface{}) (float64, error) {
	if v == nil || v == "" {
		return 0, nil
	}
	fv, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(fv) || math.IsInf(fv, 0) {
		return 0, fmt.Errorf("not a finite number: %v", v)
	}
	return fv, nil
}

// textOf keeps strings as they are and re-encodes structured JSON
// (e.g. options sent as an array, logic sent as an object) to its string form.
func textOf(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool, float64, int, int64:
		return cast.ToString(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Raw converts a Field back into its loose form, e.g. for re-normalization in tests
func (f Field) Raw() RawField {
	return RawField{
		ID:               f.ID,
		PageNumber:       f.PageNumber,
		X:                f.X,
		Y:                f.Y,
		Width:            f.Width,
		Height:           f.Height,
		Type:             string(f.Type),
		Label:            f.Label,
		Required:         f.Required,
		Placeholder:      f.Placeholder,
		Value:            f.Value,
		Options:          f.Options,
		SignerID:         f.SignerID,
		Color:            f.Color,
		BackgroundColor:  f.BackgroundColor,
		BorderColor:      f.BorderColor,
		TextColor:        f.TextColor,
		FontFamily:       f.FontFamily,
		FontSize:         f.FontSize,
		ValidationRule:   f.ValidationRule,
		ConditionalLogic: f.ConditionalLogic,
	}
}
