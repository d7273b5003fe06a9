// Package visibility evaluates a field's conditional logic against the
// current values of the other fields in its document.
package visibility

import (
	"encoding/json"
	"strings"

	"github.com/signflow/signflow-backend/internal/fields/domain"
)

// Condition names understood by the evaluator
const (
	CondNotEmpty  = "not_empty"
	CondEmpty     = "empty"
	CondEquals    = "equals"
	CondNotEquals = "not_equals"
	CondChecked   = "checked"
	CondUnchecked = "unchecked"
)

// Actions
const (
	ActionShow = "show"
	ActionHide = "hide"
)

// Logic is the decoded form of a field's conditional_logic attribute.
// Value is optional and only read by equals/not_equals; the shorthand
// "equals:<value>" in Condition is accepted as well.
type Logic struct {
	Condition     string  `json:"condition"`
	Action        string  `json:"action"`
	TargetFieldID string  `json:"targetFieldId"`
	Value         *string `json:"value,omitempty"`
}

// Parse decodes raw conditional logic. ok is false when raw is blank,
// not a JSON object, or lacks condition, action or targetFieldId.
func Parse(raw string) (Logic, bool) {
	if strings.TrimSpace(raw) == "" {
		return Logic{}, false
	}
	var l Logic
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return Logic{}, false
	}
	if l.Condition == "" || l.Action == "" || l.TargetFieldID == "" {
		return Logic{}, false
	}
	return l, true
}

// Index maps field ids to fields. Build it once and reuse it for every
// field of the same set.
type Index map[string]*domain.Field

// NewIndex builds the lookup map for all
func NewIndex(all []domain.Field) Index {
	idx := make(Index, len(all))
	for i := range all {
		idx[all[i].ID] = &all[i]
	}
	return idx
}

// IsVisible reports whether field should be shown given all fields.
// Fields without logic, and fields whose logic cannot be read, are visible.
func IsVisible(field domain.Field, all []domain.Field) bool {
	return NewIndex(all).IsVisible(field)
}

// IsVisible evaluates field against the indexed set
func (idx Index) IsVisible(field domain.Field) bool {
	logic, ok := Parse(field.ConditionalLogic)
	if !ok {
		return true
	}

	var target domain.Field
	if t, found := idx[logic.TargetFieldID]; found {
		target = *t
	}

	met, known := logic.holds(target)
	if !known {
		return true
	}

	switch logic.Action {
	case ActionShow:
		return met
	case ActionHide:
		return !met
	default:
		return true
	}
}

// Filter returns the visible subset of all, preserving order
func Filter(all []domain.Field) []domain.Field {
	idx := NewIndex(all)
	visible := make([]domain.Field, 0, len(all))
	for _, f := range all {
		if idx.IsVisible(f) {
			visible = append(visible, f)
		}
	}
	return visible
}

// holds evaluates the condition against the target. known is false for
// conditions the evaluator does not understand.
func (l Logic) holds(target domain.Field) (met bool, known bool) {
	cond, inline, hasInline := strings.Cut(l.Condition, ":")
	cond = strings.TrimSpace(strings.ToLower(cond))

	expected := ""
	switch {
	case hasInline:
		expected = inline
	case l.Value != nil:
		expected = *l.Value
	}

	value := strings.TrimSpace(target.Value)

	switch cond {
	case CondNotEmpty:
		return value != "", true
	case CondEmpty:
		return value == "", true
	case CondEquals:
		return value == strings.TrimSpace(expected), true
	case CondNotEquals:
		return value != strings.TrimSpace(expected), true
	case CondChecked:
		return target.Checked(), true
	case CondUnchecked:
		return !target.Checked(), true
	default:
		return false, false
	}
}
