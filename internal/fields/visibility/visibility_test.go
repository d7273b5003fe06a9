package visibility

import (
	"testing"

	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/stretchr/testify/assert"
)

func logicField(id, logic string) domain.Field {
	return domain.Field{ID: id, PageNumber: 1, Type: domain.TypeText, ConditionalLogic: logic}
}

func TestIsVisible_NoLogic(t *testing.T) {
	f := logicField("a", "")
	assert.True(t, IsVisible(f, []domain.Field{f}))
}

func TestIsVisible_MalformedLogicFailsOpen(t *testing.T) {
	target := domain.Field{ID: "t", Value: ""}

	cases := map[string]string{
		"invalid json":       "{not valid json",
		"json array":         `["show"]`,
		"missing condition":  `{"action":"show","targetFieldId":"t"}`,
		"missing action":     `{"condition":"not_empty","targetFieldId":"t"}`,
		"missing target":     `{"condition":"not_empty","action":"show"}`,
		"unknown condition":  `{"condition":"greater_than","action":"show","targetFieldId":"t"}`,
		"unknown action":     `{"condition":"empty","action":"blink","targetFieldId":"t"}`,
		"wrong value types":  `{"condition":1,"action":"show","targetFieldId":"t"}`,
	}
	for name, logic := range cases {
		t.Run(name, func(t *testing.T) {
			f := logicField("a", logic)
			assert.NotPanics(t, func() {
				assert.True(t, IsVisible(f, []domain.Field{f, target}))
			})
		})
	}
}

func TestIsVisible_Conditions(t *testing.T) {
	tests := []struct {
		name        string
		logic       string
		targetValue string
		want        bool
	}{
		{"show when not empty, filled", `{"condition":"not_empty","action":"show","targetFieldId":"t"}`, "x", true},
		{"show when not empty, blank", `{"condition":"not_empty","action":"show","targetFieldId":"t"}`, "  ", false},
		{"hide when not empty, filled", `{"condition":"not_empty","action":"hide","targetFieldId":"t"}`, "x", false},
		{"show when empty", `{"condition":"empty","action":"show","targetFieldId":"t"}`, "", true},
		{"equals with value key", `{"condition":"equals","value":"yes","action":"show","targetFieldId":"t"}`, "yes", true},
		{"equals mismatch", `{"condition":"equals","value":"yes","action":"show","targetFieldId":"t"}`, "no", false},
		{"equals inline", `{"condition":"equals:Option 2","action":"show","targetFieldId":"t"}`, "Option 2", true},
		{"not equals", `{"condition":"not_equals","value":"yes","action":"show","targetFieldId":"t"}`, "no", true},
		{"checked", `{"condition":"checked","action":"show","targetFieldId":"t"}`, "true", true},
		{"unchecked", `{"condition":"unchecked","action":"show","targetFieldId":"t"}`, "true", false},
		{"hide when checked", `{"condition":"checked","action":"hide","targetFieldId":"t"}`, "true", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := domain.Field{ID: "t", Value: tt.targetValue}
			f := logicField("a", tt.logic)
			assert.Equal(t, tt.want, IsVisible(f, []domain.Field{target, f}))
		})
	}
}

func TestIsVisible_MissingTargetReadsAsEmpty(t *testing.T) {
	f := logicField("a", `{"condition":"empty","action":"show","targetFieldId":"gone"}`)
	assert.True(t, IsVisible(f, []domain.Field{f}))

	g := logicField("b", `{"condition":"not_empty","action":"show","targetFieldId":"gone"}`)
	assert.False(t, IsVisible(g, []domain.Field{g}))
}

func TestFilter_PreservesOrder(t *testing.T) {
	all := []domain.Field{
		{ID: "t", Value: ""},
		logicField("hidden", `{"condition":"not_empty","action":"show","targetFieldId":"t"}`),
		logicField("plain", ""),
		logicField("shown", `{"condition":"empty","action":"show","targetFieldId":"t"}`),
	}

	visible := Filter(all)
	ids := make([]string, 0, len(visible))
	for _, f := range visible {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []string{"t", "plain", "shown"}, ids)
}
