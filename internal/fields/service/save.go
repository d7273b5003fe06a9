package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/signflow/signflow-backend/internal/fields/collection"
	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/internal/fields/validation"
	apperrors "github.com/signflow/signflow-backend/pkg/errors"
)

// ErrSaveInProgress is returned while another save of the same document runs
var ErrSaveInProgress = errors.New("save already in progress for document")

// SaveResult is the persisted list plus the ids assigned to new fields
type SaveResult struct {
	Fields []domain.Field `json:"fields"`
	// IDMapping maps each temporary id to its persisted id
	IDMapping map[string]string `json:"id_mapping"`
}

// GateError blocks a save whose visible fields do not validate
type GateError struct {
	Result validation.AllResult
}

func (e *GateError) Error() string {
	return fmt.Sprintf("%d field(s) failed validation", len(e.Result.ErrorsByFieldID))
}

// Save replaces the document's field list. Records are normalized, checked
// against their placement invariants and validated; temporary ids are
// swapped for persisted ones, including references from conditional logic.
func (s *FieldService) Save(ctx context.Context, documentID string, raws []domain.RawField) (*SaveResult, error) {
	if err := authorizeEdit(ctx, documentID); err != nil {
		return nil, err
	}

	release, err := s.acquire(documentID)
	if err != nil {
		return nil, err
	}
	defer release()

	fields, err := domain.NormalizeAll(raws)
	if err != nil {
		return nil, normalizeFailure(err)
	}

	seen := make(map[string]struct{}, len(fields))
	for i := range fields {
		if err := collection.Sanitize(&fields[i]); err != nil {
			return nil, apperrors.BadRequest(err.Error())
		}
		if id := fields[i].ID; id != "" {
			if _, dup := seen[id]; dup {
				return nil, apperrors.BadRequest("duplicate field id: " + id)
			}
			seen[id] = struct{}{}
		}
	}

	result := s.validator.ValidateAll(fields)
	mergeShapeErrors(&result, fields)
	if !result.Valid {
		return nil, &GateError{Result: result}
	}

	mapping := assignIDs(fields)

	start := time.Now()
	if err := s.store.ReplaceAll(ctx, documentID, fields); err != nil {
		s.logger.Error().
			Err(err).
			Str("document_id", documentID).
			Msg("failed to save fields")
		return nil, err
	}

	if s.publisher != nil {
		s.publisher.PublishFieldsSaved(ctx, documentID, fields)
	}

	s.logger.Info().
		Str("document_id", documentID).
		Int("field_count", len(fields)).
		Int("new_fields", len(mapping)).
		Dur("duration", time.Since(start)).
		Msg("fields saved")

	return &SaveResult{Fields: fields, IDMapping: mapping}, nil
}

func (s *FieldService) acquire(documentID string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.saving[documentID]; busy {
		return nil, ErrSaveInProgress
	}
	s.saving[documentID] = struct{}{}

	return func() {
		s.mu.Lock()
		delete(s.saving, documentID)
		s.mu.Unlock()
	}, nil
}

// mergeShapeErrors adds value-shape failures, which apply to hidden fields
// too since their values are stored all the same.
func mergeShapeErrors(result *validation.AllResult, fields []domain.Field) {
	for _, f := range fields {
		ve, bad := checkShape(f)
		if !bad {
			continue
		}
		if result.ErrorsByFieldID == nil {
			result.ErrorsByFieldID = make(map[string][]validation.ValidationError)
		}
		result.ErrorsByFieldID[f.ID] = append(result.ErrorsByFieldID[f.ID], ve)
		result.Valid = false
	}
}

// checkShape verifies a non-empty value has the form its type stores
func checkShape(f domain.Field) (validation.ValidationError, bool) {
	if !f.HasValue() {
		return validation.ValidationError{}, false
	}

	switch f.Type.Shape() {
	case domain.ShapeImage:
		if !strings.HasPrefix(f.Value, "data:image/") {
			return shapeError("%s must be an image data URL", f), true
		}
	case domain.ShapeBool:
		v := strings.ToLower(strings.TrimSpace(f.Value))
		if v != "true" && v != "false" {
			return shapeError("%s must be true or false", f), true
		}
	case domain.ShapeOption:
		opts, err := f.OptionList()
		if err != nil {
			return shapeError("%s has malformed options", f), true
		}
		if len(opts) > 0 && !contains(opts, f.Value) {
			return shapeError("%s must be one of its options", f), true
		}
	}
	return validation.ValidationError{}, false
}

func shapeError(format string, f domain.Field) validation.ValidationError {
	name := f.Label
	if name == "" {
		name = string(f.Type)
	}
	return validation.ValidationError{
		Code:    validation.CodeFormat,
		Message: fmt.Sprintf(format, name),
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// assignIDs gives every field without a persistable id a new uuid and
// rewrites conditional logic that pointed at the old id.
func assignIDs(fields []domain.Field) map[string]string {
	mapping := make(map[string]string)
	for i := range fields {
		if _, err := uuid.Parse(fields[i].ID); err == nil {
			continue
		}
		id := uuid.New().String()
		if fields[i].ID != "" {
			mapping[fields[i].ID] = id
		}
		fields[i].ID = id
	}

	if len(mapping) == 0 {
		return mapping
	}
	for i := range fields {
		fields[i].ConditionalLogic = retarget(fields[i].ConditionalLogic, mapping)
	}
	return mapping
}

// retarget swaps targetFieldId through mapping. Logic that is not a JSON
// object, or that targets an unmapped id, is returned as-is.
func retarget(raw string, mapping map[string]string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return raw
	}
	target, ok := obj["targetFieldId"].(string)
	if !ok {
		return raw
	}
	next, ok := mapping[target]
	if !ok {
		return raw
	}
	obj["targetFieldId"] = next
	out, err := json.Marshal(obj)
	if err != nil {
		return raw
	}
	return string(out)
}
