package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/signflow/signflow-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return errors.Conflict(formatConstraintMessage(pqErr))

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced document or signer does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps document_fields CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "page_number_positive"):
		return errors.Validation(map[string]string{
			"page_number": "must be at least 1",
		})

	case strings.Contains(constraint, "size_positive"):
		return errors.Validation(map[string]string{
			"width":  "must be greater than 0",
			"height": "must be greater than 0",
		})

	case strings.Contains(constraint, "position_non_negative"):
		return errors.Validation(map[string]string{
			"x": "must not be negative",
			"y": "must not be negative",
		})

	case strings.Contains(constraint, "type_valid"):
		return errors.Validation(map[string]string{
			"type": "unknown field type",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// formatConstraintMessage creates a user-friendly message for unique constraint violations.
func formatConstraintMessage(pqErr *pq.Error) string {
	switch {
	case strings.Contains(pqErr.Constraint, "document_position"):
		return "two fields share the same position in this document"
	case strings.Contains(pqErr.Constraint, "pkey"):
		return "a field with this id already exists"
	default:
		return "a record with these values already exists"
	}
}
