package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/signflow/signflow-backend/internal/fields/domain"
	"github.com/signflow/signflow-backend/pkg/database"
)

// FieldRepository persists the field list of each document.
// Writes replace the whole list; there are no partial updates.
type FieldRepository struct {
	db *database.DB
}

// NewFieldRepository creates a new field repository
func NewFieldRepository(db *database.DB) *FieldRepository {
	return &FieldRepository{db: db}
}

const listFieldsQuery = `
	SELECT id, page_number, x, y, width, height, type, label, required,
	       COALESCE(placeholder, '') AS placeholder,
	       COALESCE(value, '') AS value,
	       COALESCE(options, '') AS options,
	       COALESCE(signer_id, '') AS signer_id,
	       COALESCE(color, '') AS color,
	       COALESCE(background_color, '') AS background_color,
	       COALESCE(border_color, '') AS border_color,
	       COALESCE(text_color, '') AS text_color,
	       COALESCE(font_family, '') AS font_family,
	       COALESCE(font_size, 0) AS font_size,
	       COALESCE(validation_rule, '') AS validation_rule,
	       COALESCE(conditional_logic, '') AS conditional_logic
	FROM document_fields
	WHERE document_id = $1
	ORDER BY position
`

const deleteFieldsQuery = `DELETE FROM document_fields WHERE document_id = $1`

const insertFieldQuery = `
	INSERT INTO document_fields (
		id, document_id, position, page_number, x, y, width, height, type, label, required,
		placeholder, value, options, signer_id, color, background_color, border_color,
		text_color, font_family, font_size, validation_rule, conditional_logic
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
`

// ListByDocument returns a document's fields in their saved order
func (r *FieldRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Field, error) {
	fields := []domain.Field{}
	if err := r.db.SelectContext(ctx, &fields, listFieldsQuery, documentID); err != nil {
		return nil, fmt.Errorf("failed to list fields: %w", err)
	}
	return fields, nil
}

// ReplaceAll swaps the stored list for fields in one transaction.
// Every field must already carry its permanent id.
func (r *FieldRepository) ReplaceAll(ctx context.Context, documentID string, fields []domain.Field) error {
	err := r.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteFieldsQuery, documentID); err != nil {
			return fmt.Errorf("failed to clear fields: %w", err)
		}

		for i, f := range fields {
			_, err := tx.ExecContext(ctx, insertFieldQuery,
				f.ID, documentID, i, f.PageNumber, f.X, f.Y, f.Width, f.Height, string(f.Type), f.Label, f.Required,
				nullable(f.Placeholder), nullable(f.Value), nullable(f.Options), nullable(f.SignerID),
				nullable(f.Color), nullable(f.BackgroundColor), nullable(f.BorderColor), nullable(f.TextColor),
				nullable(f.FontFamily), nullableFloat(f.FontSize), nullable(f.ValidationRule), nullable(f.ConditionalLogic),
			)
			if err != nil {
				if appErr := database.MapPQError(err); appErr != nil {
					return appErr
				}
				return fmt.Errorf("failed to insert field %s: %w", f.ID, err)
			}
		}
		return nil
	})
	return err
}

// DeleteByDocument removes every field of a document and reports how many were removed
func (r *FieldRepository) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteFieldsQuery, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete fields: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted fields: %w", err)
	}
	return n, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f float64) interface{} {
	if f == 0 {
		return nil
	}
	return f
}
