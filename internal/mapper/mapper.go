// Package mapper binds spreadsheet columns to certificate template fields
// and email template placeholders.
package mapper

import (
	"github.com/sendora/sendora/internal/models"
)

// Validate checks a mapping against the table schema and the template's
// field list before any task is created. Every mapped column must exist in
// the schema (UNKNOWN_COLUMN otherwise) and every required template field
// must resolve to a column or a default literal (VALIDATION_ERROR
// otherwise). Batch-fatal on failure.
func Validate(mapping models.FieldMapping, columns []string, fields []models.FieldPosition) error {
	schema := make(map[string]bool, len(columns))
	for _, c := range columns {
		schema[c] = true
	}

	for field, b := range mapping.Bindings {
		if b.Column != "" && !schema[b.Column] {
			return models.Errorf(models.KindUnknownColumn, "field %q is mapped to unknown column %q", field, b.Column)
		}
	}

	for _, f := range fields {
		if !f.Required {
			continue
		}
		b, ok := mapping.Binding(f.Name)
		if !ok || (b.Column == "" && b.Default == "") {
			return models.Errorf(models.KindValidation, "required field %q has no column mapping and no default", f.Name)
		}
	}

	return nil
}

// Resolve produces the concrete field values for one row. Resolution order
// per field: explicit column mapping, then default literal. An empty cell
// falls back to the default. Required fields that resolve to nothing fail
// with a VALIDATION_ERROR; the mapping is assumed to have passed Validate,
// so this only triggers on rows whose mapped cell is empty with no default.
func Resolve(mapping models.FieldMapping, fields []models.FieldPosition, row models.RecipientRow) (models.ResolvedFields, error) {
	resolved := make(models.ResolvedFields, len(mapping.Bindings))

	for field, b := range mapping.Bindings {
		val := ""
		if b.Column != "" {
			cell, ok := row.Get(b.Column)
			if !ok {
				return nil, models.Errorf(models.KindUnknownColumn, "field %q references unknown column %q", field, b.Column)
			}
			val = cell
		}
		if val == "" {
			val = b.Default
		}
		resolved[field] = val
	}

	for _, f := range fields {
		if f.Required && resolved[f.Name] == "" {
			return nil, models.Errorf(models.KindValidation, "required field %q is empty for row %d", f.Name, row.Index)
		}
	}

	return resolved, nil
}
