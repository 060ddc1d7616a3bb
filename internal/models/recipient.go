package models

import "strings"

// RecipientRow is one row of the uploaded table: an ordered mapping of
// column name to raw cell value plus a stable zero-based row index.
// Immutable once loaded.
type RecipientRow struct {
	Index int               `json:"index"`
	Cells map[string]string `json:"cells"`
}

// Get returns the cell value for a column and whether the column exists.
func (r RecipientRow) Get(column string) (string, bool) {
	v, ok := r.Cells[column]
	return v, ok
}

// RecipientTable is the parsed upload: columns in the exact order they
// appeared in the file, plus one RecipientRow per data row.
type RecipientTable struct {
	Columns []string       `json:"columns"`
	Rows    []RecipientRow `json:"rows"`
}

// HasColumn reports whether the table schema contains the column.
func (t *RecipientTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// NormalizeHeader trims surrounding whitespace from a header cell.
func NormalizeHeader(s string) string {
	return strings.TrimSpace(s)
}
