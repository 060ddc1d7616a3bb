package models

// FieldBinding binds one template field to a source column or a literal
// default. Column takes precedence when both are set.
type FieldBinding struct {
	Column  string `json:"column,omitempty" yaml:"column,omitempty"`
	Default string `json:"default,omitempty" yaml:"default,omitempty"`
}

// FieldMapping maps template field names (recipientName, courseTitle,
// arbitrary custom fields) to spreadsheet columns or literal defaults.
type FieldMapping struct {
	Bindings map[string]FieldBinding `json:"bindings" yaml:"bindings"`
}

// Binding returns the binding for a field and whether one is configured.
func (m FieldMapping) Binding(field string) (FieldBinding, bool) {
	b, ok := m.Bindings[field]
	return b, ok
}

// ResolvedFields is the per-row outcome of resolving a FieldMapping:
// template field name to concrete value.
type ResolvedFields map[string]string
