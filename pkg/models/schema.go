package models

// SchemaField is one column of a discovered schema.
type SchemaField struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"` // "integer", "string", "float", "date", ...
}

// SchemaDescriptor is the backend's description of a source's fields.
// Field order is display order and is never re-sorted.
type SchemaDescriptor struct {
	Name   string        `json:"name" yaml:"name"`
	Fields []SchemaField `json:"fields" yaml:"fields"`
}

// FieldNames returns the field names in schema order.
func (s *SchemaDescriptor) FieldNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Clone returns a deep copy.
func (s *SchemaDescriptor) Clone() *SchemaDescriptor {
	if s == nil {
		return nil
	}
	out := &SchemaDescriptor{Name: s.Name, Fields: make([]SchemaField, len(s.Fields))}
	copy(out.Fields, s.Fields)
	return out
}
