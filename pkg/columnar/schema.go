package columnar

import (
	"strings"

	"github.com/grafana/vexec/pkg/datatype"
	"github.com/grafana/vexec/pkg/errs"
)

// Field describes one column of a [Schema].
type Field struct {
	Name     string
	Type     datatype.Type
	Nullable bool
}

func (f Field) String() string {
	var sb strings.Builder
	sb.WriteString(f.Name)
	sb.WriteString(": ")
	sb.WriteString(f.Type.String())
	if !f.Nullable {
		sb.WriteString(" NOT NULL")
	}
	return sb.String()
}

// Schema is an ordered list of uniquely named fields. Schemas are immutable
// and may be shared between batches.
type Schema struct {
	fields []Field
	index  map[string]int
}

// NewSchema returns a schema with the given fields. NewSchema returns
// [errs.ErrDuplicateFieldName] if two fields share a name.
func NewSchema(fields ...Field) (*Schema, error) {
	s := &Schema{
		fields: make([]Field, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if !f.Type.Valid() {
			return nil, errs.Newf(errs.ErrTypeMismatch, "field %q has invalid type %s", f.Name, f.Type)
		}
		if _, ok := s.index[f.Name]; ok {
			return nil, errs.Newf(errs.ErrDuplicateFieldName, "field %q appears more than once", f.Name)
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}
	return s, nil
}

// MustSchema is like [NewSchema] but panics on error.
func MustSchema(fields ...Field) *Schema {
	s, err := NewSchema(fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// NumFields returns the number of fields in s.
func (s *Schema) NumFields() int { return len(s.fields) }

// Field returns field i.
func (s *Schema) Field(i int) Field { return s.fields[i] }

// Fields returns a copy of the fields of s.
func (s *Schema) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// IndexOf returns the position of the field with the given name.
func (s *Schema) IndexOf(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// Select returns a schema holding the fields at the given indices, in order.
func (s *Schema) Select(indices []int) (*Schema, error) {
	fields := make([]Field, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(s.fields) {
			return nil, errs.Newf(errs.ErrOutOfBounds, "field index %d out of range [0, %d)", idx, len(s.fields))
		}
		fields[i] = s.fields[idx]
	}
	return NewSchema(fields...)
}

// Equal reports whether s and o have the same fields in the same order.
func (s *Schema) Equal(o *Schema) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil || len(s.fields) != len(o.fields) {
		return false
	}
	for i := range s.fields {
		if s.fields[i] != o.fields[i] {
			return false
		}
	}
	return true
}

func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Concat returns a schema holding the fields of s followed by the fields of
// o. Names present in both schemas are qualified as "<qualifier>.<name>"
// using leftQualifier and rightQualifier respectively. If nullableLeft is
// set, the fields of s become nullable.
func (s *Schema) Concat(o *Schema, leftQualifier, rightQualifier string, nullableLeft bool) (*Schema, error) {
	fields := make([]Field, 0, len(s.fields)+len(o.fields))
	for _, f := range s.fields {
		if _, ok := o.index[f.Name]; ok {
			f.Name = leftQualifier + "." + f.Name
		}
		f.Nullable = f.Nullable || nullableLeft
		fields = append(fields, f)
	}
	for _, f := range o.fields {
		if _, ok := s.index[f.Name]; ok {
			f.Name = rightQualifier + "." + f.Name
		}
		fields = append(fields, f)
	}
	return NewSchema(fields...)
}
