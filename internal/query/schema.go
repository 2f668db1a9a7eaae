package query

import (
	"strconv"
	"time"
)

// Kind is the value type a field's query-string values are cast to.
type Kind int

const (
	String Kind = iota
	Number
	Integer
	Bool
	Time
	// StringArray and TimeArray columns match when any element matches.
	StringArray
	TimeArray
	// JSON columns can be sorted and projected but never filtered.
	JSON
)

// array reports whether values are compared against the column's elements.
func (k Kind) array() bool {
	return k == StringArray || k == TimeArray
}

// Field maps a public field name to a column. Internal fields are left out
// of the default projection but may still be requested explicitly.
type Field struct {
	Name     string
	Column   string
	Kind     Kind
	Internal bool
}

// Schema is the whitelist of fields a resource exposes to the Query Builder.
// Anything not in the schema can be neither filtered, sorted nor projected.
type Schema struct {
	fields      []Field
	index       map[string]Field
	key         string
	defaultSort string
}

// NewSchema builds a schema. key is the public name of the unique field used
// as the final sort tie-breaker; defaultSort uses the sort parameter syntax.
func NewSchema(key, defaultSort string, fields ...Field) *Schema {
	s := &Schema{
		fields:      fields,
		index:       make(map[string]Field, len(fields)),
		key:         key,
		defaultSort: defaultSort,
	}
	for _, f := range fields {
		s.index[f.Name] = f
	}
	return s
}

// Lookup returns the field published under name.
func (s *Schema) Lookup(name string) (Field, bool) {
	f, ok := s.index[name]
	return f, ok
}

// Fields returns the schema fields in declaration order.
func (s *Schema) Fields() []Field {
	return s.fields
}

// cast converts a raw query-string value to the field's kind.
func (f Field) cast(raw string) (any, bool) {
	switch f.Kind {
	case Number:
		v, err := strconv.ParseFloat(raw, 64)
		return v, err == nil
	case Integer:
		v, err := strconv.ParseInt(raw, 10, 32)
		return v, err == nil
	case Bool:
		v, err := strconv.ParseBool(raw)
		return v, err == nil
	case JSON:
		return nil, false
	case Time, TimeArray:
		for _, layout := range []string{time.RFC3339, time.DateOnly} {
			if v, err := time.Parse(layout, raw); err == nil {
				return v, true
			}
		}
		return nil, false
	default:
		return raw, true
	}
}
