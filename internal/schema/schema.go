// Package schema holds model schema definitions, their canonical
// normalized form, and the migration planner that compares a declared
// schema against the live one reported by the database.
package schema

import (
	"fmt"
	"regexp"
)

// tableNamePattern validates table, view and index names.
var tableNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Field declares one column: a name and a CQL type string.
type Field struct {
	Name string
	Type string
}

// ClusteringKey stores the name and sort direction of a clustering column.
type ClusteringKey struct {
	Name       string
	Descending bool
}

// CustomIndex declares an index backed by a custom indexer class
// (SASI, SAI, or a search plugin).
type CustomIndex struct {
	On      string            // target column
	Using   string            // indexer class name
	Options map[string]string // indexer options
}

// MaterializedView declares a server-maintained projection of the base
// table with its own primary key.
type MaterializedView struct {
	Name           string
	Select         []string // projection; empty selects every declared field
	PartitionKeys  []string
	ClusteringKeys []ClusteringKey
	WhereClause    string // extra filtering beyond the implicit IS NOT NULL key restrictions
}

// Options are the table-level behaviors a schema can request.
type Options struct {
	// Timestamps injects created_at/updated_at columns maintained at write time.
	Timestamps bool
	// Versions injects a time-ordered version column (__v) regenerated on every write.
	Versions bool
}

// Schema is a declared model schema: fields, primary key structure,
// dependent indexes and views, and table-level options.
type Schema struct {
	Table          string
	Fields         []Field
	PartitionKeys  []string
	ClusteringKeys []ClusteringKey
	Indexes        []string // simple secondary indexes, by column name
	CustomIndexes  []CustomIndex
	Views          []MaterializedView
	Options        Options
}

// ValidationError reports an invalid schema or model declaration. It is a
// configuration error: the declaration itself is wrong, so callers treat
// it as fatal rather than retryable.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// FieldType returns the declared type for a field name.
func (s *Schema) FieldType(name string) (string, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return "", false
}

// HasField reports whether the schema declares the named field.
func (s *Schema) HasField(name string) bool {
	_, ok := s.FieldType(name)
	return ok
}

// AddField appends a field unless one with the same name already exists.
func (s *Schema) AddField(name, typ string) {
	if s.HasField(name) {
		return
	}
	s.Fields = append(s.Fields, Field{Name: name, Type: typ})
}

// KeyColumns returns the partition key columns followed by the
// clustering key columns, in declared order.
func (s *Schema) KeyColumns() []string {
	cols := make([]string, 0, len(s.PartitionKeys)+len(s.ClusteringKeys))
	cols = append(cols, s.PartitionKeys...)
	for _, ck := range s.ClusteringKeys {
		cols = append(cols, ck.Name)
	}
	return cols
}

// Validate checks the structural invariants of a declared schema: a legal
// table name, a non-empty partition key, parseable field types, and key,
// index and view references that resolve to declared fields.
func (s *Schema) Validate() error {
	if !tableNamePattern.MatchString(s.Table) {
		return validationErrorf("invalid table name %q: must match %s", s.Table, tableNamePattern.String())
	}
	if len(s.Fields) == 0 {
		return validationErrorf("table %q declares no fields", s.Table)
	}
	if len(s.PartitionKeys) == 0 {
		return validationErrorf("table %q has an empty partition key", s.Table)
	}

	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return validationErrorf("table %q declares a field with an empty name", s.Table)
		}
		if seen[f.Name] {
			return validationErrorf("table %q declares field %q more than once", s.Table, f.Name)
		}
		seen[f.Name] = true
		if _, err := ParseType(f.Type); err != nil {
			return validationErrorf("table %q field %q has malformed type %q: %v", s.Table, f.Name, f.Type, err)
		}
	}

	for _, pk := range s.PartitionKeys {
		if !seen[pk] {
			return validationErrorf("table %q partition key references undeclared field %q", s.Table, pk)
		}
	}
	for _, ck := range s.ClusteringKeys {
		if !seen[ck.Name] {
			return validationErrorf("table %q clustering key references undeclared field %q", s.Table, ck.Name)
		}
	}
	for _, idx := range s.Indexes {
		if !seen[idx] {
			return validationErrorf("table %q index references undeclared field %q", s.Table, idx)
		}
	}
	for _, ci := range s.CustomIndexes {
		if !seen[ci.On] {
			return validationErrorf("table %q custom index references undeclared field %q", s.Table, ci.On)
		}
		if ci.Using == "" {
			return validationErrorf("table %q custom index on %q has no indexer class", s.Table, ci.On)
		}
	}

	for _, view := range s.Views {
		if err := s.validateView(view, seen); err != nil {
			return err
		}
	}

	return nil
}

func (s *Schema) validateView(view MaterializedView, fields map[string]bool) error {
	if !tableNamePattern.MatchString(view.Name) {
		return validationErrorf("invalid materialized view name %q on table %q", view.Name, s.Table)
	}
	if len(view.PartitionKeys) == 0 {
		return validationErrorf("materialized view %q has an empty partition key", view.Name)
	}
	for _, col := range view.Select {
		if !fields[col] {
			return validationErrorf("materialized view %q selects undeclared field %q", view.Name, col)
		}
	}
	for _, pk := range view.PartitionKeys {
		if !fields[pk] {
			return validationErrorf("materialized view %q partition key references undeclared field %q", view.Name, pk)
		}
	}
	for _, ck := range view.ClusteringKeys {
		if !fields[ck.Name] {
			return validationErrorf("materialized view %q clustering key references undeclared field %q", view.Name, ck.Name)
		}
	}
	return nil
}
