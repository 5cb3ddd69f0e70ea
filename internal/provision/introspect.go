package provision

import (
	"context"
	"fmt"

	"github.com/axonops/cqlorm/internal/db"
)

type sessionIntrospector struct {
	session *db.Session
}

// NewIntrospector returns an Introspector backed by system_schema queries
// on the given session.
func NewIntrospector(session *db.Session) Introspector {
	return &sessionIntrospector{session: session}
}

func (in *sessionIntrospector) KeyspaceExists(ctx context.Context, name string) (bool, error) {
	query := `SELECT keyspace_name FROM system_schema.keyspaces WHERE keyspace_name = ?`

	iter := in.session.Query(query, name).WithContext(ctx).Iter()
	var found string
	exists := iter.Scan(&found)
	if err := iter.Close(); err != nil {
		return false, fmt.Errorf("reading keyspace %q: %w", name, err)
	}
	return exists, nil
}

func (in *sessionIntrospector) TypeFields(ctx context.Context, name string) ([]UDTField, bool, error) {
	query := `SELECT field_names, field_types FROM system_schema.types
	          WHERE keyspace_name = ? AND type_name = ?`

	iter := in.session.Query(query, in.session.Keyspace(), name).WithContext(ctx).Iter()

	var fieldNames, fieldTypes []string
	exists := iter.Scan(&fieldNames, &fieldTypes)
	if err := iter.Close(); err != nil {
		return nil, false, fmt.Errorf("reading type %q: %w", name, err)
	}
	if !exists {
		return nil, false, nil
	}

	fields := make([]UDTField, 0, len(fieldNames))
	for i, fieldName := range fieldNames {
		fieldType := ""
		if i < len(fieldTypes) {
			fieldType = fieldTypes[i]
		}
		fields = append(fields, UDTField{Name: fieldName, Type: fieldType})
	}
	return fields, true, nil
}
