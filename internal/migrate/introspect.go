package migrate

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/axonops/cqlorm/internal/db"
	"github.com/axonops/cqlorm/internal/logger"
	"github.com/axonops/cqlorm/internal/schema"
)

// Introspector reads the live schema of a table out of the database.
// LiveSchema returns (nil, nil) when the table does not exist.
type Introspector interface {
	LiveSchema(ctx context.Context, table string) (*schema.Schema, error)
}

type sessionIntrospector struct {
	session  *db.Session
	keyspace string
}

// NewIntrospector returns an Introspector backed by system_schema queries
// on the given session.
func NewIntrospector(session *db.Session) Introspector {
	return &sessionIntrospector{session: session, keyspace: session.Keyspace()}
}

type liveColumn struct {
	name            string
	cqlType         string
	kind            string
	position        int
	clusteringOrder string
}

func (in *sessionIntrospector) LiveSchema(ctx context.Context, table string) (*schema.Schema, error) {
	columns, err := in.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, nil
	}

	s := &schema.Schema{Table: table}

	// Partition and clustering keys ordered by their position in the key,
	// not by column name.
	var pkCols, ckCols []liveColumn
	for _, col := range columns {
		s.Fields = append(s.Fields, schema.Field{Name: col.name, Type: col.cqlType})
		switch col.kind {
		case "partition_key":
			pkCols = append(pkCols, col)
		case "clustering":
			ckCols = append(ckCols, col)
		}
	}
	sort.Slice(pkCols, func(i, j int) bool { return pkCols[i].position < pkCols[j].position })
	sort.Slice(ckCols, func(i, j int) bool { return ckCols[i].position < ckCols[j].position })

	for _, col := range pkCols {
		s.PartitionKeys = append(s.PartitionKeys, col.name)
	}
	for _, col := range ckCols {
		s.ClusteringKeys = append(s.ClusteringKeys, schema.ClusteringKey{
			Name:       col.name,
			Descending: col.clusteringOrder == "desc",
		})
	}

	if err := in.indexes(ctx, table, s); err != nil {
		return nil, err
	}
	if err := in.views(ctx, table, s); err != nil {
		return nil, err
	}

	logger.DebugfToFile("Introspect", "Live schema for %s: %d columns, %d indexes, %d views",
		table, len(s.Fields), len(s.Indexes)+len(s.CustomIndexes), len(s.Views))

	return s, nil
}

func (in *sessionIntrospector) columns(ctx context.Context, table string) ([]liveColumn, error) {
	query := `SELECT column_name, type, kind, position, clustering_order
	          FROM system_schema.columns
	          WHERE keyspace_name = ? AND table_name = ?`

	iter := in.session.Query(query, in.keyspace, table).WithContext(ctx).Iter()

	var columns []liveColumn
	var col liveColumn
	for iter.Scan(&col.name, &col.cqlType, &col.kind, &col.position, &col.clusteringOrder) {
		columns = append(columns, col)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("reading columns of %s.%s: %w", in.keyspace, table, err)
	}
	return columns, nil
}

func (in *sessionIntrospector) indexes(ctx context.Context, table string, s *schema.Schema) error {
	query := `SELECT index_name, kind, options
	          FROM system_schema.indexes
	          WHERE keyspace_name = ? AND table_name = ?`

	iter := in.session.Query(query, in.keyspace, table).WithContext(ctx).Iter()

	var name, kind string
	var options map[string]string
	for iter.Scan(&name, &kind, &options) {
		column := indexTargetColumn(options["target"])
		if column == "" {
			continue
		}
		if kind == "CUSTOM" {
			s.CustomIndexes = append(s.CustomIndexes, schema.CustomIndex{
				On:    column,
				Using: options["class_name"],
			})
		} else {
			s.Indexes = append(s.Indexes, column)
		}
		options = nil
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("reading indexes of %s.%s: %w", in.keyspace, table, err)
	}
	return nil
}

// indexTargetColumn strips the collection wrappers the server records in
// an index target, e.g. values(tags) or keys(attrs).
func indexTargetColumn(target string) string {
	target = strings.TrimSpace(target)
	for _, wrapper := range []string{"values", "keys", "entries", "full"} {
		prefix := wrapper + "("
		if strings.HasPrefix(target, prefix) && strings.HasSuffix(target, ")") {
			target = target[len(prefix) : len(target)-1]
			break
		}
	}
	return strings.Trim(target, `"`)
}

func (in *sessionIntrospector) views(ctx context.Context, table string, s *schema.Schema) error {
	// base_table_name is not part of the partition key of system_schema.views,
	// so views are filtered client side.
	query := `SELECT view_name, base_table_name, where_clause
	          FROM system_schema.views
	          WHERE keyspace_name = ?`

	iter := in.session.Query(query, in.keyspace).WithContext(ctx).Iter()

	var viewNames []string
	whereClauses := make(map[string]string)
	var name, baseTable, whereClause string
	for iter.Scan(&name, &baseTable, &whereClause) {
		if baseTable == table {
			viewNames = append(viewNames, name)
			whereClauses[name] = whereClause
		}
	}
	if err := iter.Close(); err != nil {
		return fmt.Errorf("reading views of %s.%s: %w", in.keyspace, table, err)
	}

	for _, viewName := range viewNames {
		view, err := in.viewKeys(ctx, viewName)
		if err != nil {
			return err
		}
		view.WhereClause = whereClauses[viewName]
		s.Views = append(s.Views, *view)
	}
	return nil
}

// viewKeys reads the key structure of a materialized view; view columns
// live in system_schema.columns under the view's own name.
func (in *sessionIntrospector) viewKeys(ctx context.Context, viewName string) (*schema.MaterializedView, error) {
	columns, err := in.columns(ctx, viewName)
	if err != nil {
		return nil, err
	}

	var pkCols, ckCols []liveColumn
	view := &schema.MaterializedView{Name: viewName}
	for _, col := range columns {
		view.Select = append(view.Select, col.name)
		switch col.kind {
		case "partition_key":
			pkCols = append(pkCols, col)
		case "clustering":
			ckCols = append(ckCols, col)
		}
	}
	sort.Slice(pkCols, func(i, j int) bool { return pkCols[i].position < pkCols[j].position })
	sort.Slice(ckCols, func(i, j int) bool { return ckCols[i].position < ckCols[j].position })

	for _, col := range pkCols {
		view.PartitionKeys = append(view.PartitionKeys, col.name)
	}
	for _, col := range ckCols {
		view.ClusteringKeys = append(view.ClusteringKeys, schema.ClusteringKey{
			Name:       col.name,
			Descending: col.clusteringOrder == "desc",
		})
	}
	return view, nil
}
