// Package migrate reconciles declared model schemas with the live
// database: it introspects system_schema, plans a migration decision and
// renders and executes the DDL that carries it out.
package migrate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/axonops/cqlorm/internal/schema"
)

// quote renders an always-quoted CQL identifier. Quoting unconditionally
// keeps declared casing significant and sidesteps the reserved-word list.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTableCQL renders the CREATE TABLE statement for a declared schema.
// Columns appear in declaration order; the composite partition key is
// parenthesized only when it has more than one column.
func CreateTableCQL(keyspace string, s *schema.Schema) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("CREATE TABLE %s.%s (\n", quote(keyspace), quote(s.Table)))

	for _, f := range s.Fields {
		sb.WriteString(fmt.Sprintf("    %s %s,\n", quote(f.Name), f.Type))
	}

	partitionKey := make([]string, 0, len(s.PartitionKeys))
	for _, k := range s.PartitionKeys {
		partitionKey = append(partitionKey, quote(k))
	}
	pkStr := partitionKey[0]
	if len(partitionKey) > 1 {
		pkStr = "(" + strings.Join(partitionKey, ", ") + ")"
	}

	if len(s.ClusteringKeys) > 0 {
		clusteringKey := make([]string, 0, len(s.ClusteringKeys))
		for _, k := range s.ClusteringKeys {
			clusteringKey = append(clusteringKey, quote(k.Name))
		}
		sb.WriteString(fmt.Sprintf("    PRIMARY KEY (%s, %s)\n", pkStr, strings.Join(clusteringKey, ", ")))
	} else {
		sb.WriteString(fmt.Sprintf("    PRIMARY KEY (%s)\n", pkStr))
	}

	sb.WriteString(")")

	if order := clusteringOrderClause(s.ClusteringKeys); order != "" {
		sb.WriteString(" WITH " + order)
	}

	sb.WriteString(";")
	return sb.String()
}

func clusteringOrderClause(keys []schema.ClusteringKey) string {
	if len(keys) == 0 {
		return ""
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		dir := "ASC"
		if k.Descending {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s %s", quote(k.Name), dir))
	}
	return fmt.Sprintf("CLUSTERING ORDER BY (%s)", strings.Join(parts, ", "))
}

// DropTableCQL renders the DROP TABLE statement.
func DropTableCQL(keyspace, table string) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s.%s;", quote(keyspace), quote(table))
}

// AlterTableAddCQL renders an ALTER TABLE ADD for one column.
func AlterTableAddCQL(keyspace, table string, f schema.Field) string {
	return fmt.Sprintf("ALTER TABLE %s.%s ADD %s %s;",
		quote(keyspace), quote(table), quote(f.Name), f.Type)
}

// AlterTableDropCQL renders an ALTER TABLE DROP for one column.
func AlterTableDropCQL(keyspace, table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s.%s DROP %s;",
		quote(keyspace), quote(table), quote(column))
}

// AlterTableTypeCQL renders an ALTER TABLE ALTER ... TYPE for one column.
func AlterTableTypeCQL(keyspace, table string, f schema.Field) string {
	return fmt.Sprintf("ALTER TABLE %s.%s ALTER %s TYPE %s;",
		quote(keyspace), quote(table), quote(f.Name), f.Type)
}

// IndexName derives the deterministic name of a secondary index on a column.
func IndexName(table, column string) string {
	return fmt.Sprintf("%s_%s_idx", table, column)
}

// CreateIndexCQL renders a CREATE INDEX statement for a plain secondary index.
func CreateIndexCQL(keyspace, table, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s.%s (%s);",
		quote(IndexName(table, column)), quote(keyspace), quote(table), quote(column))
}

// CreateCustomIndexCQL renders a CREATE CUSTOM INDEX statement with an
// implementation class and optional options map.
func CreateCustomIndexCQL(keyspace, table string, idx schema.CustomIndex) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("CREATE CUSTOM INDEX IF NOT EXISTS %s ON %s.%s (%s) USING '%s'",
		quote(IndexName(table, idx.On)), quote(keyspace), quote(table), quote(idx.On), idx.Using))

	if len(idx.Options) > 0 {
		keys := make([]string, 0, len(idx.Options))
		for k := range idx.Options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		opts := make([]string, 0, len(keys))
		for _, k := range keys {
			opts = append(opts, fmt.Sprintf("'%s': '%s'", k, idx.Options[k]))
		}
		sb.WriteString(fmt.Sprintf(" WITH OPTIONS = {%s}", strings.Join(opts, ", ")))
	}

	sb.WriteString(";")
	return sb.String()
}

// DropIndexCQL renders a DROP INDEX statement.
func DropIndexCQL(keyspace, name string) string {
	return fmt.Sprintf("DROP INDEX IF EXISTS %s.%s;", quote(keyspace), quote(name))
}

// CreateViewCQL renders the CREATE MATERIALIZED VIEW statement for a
// declared view on the given base table. Every view key column and every
// base primary key column carries an IS NOT NULL restriction, which is
// what the server requires before it accepts the view.
func CreateViewCQL(keyspace, baseTable string, base *schema.Schema, v schema.MaterializedView) string {
	var sb strings.Builder

	selectCols := "*"
	if len(v.Select) > 0 {
		quoted := make([]string, 0, len(v.Select))
		for _, c := range v.Select {
			quoted = append(quoted, quote(c))
		}
		selectCols = strings.Join(quoted, ", ")
	}

	sb.WriteString(fmt.Sprintf("CREATE MATERIALIZED VIEW IF NOT EXISTS %s.%s AS\n",
		quote(keyspace), quote(v.Name)))
	sb.WriteString(fmt.Sprintf("    SELECT %s FROM %s.%s\n", selectCols, quote(keyspace), quote(baseTable)))

	conds := viewKeyConditions(base, v)
	if v.WhereClause != "" {
		conds = append(conds, v.WhereClause)
	}
	sb.WriteString("    WHERE " + strings.Join(conds, " AND ") + "\n")

	partitionKey := make([]string, 0, len(v.PartitionKeys))
	for _, k := range v.PartitionKeys {
		partitionKey = append(partitionKey, quote(k))
	}
	pkStr := partitionKey[0]
	if len(partitionKey) > 1 {
		pkStr = "(" + strings.Join(partitionKey, ", ") + ")"
	}

	if len(v.ClusteringKeys) > 0 {
		clusteringKey := make([]string, 0, len(v.ClusteringKeys))
		for _, k := range v.ClusteringKeys {
			clusteringKey = append(clusteringKey, quote(k.Name))
		}
		sb.WriteString(fmt.Sprintf("    PRIMARY KEY (%s, %s)", pkStr, strings.Join(clusteringKey, ", ")))
	} else {
		sb.WriteString(fmt.Sprintf("    PRIMARY KEY (%s)", pkStr))
	}

	if order := clusteringOrderClause(v.ClusteringKeys); order != "" {
		sb.WriteString("\n    WITH " + order)
	}

	sb.WriteString(";")
	return sb.String()
}

// viewKeyConditions collects the IS NOT NULL restrictions for a view's
// primary key, deduplicated and in key order.
func viewKeyConditions(base *schema.Schema, v schema.MaterializedView) []string {
	seen := make(map[string]bool)
	var conds []string
	add := func(col string) {
		if !seen[col] {
			seen[col] = true
			conds = append(conds, fmt.Sprintf("%s IS NOT NULL", quote(col)))
		}
	}
	for _, k := range v.PartitionKeys {
		add(k)
	}
	for _, k := range v.ClusteringKeys {
		add(k.Name)
	}
	for _, k := range base.PartitionKeys {
		add(k)
	}
	for _, k := range base.ClusteringKeys {
		add(k.Name)
	}
	return conds
}

// DropViewCQL renders the DROP MATERIALIZED VIEW statement.
func DropViewCQL(keyspace, name string) string {
	return fmt.Sprintf("DROP MATERIALIZED VIEW IF EXISTS %s.%s;", quote(keyspace), quote(name))
}
