package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonops/cqlorm/internal/schema"
)

func userSchema() *schema.Schema {
	return &schema.Schema{
		Table: "users",
		Fields: []schema.Field{
			{Name: "id", Type: "uuid"},
			{Name: "age", Type: "int"},
			{Name: "name", Type: "text"},
			{Name: "mail", Type: "text"},
			{Name: "tags", Type: "set<text>"},
		},
		PartitionKeys: []string{"id"},
		Views: []schema.MaterializedView{
			{Name: "users_by_mail", PartitionKeys: []string{"mail"}},
		},
	}
}

func TestBuildFindAllRows(t *testing.T) {
	stmt, err := NewQuery().BuildFind("app", userSchema())
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "app"."users";`, stmt.Query)
	assert.Empty(t, stmt.Values)
}

func TestBuildFindPredicatesKeepDeclarationOrder(t *testing.T) {
	q := NewQuery().
		Eq("name", "ann").
		Filter("age", OpGte, 21).
		Filter("age", OpLt, 65)

	stmt, err := q.BuildFind("app", userSchema())
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT * FROM "app"."users" WHERE "name" = ? AND "age" >= ? AND "age" < ?;`,
		stmt.Query)
	assert.Equal(t, []interface{}{"ann", 21, 65}, stmt.Values)
}

func TestBuildFindFullClauseSet(t *testing.T) {
	q := NewQuery().
		Select("id", "name").
		Eq("name", "ann").
		OrderBy("age", true).
		GroupBy("id").
		Limit(10).
		AllowFiltering()

	stmt, err := q.BuildFind("app", userSchema())
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "id", "name" FROM "app"."users" WHERE "name" = ? `+
			`ORDER BY "age" DESC GROUP BY "id" LIMIT 10 ALLOW FILTERING;`,
		stmt.Query)
}

func TestBuildFindOperators(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpIn, `"name" IN ?`},
		{OpContains, `"name" CONTAINS ?`},
		{OpContainsKey, `"name" CONTAINS KEY ?`},
		{OpLike, `"name" LIKE ?`},
	}
	for _, tt := range tests {
		stmt, err := NewQuery().Filter("name", tt.op, "x").BuildFind("app", userSchema())
		require.NoError(t, err, "operator %s", tt.op)
		assert.Contains(t, stmt.Query, tt.want)
	}
}

func TestBuildFindTargetsView(t *testing.T) {
	stmt, err := NewQuery().
		Eq("mail", "a@b.c").
		FromView("users_by_mail").
		BuildFind("app", userSchema())
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "app"."users_by_mail" WHERE "mail" = ?;`, stmt.Query)
}

func TestBuildFindRejectsUnknownView(t *testing.T) {
	_, err := NewQuery().FromView("nope").BuildFind("app", userSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "materialized view")
}

func TestBuildFindRejectsUnknownColumn(t *testing.T) {
	_, err := NewQuery().Eq("nope", 1).BuildFind("app", userSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "nope"`)
}

func TestBuildFindRejectsInvalidOperator(t *testing.T) {
	_, err := NewQuery().Filter("name", Op("~="), 1).BuildFind("app", userSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid operator")
}

func TestBuildUpdateSetAndWhere(t *testing.T) {
	q := NewQuery().Eq("id", 7)
	stmt, err := q.BuildUpdate("app", userSchema(), &Update{
		Set: map[string]interface{}{"name": "ann", "mail": "a@b.c"},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "app"."users" SET "mail" = ?, "name" = ? WHERE "id" = ?;`,
		stmt.Query)
	assert.Equal(t, []interface{}{"a@b.c", "ann", 7}, stmt.Values)
}

func TestBuildUpdateTTLBindsFirst(t *testing.T) {
	stmt, err := NewQuery().Eq("id", 7).BuildUpdate("app", userSchema(), &Update{
		Set: map[string]interface{}{"name": "ann"},
		TTL: 300,
	})
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "app"."users" USING TTL ? SET "name" = ? WHERE "id" = ?;`,
		stmt.Query)
	assert.Equal(t, []interface{}{300, "ann", 7}, stmt.Values)
}

func TestBuildUpdateCollectionAddRemove(t *testing.T) {
	stmt, err := NewQuery().Eq("id", 7).BuildUpdate("app", userSchema(), &Update{
		Add:    map[string]interface{}{"tags": []string{"a"}},
		Remove: map[string]interface{}{"tags": []string{"b"}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "app"."users" SET "tags" = "tags" + ?, "tags" = "tags" - ? WHERE "id" = ?;`,
		stmt.Query)
}

func TestBuildUpdateConditionsBindAfterWhere(t *testing.T) {
	stmt, err := NewQuery().Eq("id", 7).BuildUpdate("app", userSchema(), &Update{
		Set:        map[string]interface{}{"name": "ann"},
		Conditions: []Predicate{{Column: "name", Op: OpEq, Value: "old"}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "app"."users" SET "name" = ? WHERE "id" = ? IF "name" = ?;`,
		stmt.Query)
	assert.Equal(t, []interface{}{"ann", 7, "old"}, stmt.Values)
}

func TestBuildUpdateIfExists(t *testing.T) {
	stmt, err := NewQuery().Eq("id", 7).BuildUpdate("app", userSchema(), &Update{
		Set:      map[string]interface{}{"name": "ann"},
		IfExists: true,
	})
	require.NoError(t, err)
	assert.Contains(t, stmt.Query, " IF EXISTS;")
}

func TestBuildUpdateRejectsKeyColumnAssignment(t *testing.T) {
	_, err := NewQuery().Eq("id", 7).BuildUpdate("app", userSchema(), &Update{
		Set: map[string]interface{}{"id": 9},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key column "id"`)
}

func TestBuildUpdateRejectsViewTarget(t *testing.T) {
	_, err := NewQuery().FromView("users_by_mail").BuildUpdate("app", userSchema(), &Update{
		Set: map[string]interface{}{"name": "ann"},
	})
	require.Error(t, err)
}

func TestBuildDeleteWholeRow(t *testing.T) {
	stmt, err := NewQuery().Eq("id", 7).BuildDelete("app", userSchema(), nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "app"."users" WHERE "id" = ?;`, stmt.Query)
	assert.Equal(t, []interface{}{7}, stmt.Values)
}

func TestBuildDeleteUnqualifiedWithoutKeyspace(t *testing.T) {
	events := &schema.Schema{
		Table:         "events",
		Fields:        []schema.Field{{Name: "id", Type: "int"}},
		PartitionKeys: []string{"id"},
	}
	stmt, err := NewQuery().Eq("id", 5).BuildDelete("", events, nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "events" WHERE "id" = ?;`, stmt.Query)
	assert.Equal(t, []interface{}{5}, stmt.Values)
}

func TestBuildDeleteSpecificColumns(t *testing.T) {
	stmt, err := NewQuery().Eq("id", 7).BuildDelete("app", userSchema(), &DeleteOptions{
		Columns: []string{"mail"},
	})
	require.NoError(t, err)
	assert.Equal(t, `DELETE "mail" FROM "app"."users" WHERE "id" = ?;`, stmt.Query)
}

func TestBuildSaveSortsColumnsAndBindsTTLLast(t *testing.T) {
	stmt, err := BuildSave("app", userSchema(), map[string]interface{}{
		"name": "ann",
		"id":   7,
	}, &SaveOptions{TTL: 300})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "app"."users" ("id", "name") VALUES (?, ?) USING TTL ?;`,
		stmt.Query)
	assert.Equal(t, []interface{}{7, "ann", 300}, stmt.Values)
}

func TestBuildSaveIfNotExists(t *testing.T) {
	stmt, err := BuildSave("app", userSchema(), map[string]interface{}{
		"id": 7,
	}, &SaveOptions{IfNotExists: true})
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "app"."users" ("id") VALUES (?) IF NOT EXISTS;`,
		stmt.Query)
}

func TestBuildSaveRequiresPartitionKey(t *testing.T) {
	_, err := BuildSave("app", userSchema(), map[string]interface{}{"name": "ann"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `partition key column "id"`)
}

func TestBuildSaveRejectsUnknownColumn(t *testing.T) {
	_, err := BuildSave("app", userSchema(), map[string]interface{}{"id": 7, "nope": 1}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "nope"`)
}
