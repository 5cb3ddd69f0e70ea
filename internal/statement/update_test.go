package statement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateBasic(t *testing.T) {
	cql, args, err := Update(`"users"`).
		Set(`"name"`, "ann").
		Where(`"id" = ?`, 7).
		ToCQL()
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = ? WHERE "id" = ?;`, cql)
	assert.Equal(t, []interface{}{"ann", 7}, args)
}

// TTL binds before the SET parameters on update; insert binds it last.
func TestTTLParameterPlacementAsymmetry(t *testing.T) {
	cql, args, err := Update(`"users"`).
		UsingTTL(300).
		Set(`"name"`, "ann").
		Set(`"mail"`, "a@b.c").
		Where(`"id" = ?`, 7).
		ToCQL()
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "users" USING TTL ? SET "name" = ?, "mail" = ? WHERE "id" = ?;`,
		cql)
	assert.Equal(t, []interface{}{300, "ann", "a@b.c", 7}, args)

	cql, args, err = Insert(`"users"`).
		Columns(`"name"`, `"mail"`).
		Values("ann", "a@b.c").
		UsingTTL(300).
		ToCQL()
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "users" ("name", "mail") VALUES (?, ?) USING TTL ?;`,
		cql)
	assert.Equal(t, []interface{}{"ann", "a@b.c", 300}, args)
}

func TestUpdateCollectionAddRemove(t *testing.T) {
	cql, args, err := Update(`"users"`).
		Add(`"tags"`, []string{"a"}).
		Remove(`"mails"`, []string{"old@b.c"}).
		Where(`"id" = ?`, 7).
		ToCQL()
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "users" SET "tags" = "tags" + ?, "mails" = "mails" - ? WHERE "id" = ?;`,
		cql)
	assert.Len(t, args, 3)
}

// IF condition parameters bind after the WHERE parameters.
func TestUpdateConditional(t *testing.T) {
	b := Update(`"users"`).
		Set(`"name"`, "ann").
		Where(`"id" = ?`, 7).
		If(`"version" = ?`, 3)

	cql, args, err := b.ToCQL()
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "users" SET "name" = ? WHERE "id" = ? IF "version" = ?;`,
		cql)
	assert.Equal(t, []interface{}{"ann", 7, 3}, args)
	assert.True(t, b.IsCAS())
}

func TestUpdateIfExists(t *testing.T) {
	b := Update(`"users"`).
		Set(`"name"`, "ann").
		Where(`"id" = ?`, 7).
		IfExists()

	cql, _, err := b.ToCQL()
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "users" SET "name" = ? WHERE "id" = ? IF EXISTS;`, cql)
	assert.True(t, b.IsCAS())
}

func TestUpdateSetMapIsDeterministic(t *testing.T) {
	cql, args, err := Update(`"users"`).
		SetMap(map[string]interface{}{`"b"`: 2, `"a"`: 1, `"c"`: 3}).
		Where(`"id" = ?`, 7).
		ToCQL()
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "users" SET "a" = ?, "b" = ?, "c" = ? WHERE "id" = ?;`,
		cql)
	assert.Equal(t, []interface{}{1, 2, 3, 7}, args)
}

func TestUpdateRequiresSetClause(t *testing.T) {
	_, _, err := Update(`"users"`).Where(`"id" = ?`, 7).ToCQL()
	assert.ErrorIs(t, err, ErrMalformedSetClause)
}

func TestUpdateMissingTable(t *testing.T) {
	_, _, err := UpdateBuilder(StatementBuilder).Set(`"a"`, 1).ToCQL()
	assert.ErrorIs(t, err, ErrMissingTable)
}

func TestInsertIfNotExists(t *testing.T) {
	cql, args, err := Insert(`"users"`).
		Columns(`"id"`, `"name"`).
		Values(7, "ann").
		IfNotExists().
		ToCQL()
	require.NoError(t, err)
	assert.Equal(t,
		`INSERT INTO "users" ("id", "name") VALUES (?, ?) IF NOT EXISTS;`,
		cql)
	assert.Equal(t, []interface{}{7, "ann"}, args)
}
