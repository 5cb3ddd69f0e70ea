package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonops/cqlorm/internal/config"
)

type fakeExec struct {
	stmts []string
	err   error
}

func (f *fakeExec) ExecDDL(_ context.Context, stmt string) error {
	f.stmts = append(f.stmts, stmt)
	return f.err
}

type fakeIntro struct {
	keyspaces map[string]bool
	types     map[string][]UDTField
}

func (f *fakeIntro) KeyspaceExists(_ context.Context, name string) (bool, error) {
	return f.keyspaces[name], nil
}

func (f *fakeIntro) TypeFields(_ context.Context, name string) ([]UDTField, bool, error) {
	fields, ok := f.types[name]
	return fields, ok, nil
}

func TestCreateKeyspaceCQLSimpleStrategy(t *testing.T) {
	cql := CreateKeyspaceCQL("app", &config.ReplicationStrategy{
		Class:             "SimpleStrategy",
		ReplicationFactor: 3,
	})
	assert.Equal(t,
		`CREATE KEYSPACE IF NOT EXISTS "app" WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': 3};`,
		cql)
}

func TestCreateKeyspaceCQLNetworkTopology(t *testing.T) {
	cql := CreateKeyspaceCQL("app", &config.ReplicationStrategy{
		Class:       "NetworkTopologyStrategy",
		DataCenters: map[string]int{"dc2": 2, "dc1": 3},
	})
	assert.Equal(t,
		`CREATE KEYSPACE IF NOT EXISTS "app" WITH REPLICATION = {'class': 'NetworkTopologyStrategy', 'dc1': 3, 'dc2': 2};`,
		cql)
}

func TestCreateKeyspaceCQLNilStrategyDefaults(t *testing.T) {
	cql := CreateKeyspaceCQL("app", nil)
	assert.Contains(t, cql, "'class': 'SimpleStrategy'")
	assert.Contains(t, cql, "'replication_factor': 1")
}

func TestEnsureKeyspaceSkipsExisting(t *testing.T) {
	exec := &fakeExec{}
	p := New(exec, &fakeIntro{keyspaces: map[string]bool{"app": true}}, "app", nil)

	require.NoError(t, p.EnsureKeyspace(context.Background()))
	assert.Empty(t, exec.stmts)
}

func TestEnsureKeyspaceCreatesMissing(t *testing.T) {
	exec := &fakeExec{}
	p := New(exec, &fakeIntro{}, "app", nil)

	require.NoError(t, p.EnsureKeyspace(context.Background()))
	require.Len(t, exec.stmts, 1)
	assert.Contains(t, exec.stmts[0], `CREATE KEYSPACE IF NOT EXISTS "app"`)
}

func addressUDT() UDT {
	return UDT{
		Name: "address",
		Fields: []UDTField{
			{Name: "street", Type: "text"},
			{Name: "city", Type: "text"},
			{Name: "zip", Type: "int"},
		},
	}
}

func TestEnsureTypesCreatesMissingType(t *testing.T) {
	exec := &fakeExec{}
	p := New(exec, &fakeIntro{}, "app", nil)

	require.NoError(t, p.EnsureTypes(context.Background(), []UDT{addressUDT()}))
	require.Len(t, exec.stmts, 1)
	assert.Equal(t,
		`CREATE TYPE IF NOT EXISTS "app"."address" ("street" text, "city" text, "zip" int);`,
		exec.stmts[0])
}

func TestEnsureTypesAddsMissingField(t *testing.T) {
	exec := &fakeExec{}
	intro := &fakeIntro{types: map[string][]UDTField{
		"address": {{Name: "street", Type: "text"}, {Name: "city", Type: "text"}},
	}}
	p := New(exec, intro, "app", nil)

	require.NoError(t, p.EnsureTypes(context.Background(), []UDT{addressUDT()}))
	require.Len(t, exec.stmts, 1)
	assert.Equal(t, `ALTER TYPE "app"."address" ADD "zip" int;`, exec.stmts[0])
}

func TestEnsureTypesRejectsFieldTypeMismatch(t *testing.T) {
	exec := &fakeExec{}
	intro := &fakeIntro{types: map[string][]UDTField{
		"address": {{Name: "street", Type: "text"}, {Name: "city", Type: "text"}, {Name: "zip", Type: "text"}},
	}}
	p := New(exec, intro, "app", nil)

	err := p.EnsureTypes(context.Background(), []UDT{addressUDT()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "zip"`)
	assert.Empty(t, exec.stmts)
}

func TestEnsureTypesIgnoresTypeSurfaceDifferences(t *testing.T) {
	exec := &fakeExec{}
	intro := &fakeIntro{types: map[string][]UDTField{
		"address": {{Name: "street", Type: "Text"}, {Name: "city", Type: " text "}, {Name: "zip", Type: "INT"}},
	}}
	p := New(exec, intro, "app", nil)

	require.NoError(t, p.EnsureTypes(context.Background(), []UDT{addressUDT()}))
	assert.Empty(t, exec.stmts)
}

func TestCreateFunctionCQL(t *testing.T) {
	cql := CreateFunctionCQL("app", UDF{
		Name:          "avg_state",
		ArgumentNames: []string{"state", "val"},
		ArgumentTypes: []string{"tuple<int, bigint>", "bigint"},
		ReturnType:    "tuple<int, bigint>",
		Language:      "java",
		Body:          "return state;",
	})
	assert.Equal(t,
		`CREATE OR REPLACE FUNCTION "app"."avg_state"(state tuple<int, bigint>, val bigint)`+
			` RETURNS NULL ON NULL INPUT RETURNS tuple<int, bigint> LANGUAGE java AS $$return state;$$;`,
		cql)
}

func TestCreateFunctionCQLCalledOnNullInput(t *testing.T) {
	cql := CreateFunctionCQL("app", UDF{
		Name:              "f",
		ArgumentNames:     []string{"x"},
		ArgumentTypes:     []string{"int"},
		ReturnType:        "int",
		Language:          "java",
		Body:              "return x;",
		CalledOnNullInput: true,
	})
	assert.Contains(t, cql, " CALLED ON NULL INPUT")
}

func TestCreateAggregateCQL(t *testing.T) {
	cql := CreateAggregateCQL("app", UDA{
		Name:          "average",
		ArgumentTypes: []string{"bigint"},
		StateFunction: "avg_state",
		StateType:     "tuple<int, bigint>",
		FinalFunction: "avg_final",
		InitCond:      "(0, 0)",
	})
	assert.Equal(t,
		`CREATE OR REPLACE AGGREGATE "app"."average"(bigint)`+
			` SFUNC "avg_state" STYPE tuple<int, bigint> FINALFUNC "avg_final" INITCOND (0, 0);`,
		cql)
}

func TestEnsureAggregatesIssuesEachInOrder(t *testing.T) {
	exec := &fakeExec{}
	p := New(exec, &fakeIntro{}, "app", nil)

	err := p.EnsureAggregates(context.Background(), []UDA{
		{Name: "a1", ArgumentTypes: []string{"int"}, StateFunction: "f1", StateType: "int"},
		{Name: "a2", ArgumentTypes: []string{"int"}, StateFunction: "f2", StateType: "int"},
	})
	require.NoError(t, err)
	require.Len(t, exec.stmts, 2)
	assert.Contains(t, exec.stmts[0], `"a1"`)
	assert.Contains(t, exec.stmts[1], `"a2"`)
}
