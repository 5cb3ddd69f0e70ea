package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventSchema() *Schema {
	return &Schema{
		Table: "events",
		Fields: []Field{
			{Name: "id", Type: "uuid"},
			{Name: "ts", Type: "timeuuid"},
			{Name: "payload", Type: "map<text, text>"},
		},
		PartitionKeys:  []string{"id"},
		ClusteringKeys: []ClusteringKey{{Name: "ts", Descending: true}},
		Indexes:        []string{"payload"},
	}
}

func TestNormalizeCanonicalizesTypes(t *testing.T) {
	s := eventSchema()
	s.Fields[2].Type = "MAP< Text , TEXT >"

	norm, err := Normalize(s)
	require.NoError(t, err)

	assert.Equal(t, "map<text,text>", norm.Fields["payload"])
	assert.Equal(t, []string{"id"}, norm.PartitionKeys)
	assert.Equal(t, []ClusteringKey{{Name: "ts", Descending: true}}, norm.ClusteringOrder)
}

func TestNormalizeIgnoresSurfaceDifferences(t *testing.T) {
	a := eventSchema()
	b := eventSchema()
	b.Fields[2].Type = "map<text,text>"
	b.Table = "EVENTS"

	na, err := Normalize(a)
	require.NoError(t, err)
	nb, err := Normalize(b)
	require.NoError(t, err)

	assert.True(t, na.Equal(nb))
}

func TestNormalizeIdempotent(t *testing.T) {
	s := eventSchema()

	first, err := Normalize(s)
	require.NoError(t, err)

	// Rebuild a schema from the normalized form and normalize again; the
	// canonical projection must be a fixed point.
	rebuilt := &Schema{
		Table:          first.Table,
		PartitionKeys:  first.PartitionKeys,
		ClusteringKeys: first.ClusteringOrder,
		Indexes:        first.Indexes,
	}
	for name, typ := range first.Fields {
		rebuilt.Fields = append(rebuilt.Fields, Field{Name: name, Type: typ})
	}

	second, err := Normalize(rebuilt)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestNormalizeDetectsKeyStructureChanges(t *testing.T) {
	base := eventSchema()
	nb, err := Normalize(base)
	require.NoError(t, err)

	// Flipping a clustering direction is a key-structure change.
	flipped := eventSchema()
	flipped.ClusteringKeys[0].Descending = false
	nf, err := Normalize(flipped)
	require.NoError(t, err)
	assert.False(t, nb.KeyEqual(nf))

	// Going from single to composite partition key is a key-structure change.
	composite := eventSchema()
	composite.PartitionKeys = []string{"id", "ts"}
	composite.ClusteringKeys = nil
	nc, err := Normalize(composite)
	require.NoError(t, err)
	assert.False(t, nb.KeyEqual(nc))

	// Changing a regular column is not.
	widened := eventSchema()
	widened.Fields[2].Type = "map<text, blob>"
	nw, err := Normalize(widened)
	require.NoError(t, err)
	assert.True(t, nb.KeyEqual(nw))
	assert.False(t, nb.Equal(nw))
}

func TestTableEqualIgnoresSecondaryObjects(t *testing.T) {
	base := eventSchema()
	nb, err := Normalize(base)
	require.NoError(t, err)

	indexed := eventSchema()
	indexed.Indexes = nil
	indexed.Views = []MaterializedView{{Name: "by_ts", PartitionKeys: []string{"ts"}}}
	ni, err := Normalize(indexed)
	require.NoError(t, err)

	assert.True(t, nb.TableEqual(ni))
	assert.False(t, nb.Equal(ni))
}

func TestVarcharIsAliasOfText(t *testing.T) {
	a := eventSchema()
	a.Fields[0].Type = "varchar"
	b := eventSchema()
	b.Fields[0].Type = "text"

	na, err := Normalize(a)
	require.NoError(t, err)
	nc, err := Normalize(b)
	require.NoError(t, err)
	assert.True(t, na.Equal(nc))
	assert.Equal(t, "text", na.Fields["id"])
}

func TestNormalizeRejectsMalformedType(t *testing.T) {
	s := eventSchema()
	s.Fields[2].Type = "map<text"

	_, err := Normalize(s)
	require.Error(t, err)

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSchemaValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Schema)
		wantErr string
	}{
		{
			name:   "valid schema",
			mutate: func(s *Schema) {},
		},
		{
			name:    "invalid table name",
			mutate:  func(s *Schema) { s.Table = "1bad-name" },
			wantErr: "invalid table name",
		},
		{
			name:    "empty partition key",
			mutate:  func(s *Schema) { s.PartitionKeys = nil },
			wantErr: "empty partition key",
		},
		{
			name:    "key references undeclared field",
			mutate:  func(s *Schema) { s.PartitionKeys = []string{"missing"} },
			wantErr: "undeclared field",
		},
		{
			name:    "index references undeclared field",
			mutate:  func(s *Schema) { s.Indexes = []string{"missing"} },
			wantErr: "undeclared field",
		},
		{
			name:    "malformed field type",
			mutate:  func(s *Schema) { s.Fields[2].Type = "list<" },
			wantErr: "malformed type",
		},
		{
			name: "view with undeclared key",
			mutate: func(s *Schema) {
				s.Views = []MaterializedView{{Name: "by_missing", PartitionKeys: []string{"missing"}}}
			},
			wantErr: "undeclared field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := eventSchema()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
