package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonops/cqlorm/internal/db"
	"github.com/axonops/cqlorm/internal/schema"
)

func stampedSchema() *schema.Schema {
	s := userSchema()
	s.Options = schema.Options{Timestamps: true, Versions: true}
	return s
}

func TestNewAppendsImplicitColumns(t *testing.T) {
	m := New("users", stampedSchema(), nil, "app", db.NoopMetrics())

	cols := columnSet(m.Schema())
	assert.True(t, cols[ColCreatedAt])
	assert.True(t, cols[ColUpdatedAt])
	assert.True(t, cols[ColVersion])
}

func TestNewDoesNotDuplicateDeclaredImplicitColumns(t *testing.T) {
	s := stampedSchema()
	s.Fields = append(s.Fields, schema.Field{Name: ColCreatedAt, Type: "timestamp"})
	declared := len(s.Fields)

	m := New("users", s, nil, "app", db.NoopMetrics())
	// updated_at and __v are added; created_at already existed.
	assert.Len(t, m.Schema().Fields, declared+2)
}

func TestStampForSaveFillsImplicitColumns(t *testing.T) {
	m := New("users", stampedSchema(), nil, "app", db.NoopMetrics())

	row := map[string]interface{}{"id": 7}
	stamped := m.stampForSave(row)

	assert.NotContains(t, row, ColCreatedAt, "input row must not be mutated")
	assert.Contains(t, stamped, ColCreatedAt)
	assert.Contains(t, stamped, ColUpdatedAt)
	require.Contains(t, stamped, ColVersion)

	version, err := uuid.Parse(stamped[ColVersion].(string))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(1), version.Version(), "version column is a timeuuid")
}

func TestStampForSaveKeepsCallerValues(t *testing.T) {
	m := New("users", stampedSchema(), nil, "app", db.NoopMetrics())

	stamped := m.stampForSave(map[string]interface{}{"id": 7, ColVersion: "given"})
	assert.Equal(t, "given", stamped[ColVersion])
}

func TestStampForSaveWithoutOptionsAddsNothing(t *testing.T) {
	m := New("users", userSchema(), nil, "app", db.NoopMetrics())

	stamped := m.stampForSave(map[string]interface{}{"id": 7})
	assert.Len(t, stamped, 1)
}

func TestStampForUpdateAdvancesUpdatedAtAndVersion(t *testing.T) {
	m := New("users", stampedSchema(), nil, "app", db.NoopMetrics())

	u := &Update{Set: map[string]interface{}{"name": "ann"}}
	stamped := m.stampForUpdate(u)

	assert.NotContains(t, u.Set, ColUpdatedAt, "input mutation must not be mutated")
	assert.Contains(t, stamped.Set, ColUpdatedAt)
	assert.Contains(t, stamped.Set, ColVersion)
	assert.NotContains(t, stamped.Set, ColCreatedAt, "created_at is set once at save")
}

func TestRegistryAddAndGet(t *testing.T) {
	r := NewRegistry()
	m := New("Users", userSchema(), nil, "app", db.NoopMetrics())

	require.NoError(t, r.Add(m))

	got, err := r.Get("users")
	require.NoError(t, err)
	assert.Same(t, m, got)
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(New("users", userSchema(), nil, "app", db.NoopMetrics())))

	err := r.Add(New("USERS", userSchema(), nil, "app", db.NoopMetrics()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegistryRejectsInvalidName(t *testing.T) {
	r := NewRegistry()
	err := r.Add(New("9bad name", userSchema(), nil, "app", db.NoopMetrics()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model name")
}

func TestRegistryGetUnknown(t *testing.T) {
	_, err := NewRegistry().Get("nope")
	assert.ErrorIs(t, err, ErrModelNotRegistered)
}

func TestRegistryMustAddPanics(t *testing.T) {
	r := NewRegistry()
	r.MustAdd(New("users", userSchema(), nil, "app", db.NoopMetrics()))

	assert.Panics(t, func() {
		r.MustAdd(New("users", userSchema(), nil, "app", db.NoopMetrics()))
	})
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.MustAdd(New("zebra", userSchema(), nil, "app", db.NoopMetrics()))
	r.MustAdd(New("alpha", userSchema(), nil, "app", db.NoopMetrics()))

	assert.Equal(t, []string{"alpha", "zebra"}, r.Names())
}

func TestBeforeHookErrorCarriesSentinel(t *testing.T) {
	err := beforeHookErr(assert.AnError)
	assert.ErrorIs(t, err, ErrBeforeHookAborted)
	assert.Nil(t, beforeHookErr(nil))
}

func TestAfterHookErrorCarriesSentinel(t *testing.T) {
	err := afterHookErr(assert.AnError)
	assert.ErrorIs(t, err, ErrAfterHookFailed)
	assert.Nil(t, afterHookErr(nil))
}

func TestOpErrorClassification(t *testing.T) {
	err := opError(KindFind, assert.AnError)
	var opErr *Error
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, KindFind, opErr.Kind)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Nil(t, opError(KindFind, nil))
}
