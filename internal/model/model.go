package model

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/axonops/cqlorm/internal/db"
	"github.com/axonops/cqlorm/internal/logger"
	"github.com/axonops/cqlorm/internal/schema"
)

// Implicit column names added by schema options.
const (
	ColCreatedAt = "created_at"
	ColUpdatedAt = "updated_at"
	ColVersion   = "__v"
)

// ErrCASNotApplied is returned when a lightweight-transaction write
// (IF EXISTS, IF NOT EXISTS or IF conditions) was not applied.
var ErrCASNotApplied = errors.New("conditional write was not applied")

// Model is the handle for one registered object model. All operations
// lazily synchronize the table schema on first use.
type Model struct {
	name     string
	schema   *schema.Schema
	session  *db.Session
	keyspace string
	metrics  db.Metrics
	hooks    Hooks

	ready    sync.Once
	readyErr error
	syncFn   func(context.Context) error
}

// New builds a model handle over a declared schema. The schema is
// extended in place with the implicit columns its options ask for.
func New(name string, s *schema.Schema, session *db.Session, keyspace string, metrics db.Metrics) *Model {
	applyImplicitColumns(s)
	return &Model{
		name:     name,
		schema:   s,
		session:  session,
		keyspace: keyspace,
		metrics:  metrics,
	}
}

// applyImplicitColumns appends the timestamp and version columns when the
// schema options request them and the declaration did not define them.
func applyImplicitColumns(s *schema.Schema) {
	has := columnSet(s)
	if s.Options.Timestamps {
		if !has[ColCreatedAt] {
			s.Fields = append(s.Fields, schema.Field{Name: ColCreatedAt, Type: "timestamp"})
		}
		if !has[ColUpdatedAt] {
			s.Fields = append(s.Fields, schema.Field{Name: ColUpdatedAt, Type: "timestamp"})
		}
	}
	if s.Options.Versions && !has[ColVersion] {
		s.Fields = append(s.Fields, schema.Field{Name: ColVersion, Type: "timeuuid"})
	}
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// Schema returns the model's declared schema, implicit columns included.
func (m *Model) Schema() *schema.Schema {
	return m.schema
}

// SetHooks installs the model's operation hooks.
func (m *Model) SetHooks(h Hooks) {
	m.hooks = h
}

// SetSync installs the lazy schema synchronization run before the first
// operation. Installed by the client at registration.
func (m *Model) SetSync(fn func(context.Context) error) {
	m.syncFn = fn
}

// ensureReady runs the schema sync exactly once. A failed sync is final:
// every subsequent operation returns the same error.
func (m *Model) ensureReady(ctx context.Context) error {
	m.ready.Do(func() {
		if m.syncFn == nil {
			return
		}
		if err := m.syncFn(ctx); err != nil {
			m.metrics.SyncFail.Inc(1)
			m.readyErr = opError(KindTableCreation, err)
			return
		}
		m.metrics.Sync.Inc(1)
	})
	return m.readyErr
}

// Find runs the query and returns all matching rows.
func (m *Model) Find(ctx context.Context, q *Query) ([]map[string]interface{}, error) {
	if err := m.ensureReady(ctx); err != nil {
		return nil, err
	}
	stmt, err := q.BuildFind(m.keyspace, m.schema)
	if err != nil {
		m.metrics.FindFail.Inc(1)
		return nil, opError(KindFind, err)
	}
	logger.DebugfToFile("Model", "%s find: %s", m.name, stmt.Query)

	iter := m.session.Query(stmt.Query, stmt.Values...).WithContext(ctx).Iter()
	var rows []map[string]interface{}
	for {
		row := make(map[string]interface{})
		if !iter.MapScan(row) {
			break
		}
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		m.metrics.FindFail.Inc(1)
		return nil, opError(KindFind, err)
	}
	m.metrics.Find.Inc(1)
	return rows, nil
}

// FindOne runs the query limited to a single row; nil when nothing matches.
func (m *Model) FindOne(ctx context.Context, q *Query) (map[string]interface{}, error) {
	rows, err := m.Find(ctx, q.Limit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// EachRow runs the query and invokes fn for every row as it is paged in.
// fn returning false stops the iteration early.
func (m *Model) EachRow(ctx context.Context, q *Query, fn func(row map[string]interface{}) bool) error {
	if err := m.ensureReady(ctx); err != nil {
		return err
	}
	stmt, err := q.BuildFind(m.keyspace, m.schema)
	if err != nil {
		m.metrics.FindFail.Inc(1)
		return opError(KindFind, err)
	}

	iter := m.session.Query(stmt.Query, stmt.Values...).WithContext(ctx).Iter()
	for {
		row := make(map[string]interface{})
		if !iter.MapScan(row) {
			break
		}
		if !fn(row) {
			break
		}
	}
	if err := iter.Close(); err != nil {
		m.metrics.FindFail.Inc(1)
		return opError(KindFind, err)
	}
	m.metrics.Find.Inc(1)
	return nil
}

// Stream runs the query and delivers rows over a channel. The error
// channel receives at most one error after the row channel closes.
func (m *Model) Stream(ctx context.Context, q *Query) (<-chan map[string]interface{}, <-chan error) {
	rows := make(chan map[string]interface{})
	errc := make(chan error, 1)

	go func() {
		defer close(rows)
		defer close(errc)
		err := m.EachRow(ctx, q, func(row map[string]interface{}) bool {
			select {
			case rows <- row:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil {
			errc <- err
		} else if ctx.Err() != nil {
			errc <- ctx.Err()
		}
	}()

	return rows, errc
}

// Save inserts a row, stamping the implicit timestamp and version columns
// when the model declares them.
func (m *Model) Save(ctx context.Context, row map[string]interface{}, opts *SaveOptions) error {
	if err := m.ensureReady(ctx); err != nil {
		return err
	}

	stamped := m.stampForSave(row)
	if m.hooks.BeforeSave != nil {
		if err := beforeHookErr(m.hooks.BeforeSave(ctx, stamped)); err != nil {
			return opError(KindSave, err)
		}
	}

	stmt, err := BuildSave(m.keyspace, m.schema, stamped, opts)
	if err != nil {
		m.metrics.SaveFail.Inc(1)
		return opError(KindSave, err)
	}
	logger.DebugfToFile("Model", "%s save: %s", m.name, stmt.Query)

	if err := m.execWrite(ctx, stmt, opts != nil && opts.IfNotExists); err != nil {
		m.metrics.SaveFail.Inc(1)
		return opError(KindSave, err)
	}
	m.metrics.Save.Inc(1)

	if m.hooks.AfterSave != nil {
		if err := afterHookErr(m.hooks.AfterSave(ctx, stamped)); err != nil {
			return opError(KindSave, err)
		}
	}
	return nil
}

// Update applies the mutation to the rows the query selects.
func (m *Model) Update(ctx context.Context, q *Query, u *Update) error {
	if err := m.ensureReady(ctx); err != nil {
		return err
	}

	stamped := m.stampForUpdate(u)
	if m.hooks.BeforeUpdate != nil {
		if err := beforeHookErr(m.hooks.BeforeUpdate(ctx, q, stamped)); err != nil {
			return opError(KindUpdate, err)
		}
	}

	stmt, err := q.BuildUpdate(m.keyspace, m.schema, stamped)
	if err != nil {
		m.metrics.UpdateFail.Inc(1)
		return opError(KindUpdate, err)
	}
	logger.DebugfToFile("Model", "%s update: %s", m.name, stmt.Query)

	cas := stamped.IfExists || len(stamped.Conditions) > 0
	if err := m.execWrite(ctx, stmt, cas); err != nil {
		m.metrics.UpdateFail.Inc(1)
		return opError(KindUpdate, err)
	}
	m.metrics.Update.Inc(1)

	if m.hooks.AfterUpdate != nil {
		if err := afterHookErr(m.hooks.AfterUpdate(ctx, q, stamped)); err != nil {
			return opError(KindUpdate, err)
		}
	}
	return nil
}

// Delete removes the rows (or columns) the query selects.
func (m *Model) Delete(ctx context.Context, q *Query, opts *DeleteOptions) error {
	if err := m.ensureReady(ctx); err != nil {
		return err
	}

	if m.hooks.BeforeDelete != nil {
		if err := beforeHookErr(m.hooks.BeforeDelete(ctx, q)); err != nil {
			return opError(KindDelete, err)
		}
	}

	stmt, err := q.BuildDelete(m.keyspace, m.schema, opts)
	if err != nil {
		m.metrics.DeleteFail.Inc(1)
		return opError(KindDelete, err)
	}
	logger.DebugfToFile("Model", "%s delete: %s", m.name, stmt.Query)

	if err := m.session.Exec(ctx, stmt.Query, stmt.Values...); err != nil {
		m.metrics.DeleteFail.Inc(1)
		return opError(KindDelete, err)
	}
	m.metrics.Delete.Inc(1)

	if m.hooks.AfterDelete != nil {
		if err := afterHookErr(m.hooks.AfterDelete(ctx, q)); err != nil {
			return opError(KindDelete, err)
		}
	}
	return nil
}

// execWrite runs a write statement; conditional writes go through the
// CAS scan so a not-applied outcome surfaces as an error instead of
// silently succeeding.
func (m *Model) execWrite(ctx context.Context, stmt db.Statement, cas bool) error {
	query := m.session.Query(stmt.Query, stmt.Values...).WithContext(ctx)
	if !cas {
		return query.Exec()
	}
	applied, err := query.MapScanCAS(make(map[string]interface{}))
	if err != nil {
		return err
	}
	if !applied {
		return ErrCASNotApplied
	}
	return nil
}

// stampForSave copies the row and fills the implicit columns the schema
// carries. Caller-provided values for them are kept.
func (m *Model) stampForSave(row map[string]interface{}) map[string]interface{} {
	stamped := make(map[string]interface{}, len(row)+3)
	for k, v := range row {
		stamped[k] = v
	}
	now := time.Now().UTC()
	has := columnSet(m.schema)
	if has[ColCreatedAt] {
		if _, ok := stamped[ColCreatedAt]; !ok {
			stamped[ColCreatedAt] = now
		}
	}
	if has[ColUpdatedAt] {
		if _, ok := stamped[ColUpdatedAt]; !ok {
			stamped[ColUpdatedAt] = now
		}
	}
	if has[ColVersion] {
		if _, ok := stamped[ColVersion]; !ok {
			stamped[ColVersion] = newVersion()
		}
	}
	return stamped
}

// stampForUpdate copies the mutation and advances updated_at and the
// version column when the schema carries them.
func (m *Model) stampForUpdate(u *Update) *Update {
	stamped := *u
	stamped.Set = make(map[string]interface{}, len(u.Set)+2)
	for k, v := range u.Set {
		stamped.Set[k] = v
	}
	has := columnSet(m.schema)
	if has[ColUpdatedAt] {
		if _, ok := stamped.Set[ColUpdatedAt]; !ok {
			stamped.Set[ColUpdatedAt] = time.Now().UTC()
		}
	}
	if has[ColVersion] {
		if _, ok := stamped.Set[ColVersion]; !ok {
			stamped.Set[ColVersion] = newVersion()
		}
	}
	return &stamped
}

// newVersion returns a fresh time-based UUID for the version column,
// rendered as a string for driver binding.
func newVersion() string {
	return uuid.Must(uuid.NewUUID()).String()
}
