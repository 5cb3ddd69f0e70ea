package migrate

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/axonops/cqlorm/internal/logger"
	"github.com/axonops/cqlorm/internal/schema"
)

// Executor runs DDL statements. Satisfied by db.Session.
type Executor interface {
	ExecDDL(ctx context.Context, stmt string) error
}

// errAlterImpossible signals that a diff cannot be expressed as ALTER
// statements and the alter policy must fall back to drop-and-recreate.
var errAlterImpossible = errors.New("schema change cannot be applied in place")

// Options carry the per-model migration settings for one sync call.
type Options struct {
	Policy      schema.Policy
	CreateTable bool
}

// Engine reconciles one declared schema at a time against the live
// database. The base table is always handled strictly before its
// secondary objects; indexes and views are then created concurrently.
type Engine struct {
	exec     Executor
	intro    Introspector
	keyspace string
}

// NewEngine returns an Engine bound to a keyspace.
func NewEngine(exec Executor, intro Introspector, keyspace string) *Engine {
	return &Engine{exec: exec, intro: intro, keyspace: keyspace}
}

// Sync brings the live table in line with the declared schema under the
// given options. It validates the declaration, plans a decision, applies
// the resulting DDL and reconciles missing indexes and views.
func (e *Engine) Sync(ctx context.Context, declared *schema.Schema, opts Options) error {
	if err := declared.Validate(); err != nil {
		return err
	}

	live, err := e.intro.LiveSchema(ctx, declared.Table)
	if err != nil {
		return errors.Wrapf(err, "introspecting table %q", declared.Table)
	}

	decision, err := schema.Plan(declared, live, opts.Policy, opts.CreateTable)
	if err != nil {
		return err
	}
	logger.DebugfToFile("Sync", "table %s: decision=%s policy=%s", declared.Table, decision, opts.Policy)

	switch decision {
	case schema.DecisionNoOp:
		// Under alter and drop the plan tolerates missing secondary
		// objects (e.g. an index added to an otherwise unchanged model);
		// they are created here. Under safe, no-op means fully settled
		// and this issues nothing.
		return e.createSecondary(ctx, declared, live)

	case schema.DecisionCreate:
		if err := e.exec.ExecDDL(ctx, CreateTableCQL(e.keyspace, declared)); err != nil {
			return errors.Wrapf(err, "creating table %q", declared.Table)
		}
		return e.createSecondary(ctx, declared, nil)

	case schema.DecisionAlter:
		stmts, err := e.alterStatements(declared, live)
		if errors.Is(err, errAlterImpossible) {
			logger.DebugfToFile("Sync", "table %s: %v, falling back to recreate", declared.Table, err)
			return e.recreate(ctx, declared, live)
		}
		if err != nil {
			return err
		}
		for _, stmt := range stmts {
			if err := e.exec.ExecDDL(ctx, stmt); err != nil {
				return errors.Wrapf(err, "altering table %q", declared.Table)
			}
		}
		return e.createSecondary(ctx, declared, live)

	case schema.DecisionRecreate:
		return e.recreate(ctx, declared, live)
	}

	return errors.Errorf("unhandled migration decision %q for table %q", decision, declared.Table)
}

// recreate drops the live table and rebuilds it from the declaration.
// Live materialized views must go first: the server refuses to drop a
// base table while views still reference it. The views recreated
// afterwards are the declared ones; a live view absent from the
// declaration is gone with the old table.
func (e *Engine) recreate(ctx context.Context, declared, live *schema.Schema) error {
	if live != nil {
		for _, v := range live.Views {
			if err := e.exec.ExecDDL(ctx, DropViewCQL(e.keyspace, v.Name)); err != nil {
				return errors.Wrapf(err, "dropping view %q", v.Name)
			}
		}
		if err := e.exec.ExecDDL(ctx, DropTableCQL(e.keyspace, live.Table)); err != nil {
			return errors.Wrapf(err, "dropping table %q", live.Table)
		}
	}
	if err := e.exec.ExecDDL(ctx, CreateTableCQL(e.keyspace, declared)); err != nil {
		return errors.Wrapf(err, "creating table %q", declared.Table)
	}
	return e.createSecondary(ctx, declared, nil)
}

// alterStatements computes the ALTER statements that carry a live table
// to the declared shape. Plan has already guaranteed that the key
// structure is unchanged; only non-key columns differ here. A type change
// outside the small compatibility set returns errAlterImpossible.
func (e *Engine) alterStatements(declared, live *schema.Schema) ([]string, error) {
	liveTypes := make(map[string]string, len(live.Fields))
	for _, f := range live.Fields {
		info, err := schema.ParseType(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "live column %q", f.Name)
		}
		liveTypes[f.Name] = info.Canonical()
	}

	declaredNames := make(map[string]bool, len(declared.Fields))
	var stmts []string

	for _, f := range declared.Fields {
		declaredNames[f.Name] = true
		info, err := schema.ParseType(f.Type)
		if err != nil {
			return nil, errors.Wrapf(err, "declared column %q", f.Name)
		}
		liveType, exists := liveTypes[f.Name]
		if !exists {
			stmts = append(stmts, AlterTableAddCQL(e.keyspace, declared.Table, f))
			continue
		}
		if liveType == info.Canonical() {
			continue
		}
		if !alterCompatible(liveType, info.Canonical()) {
			return nil, errors.Wrapf(errAlterImpossible,
				"column %q: %s -> %s", f.Name, liveType, info.Canonical())
		}
		stmts = append(stmts, AlterTableTypeCQL(e.keyspace, declared.Table, f))
	}

	for _, f := range live.Fields {
		if !declaredNames[f.Name] {
			stmts = append(stmts, AlterTableDropCQL(e.keyspace, declared.Table, f.Name))
		}
	}

	return stmts, nil
}

// alterCompatible reports whether the server accepts an in-place ALTER
// from one canonical type to another. The set is deliberately small:
// only reinterpretations of the identical byte representation are safe.
var alterWidenings = map[string]map[string]bool{
	"ascii":    {"text": true, "blob": true},
	"bigint":   {"blob": true, "varint": true},
	"int":      {"blob": true, "varint": true},
	"text":     {"blob": true},
	"timeuuid": {"uuid": true, "blob": true},
	"uuid":     {"blob": true},
}

func alterCompatible(from, to string) bool {
	return alterWidenings[from][to]
}

// createSecondary creates the indexes and materialized views the
// declaration names and the live table lacks. Index and view creation
// run concurrently with failures aggregated; nothing here depends on the
// others having finished.
func (e *Engine) createSecondary(ctx context.Context, declared, live *schema.Schema) error {
	liveIndexes := make(map[string]bool)
	liveViews := make(map[string]bool)
	if live != nil {
		for _, col := range live.Indexes {
			liveIndexes[col] = true
		}
		for _, idx := range live.CustomIndexes {
			liveIndexes[idx.On] = true
		}
		for _, v := range live.Views {
			liveViews[v.Name] = true
		}
	}

	var stmts []string
	for _, col := range declared.Indexes {
		if !liveIndexes[col] {
			stmts = append(stmts, CreateIndexCQL(e.keyspace, declared.Table, col))
		}
	}
	for _, idx := range declared.CustomIndexes {
		if !liveIndexes[idx.On] {
			stmts = append(stmts, CreateCustomIndexCQL(e.keyspace, declared.Table, idx))
		}
	}
	for _, v := range declared.Views {
		if !liveViews[v.Name] {
			stmts = append(stmts, CreateViewCQL(e.keyspace, declared.Table, declared, v))
		}
	}
	if len(stmts) == 0 {
		return nil
	}

	var (
		mu     sync.Mutex
		result *multierror.Error
		wg     sync.WaitGroup
	)
	for _, stmt := range stmts {
		wg.Add(1)
		go func(stmt string) {
			defer wg.Done()
			if err := e.exec.ExecDDL(ctx, stmt); err != nil {
				mu.Lock()
				result = multierror.Append(result, errors.Wrapf(err, "table %q", declared.Table))
				mu.Unlock()
			}
		}(stmt)
	}
	wg.Wait()

	return result.ErrorOrNil()
}
