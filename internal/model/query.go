package model

import (
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/axonops/cqlorm/internal/db"
	"github.com/axonops/cqlorm/internal/schema"
	"github.com/axonops/cqlorm/internal/statement"
)

// Op is a CQL comparison operator usable in a query predicate.
type Op string

const (
	OpEq          Op = "="
	OpGt          Op = ">"
	OpGte         Op = ">="
	OpLt          Op = "<"
	OpLte         Op = "<="
	OpIn          Op = "IN"
	OpContains    Op = "CONTAINS"
	OpContainsKey Op = "CONTAINS KEY"
	OpLike        Op = "LIKE"
)

var validOps = map[Op]bool{
	OpEq: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpContains: true, OpContainsKey: true, OpLike: true,
}

// Predicate is one WHERE restriction. Predicates keep their declaration
// order; the rendered statement restricts them left to right.
type Predicate struct {
	Column string
	Op     Op
	Value  interface{}
}

// Ordering is one ORDER BY entry.
type Ordering struct {
	Column     string
	Descending bool
}

// Query describes a find or the row selection of an update/delete. The
// zero value selects everything.
type Query struct {
	predicates     []Predicate
	orderings      []Ordering
	groupBy        []string
	selectCols     []string
	view           string
	limit          uint64
	distinct       bool
	allowFiltering bool
}

// NewQuery returns an empty query.
func NewQuery() *Query {
	return &Query{}
}

// Eq restricts column = value.
func (q *Query) Eq(column string, value interface{}) *Query {
	return q.Filter(column, OpEq, value)
}

// Filter restricts the query with an arbitrary operator.
func (q *Query) Filter(column string, op Op, value interface{}) *Query {
	q.predicates = append(q.predicates, Predicate{Column: column, Op: op, Value: value})
	return q
}

// In restricts column IN values.
func (q *Query) In(column string, values interface{}) *Query {
	return q.Filter(column, OpIn, values)
}

// Select restricts the returned columns.
func (q *Query) Select(columns ...string) *Query {
	q.selectCols = append(q.selectCols, columns...)
	return q
}

// FromView targets a materialized view of the model instead of the base
// table. Only find operations may target a view.
func (q *Query) FromView(view string) *Query {
	q.view = view
	return q
}

// OrderBy appends an ordering.
func (q *Query) OrderBy(column string, descending bool) *Query {
	q.orderings = append(q.orderings, Ordering{Column: column, Descending: descending})
	return q
}

// GroupBy appends grouping columns.
func (q *Query) GroupBy(columns ...string) *Query {
	q.groupBy = append(q.groupBy, columns...)
	return q
}

// Limit caps the number of returned rows.
func (q *Query) Limit(n uint64) *Query {
	q.limit = n
	return q
}

// Distinct makes the find a SELECT DISTINCT.
func (q *Query) Distinct() *Query {
	q.distinct = true
	return q
}

// AllowFiltering appends ALLOW FILTERING, accepting the server-side scan.
func (q *Query) AllowFiltering() *Query {
	q.allowFiltering = true
	return q
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func qualify(keyspace, table string) string {
	if keyspace == "" {
		return quote(table)
	}
	return quote(keyspace) + "." + quote(table)
}

// columnSet collects the known column names of a schema.
func columnSet(s *schema.Schema) map[string]bool {
	cols := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		cols[f.Name] = true
	}
	return cols
}

// validate checks every referenced column against the schema and every
// operator against the supported set.
func (q *Query) validate(s *schema.Schema) error {
	cols := columnSet(s)
	for _, p := range q.predicates {
		if !validOps[p.Op] {
			return errors.Errorf("invalid operator %q on column %q", p.Op, p.Column)
		}
		if !cols[p.Column] {
			return errors.Errorf("unknown column %q in query on %q", p.Column, s.Table)
		}
	}
	for _, o := range q.orderings {
		if !cols[o.Column] {
			return errors.Errorf("unknown column %q in order by on %q", o.Column, s.Table)
		}
	}
	for _, c := range append(append([]string(nil), q.groupBy...), q.selectCols...) {
		if !cols[c] {
			return errors.Errorf("unknown column %q in query on %q", c, s.Table)
		}
	}
	if q.view != "" && !hasView(s, q.view) {
		return errors.Errorf("model %q has no materialized view %q", s.Table, q.view)
	}
	return nil
}

func hasView(s *schema.Schema, name string) bool {
	for _, v := range s.Views {
		if strings.EqualFold(v.Name, name) {
			return true
		}
	}
	return false
}

func (p Predicate) render() (string, interface{}) {
	return quote(p.Column) + " " + string(p.Op) + " ?", p.Value
}

// BuildFind compiles the query into a SELECT statement against the base
// table or the targeted view.
func (q *Query) BuildFind(keyspace string, s *schema.Schema) (db.Statement, error) {
	if err := q.validate(s); err != nil {
		return db.Statement{}, err
	}

	table := s.Table
	if q.view != "" {
		table = q.view
	}

	sel := statement.Select()
	for _, c := range q.selectCols {
		sel = sel.Columns(quote(c))
	}
	if q.distinct {
		sel = sel.Distinct()
	}
	sel = sel.From(qualify(keyspace, table))

	for _, p := range q.predicates {
		expr, value := p.render()
		sel = sel.Where(expr, value)
	}
	for _, o := range q.orderings {
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		sel = sel.OrderBy(quote(o.Column) + " " + dir)
	}
	for _, c := range q.groupBy {
		sel = sel.GroupBy(quote(c))
	}
	if q.limit > 0 {
		sel = sel.Limit(q.limit)
	}
	if q.allowFiltering {
		sel = sel.AllowFiltering()
	}

	text, params, err := sel.ToCQL()
	if err != nil {
		return db.Statement{}, err
	}
	return db.Statement{Query: text, Values: params}, nil
}

// Update describes the mutation side of an update operation.
type Update struct {
	// Set assigns columns; rendered in sorted column order.
	Set map[string]interface{}
	// Add appends to collection columns (col = col + ?).
	Add map[string]interface{}
	// Remove discards from collection columns (col = col - ?).
	Remove map[string]interface{}
	// TTL in seconds; 0 means none.
	TTL int
	// IfExists makes the update a lightweight transaction that only
	// applies to an existing row.
	IfExists bool
	// Conditions are IF predicates; they also make the update a
	// lightweight transaction and take precedence over IfExists.
	Conditions []Predicate
}

// BuildUpdate compiles the query plus mutation into an UPDATE statement.
// Key columns cannot be assigned; they identify the row being updated.
func (q *Query) BuildUpdate(keyspace string, s *schema.Schema, u *Update) (db.Statement, error) {
	if err := q.validate(s); err != nil {
		return db.Statement{}, err
	}
	if q.view != "" {
		return db.Statement{}, errors.New("updates cannot target a materialized view")
	}

	keyCols := make(map[string]bool, len(s.PartitionKeys)+len(s.ClusteringKeys))
	for _, k := range s.PartitionKeys {
		keyCols[k] = true
	}
	for _, k := range s.ClusteringKeys {
		keyCols[k.Name] = true
	}
	cols := columnSet(s)
	for _, m := range []map[string]interface{}{u.Set, u.Add, u.Remove} {
		for c := range m {
			if !cols[c] {
				return db.Statement{}, errors.Errorf("unknown column %q in update on %q", c, s.Table)
			}
			if keyCols[c] {
				return db.Statement{}, errors.Errorf("key column %q cannot be assigned in an update on %q", c, s.Table)
			}
		}
	}

	upd := statement.Update(qualify(keyspace, s.Table))
	if u.TTL > 0 {
		upd = upd.UsingTTL(u.TTL)
	}

	quoted := make(map[string]interface{}, len(u.Set))
	for c, v := range u.Set {
		quoted[quote(c)] = v
	}
	upd = upd.SetMap(quoted)

	for _, c := range sortedKeys(u.Add) {
		upd = upd.Add(quote(c), u.Add[c])
	}
	for _, c := range sortedKeys(u.Remove) {
		upd = upd.Remove(quote(c), u.Remove[c])
	}

	for _, p := range q.predicates {
		expr, value := p.render()
		upd = upd.Where(expr, value)
	}
	for _, p := range u.Conditions {
		if !cols[p.Column] {
			return db.Statement{}, errors.Errorf("unknown column %q in update condition on %q", p.Column, s.Table)
		}
		expr, value := p.render()
		upd = upd.If(expr, value)
	}
	if u.IfExists && len(u.Conditions) == 0 {
		upd = upd.IfExists()
	}

	text, params, err := upd.ToCQL()
	if err != nil {
		return db.Statement{}, err
	}
	return db.Statement{Query: text, Values: params}, nil
}

// DeleteOptions narrow a delete to specific columns instead of whole rows.
type DeleteOptions struct {
	Columns []string
}

// BuildDelete compiles the query into a DELETE statement.
func (q *Query) BuildDelete(keyspace string, s *schema.Schema, opts *DeleteOptions) (db.Statement, error) {
	if err := q.validate(s); err != nil {
		return db.Statement{}, err
	}
	if q.view != "" {
		return db.Statement{}, errors.New("deletes cannot target a materialized view")
	}

	del := statement.Delete(qualify(keyspace, s.Table))
	if opts != nil {
		cols := columnSet(s)
		for _, c := range opts.Columns {
			if !cols[c] {
				return db.Statement{}, errors.Errorf("unknown column %q in delete on %q", c, s.Table)
			}
			del = del.Columns(quote(c))
		}
	}
	for _, p := range q.predicates {
		expr, value := p.render()
		del = del.Where(expr, value)
	}

	text, params, err := del.ToCQL()
	if err != nil {
		return db.Statement{}, err
	}
	return db.Statement{Query: text, Values: params}, nil
}

// SaveOptions carry the insert-side options of a save operation.
type SaveOptions struct {
	// TTL in seconds; 0 means none. Bound as the last parameter.
	TTL int
	// IfNotExists makes the save a lightweight transaction that refuses
	// to overwrite an existing row.
	IfNotExists bool
}

// BuildSave compiles a row into an INSERT statement. Columns render in
// sorted order so the same row always produces the same statement.
func BuildSave(keyspace string, s *schema.Schema, row map[string]interface{}, opts *SaveOptions) (db.Statement, error) {
	if len(row) == 0 {
		return db.Statement{}, errors.Errorf("empty row in save on %q", s.Table)
	}
	cols := columnSet(s)
	for c := range row {
		if !cols[c] {
			return db.Statement{}, errors.Errorf("unknown column %q in save on %q", c, s.Table)
		}
	}
	for _, k := range s.PartitionKeys {
		if _, ok := row[k]; !ok {
			return db.Statement{}, errors.Errorf("save on %q is missing partition key column %q", s.Table, k)
		}
	}

	ins := statement.Insert(qualify(keyspace, s.Table))
	for _, c := range sortedKeys(row) {
		ins = ins.Columns(quote(c)).Values(row[c])
	}
	if opts != nil {
		if opts.IfNotExists {
			ins = ins.IfNotExists()
		}
		if opts.TTL > 0 {
			ins = ins.UsingTTL(opts.TTL)
		}
	}

	text, params, err := ins.ToCQL()
	if err != nil {
		return db.Statement{}, err
	}
	return db.Statement{Query: text, Values: params}, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
