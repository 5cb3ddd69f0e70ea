package statement

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/lann/builder"
)

type updateData struct {
	Table            string
	TTL              interface{} // nil when unset
	SetClauses       []setClause
	SetClausesAdd    []setClause // collection append, col = col + ?
	SetClausesRemove []setClause // collection discard, col = col - ?
	WhereParts       []Sqlizer
	IfParts          []Sqlizer
	IfExists         bool
}

type setClause struct {
	column string
	value  interface{}
}

// Update statements bind TTL before the SET-clause parameters; IF
// condition parameters come after the WHERE parameters.
func (d *updateData) ToCQL() (cqlStr string, args []interface{}, err error) {
	if len(d.Table) == 0 {
		err = ErrMissingTable
		return
	}
	if len(d.SetClauses)+len(d.SetClausesAdd)+len(d.SetClausesRemove) == 0 {
		err = ErrMalformedSetClause
		return
	}

	cql := &bytes.Buffer{}

	cql.WriteString("UPDATE ")
	cql.WriteString(d.Table)

	if d.TTL != nil {
		cql.WriteString(" USING TTL ?")
		args = append(args, d.TTL)
	}

	cql.WriteString(" SET ")
	setCQLs := make([]string, 0, len(d.SetClauses)+len(d.SetClausesAdd)+len(d.SetClausesRemove))
	for _, sc := range d.SetClauses {
		setCQLs = append(setCQLs, fmt.Sprintf("%s = ?", sc.column))
		args = append(args, sc.value)
	}
	for _, sc := range d.SetClausesAdd {
		setCQLs = append(setCQLs, fmt.Sprintf("%s = %s + ?", sc.column, sc.column))
		args = append(args, sc.value)
	}
	for _, sc := range d.SetClausesRemove {
		setCQLs = append(setCQLs, fmt.Sprintf("%s = %s - ?", sc.column, sc.column))
		args = append(args, sc.value)
	}
	cql.WriteString(joinStrings(setCQLs, ", "))

	if len(d.WhereParts) > 0 {
		cql.WriteString(" WHERE ")
		args, err = appendToCQL(d.WhereParts, cql, " AND ", args)
		if err != nil {
			return
		}
	}

	switch {
	case len(d.IfParts) > 0:
		cql.WriteString(" IF ")
		args, err = appendToCQL(d.IfParts, cql, " AND ", args)
		if err != nil {
			return
		}
	case d.IfExists:
		cql.WriteString(" IF EXISTS")
	}

	cql.WriteString(";")

	cqlStr = cql.String()
	return
}

// UpdateBuilder builds CQL UPDATE statements.
type UpdateBuilder builder.Builder

func init() {
	builder.Register(UpdateBuilder{}, updateData{})
}

// ToCQL builds the update into a CQL string and bound args.
func (b UpdateBuilder) ToCQL() (string, []interface{}, error) {
	data := builder.GetStruct(b).(updateData)
	return data.ToCQL()
}

// IsCAS reports whether the statement carries a compare-and-set part.
func (b UpdateBuilder) IsCAS() bool {
	data := builder.GetStruct(b).(updateData)
	return len(data.IfParts) > 0 || data.IfExists
}

// Table sets the table to be updated.
func (b UpdateBuilder) Table(table string) UpdateBuilder {
	return builder.Set(b, "Table", table).(UpdateBuilder)
}

// UsingTTL attaches a TTL, bound as the first parameter.
func (b UpdateBuilder) UsingTTL(seconds int) UpdateBuilder {
	return builder.Set(b, "TTL", seconds).(UpdateBuilder)
}

// Set adds a SET clause to the update.
func (b UpdateBuilder) Set(column string, value interface{}) UpdateBuilder {
	return builder.Append(b, "SetClauses", setClause{column: column, value: value}).(UpdateBuilder)
}

// Add appends a value to a collection column.
func (b UpdateBuilder) Add(column string, value interface{}) UpdateBuilder {
	return builder.Append(b, "SetClausesAdd", setClause{column: column, value: value}).(UpdateBuilder)
}

// Remove discards a value from a collection column.
func (b UpdateBuilder) Remove(column string, value interface{}) UpdateBuilder {
	return builder.Append(b, "SetClausesRemove", setClause{column: column, value: value}).(UpdateBuilder)
}

// SetMap calls Set for each key/value pair, in sorted key order.
func (b UpdateBuilder) SetMap(clauses map[string]interface{}) UpdateBuilder {
	keys := make([]string, 0, len(clauses))
	for key := range clauses {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		b = b.Set(key, clauses[key])
	}
	return b
}

// Where adds a WHERE expression to the update.
//
// See SelectBuilder.Where for the accepted predicate forms.
func (b UpdateBuilder) Where(pred interface{}, args ...interface{}) UpdateBuilder {
	return builder.Append(b, "WhereParts", newWherePart(pred, args...)).(UpdateBuilder)
}

// If adds an IF condition, making the update a lightweight transaction.
func (b UpdateBuilder) If(pred interface{}, args ...interface{}) UpdateBuilder {
	return builder.Append(b, "IfParts", newWherePart(pred, args...)).(UpdateBuilder)
}

// IfExists adds IF EXISTS to the update. Ignored when If conditions are set.
func (b UpdateBuilder) IfExists() UpdateBuilder {
	return builder.Set(b, "IfExists", true).(UpdateBuilder)
}
