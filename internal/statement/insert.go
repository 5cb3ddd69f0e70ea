package statement

import (
	"bytes"

	"github.com/lann/builder"
)

type insertData struct {
	Into        string
	Columns     []string
	Values      []interface{}
	IfNotExists bool
	TTL         interface{} // nil when unset
}

// Insert statements bind TTL after the column-value parameters, unlike
// update which binds it first. The asymmetry is part of the wire contract.
func (d *insertData) ToCQL() (cqlStr string, args []interface{}, err error) {
	if len(d.Into) == 0 {
		err = ErrMissingTable
		return
	}

	cql := &bytes.Buffer{}

	cql.WriteString("INSERT INTO ")
	cql.WriteString(d.Into)

	cql.WriteString(" (")
	cql.WriteString(joinStrings(d.Columns, ", "))
	cql.WriteString(")")

	cql.WriteString(" VALUES (")
	placeholders := make([]string, len(d.Values))
	for i := range d.Values {
		placeholders[i] = "?"
	}
	cql.WriteString(joinStrings(placeholders, ", "))
	cql.WriteString(")")
	args = append(args, d.Values...)

	if d.IfNotExists {
		cql.WriteString(" IF NOT EXISTS")
	}

	if d.TTL != nil {
		cql.WriteString(" USING TTL ?")
		args = append(args, d.TTL)
	}

	cql.WriteString(";")

	cqlStr = cql.String()
	return
}

// InsertBuilder builds CQL INSERT statements.
type InsertBuilder builder.Builder

func init() {
	builder.Register(InsertBuilder{}, insertData{})
}

// ToCQL builds the insert into a CQL string and bound args.
func (b InsertBuilder) ToCQL() (string, []interface{}, error) {
	data := builder.GetStruct(b).(insertData)
	return data.ToCQL()
}

// Into sets the table to insert into.
func (b InsertBuilder) Into(into string) InsertBuilder {
	return builder.Set(b, "Into", into).(InsertBuilder)
}

// Columns adds insert columns.
func (b InsertBuilder) Columns(columns ...string) InsertBuilder {
	var result InsertBuilder = b
	for _, column := range columns {
		result = builder.Append(result, "Columns", column).(InsertBuilder)
	}
	return result
}

// Values adds a value for each column, in column order.
func (b InsertBuilder) Values(values ...interface{}) InsertBuilder {
	var result InsertBuilder = b
	for _, value := range values {
		result = builder.Append(result, "Values", value).(InsertBuilder)
	}
	return result
}

// IfNotExists makes the insert a lightweight transaction.
func (b InsertBuilder) IfNotExists() InsertBuilder {
	return builder.Set(b, "IfNotExists", true).(InsertBuilder)
}

// UsingTTL attaches a TTL, bound as the last parameter.
func (b InsertBuilder) UsingTTL(seconds int) InsertBuilder {
	return builder.Set(b, "TTL", seconds).(InsertBuilder)
}
