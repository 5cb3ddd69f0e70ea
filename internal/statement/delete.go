package statement

import (
	"bytes"

	"github.com/lann/builder"
)

type deleteData struct {
	From       string
	Columns    []string // optional: delete specific columns only
	WhereParts []Sqlizer
}

func (d *deleteData) ToCQL() (cqlStr string, args []interface{}, err error) {
	if len(d.From) == 0 {
		err = ErrMissingTable
		return
	}

	cql := &bytes.Buffer{}

	cql.WriteString("DELETE ")
	if len(d.Columns) > 0 {
		cql.WriteString(joinStrings(d.Columns, ", "))
		cql.WriteString(" ")
	}
	cql.WriteString("FROM ")
	cql.WriteString(d.From)

	if len(d.WhereParts) > 0 {
		cql.WriteString(" WHERE ")
		args, err = appendToCQL(d.WhereParts, cql, " AND ", args)
		if err != nil {
			return
		}
	}

	cql.WriteString(";")

	cqlStr = cql.String()
	return
}

// DeleteBuilder builds CQL DELETE statements.
type DeleteBuilder builder.Builder

func init() {
	builder.Register(DeleteBuilder{}, deleteData{})
}

// ToCQL builds the delete into a CQL string and bound args.
func (b DeleteBuilder) ToCQL() (string, []interface{}, error) {
	data := builder.GetStruct(b).(deleteData)
	return data.ToCQL()
}

// From sets the table to delete from.
func (b DeleteBuilder) From(from string) DeleteBuilder {
	return builder.Set(b, "From", from).(DeleteBuilder)
}

// Columns restricts the delete to specific columns.
func (b DeleteBuilder) Columns(columns ...string) DeleteBuilder {
	var result DeleteBuilder = b
	for _, column := range columns {
		result = builder.Append(result, "Columns", column).(DeleteBuilder)
	}
	return result
}

// Where adds a WHERE expression to the delete.
//
// See SelectBuilder.Where for the accepted predicate forms.
func (b DeleteBuilder) Where(pred interface{}, args ...interface{}) DeleteBuilder {
	return builder.Append(b, "WhereParts", newWherePart(pred, args...)).(DeleteBuilder)
}
