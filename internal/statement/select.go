package statement

import (
	"bytes"
	"strconv"

	"github.com/lann/builder"
)

type selectData struct {
	Distinct       bool
	Columns        []string
	From           string
	WhereParts     []Sqlizer
	OrderBys       []string
	GroupBys       []string
	Limit          string
	AllowFiltering bool
}

// Clause order is fixed: SELECT [DISTINCT] columns FROM table
// [WHERE ...] [ORDER BY ...] [GROUP BY ...] [LIMIT n] [ALLOW FILTERING].
// Parameters are collected left to right as clauses render.
func (d *selectData) ToCQL() (cqlStr string, args []interface{}, err error) {
	if len(d.From) == 0 {
		err = ErrMissingTable
		return
	}

	cql := &bytes.Buffer{}

	cql.WriteString("SELECT ")
	if d.Distinct {
		cql.WriteString("DISTINCT ")
	}
	if len(d.Columns) > 0 {
		cql.WriteString(joinStrings(d.Columns, ", "))
	} else {
		cql.WriteString("*")
	}

	cql.WriteString(" FROM ")
	cql.WriteString(d.From)

	if len(d.WhereParts) > 0 {
		cql.WriteString(" WHERE ")
		args, err = appendToCQL(d.WhereParts, cql, " AND ", args)
		if err != nil {
			return
		}
	}

	if len(d.OrderBys) > 0 {
		cql.WriteString(" ORDER BY ")
		cql.WriteString(joinStrings(d.OrderBys, ", "))
	}

	if len(d.GroupBys) > 0 {
		cql.WriteString(" GROUP BY ")
		cql.WriteString(joinStrings(d.GroupBys, ", "))
	}

	if len(d.Limit) > 0 {
		cql.WriteString(" LIMIT ")
		cql.WriteString(d.Limit)
	}

	if d.AllowFiltering {
		cql.WriteString(" ALLOW FILTERING")
	}

	cql.WriteString(";")

	cqlStr = cql.String()
	return
}

// SelectBuilder builds CQL SELECT statements.
type SelectBuilder builder.Builder

func init() {
	builder.Register(SelectBuilder{}, selectData{})
}

// ToCQL builds the select into a CQL string and bound args.
func (b SelectBuilder) ToCQL() (string, []interface{}, error) {
	data := builder.GetStruct(b).(selectData)
	return data.ToCQL()
}

// Distinct adds a DISTINCT clause to the select.
func (b SelectBuilder) Distinct() SelectBuilder {
	return builder.Set(b, "Distinct", true).(SelectBuilder)
}

// Columns adds result columns to the select.
func (b SelectBuilder) Columns(columns ...string) SelectBuilder {
	var result SelectBuilder = b
	for _, column := range columns {
		result = builder.Append(result, "Columns", column).(SelectBuilder)
	}
	return result
}

// From sets the table to select from.
func (b SelectBuilder) From(from string) SelectBuilder {
	return builder.Set(b, "From", from).(SelectBuilder)
}

// Where adds a WHERE expression to the select.
//
// pred can be a raw string with ? placeholders and matching args, a
// map[string]interface{} / Eq of column equalities, or any Sqlizer.
func (b SelectBuilder) Where(pred interface{}, args ...interface{}) SelectBuilder {
	return builder.Append(b, "WhereParts", newWherePart(pred, args...)).(SelectBuilder)
}

// OrderBy adds ORDER BY expressions to the select.
func (b SelectBuilder) OrderBy(orderBys ...string) SelectBuilder {
	var result SelectBuilder = b
	for _, orderBy := range orderBys {
		result = builder.Append(result, "OrderBys", orderBy).(SelectBuilder)
	}
	return result
}

// GroupBy adds GROUP BY expressions to the select.
func (b SelectBuilder) GroupBy(groupBys ...string) SelectBuilder {
	var result SelectBuilder = b
	for _, groupBy := range groupBys {
		result = builder.Append(result, "GroupBys", groupBy).(SelectBuilder)
	}
	return result
}

// Limit sets a LIMIT clause on the select.
func (b SelectBuilder) Limit(limit uint64) SelectBuilder {
	return builder.Set(b, "Limit", strconv.FormatUint(limit, 10)).(SelectBuilder)
}

// AllowFiltering appends ALLOW FILTERING to the select.
func (b SelectBuilder) AllowFiltering() SelectBuilder {
	return builder.Set(b, "AllowFiltering", true).(SelectBuilder)
}
