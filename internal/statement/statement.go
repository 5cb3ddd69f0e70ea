// Package statement builds parameterized CQL statements. Builders are
// immutable: every method returns a new builder, so partially built
// statements can be shared and branched safely. Rendering is pure; no
// builder performs I/O.
package statement

import (
	"fmt"
	"io"
	"sort"

	"github.com/lann/builder"
	"github.com/pkg/errors"
)

// Sqlizer is implemented by anything that can render itself into a CQL
// fragment with positional parameters.
type Sqlizer interface {
	ToCQL() (string, []interface{}, error)
}

var (
	// ErrMissingTable indicates a statement was built without a target table.
	ErrMissingTable = errors.New("statement must specify a table")

	// ErrMalformedSetClause indicates an update without any SET clause.
	ErrMalformedSetClause = errors.New("update statements must have at least one set clause")
)

// Eq is a map predicate rendering as "col = ?" conjunctions. Keys are
// sorted so rendering is deterministic.
type Eq map[string]interface{}

// ToCQL implements Sqlizer.
func (eq Eq) ToCQL() (string, []interface{}, error) {
	keys := make([]string, 0, len(eq))
	for k := range eq {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	exprs := make([]string, len(keys))
	args := make([]interface{}, len(keys))
	for i, k := range keys {
		exprs[i] = fmt.Sprintf("%s = ?", k)
		args[i] = eq[k]
	}
	return joinStrings(exprs, " AND "), args, nil
}

// wherePart accepts the predicate forms Where() supports: a raw string
// with arguments, an Eq map, or any Sqlizer.
type wherePart struct {
	pred interface{}
	args []interface{}
}

func newWherePart(pred interface{}, args ...interface{}) Sqlizer {
	return &wherePart{pred: pred, args: args}
}

func (p *wherePart) ToCQL() (string, []interface{}, error) {
	switch pred := p.pred.(type) {
	case Sqlizer:
		return pred.ToCQL()
	case map[string]interface{}:
		return Eq(pred).ToCQL()
	case string:
		return pred, p.args, nil
	default:
		return "", nil, errors.Errorf("expected string, Eq or Sqlizer predicate, not %T", pred)
	}
}

func appendToCQL(parts []Sqlizer, w io.Writer, sep string, args []interface{}) ([]interface{}, error) {
	for i, part := range parts {
		partCQL, partArgs, err := part.ToCQL()
		if err != nil {
			return nil, err
		}
		if partCQL == "" {
			return nil, errors.New("empty predicate in statement")
		}
		if i > 0 {
			if _, err := io.WriteString(w, sep); err != nil {
				return nil, err
			}
		}
		if _, err := io.WriteString(w, partCQL); err != nil {
			return nil, err
		}
		args = append(args, partArgs...)
	}
	return args, nil
}

func joinStrings(parts []string, sep string) string {
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	n := len(sep) * (len(parts) - 1)
	for _, p := range parts {
		n += len(p)
	}
	b := make([]byte, 0, n)
	b = append(b, parts[0]...)
	for _, p := range parts[1:] {
		b = append(b, sep...)
		b = append(b, p...)
	}
	return string(b)
}

// StatementBuilderType is the type of the root builder all statement
// builders derive from.
type StatementBuilderType builder.Builder

// Select starts a SELECT statement with the given result columns.
func (b StatementBuilderType) Select(columns ...string) SelectBuilder {
	return SelectBuilder(b).Columns(columns...)
}

// Insert starts an INSERT statement into the given table.
func (b StatementBuilderType) Insert(into string) InsertBuilder {
	return InsertBuilder(b).Into(into)
}

// Update starts an UPDATE statement on the given table.
func (b StatementBuilderType) Update(table string) UpdateBuilder {
	return UpdateBuilder(b).Table(table)
}

// Delete starts a DELETE statement from the given table.
func (b StatementBuilderType) Delete(from string) DeleteBuilder {
	return DeleteBuilder(b).From(from)
}

// StatementBuilder is the shared root builder.
var StatementBuilder = StatementBuilderType(builder.EmptyBuilder)

// Select starts a SELECT statement.
func Select(columns ...string) SelectBuilder { return StatementBuilder.Select(columns...) }

// Insert starts an INSERT statement.
func Insert(into string) InsertBuilder { return StatementBuilder.Insert(into) }

// Update starts an UPDATE statement.
func Update(table string) UpdateBuilder { return StatementBuilder.Update(table) }

// Delete starts a DELETE statement.
func Delete(from string) DeleteBuilder { return StatementBuilder.Delete(from) }
