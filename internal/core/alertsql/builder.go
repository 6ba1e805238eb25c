// Package alertsql builds the spatial SQL queries run against the alert point
// store. Queries are kept as structured fragments with bound values and can be
// rendered either with positional parameters or with quoted literals.
package alertsql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// Ident is a table or column name. It is always quoted into the SQL text and
// never sent as a bound parameter.
type Ident string

// Fragment is SQL text using ? for each value in Args.
type Fragment struct {
	SQL  string
	Args []any
}

func Expr(sql string, args ...any) Fragment {
	return Fragment{SQL: sql, Args: args}
}

type CTE struct {
	Name  string
	Query Fragment
}

type Select struct {
	With    []CTE
	Columns []Fragment
	From    []Fragment
	Where   []Fragment
	GroupBy []string
	OrderBy []string
	Limit   int
}

var errArgCount = errors.New("placeholder/argument count mismatch")

// Bound renders s with $n placeholders and returns the values to bind.
func (s Select) Bound() (string, []any, error) {
	r := &renderer{}
	s.render(r)
	if r.err != nil {
		return "", nil, r.err
	}
	return r.sb.String(), r.args, nil
}

// Inline renders s with every value quoted as a SQL literal. Used where the
// consumer only accepts a single SQL string (SQL API, export URLs).
func (s Select) Inline() (string, error) {
	r := &renderer{inline: true}
	s.render(r)
	if r.err != nil {
		return "", r.err
	}
	return r.sb.String(), nil
}

func (s Select) render(r *renderer) {
	if len(s.With) > 0 {
		r.write("WITH ")
		for i, c := range s.With {
			if i > 0 {
				r.write(", ")
			}
			r.write(c.Name)
			r.write(" AS (")
			r.frag(c.Query)
			r.write(")")
		}
		r.write(" ")
	}
	r.write("SELECT ")
	r.list(s.Columns, ", ")
	if len(s.From) > 0 {
		r.write(" FROM ")
		r.list(s.From, ", ")
	}
	if len(s.Where) > 0 {
		r.write(" WHERE ")
		r.list(s.Where, " AND ")
	}
	if len(s.GroupBy) > 0 {
		r.write(" GROUP BY " + strings.Join(s.GroupBy, ", "))
	}
	if len(s.OrderBy) > 0 {
		r.write(" ORDER BY " + strings.Join(s.OrderBy, ", "))
	}
	if s.Limit > 0 {
		r.write(" LIMIT ")
		r.frag(Expr("?", s.Limit))
	}
}

type renderer struct {
	sb     strings.Builder
	args   []any
	inline bool
	err    error
}

func (r *renderer) write(s string) {
	r.sb.WriteString(s)
}

func (r *renderer) list(fs []Fragment, sep string) {
	for i, f := range fs {
		if i > 0 {
			r.write(sep)
		}
		r.frag(f)
	}
}

func (r *renderer) frag(f Fragment) {
	if r.err != nil {
		return
	}
	if n := strings.Count(f.SQL, "?"); n != len(f.Args) {
		r.err = fmt.Errorf("%w: %q has %d placeholder(s) and %d arg(s)", errArgCount, f.SQL, n, len(f.Args))
		return
	}
	next := 0
	for _, c := range f.SQL {
		if c != '?' {
			r.sb.WriteRune(c)
			continue
		}
		arg := f.Args[next]
		next++

		if id, ok := arg.(Ident); ok {
			r.write(pq.QuoteIdentifier(string(id)))
			continue
		}
		if r.inline {
			lit, err := literal(arg)
			if err != nil {
				r.err = err
				return
			}
			r.write(lit)
			continue
		}
		r.args = append(r.args, arg)
		r.write("$" + strconv.Itoa(len(r.args)))
	}
}

func literal(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return pq.QuoteLiteral(t), nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		if t {
			return "TRUE", nil
		}
		return "FALSE", nil
	default:
		return "", fmt.Errorf("unsupported literal type %T", v)
	}
}
