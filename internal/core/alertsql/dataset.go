package alertsql

import (
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/gridcode"
)

// datasetTable is substituted by the dataset query service with the dataset's backing table.
const datasetTable = "table"

// DatasetQuery filters the pre-aggregated alert dataset by admin area.
type DatasetQuery struct {
	ISO string
	// ID1 is the province id; 0 selects the whole country.
	ID1           int64
	Begin         time.Time
	End           time.Time
	ConfirmedOnly bool
}

// DatasetCount sums alert counts for an admin area. The dataset is keyed by
// year and day-of-year, so a multi-year period becomes one predicate per year.
func DatasetCount(q DatasetQuery) Select {
	s := Select{
		Columns: []Fragment{Expr("SUM(count) AS value")},
		From:    []Fragment{Expr(datasetTable)},
		Where:   []Fragment{Expr("country_id = ?", strings.ToUpper(q.ISO))},
	}
	if q.ID1 != 0 {
		s.Where = append(s.Where, Expr("state_id = ?", strconv.FormatInt(q.ID1, 10)))
	}
	if q.ConfirmedOnly {
		s.Where = append(s.Where, Expr("confidence LIKE ?", "confirmed"))
	}

	yb, ye := q.Begin.UTC().Year(), q.End.UTC().Year()
	db, de := gridcode.DayOfYear(q.Begin), gridcode.DayOfYear(q.End)
	if yb == ye {
		s.Where = append(s.Where,
			Expr("year LIKE ?", strconv.Itoa(yb)),
			Expr("day::int >= ?", db),
			Expr("day::int <= ?", de),
		)
		return s
	}

	var parts []string
	var args []any
	for y := yb; y <= ye; y++ {
		switch y {
		case yb:
			parts = append(parts, "(year LIKE ? AND day::int >= ?)")
			args = append(args, strconv.Itoa(y), db)
		case ye:
			parts = append(parts, "(year LIKE ? AND day::int <= ?)")
			args = append(args, strconv.Itoa(y), de)
		default:
			parts = append(parts, "(year LIKE ?)")
			args = append(args, strconv.Itoa(y))
		}
	}
	s.Where = append(s.Where, Expr("("+strings.Join(parts, " OR ")+")", args...))
	return s
}
