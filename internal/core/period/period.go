// Package period parses and labels the begin/end date ranges used by alert queries.
package period

import (
	"fmt"
	"strings"
	"time"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/model"
)

const (
	layout    = "2006-1-2"
	isoLayout = "2006-01-02"
	day       = 24 * time.Hour
)

const (
	Label24h  = "Past 24 hours"
	Label48h  = "Past 48 hours"
	Label72h  = "Past 72 hours"
	LabelWeek = "Past week"
)

// FormatDate renders t as YYYY-M-D without zero padding.
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d", t.Year(), int(t.Month()), t.Day())
}

// ISODate renders t as YYYY-MM-DD.
func ISODate(t time.Time) string {
	return t.Format(isoLayout)
}

func Today(now time.Time) string {
	return FormatDate(now)
}

func Yesterday(now time.Time) string {
	return FormatDate(now.Add(-day))
}

// Default is the [yesterday, today] period relative to now's local calendar.
func Default(now time.Time) model.Period {
	y := now.Add(-day)
	return model.Period{
		Begin: civil(y.Year(), y.Month(), y.Day()),
		End:   civil(now.Year(), now.Month(), now.Day()),
	}
}

// DefaultText is Default in its "begin,end" text form.
func DefaultText(now time.Time) string {
	return Yesterday(now) + "," + Today(now)
}

// Parse reads "YYYY-M-D,YYYY-M-D". An empty string yields Default(now).
func Parse(text string, now time.Time) (model.Period, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Default(now), nil
	}
	parts := strings.Split(text, ",")
	if len(parts) != 2 {
		return model.Period{}, fmt.Errorf("%w: expected begin,end but got %d part(s)", model.ErrInvalidPeriod, len(parts))
	}
	begin, err := parseDate(parts[0])
	if err != nil {
		return model.Period{}, fmt.Errorf("%w: begin: %w", model.ErrInvalidPeriod, err)
	}
	end, err := parseDate(parts[1])
	if err != nil {
		return model.Period{}, fmt.Errorf("%w: end: %w", model.ErrInvalidPeriod, err)
	}
	if begin.After(end) {
		return model.Period{}, fmt.Errorf("%w: begin %s is after end %s", model.ErrInvalidPeriod, FormatDate(begin), FormatDate(end))
	}
	return model.Period{Begin: begin, End: end}, nil
}

// String renders p in the same form Parse accepts.
func String(p model.Period) string {
	return FormatDate(p.Begin) + "," + FormatDate(p.End)
}

// Label classifies the span of p. Only spans of exactly one, two or three
// days get their own label; everything else is reported as a week.
func Label(p model.Period) string {
	diff := p.End.Sub(p.Begin)
	if diff%day != 0 {
		return LabelWeek
	}
	switch diff / day {
	case 1:
		return Label24h
	case 2:
		return Label48h
	case 3:
		return Label72h
	default:
		return LabelWeek
	}
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
