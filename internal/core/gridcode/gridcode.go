// Package gridcode maps calendar dates onto the 16-day raster bins used by the
// Terra-i image service.
package gridcode

import "time"

const (
	EpochYear   = 2004
	BinDays     = 16
	BinsPerYear = 23
	// daysPerYear is fixed; stored histograms were produced without leap-year correction.
	daysPerYear = 365
)

// DayOfYear is the 1-based day number of t within its UTC year.
func DayOfYear(t time.Time) int {
	return t.UTC().YearDay()
}

// GridCode returns the linear day code of t relative to EpochYear.
func GridCode(t time.Time) int {
	return DayOfYear(t) + daysPerYear*(t.UTC().Year()-EpochYear)
}

// BinIndex returns the histogram slot holding t. Slot 0 is reserved, so the
// first bin of EpochYear is 1.
func BinIndex(t time.Time) int {
	u := t.UTC()
	return (u.Year()-EpochYear)*BinsPerYear + DayOfYear(u)/BinDays + 1
}

// BinIndexRange returns the inclusive slot range covering [begin, end].
func BinIndexRange(begin, end time.Time) (int, int) {
	return BinIndex(begin), BinIndex(end)
}

// Epoch is January 1st of EpochYear.
func Epoch() time.Time {
	return time.Date(EpochYear, time.January, 1, 0, 0, 0, 0, time.UTC)
}
