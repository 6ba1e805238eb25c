// Package histogram sums and reshapes per-bin alert counts returned by the
// raster image service.
package histogram

import (
	"strconv"
	"time"

	"github.com/mohammed-shakir/terrai-alerts/internal/core/gridcode"
)

// SumRange adds the counts of every bin between begin and end inclusive.
// Indices outside the histogram are ignored.
func SumRange(counts []int64, begin, end time.Time) int64 {
	lo, hi := gridcode.BinIndexRange(begin, end)
	return sumSlots(counts, lo, hi)
}

// sumSlots never includes slot 0: it is reserved and holds no alert count.
func sumSlots(counts []int64, lo, hi int) int64 {
	if lo < 1 {
		lo = 1
	}
	if hi >= len(counts) {
		hi = len(counts) - 1
	}
	var sum int64
	for i := lo; i <= hi; i++ {
		sum += counts[i]
	}
	return sum
}

// BinStart is the first day of histogram slot i (i >= 1).
func BinStart(i int) time.Time {
	i--
	year := gridcode.EpochYear + i/gridcode.BinsPerYear
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, (i%gridcode.BinsPerYear)*gridcode.BinDays)
}

// ActiveRange returns the start days of the first and last non-empty bins
// between begin and end. ok is false when every bin in range is zero.
func ActiveRange(counts []int64, begin, end time.Time) (first, last time.Time, ok bool) {
	lo, hi := gridcode.BinIndexRange(begin, end)
	if lo < 1 {
		lo = 1
	}
	if hi >= len(counts) {
		hi = len(counts) - 1
	}
	for i := lo; i <= hi; i++ {
		if counts[i] == 0 {
			continue
		}
		if !ok {
			first, ok = BinStart(i), true
		}
		last = BinStart(i)
	}
	return first, last, ok
}

// MinDate is the first day covered by any histogram.
func MinDate() time.Time {
	return gridcode.Epoch()
}

// MaxDate derives the date of the last populated bin from the histogram length.
func MaxDate(counts []int64) time.Time {
	if len(counts) == 0 {
		return gridcode.Epoch()
	}
	last := len(counts) - 1
	year := gridcode.EpochYear + last/gridcode.BinsPerYear
	offset := (last % gridcode.BinsPerYear) * gridcode.BinDays
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start.AddDate(0, 0, offset-1)
}

// YearlyDaily expands the histogram into one value per calendar day keyed by
// year. Each bin contributes its count on its first day followed by zeros for
// the rest of the bin. A bin never spills into the next year: the remaining
// days are dropped and the following bin starts on January 1st.
func YearlyDaily(counts []int64) map[string][]int64 {
	out := map[string][]int64{}
	if len(counts) < 2 {
		return out
	}

	day := gridcode.Epoch()
	year := day.Year()
	prevYear := 0

	for i := 1; i < len(counts); i++ {
		if year == prevYear {
			day = day.AddDate(0, 0, 1)
		}
		year = day.Year()
		key := strconv.Itoa(year)
		out[key] = append(out[key], counts[i])
		prevYear = year

		for j := 1; j < gridcode.BinDays; j++ {
			day = day.AddDate(0, 0, 1)
			year = day.Year()
			if year != prevYear {
				break
			}
			out[key] = append(out[key], 0)
		}
	}
	return out
}
