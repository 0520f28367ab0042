package backtest

import (
	"fmt"
	"time"
)

// ════════════════════════════════════════════════════════════════════
// Option Cycles
// ════════════════════════════════════════════════════════════════════

// Cycle is a contiguous day-index range representing one nominal option
// expiry period. Cycles partition the input series with no gaps or overlaps.
type Cycle struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// BuildCycles partitions an ascending date series into option cycles.
// Weekly cycles group consecutive days sharing an ISO-8601 week; monthly
// cycles group consecutive days sharing a UTC calendar month.
func BuildCycles(dates []time.Time, freq Frequency) []Cycle {
	if len(dates) == 0 {
		return nil
	}

	var cycles []Cycle
	start := 0
	key := cycleKey(dates[0], freq)

	for i := 1; i < len(dates); i++ {
		k := cycleKey(dates[i], freq)
		if k != key {
			cycles = append(cycles, Cycle{Start: start, End: i - 1})
			start = i
			key = k
		}
	}
	cycles = append(cycles, Cycle{Start: start, End: len(dates) - 1})
	return cycles
}

// cycleKey buckets a date by ISO week or UTC calendar month. time.ISOWeek
// applies the standard Thursday-anchoring rule, so year boundaries land in
// the week that owns the Thursday.
func cycleKey(d time.Time, freq Frequency) string {
	d = d.UTC()
	if freq == Monthly {
		return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
	}
	y, w := d.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// cycleIndex maps each day index to the cycle containing it.
func cycleIndex(cycles []Cycle, n int) []int {
	idx := make([]int, n)
	for ci, c := range cycles {
		for i := c.Start; i <= c.End && i < n; i++ {
			idx[i] = ci
		}
	}
	return idx
}
