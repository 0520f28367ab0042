package utils

import (
	"time"
)

// DateLayout is the canonical date format used across CSV files, the API,
// and the CLI.
const DateLayout = "2006-01-02"

// ParseDate parses a "2006-01-02" date string as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate formats a time.Time to "2006-01-02" in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DateUTC builds a midnight-UTC time from calendar components.
func DateUTC(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// IsWeekend checks if the given date falls on Saturday or Sunday in UTC.
func IsWeekend(t time.Time) bool {
	wd := t.UTC().Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// NextTradingDay returns the first weekday strictly after the given date.
// Exchange holidays are not modelled; downloaded bar series carry their
// own calendar.
func NextTradingDay(from time.Time) time.Time {
	next := from.UTC().AddDate(0, 0, 1)
	for IsWeekend(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// PrevTradingDay returns the last weekday strictly before the given date.
func PrevTradingDay(from time.Time) time.Time {
	prev := from.UTC().AddDate(0, 0, -1)
	for IsWeekend(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// TradingDays generates n consecutive weekdays starting at start, advancing
// start to the next weekday first if it falls on a weekend. Used to build
// synthetic daily series.
func TradingDays(start time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	d := start.UTC()
	for IsWeekend(d) {
		d = d.AddDate(0, 0, 1)
	}
	for len(days) < n {
		days = append(days, d)
		d = NextTradingDay(d)
	}
	return days
}

// YearsBetween returns the calendar-year fraction between two dates,
// using the 365.25-day convention.
func YearsBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24 / 365.25
}

// UnixRange returns the [period1, period2) Unix-second bounds covering both
// dates inclusive, as expected by the Yahoo chart API.
func UnixRange(start, end time.Time) (int64, int64) {
	p1 := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC).Unix()
	p2 := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1).Unix()
	return p1, p2
}
