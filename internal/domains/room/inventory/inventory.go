// Package inventory holds the pure per-date availability arithmetic for
// rooms. A room has a fixed pool of identical units (total_rooms); actual
// availability per calendar date is stored sparsely as override rows, so a
// date without an override still has the full pool free.
package inventory

import (
	"stay/shared/constant"
	"time"
)

// DateKey normalizes a timestamp to its calendar-date form, which is the
// key used for override lookups and for reporting unavailable dates.
func DateKey(t time.Time) string {
	return t.Format(constant.CalendarDateFormat)
}

// Nights counts the nights in the half-open stay [checkIn, checkOut).
// The check-out date itself is not a night spent.
func Nights(checkIn, checkOut time.Time) int {
	in := truncateToDay(checkIn)
	out := truncateToDay(checkOut)

	return int(out.Sub(in).Hours() / 24)
}

// StayDates lists every date occupied by the half-open stay
// [checkIn, checkOut), in chronological order.
func StayDates(checkIn, checkOut time.Time) []time.Time {
	dates := []time.Time{}

	for d := truncateToDay(checkIn); d.Before(truncateToDay(checkOut)); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}

	return dates
}

// AvailableOn resolves the free-unit count for a single date given the
// room's pool size and the sparse overrides keyed by DateKey.
func AvailableOn(totalRooms int, overrides map[string]int, date time.Time) int {
	if available, ok := overrides[DateKey(date)]; ok {
		return available
	}

	return totalRooms
}

// CheckRange walks the stay dates chronologically and reports the first
// date with no free unit. The returned key is empty when every date in
// [checkIn, checkOut) has at least one unit free.
func CheckRange(totalRooms int, overrides map[string]int, checkIn, checkOut time.Time) (firstUnavailable string, ok bool) {
	for _, date := range StayDates(checkIn, checkOut) {
		if AvailableOn(totalRooms, overrides, date) <= 0 {
			return DateKey(date), false
		}
	}

	return constant.Empty, true
}

// TotalPrice is the stay price frozen at booking time: persons times the
// per-person nightly price times the number of nights.
func TotalPrice(persons, price int, checkIn, checkOut time.Time) int {
	return persons * price * Nights(checkIn, checkOut)
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
