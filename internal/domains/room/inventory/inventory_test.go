package inventory_test

import (
	"testing"
	"time"

	"stay/internal/domains/room/inventory"

	"github.com/stretchr/testify/assert"
)

func date(value string) time.Time {
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}

	return parsed
}

func TestNights(t *testing.T) {
	tests := []struct {
		name     string
		checkIn  string
		checkOut string
		expected int
	}{
		{name: "single night", checkIn: "2026-01-01", checkOut: "2026-01-02", expected: 1},
		{name: "two nights", checkIn: "2026-01-01", checkOut: "2026-01-03", expected: 2},
		{name: "week stay", checkIn: "2026-01-01", checkOut: "2026-01-08", expected: 7},
		{name: "same day", checkIn: "2026-01-01", checkOut: "2026-01-01", expected: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, inventory.Nights(date(test.checkIn), date(test.checkOut)))
		})
	}
}

func TestStayDates(t *testing.T) {
	t.Run("checkout date is excluded", func(t *testing.T) {
		dates := inventory.StayDates(date("2026-01-01"), date("2026-01-03"))

		assert.Len(t, dates, 2)
		assert.Equal(t, "2026-01-01", inventory.DateKey(dates[0]))
		assert.Equal(t, "2026-01-02", inventory.DateKey(dates[1]))
	})

	t.Run("empty range yields no dates", func(t *testing.T) {
		dates := inventory.StayDates(date("2026-01-01"), date("2026-01-01"))

		assert.Empty(t, dates)
	})
}

func TestAvailableOn(t *testing.T) {
	overrides := map[string]int{
		"2026-01-02": 1,
		"2026-01-03": 0,
	}

	tests := []struct {
		name     string
		date     string
		expected int
	}{
		{name: "no override falls back to pool size", date: "2026-01-01", expected: 2},
		{name: "override wins over pool size", date: "2026-01-02", expected: 1},
		{name: "zero override means sold out", date: "2026-01-03", expected: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, inventory.AvailableOn(2, overrides, date(test.date)))
		})
	}
}

func TestCheckRange(t *testing.T) {
	tests := []struct {
		name            string
		totalRooms      int
		overrides       map[string]int
		checkIn         string
		checkOut        string
		expectedOk      bool
		expectedFailing string
	}{
		{
			name:       "all dates free without overrides",
			totalRooms: 2,
			overrides:  map[string]int{},
			checkIn:    "2026-01-01",
			checkOut:   "2026-01-03",
			expectedOk: true,
		},
		{
			name:       "partially booked dates still pass",
			totalRooms: 2,
			overrides:  map[string]int{"2026-01-01": 1, "2026-01-02": 1},
			checkIn:    "2026-01-01",
			checkOut:   "2026-01-03",
			expectedOk: true,
		},
		{
			name:            "sold out first date reported",
			totalRooms:      2,
			overrides:       map[string]int{"2026-01-01": 0, "2026-01-02": 0},
			checkIn:         "2026-01-01",
			checkOut:        "2026-01-03",
			expectedOk:      false,
			expectedFailing: "2026-01-01",
		},
		{
			name:            "first failing date is chronological not map order",
			totalRooms:      2,
			overrides:       map[string]int{"2026-01-04": 0, "2026-01-02": 0},
			checkIn:         "2026-01-01",
			checkOut:        "2026-01-05",
			expectedOk:      false,
			expectedFailing: "2026-01-02",
		},
		{
			name:       "sold out checkout date does not block",
			totalRooms: 1,
			overrides:  map[string]int{"2026-01-03": 0},
			checkIn:    "2026-01-01",
			checkOut:   "2026-01-03",
			expectedOk: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			failing, ok := inventory.CheckRange(test.totalRooms, test.overrides, date(test.checkIn), date(test.checkOut))

			assert.Equal(t, test.expectedOk, ok)
			assert.Equal(t, test.expectedFailing, failing)
		})
	}
}

// apply and release mirror the repository's per-date mutations on a plain
// override map so the whole booking trajectory can be checked in memory.
func apply(overrides map[string]int, totalRooms int, checkIn, checkOut time.Time) {
	for _, d := range inventory.StayDates(checkIn, checkOut) {
		overrides[inventory.DateKey(d)] = inventory.AvailableOn(totalRooms, overrides, d) - 1
	}
}

func release(overrides map[string]int, totalRooms int, checkIn, checkOut time.Time) {
	for _, d := range inventory.StayDates(checkIn, checkOut) {
		restored := inventory.AvailableOn(totalRooms, overrides, d) + 1
		if restored >= totalRooms {
			delete(overrides, inventory.DateKey(d))
		} else {
			overrides[inventory.DateKey(d)] = restored
		}
	}
}

func TestOverlappingStayTrajectory(t *testing.T) {
	const totalRooms = 2

	overrides := map[string]int{}

	// first stay takes one of two units on 06-01 and 06-02
	_, ok := inventory.CheckRange(totalRooms, overrides, date("2024-06-01"), date("2024-06-03"))
	assert.True(t, ok)
	assert.Equal(t, 400, inventory.TotalPrice(2, 100, date("2024-06-01"), date("2024-06-03")))

	apply(overrides, totalRooms, date("2024-06-01"), date("2024-06-03"))
	assert.Equal(t, map[string]int{"2024-06-01": 1, "2024-06-02": 1}, overrides)

	// second stay overlaps on 06-02 and takes the last unit there
	_, ok = inventory.CheckRange(totalRooms, overrides, date("2024-06-02"), date("2024-06-04"))
	assert.True(t, ok)

	apply(overrides, totalRooms, date("2024-06-02"), date("2024-06-04"))
	assert.Equal(t, map[string]int{"2024-06-01": 1, "2024-06-02": 0, "2024-06-03": 1}, overrides)

	// a third stay touching 06-02 has nowhere to go
	failing, ok := inventory.CheckRange(totalRooms, overrides, date("2024-06-01"), date("2024-06-03"))
	assert.False(t, ok)
	assert.Equal(t, "2024-06-02", failing)

	// cancelling the first stay frees 06-01 entirely and leaves the second
	// stay's claim on 06-02 in place
	release(overrides, totalRooms, date("2024-06-01"), date("2024-06-03"))
	assert.Equal(t, map[string]int{"2024-06-02": 1, "2024-06-03": 1}, overrides)

	// cancelling the second stay restores the untouched state
	release(overrides, totalRooms, date("2024-06-02"), date("2024-06-04"))
	assert.Empty(t, overrides)
}

func TestTotalPrice(t *testing.T) {
	t.Run("persons times price times nights", func(t *testing.T) {
		total := inventory.TotalPrice(2, 100, date("2026-01-01"), date("2026-01-03"))

		assert.Equal(t, 400, total)
	})

	t.Run("zero nights costs nothing", func(t *testing.T) {
		total := inventory.TotalPrice(2, 100, date("2026-01-01"), date("2026-01-01"))

		assert.Equal(t, 0, total)
	})
}
