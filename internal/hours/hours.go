// Package hours implements the office business-hours and holiday schedule.
package hours

import (
	"fmt"
	"time"
)

// DefaultTimezone is used when no timezone is configured.
const DefaultTimezone = "America/Los_Angeles"

const (
	openHour  = 8  // office opens 08:00 local
	closeHour = 17 // office closes 17:00 local (exclusive)

	// shortDayCloseHour is the early close on Dec 24 and Dec 26 (exclusive).
	shortDayCloseHour = 14
)

// Schedule evaluates whether the office is open at a given instant,
// expressed in a fixed civil time zone. DST shifts are handled by the zone
// database, not by this logic.
type Schedule struct {
	loc *time.Location
}

// NewSchedule loads the named civil zone. An empty name selects
// DefaultTimezone.
func NewSchedule(timezone string) (*Schedule, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	return &Schedule{loc: loc}, nil
}

// Open reports whether the office is open at t. Rules, evaluated in order:
//
//  1. Saturday or Sunday: closed.
//  2. December 24: open only before 14:00 local.
//  3. December 25: closed all day.
//  4. December 26: open only before 14:00 local.
//  5. Otherwise: open iff the local hour is in [8, 17).
//
// Movable holidays (Thanksgiving etc.) are not modeled.
func (s *Schedule) Open(t time.Time) bool {
	local := t.In(s.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	if local.Month() == time.December {
		switch local.Day() {
		case 24, 26:
			return local.Hour() < shortDayCloseHour
		case 25:
			return false
		}
	}

	h := local.Hour()
	return h >= openHour && h < closeHour
}

// Location returns the schedule's civil zone.
func (s *Schedule) Location() *time.Location {
	return s.loc
}
