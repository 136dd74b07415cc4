// Package localtime resolves a user's wall clock from their IANA timezone.
package localtime

import (
	"log"
	"time"
	_ "time/tzdata" // containers often ship without zoneinfo
)

// Fallback is used when a user has no timezone or an unknown one.
var Fallback = "America/Chicago"

// Location loads tz, falling back to Fallback (and then UTC) when tz is
// empty or unknown.
func Location(tz string) *time.Location {
	if tz == "" {
		tz = Fallback
	}
	loc, err := time.LoadLocation(tz)
	if err == nil {
		return loc
	}
	log.Printf("localtime: unknown timezone %q, using %s", tz, Fallback)
	if loc, err := time.LoadLocation(Fallback); err == nil {
		return loc
	}
	return time.UTC
}

// Clock is a user's view of an instant.
type Clock struct {
	Now time.Time // in the user's location
}

// At returns the clock for instant now in timezone tz.
func At(now time.Time, tz string) Clock {
	return Clock{Now: now.In(Location(tz))}
}

func (c Clock) Hour() int { return c.Now.Hour() }

// Today is the local calendar date as YYYY-MM-DD.
func (c Clock) Today() string { return c.Now.Format(time.DateOnly) }

// Tomorrow is the local calendar date after Today.
func (c Clock) Tomorrow() string {
	y, m, d := c.Now.Date()
	return time.Date(y, m, d+1, 12, 0, 0, 0, c.Now.Location()).Format(time.DateOnly)
}

// IsEvening is true from 17:00 local.
func (c Clock) IsEvening() bool { return c.Hour() >= 17 }

// ShouldPlanTomorrow is true from 14:00 local, when the coach starts
// steering conversations toward tomorrow's plan.
func (c Clock) ShouldPlanTomorrow() bool { return c.Hour() >= 14 }
