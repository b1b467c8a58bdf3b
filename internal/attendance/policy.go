package attendance

import (
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

// Rules applies a working-day policy to check-in and check-out times.
type Rules struct {
	policy config.Policy
	loc    *time.Location
}

// NewRules creates rules for the policy.
func NewRules(policy config.Policy) Rules {
	return Rules{policy: policy, loc: policy.Location()}
}

// Location returns the policy time zone.
func (r Rules) Location() *time.Location {
	return r.loc
}

// at returns the given HH:MM on the calendar day of t, in the policy time zone.
func (r Rules) at(t time.Time, hm string) time.Time {
	clock, err := time.Parse("15:04", hm)
	if err != nil {
		// Policies are validated on load.
		clock = time.Time{}
	}
	local := t.In(r.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), clock.Hour(), clock.Minute(), 0, 0, r.loc)
}

// CheckInStatus classifies a check-in as PRESENT or LATE.
func (r Rules) CheckInStatus(checkIn time.Time) database.AttendanceStatus {
	deadline := r.at(checkIn, r.policy.WorkStart).Add(r.policy.Grace)
	if checkIn.After(deadline) {
		return database.StatusLate
	}
	return database.StatusPresent
}

// Overtime returns the time worked past the end of the check-in day, truncated to minutes.
func (r Rules) Overtime(checkIn, checkOut time.Time) time.Duration {
	end := r.at(checkIn, r.policy.WorkEnd)
	if !checkOut.After(end) {
		return 0
	}
	return checkOut.Sub(end).Truncate(time.Minute)
}

// Day returns the [start, end) bounds of the calendar day containing t.
func (r Rules) Day(t time.Time) (time.Time, time.Time) {
	local := t.In(r.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.loc)
	return start, start.AddDate(0, 0, 1)
}

// IsWorkDay reports whether t falls on a working day.
func (r Rules) IsWorkDay(t time.Time) bool {
	return r.policy.IsWorkDay(t.In(r.loc).Weekday())
}

// FormatOvertime renders a duration as "1h30m", "2h" or "45m".
func FormatOvertime(d time.Duration) string {
	d = d.Truncate(time.Minute)
	if d <= 0 {
		return ""
	}
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}
