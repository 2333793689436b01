// Package attendance implements the attendance ledger: time-windowed
// status computation, upsert-by-student records, live-presence
// tracking, and the periodic reconciliation sweep.
package attendance

import (
	"fmt"
	"time"
)

// Status is the derived attendance state of a student.
type Status string

const (
	StatusPresent   Status = "PRESENT"
	StatusLate      Status = "LATE"
	StatusLeftEarly Status = "LEFT_EARLY"
	StatusAbsent    Status = "ABSENT"
)

// NormalizeStatus maps a raw stored value to a valid Status. Unknown or
// missing values become ABSENT. This is the single normalization point
// at the persistence boundary.
func NormalizeStatus(raw string) Status {
	switch Status(raw) {
	case StatusPresent, StatusLate, StatusLeftEarly, StatusAbsent:
		return Status(raw)
	default:
		return StatusAbsent
	}
}

// EventWindow is the scheduled event interval used to judge lateness
// and early departure.
type EventWindow struct {
	Start time.Time
	End   time.Time
	// LateThreshold is how long after Start a check-in still counts as
	// PRESENT. Arriving later than Start+LateThreshold is LATE.
	LateThreshold time.Duration
	// EarlyLeaveThreshold is how far before End the last sighting must
	// be for a student to count as LEFT_EARLY.
	EarlyLeaveThreshold time.Duration
}

// ParseEventWindow builds a window from "YYYY-MM-DD" and "HH:MM"
// strings. On any parse failure it falls back to a 09:00-17:00 window
// on the given day (or today when the date itself is unparsable).
func ParseEventWindow(date, start, end string, lateMinutes, earlySeconds int) EventWindow {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		day = time.Now()
	}

	w := EventWindow{
		Start:               at(day, 9, 0),
		End:                 at(day, 17, 0),
		LateThreshold:       time.Duration(lateMinutes) * time.Minute,
		EarlyLeaveThreshold: time.Duration(earlySeconds) * time.Second,
	}

	startT, startErr := time.Parse("15:04", start)
	endT, endErr := time.Parse("15:04", end)
	if startErr != nil || endErr != nil {
		return w
	}
	w.Start = at(day, startT.Hour(), startT.Minute())
	w.End = at(day, endT.Hour(), endT.Minute())
	return w
}

func at(day time.Time, hour, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.Local)
}

func (w EventWindow) String() string {
	return fmt.Sprintf("%s - %s", w.Start.Format("2006-01-02 15:04"), w.End.Format("15:04"))
}

// ComputeStatus derives a status from check-in and last-seen times.
//
// The evaluation order is deliberate and must not change: a missing
// check-in short-circuits to ABSENT; lateness is decided next; the
// early-leave check runs last and overrides PRESENT or LATE, so a
// late-arriving student who also left early reports LEFT_EARLY.
// Both threshold boundaries are exclusive: arriving exactly at
// Start+LateThreshold is PRESENT, and a last sighting exactly
// EarlyLeaveThreshold before End is not an early leave.
func ComputeStatus(checkIn, lastSeen time.Time, w EventWindow) Status {
	if checkIn.IsZero() {
		return StatusAbsent
	}

	status := StatusPresent
	if checkIn.Sub(w.Start) > w.LateThreshold {
		status = StatusLate
	}

	if !lastSeen.IsZero() && lastSeen.Before(w.End) && w.End.Sub(lastSeen) > w.EarlyLeaveThreshold {
		status = StatusLeftEarly
	}

	return status
}
