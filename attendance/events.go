/*
Package attendance implements the core attendance engine: the event model,
the day-state reducer, the punch-cycle gate, and the punch service that
orchestrates them.

PURPOSE:
  Turn a raw, possibly-incomplete stream of timestamped, location-tagged
  punch events into authoritative derived state. Derived state is never
  stored - it is always recomputed from the append-only event log for the
  day, so cached flags can never drift from ground truth.

KEY CONCEPTS IN THIS FILE (events.go):
  - AttendanceEvent: An immutable punch record (the unit of truth)
  - EventType / WorkType: Punch classification
  - Channel: Office punch, field visit, and break activity are three
    independent streams within a day

CHANNEL MODEL:
  Office, field, and break activity can overlap in time: a break taken
  while an office session is nominally open does not end the office
  session. Treating them as one interleaved stream corrupts state, so
  each channel is reduced by its own state machine and the results are
  composed into one DerivedDayState.

ORDERING:
  Events are ordered by timestamp; ties break by insertion order (Seq,
  assigned by the store). The store is the source of truth for ordering;
  the reducer still sorts defensively before folding.

SEE ALSO:
  - reduce.go: Folds a day's events into DerivedDayState
  - gate.go: Daily punch-cycle limit and unlock grants
  - service.go: Punch orchestration (geofence, gate, persist, reduce)
*/
package attendance

import (
	"time"
)

// =============================================================================
// EVENT TYPES
// =============================================================================

type EventType string

const (
	EventCheckIn  EventType = "check_in"
	EventCheckOut EventType = "check_out"
	EventBreakIn  EventType = "break_in"
	EventBreakOut EventType = "break_out"
)

// Valid reports whether t is one of the four punch types.
func (t EventType) Valid() bool {
	switch t {
	case EventCheckIn, EventCheckOut, EventBreakIn, EventBreakOut:
		return true
	}
	return false
}

type WorkType string

const (
	// WorkOffice is the default when a punch carries no work type.
	WorkOffice WorkType = "office"
	WorkField  WorkType = "field"
)

// =============================================================================
// ATTENDANCE EVENT - Immutable once created
// =============================================================================

// AttendanceEvent is a single punch. Events are append-only; corrections
// happen by appending, never by editing.
type AttendanceEvent struct {
	ID     string
	UserID string

	// Timestamp is the UTC instant of the punch.
	Timestamp time.Time

	// Seq is the insertion order assigned by the store, used only to
	// break timestamp ties.
	Seq int64

	Type     EventType
	WorkType WorkType

	// Optional GPS coordinates. Recorded even when geofence evaluation
	// was skipped (unreliable fix).
	Latitude  *float64
	Longitude *float64

	// Resolved location, or a fallback status label when no location
	// could be determined.
	LocationID   string
	LocationName string

	// IsOvertime marks a check-in that opened a second-or-later punch
	// cycle. This is a distinct signal from hours-based overtime; both
	// can co-occur.
	IsOvertime bool

	Note          string
	AttachmentRef string

	CreatedAt time.Time
}

// =============================================================================
// CHANNELS
// =============================================================================

// Channel is one of the three independent event streams within a day.
type Channel string

const (
	ChannelOffice Channel = "office"
	ChannelField  Channel = "field"
	ChannelBreak  Channel = "break"
)

// ChannelOf classifies an event into its channel.
func ChannelOf(ev AttendanceEvent) Channel {
	switch ev.Type {
	case EventBreakIn, EventBreakOut:
		return ChannelBreak
	}
	if ev.WorkType == WorkField {
		return ChannelField
	}
	return ChannelOffice
}

// entering reports whether the event opens its channel.
func entering(t EventType) bool {
	return t == EventCheckIn || t == EventBreakIn
}

// =============================================================================
// DAY / MONTH HELPERS
// =============================================================================

// DayOf truncates an instant to its UTC day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthOf truncates an instant to the first day of its UTC month.
func MonthOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two instants fall on the same UTC day.
func SameDay(a, b time.Time) bool {
	return DayOf(a).Equal(DayOf(b))
}

// MonthKey formats a month as "2006-01" for violation and aggregation
// records.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
