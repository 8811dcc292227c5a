/*
reduce.go - Fold a day's events into derived session state

PURPOSE:
  DerivedDayState is a pure function of (events, now). It is recomputed
  on every read, never persisted independently, which sidesteps the
  cached-flag drift the old "current status" store suffered from.

ALGORITHM:
  Events are processed in ascending timestamp order per channel (office,
  field, break). A channel is "open" when its last event is an entering
  event. Worked minutes for the office channel sum consecutive
  (check-in, check-out) pairs plus the provisional open interval ending
  at `now`; break minutes are computed identically over the break
  channel.

ANOMALIES:
  A check-out with no preceding check-in in its channel is a data
  integrity anomaly: excluded from duration math and reported via
  Anomalies(), never raised to the caller. Historical data legitimately
  contains gaps (missed punches).

SEE ALSO:
  - overtime/calc.go: Re-derives closed pairs independently for OT
  - service.go: Calls Reduce after every persisted punch
*/
package attendance

import (
	"sort"
	"time"
)

// =============================================================================
// DERIVED DAY STATE
// =============================================================================

// DerivedDayState is the authoritative view of a user's day, recomputed
// from the day's append-only event list plus "now" for open sessions.
type DerivedDayState struct {
	IsCheckedIn      bool
	IsOnBreak        bool
	IsFieldCheckedIn bool

	// FirstCheckIn / LastCheckOut cover the office channel.
	FirstCheckIn *time.Time
	LastCheckOut *time.Time

	WorkedMinutes int
	BreakMinutes  int

	// PunchCycleCount is the number of office check-ins for the day.
	PunchCycleCount int
}

// =============================================================================
// REDUCE
// =============================================================================

// Reduce folds a day's events into DerivedDayState. It is pure:
// identical (events, now) always yields identical state. The input is
// sorted defensively; the original slice is not modified.
func Reduce(events []AttendanceEvent, now time.Time) DerivedDayState {
	sorted := sortedByTime(events)

	office := channelEvents(sorted, ChannelOffice)
	field := channelEvents(sorted, ChannelField)
	brk := channelEvents(sorted, ChannelBreak)

	worked, officeOpen := pairedMinutes(office, now)
	breaks, breakOpen := pairedMinutes(brk, now)
	_, fieldOpen := pairedMinutes(field, now)

	state := DerivedDayState{
		IsCheckedIn:      officeOpen,
		IsOnBreak:        breakOpen,
		IsFieldCheckedIn: fieldOpen,
		WorkedMinutes:    worked,
		BreakMinutes:     breaks,
	}

	for i := range office {
		ev := office[i]
		switch ev.Type {
		case EventCheckIn:
			state.PunchCycleCount++
			if state.FirstCheckIn == nil {
				t := ev.Timestamp
				state.FirstCheckIn = &t
			}
		case EventCheckOut:
			t := ev.Timestamp
			state.LastCheckOut = &t
		}
	}

	return state
}

// =============================================================================
// CHANNEL FOLDING
// =============================================================================

// pairedMinutes walks one channel, summing minutes over consecutive
// (entering, exiting) pairs. An open entering event at the end
// contributes the provisional interval up to now. Exiting events with no
// open entering event are skipped (anomalies).
//
// Returns total minutes and whether the channel is open after the last
// event.
func pairedMinutes(channel []AttendanceEvent, now time.Time) (minutes int, open bool) {
	var openedAt time.Time

	for _, ev := range channel {
		if entering(ev.Type) {
			// A second entering event without an exit replaces the open
			// interval start; the earlier open interval is unpaired and
			// reported by Anomalies.
			openedAt = ev.Timestamp
			open = true
			continue
		}
		if !open {
			continue // exit with no open entry: anomaly, excluded
		}
		if ev.Timestamp.After(openedAt) {
			minutes += int(ev.Timestamp.Sub(openedAt) / time.Minute)
		}
		open = false
	}

	if open && now.After(openedAt) {
		minutes += int(now.Sub(openedAt) / time.Minute)
	}
	return minutes, open
}

func channelEvents(events []AttendanceEvent, ch Channel) []AttendanceEvent {
	var out []AttendanceEvent
	for _, ev := range events {
		if ChannelOf(ev) == ch {
			out = append(out, ev)
		}
	}
	return out
}

func sortedByTime(events []AttendanceEvent) []AttendanceEvent {
	out := make([]AttendanceEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// =============================================================================
// ANOMALY DETECTION
// =============================================================================

// Anomaly describes an event excluded from duration math.
type Anomaly struct {
	EventID string
	Channel Channel
	Kind    AnomalyKind
}

type AnomalyKind string

const (
	// AnomalyUnpairedExit: an exiting event with no open entering event.
	AnomalyUnpairedExit AnomalyKind = "unpaired_exit"

	// AnomalyReopenedEntry: an entering event while the channel was
	// already open; the earlier interval is discarded.
	AnomalyReopenedEntry AnomalyKind = "reopened_entry"
)

// Anomalies reports the integrity gaps in a day's events. Anomalies are
// logged by the caller, never raised: they are expected in historical
// data.
func Anomalies(events []AttendanceEvent) []Anomaly {
	sorted := sortedByTime(events)

	var out []Anomaly
	openEntry := map[Channel]*AttendanceEvent{}

	for i := range sorted {
		ev := sorted[i]
		ch := ChannelOf(ev)
		if entering(ev.Type) {
			if prev := openEntry[ch]; prev != nil {
				out = append(out, Anomaly{EventID: prev.ID, Channel: ch, Kind: AnomalyReopenedEntry})
			}
			openEntry[ch] = &sorted[i]
			continue
		}
		if openEntry[ch] == nil {
			out = append(out, Anomaly{EventID: ev.ID, Channel: ch, Kind: AnomalyUnpairedExit})
			continue
		}
		openEntry[ch] = nil
	}
	return out
}
