/*
Package overtime derives per-day and per-month overtime from punch
events and converts accumulated overtime into comp-off credits.

PURPOSE:
  Overtime reasoning deliberately ignores open sessions: only closed
  (check-in, check-out) pairs count, so a day with an unmatched check-in
  contributes zero OT rather than an estimate. This re-derives pairs
  independently of the day-state reducer, whose provisional
  open-interval handling serves live status, not payroll.

SIGNALS:
  - OTMinutes: hours-based overtime = closed worked minutes minus the
    shift threshold, clamped at zero.
  - HasOTPunch: an explicit flag - true when any check-in of the day was
    marked overtime (i.e. it opened a second-or-later punch cycle).
    Distinct from hours-based OT; both can co-occur.

COMP-OFF:
  Every full 8 hours (480 minutes) of accumulated monthly OT converts
  into one comp-off credit, banked per user. The bank persists across
  days until consumed by a comp-off leave request. Banking a month is
  idempotent: re-running it never double-credits.

SEE ALSO:
  - attendance/reduce.go: Live day-state derivation
  - leave/balance.go: Comp-off category consumes the bank
  - api/scheduler.go: Periodic monthly banking job
*/
package overtime

import (
	"context"
	"sort"
	"time"

	"github.com/warp/attendance-engine/attendance"
)

// MinutesPerCompOffCredit is the accumulated-OT interval that converts
// into one comp-off credit.
const MinutesPerCompOffCredit = 480

// =============================================================================
// DAILY OVERTIME
// =============================================================================

// DailyOT is one day's overtime derivation.
type DailyOT struct {
	Date      time.Time
	OTMinutes int

	// HasOTPunch: an explicitly overtime-flagged check-in occurred.
	HasOTPunch bool
}

// ComputeDailyOT derives overtime for one day's events against the
// shift threshold. Field-channel events are ignored; incomplete pairs
// are excluded, never estimated. Idempotent over the same event set.
func ComputeDailyOT(dayEvents []attendance.AttendanceEvent, shiftThresholdMinutes int) DailyOT {
	out := DailyOT{}
	if len(dayEvents) > 0 {
		out.Date = attendance.DayOf(dayEvents[0].Timestamp)
	}

	worked := closedPairMinutes(dayEvents)
	if worked > shiftThresholdMinutes {
		out.OTMinutes = worked - shiftThresholdMinutes
	}

	for _, ev := range dayEvents {
		if ev.Type == attendance.EventCheckIn && attendance.ChannelOf(ev) == attendance.ChannelOffice && ev.IsOvertime {
			out.HasOTPunch = true
			break
		}
	}
	return out
}

// closedPairMinutes sums minutes over consecutive office
// (check-in, check-out) pairs. An open check-in at the end contributes
// nothing.
func closedPairMinutes(events []attendance.AttendanceEvent) int {
	sorted := make([]attendance.AttendanceEvent, 0, len(events))
	for _, ev := range events {
		if attendance.ChannelOf(ev) == attendance.ChannelOffice {
			sorted = append(sorted, ev)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var minutes int
	var openAt *time.Time
	for _, ev := range sorted {
		switch ev.Type {
		case attendance.EventCheckIn:
			t := ev.Timestamp
			openAt = &t
		case attendance.EventCheckOut:
			if openAt == nil {
				continue // unmatched check-out: integrity gap, excluded
			}
			if ev.Timestamp.After(*openAt) {
				minutes += int(ev.Timestamp.Sub(*openAt) / time.Minute)
			}
			openAt = nil
		}
	}
	return minutes
}

// =============================================================================
// MONTHLY AGGREGATION
// =============================================================================

// MonthlyOT aggregates a month of daily derivations.
type MonthlyOT struct {
	Month          time.Time
	Days           []DailyOT
	TotalOTMinutes int

	// CompOffCredits earned by this month's OT alone.
	CompOffCredits int
}

// ComputeMonthlyOT groups a month's events by day and sums daily OT.
func ComputeMonthlyOT(monthEvents []attendance.AttendanceEvent, shiftThresholdMinutes int) MonthlyOT {
	byDay := make(map[time.Time][]attendance.AttendanceEvent)
	for _, ev := range monthEvents {
		day := attendance.DayOf(ev.Timestamp)
		byDay[day] = append(byDay[day], ev)
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := MonthlyOT{}
	if len(monthEvents) > 0 {
		out.Month = attendance.MonthOf(monthEvents[0].Timestamp)
	}
	for _, day := range days {
		d := ComputeDailyOT(byDay[day], shiftThresholdMinutes)
		out.Days = append(out.Days, d)
		out.TotalOTMinutes += d.OTMinutes
	}
	out.CompOffCredits = CompOffCredits(out.TotalOTMinutes)
	return out
}

// CompOffCredits converts accumulated OT minutes into whole comp-off
// credits.
func CompOffCredits(totalOTMinutes int) int {
	if totalOTMinutes <= 0 {
		return 0
	}
	return totalOTMinutes / MinutesPerCompOffCredit
}

// =============================================================================
// COMP-OFF BANK
// =============================================================================

// BankStore persists banked credits per user. AddCredits is keyed by
// month and must be idempotent: crediting the same (user, month) twice
// records once.
type BankStore interface {
	Credits(ctx context.Context, userID string) (int, error)
	AddCredits(ctx context.Context, userID string, month time.Time, credits int) error

	// Consume decrements the bank when a comp-off leave request is
	// approved. ref ties the consumption to its request.
	Consume(ctx context.Context, userID string, credits int, ref string) error
}

// Bank rolls monthly OT into banked comp-off credits.
type Bank struct {
	Events attendance.EventStore
	Store  BankStore
}

// BankMonth computes the user's OT for the month and banks the earned
// credits. Safe to re-run: the store's month key makes it idempotent.
func (b *Bank) BankMonth(ctx context.Context, userID string, month time.Time, shiftThresholdMinutes int) (MonthlyOT, error) {
	start := attendance.MonthOf(month)
	end := start.AddDate(0, 1, 0)

	events, err := b.Events.ListEventsForUserInRange(ctx, userID, start, end)
	if err != nil {
		return MonthlyOT{}, err
	}

	monthly := ComputeMonthlyOT(events, shiftThresholdMinutes)
	monthly.Month = start
	if monthly.CompOffCredits > 0 {
		if err := b.Store.AddCredits(ctx, userID, start, monthly.CompOffCredits); err != nil {
			return MonthlyOT{}, err
		}
	}
	return monthly, nil
}
