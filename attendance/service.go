/*
service.go - Punch orchestration

PURPOSE:
  One punch flows through here: geofence verdict, gated persist,
  violation side effect, and recomputation of the day's derived state.

CONTROL FLOW:
  1. Resolve settings for the staff category.
  2. Evaluate the fix against the geofences (skipped when geofencing is
     disabled, the fix is unreliable, or acquisition failed).
  3. Persist the event. Office check-ins go through the atomic gated
     append; everything else appends directly.
  4. If the verdict was out-of-zone, log a violation (best-effort; the
     punch record is the primary action and is already durable).
  5. Reduce the day's events into DerivedDayState.

PROPAGATION POLICY:
  - Event store failure propagates: a punch must not silently fail to
    persist.
  - Gate rejection is a PolicyViolationError: user-actionable, never a
    retry.
  - Violation sink and notification failures are logged and swallowed.
  - A GPS-less or unreliable punch degrades gracefully: recorded with a
    descriptive fallback label, never blocked.
*/
package attendance

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/geo"
	"github.com/warp/attendance-engine/settings"
	"github.com/warp/attendance-engine/violation"
)

// fallbackOutsideLabel is recorded when an out-of-zone punch carries no
// reverse-geocoded address.
const fallbackOutsideLabel = "Unknown location"

// =============================================================================
// COMMANDS AND RESULTS
// =============================================================================

// PunchCommand is one punch action arriving from a request handler.
type PunchCommand struct {
	UserID        string
	StaffCategory settings.StaffCategory

	Type     EventType
	WorkType WorkType

	// Fix is the resolved GPS reading, nil when acquisition failed;
	// FixFailure then describes why. GPS acquisition itself is upstream
	// of the engine - we never block waiting for one.
	Fix        *geo.Fix
	FixFailure geo.FallbackReason

	// ResolvedAddress is the reverse-geocoded address supplied by the
	// caller, used as the location label for out-of-zone punches.
	ResolvedAddress string

	Note          string
	AttachmentRef string
}

// PunchResult is the outcome of a persisted punch.
type PunchResult struct {
	Event   AttendanceEvent
	Verdict geo.Verdict

	// State is the day's derived state after this punch.
	State DerivedDayState

	// ViolationLogged reports whether an out-of-zone violation record
	// was durably appended.
	ViolationLogged bool
}

// =============================================================================
// PUNCH SERVICE
// =============================================================================

// PunchService orchestrates punch handling. All fields except Violations
// and Log are required.
type PunchService struct {
	Events    EventStore
	Unlocks   UnlockStore
	Locations geo.LocationRegistry
	Settings  settings.Provider

	// Violations is optional; nil disables violation logging.
	Violations *violation.Logger

	Log *slog.Logger
	Now func() time.Time
}

func (s *PunchService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *PunchService) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Punch handles one punch action end to end.
func (s *PunchService) Punch(ctx context.Context, cmd PunchCommand) (*PunchResult, error) {
	if !cmd.Type.Valid() {
		return nil, &PolicyViolationError{Code: CodeInvalidPunch, Reason: "unknown punch type"}
	}
	now := s.now()

	cs, err := s.Settings.ForStaffCategory(cmd.StaffCategory)
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "settings", Err: err}
	}

	eval := s.evaluateLocation(ctx, cmd, cs)

	ev := s.buildEvent(cmd, eval, now)

	if ev.Type == EventCheckIn && ChannelOf(ev) == ChannelOffice {
		cycle, err := s.Events.AppendCheckInGated(ctx, ev)
		if err != nil {
			if IsPolicyViolation(err) {
				return nil, err
			}
			return nil, &CollaboratorError{Collaborator: "event_store", Err: err}
		}
		// The store flags the persisted row when the check-in opened a
		// second-or-later cycle; mirror that on the returned event.
		ev.IsOvertime = cycle > 1
	} else {
		if err := s.Events.AppendEvent(ctx, ev); err != nil {
			return nil, &CollaboratorError{Collaborator: "event_store", Err: err}
		}
	}

	result := &PunchResult{Event: ev, Verdict: eval.Verdict}

	// The punch is durable; everything below is side effects and reads.
	if eval.Verdict == geo.VerdictOutside && s.Violations != nil && cmd.Fix != nil {
		if _, err := s.Violations.LogViolation(ctx, cmd.UserID, *cmd.Fix, ev.LocationName); err != nil {
			s.logger().Warn("violation record failed",
				slog.String("user", cmd.UserID), slog.String("error", err.Error()))
		} else {
			result.ViolationLogged = true
		}
	}

	dayEvents, err := s.Events.ListEventsForUserDay(ctx, cmd.UserID, DayOf(now))
	if err != nil {
		return nil, &CollaboratorError{Collaborator: "event_store", Err: err}
	}
	for _, a := range Anomalies(dayEvents) {
		s.logger().Debug("integrity anomaly excluded from durations",
			slog.String("event", a.EventID), slog.String("channel", string(a.Channel)),
			slog.String("kind", string(a.Kind)))
	}
	result.State = Reduce(dayEvents, now)

	return result, nil
}

// DayState recomputes a user's derived state for a day.
func (s *PunchService) DayState(ctx context.Context, userID string, day, now time.Time) (DerivedDayState, error) {
	events, err := s.Events.ListEventsForUserDay(ctx, userID, DayOf(day))
	if err != nil {
		return DerivedDayState{}, &CollaboratorError{Collaborator: "event_store", Err: err}
	}
	// An unclosed session on a past day accrues provisional minutes only
	// to that day's end, not to the present.
	if end := DayOf(day).AddDate(0, 0, 1); now.After(end) {
		now = end
	}
	return Reduce(events, now), nil
}

// =============================================================================
// LOCATION EVALUATION
// =============================================================================

func (s *PunchService) evaluateLocation(ctx context.Context, cmd PunchCommand, cs settings.CategorySettings) geo.Evaluation {
	if !cs.GeofencingEnabled {
		return geo.Evaluation{Verdict: geo.VerdictSkipped, FallbackLabel: cmd.ResolvedAddress}
	}

	assigned, err := s.Locations.AssignedLocations(ctx, cmd.UserID)
	if err != nil {
		// Degrade: the punch must still be recorded. No match, no
		// violation, descriptive label.
		s.logger().Warn("location registry unavailable, skipping geofence evaluation",
			slog.String("user", cmd.UserID), slog.String("error", err.Error()))
		return geo.Evaluation{Verdict: geo.VerdictUnavailable, FallbackLabel: "Location unavailable"}
	}
	all, err := s.Locations.AllLocations(ctx)
	if err != nil {
		s.logger().Warn("location registry unavailable, skipping geofence evaluation",
			slog.String("user", cmd.UserID), slog.String("error", err.Error()))
		return geo.Evaluation{Verdict: geo.VerdictUnavailable, FallbackLabel: "Location unavailable"}
	}

	e := geo.Evaluator{AccuracyCeilingMeters: cs.GeoAccuracyCeilingMeters}
	return e.Evaluate(cmd.Fix, cmd.FixFailure, assigned, all)
}

func (s *PunchService) buildEvent(cmd PunchCommand, eval geo.Evaluation, now time.Time) AttendanceEvent {
	ev := AttendanceEvent{
		ID:            uuid.NewString(),
		UserID:        cmd.UserID,
		Timestamp:     now,
		Type:          cmd.Type,
		WorkType:      cmd.WorkType,
		Note:          cmd.Note,
		AttachmentRef: cmd.AttachmentRef,
		CreatedAt:     now,
	}
	if ev.WorkType == "" {
		ev.WorkType = WorkOffice
	}

	// Raw coordinates are persisted even when evaluation was skipped.
	if cmd.Fix != nil {
		lat, lng := cmd.Fix.Latitude, cmd.Fix.Longitude
		ev.Latitude = &lat
		ev.Longitude = &lng
	}

	switch {
	case eval.Match != nil:
		ev.LocationID = eval.Match.LocationID
		ev.LocationName = eval.Match.LocationName
	case eval.Verdict == geo.VerdictOutside:
		if cmd.ResolvedAddress != "" {
			ev.LocationName = cmd.ResolvedAddress
		} else {
			ev.LocationName = fallbackOutsideLabel
		}
	default:
		if eval.FallbackLabel != "" {
			ev.LocationName = eval.FallbackLabel
		} else if cmd.ResolvedAddress != "" {
			ev.LocationName = cmd.ResolvedAddress
		}
	}
	return ev
}
