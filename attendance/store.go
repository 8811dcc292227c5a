/*
store.go - Persistence contracts consumed by the engine

PURPOSE:
  The engine is a library, not a service boundary: these are in-process
  function contracts, not serialized protocols. Implementations live in
  store/sqlite (production) and store/memory (tests/dev).

APPEND-ONLY CONTRACT:
  The event store is append-only. No Update, no Delete. A punch is
  immutable once created; derived state is always recomputed from the
  log.

THE GATED APPEND:
  AppendCheckInGated is the one place true at-most-once semantics
  matter. The count of the day's check-ins, the approved unlock count,
  and the insert of the new check-in must be evaluated in one
  serializable transaction (or an equivalent conditional insert), so two
  devices racing the same user-day cannot both slip past the gate.

SEE ALSO:
  - store/sqlite/sqlite.go: transactional implementation
  - store/memory/memory.go: mutex-guarded implementation for tests
*/
package attendance

import (
	"context"
	"time"
)

// =============================================================================
// EVENT STORE
// =============================================================================

// EventStore persists attendance events. Append-only.
type EventStore interface {
	// AppendEvent persists a punch. Used for check-outs, breaks, and
	// field punches - anything not guarded by the punch-cycle gate.
	AppendEvent(ctx context.Context, ev AttendanceEvent) error

	// AppendCheckInGated persists an office check-in only if the
	// punch-cycle gate admits it, atomically with respect to concurrent
	// punches for the same user-day. Returns the cycle number the
	// check-in opened (1-based). Implementations mark the stored event
	// IsOvertime when it opens a second-or-later cycle.
	//
	// A gate rejection is returned as a *PolicyViolationError with code
	// CodePunchCycleLimit, not a system error.
	AppendCheckInGated(ctx context.Context, ev AttendanceEvent) (cycle int, err error)

	// ListEventsForUserInRange returns the user's events with
	// Timestamp in [start, end), ordered by timestamp then insertion.
	ListEventsForUserInRange(ctx context.Context, userID string, start, end time.Time) ([]AttendanceEvent, error)

	// ListEventsForUserDay returns the user's events for one UTC day.
	ListEventsForUserDay(ctx context.Context, userID string, day time.Time) ([]AttendanceEvent, error)
}

// =============================================================================
// UNLOCK STORE
// =============================================================================

// UnlockStore persists unlock grants and answers the gate's counting
// queries. Grants are never mutated after decision; consumption is
// derived, not stored.
type UnlockStore interface {
	// CreateRequest files a pending grant, enforcing the daily request
	// quota (MaxDailyUnlockRequests). Quota rejection is a
	// *PolicyViolationError with code CodeUnlockQuotaExceeded.
	CreateRequest(ctx context.Context, userID string, date time.Time) (UnlockGrant, error)

	// Decide transitions a pending grant exactly once. Deciding an
	// already-decided grant returns ErrAlreadyDecided; a missing grant
	// returns ErrEventNotFound.
	Decide(ctx context.Context, grantID string, status UnlockStatus, decidedBy string, at time.Time) error

	// ApprovedCount returns the number of approved grants for the
	// user-day.
	ApprovedCount(ctx context.Context, userID string, date time.Time) (int, error)

	// RequestCount returns the number of grants filed for the user-day
	// regardless of status.
	RequestCount(ctx context.Context, userID string, date time.Time) (int, error)

	// ListForUser returns the user's grants with Date in [from, to].
	ListForUser(ctx context.Context, userID string, from, to time.Time) ([]UnlockGrant, error)
}
