/*
gate.go - Daily punch-cycle limit and unlock grants

PURPOSE:
  A day permits one punch cycle by default. Each additional check-in
  requires an approved UnlockGrant. Consumption of a grant is DERIVED
  from counts, never stored: the gate recomputes
  extraCyclesUsed = max(0, dailyPunchCount - 1) on every evaluation, so
  it is idempotent under retried reads and self-healing against partial
  writes.

  NOTE: "consumed" is a computed property of (check-in count, approved
  grant count). Do not add a stored consumed flag to grants - it would
  conflict with this derivation.

STATE MACHINE (UnlockGrant):
  created pending -> approved | rejected (exactly once, by an approver)

QUOTA:
  At most 2 unlock requests may be filed per user per day, independent
  of approval outcome.

ATOMICITY:
  The gate check and the insert of the new check-in must be atomic with
  respect to concurrent punches from the same user (two devices racing).
  That guard lives at the storage boundary: see EventStore.
  AppendCheckInGated.

SEE ALSO:
  - store.go: EventStore and UnlockStore contracts
  - store/sqlite: transactional implementation of the gated append
*/
package attendance

import (
	"context"
	"errors"
	"time"
)

// MaxDailyUnlockRequests is the per-user, per-day quota on unlock
// requests, independent of approval outcome.
const MaxDailyUnlockRequests = 2

// =============================================================================
// GATE
// =============================================================================

// CanPunchIn reports whether another check-in is permitted.
//
// dailyPunchCount is the number of office check-ins already recorded for
// the day. The first check-in is always allowed; each extra cycle
// consumes one approved unlock, derived from counts.
func CanPunchIn(dailyPunchCount, approvedUnlockCount int) bool {
	if dailyPunchCount == 0 {
		return true
	}
	return approvedUnlockCount > ExtraCyclesUsed(dailyPunchCount)
}

// ExtraCyclesUsed derives how many approved unlocks are already consumed
// by the day's check-ins.
func ExtraCyclesUsed(dailyPunchCount int) int {
	if dailyPunchCount <= 1 {
		return 0
	}
	return dailyPunchCount - 1
}

// RemainingUnlocks derives how many approved unlocks are still unused.
func RemainingUnlocks(dailyPunchCount, approvedUnlockCount int) int {
	remaining := approvedUnlockCount - ExtraCyclesUsed(dailyPunchCount)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// =============================================================================
// UNLOCK GRANT
// =============================================================================

type UnlockStatus string

const (
	UnlockPending  UnlockStatus = "pending"
	UnlockApproved UnlockStatus = "approved"
	UnlockRejected UnlockStatus = "rejected"
)

// UnlockGrant permits exactly one additional punch cycle beyond the
// first for its date, once approved.
type UnlockGrant struct {
	ID     string
	UserID string

	// Date is the UTC day the grant applies to.
	Date time.Time

	Status UnlockStatus

	DecidedBy string
	CreatedAt time.Time
	DecidedAt *time.Time
}

// =============================================================================
// UNLOCK SERVICE - Request/decision workflow over the store
// =============================================================================

// UnlockService wraps the unlock store with the request quota and the
// single-transition rule.
type UnlockService struct {
	Store UnlockStore
	Now   func() time.Time
}

func (s *UnlockService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Request files a new pending unlock request for the user's day,
// enforcing the daily request quota.
func (s *UnlockService) Request(ctx context.Context, userID string, date time.Time) (UnlockGrant, error) {
	grant, err := s.Store.CreateRequest(ctx, userID, DayOf(date))
	if err != nil {
		if IsPolicyViolation(err) {
			return UnlockGrant{}, err
		}
		return UnlockGrant{}, &CollaboratorError{Collaborator: "unlock_store", Err: err}
	}
	return grant, nil
}

// Decide transitions a pending grant to approved or rejected. A grant
// transitions exactly once; deciding a decided grant returns
// ErrAlreadyDecided.
func (s *UnlockService) Decide(ctx context.Context, grantID string, approve bool, approverID string) error {
	status := UnlockRejected
	if approve {
		status = UnlockApproved
	}
	if err := s.Store.Decide(ctx, grantID, status, approverID, s.now()); err != nil {
		if errors.Is(err, ErrAlreadyDecided) || errors.Is(err, ErrEventNotFound) {
			return err
		}
		return &CollaboratorError{Collaborator: "unlock_store", Err: err}
	}
	return nil
}
