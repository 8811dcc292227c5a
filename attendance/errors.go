/*
errors.go - Centralized error taxonomy for the attendance engine

PURPOSE:
  The engine surfaces a small, closed set of outcomes: success,
  policy-violation-with-reason, or collaborator-failure. Core math is
  pure and total over its inputs and never raises.

ERROR CATEGORIES:
  1. PolicyViolation - expected, user-facing, never retried automatically
     (punch-cycle limit, unlock quota, insufficient leave balance)
  2. CollaboratorFailure - a required external collaborator failed
     (event store unreachable: a punch must not silently fail to persist)
  3. Data-integrity anomalies (a check-out with no preceding check-in)
     are NOT errors: they are logged and excluded from duration math,
     since historical data legitimately contains gaps.

  Best-effort side effects (violation record, notification dispatch) are
  logged and swallowed by the service when the primary action already
  succeeded - they never appear in this taxonomy.

USAGE:
  if errors.Is(err, attendance.ErrPolicyViolation) {
      // surface the reason to the user, do not retry
  }

SEE ALSO:
  - service.go: Applies the propagation policy
  - gate.go: Produces punch-cycle policy violations
*/
package attendance

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrPolicyViolation is the root of all expected, user-facing
	// rejections. Never retried automatically.
	ErrPolicyViolation = errors.New("policy violation")

	// ErrCollaboratorFailure is the root of failures in required
	// external collaborators (event store, unlock store).
	ErrCollaboratorFailure = errors.New("collaborator failure")

	// ErrAlreadyDecided is returned when an unlock grant's status has
	// already transitioned out of pending. Grants transition exactly once.
	ErrAlreadyDecided = errors.New("unlock request already decided")

	// ErrEventNotFound is returned by stores for missing records.
	ErrEventNotFound = errors.New("event not found")
)

// =============================================================================
// POLICY VIOLATIONS - Expected rejections with a reason
// =============================================================================

// Violation codes. These identify the policy that rejected the action;
// the Reason carries the user-actionable message.
const (
	CodePunchCycleLimit     = "punch_cycle_limit"
	CodeUnlockQuotaExceeded = "unlock_quota_exceeded"
	CodeInvalidPunch        = "invalid_punch"
)

// PolicyViolationError is an expected rejection. Callers surface the
// Reason as a user-actionable message, not a retry.
type PolicyViolationError struct {
	Code   string
	Reason string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func (e *PolicyViolationError) Unwrap() error { return ErrPolicyViolation }

// NewPunchCycleViolation builds the rejection for a check-in beyond the
// permitted cycles for the day.
func NewPunchCycleViolation(dailyPunchCount, approvedUnlocks int) *PolicyViolationError {
	return &PolicyViolationError{
		Code: CodePunchCycleLimit,
		Reason: fmt.Sprintf(
			"daily punch-cycle limit reached (%d check-ins today, %d unlock(s) approved); request an unlock to punch in again",
			dailyPunchCount, approvedUnlocks),
	}
}

// NewUnlockQuotaViolation builds the rejection for exceeding the daily
// unlock request quota.
func NewUnlockQuotaViolation(requestCount int) *PolicyViolationError {
	return &PolicyViolationError{
		Code: CodeUnlockQuotaExceeded,
		Reason: fmt.Sprintf(
			"unlock request limit reached (%d of %d requests filed today)",
			requestCount, MaxDailyUnlockRequests),
	}
}

// =============================================================================
// COLLABORATOR FAILURES
// =============================================================================

// CollaboratorError wraps a failure from a required external
// collaborator. Best-effort collaborators (notification, violation sink)
// never produce this from the service.
type CollaboratorError struct {
	Collaborator string // "event_store", "unlock_store", "location_registry"
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Collaborator, e.Err)
}

// Unwrap exposes both the category sentinel and the inner error, so
// errors.Is matches ErrCollaboratorFailure and the wrapped cause alike.
func (e *CollaboratorError) Unwrap() []error { return []error{ErrCollaboratorFailure, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsPolicyViolation reports whether err is an expected, user-facing
// rejection.
func IsPolicyViolation(err error) bool {
	return errors.Is(err, ErrPolicyViolation)
}

// IsCollaboratorFailure reports whether err came from a required
// external collaborator.
func IsCollaboratorFailure(err error) bool {
	return errors.Is(err, ErrCollaboratorFailure)
}
