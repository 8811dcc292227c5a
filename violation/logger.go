/*
Package violation records and classifies out-of-geofence punches.

PURPOSE:
  When geofencing is enabled and a reliable fix matches no known
  location, the punch is still persisted - but a Violation is appended
  for the monthly violation-count policies, and a notification is
  dispatched to the configured rule.

CONTRACT:
  - Pure append, no dedup: multiple violations per day are legitimate,
    one per out-of-zone punch.
  - The audit record is authoritative. Notification dispatch is
    best-effort: a dispatch failure is logged and must NOT roll back the
    violation record.

SEE ALSO:
  - attendance/service.go: Invokes the logger on out-of-zone punches
  - store/sqlite: Sink implementation
*/
package violation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/geo"
)

// =============================================================================
// VIOLATION RECORD
// =============================================================================

// Violation is an append-only record of an out-of-geofence punch.
type Violation struct {
	ID     string
	UserID string

	// ViolationDate is the UTC day of the attempt; ViolationMonth is the
	// "2006-01" key consumed by monthly count policies.
	ViolationDate  time.Time
	ViolationMonth string

	AttemptedLat float64
	AttemptedLng float64

	// LocationName is the reverse-geocoded address when the caller
	// resolved one, otherwise a fallback label.
	LocationName string

	CreatedAt time.Time
}

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// Sink persists violations. Append-only, no dedup.
type Sink interface {
	Record(ctx context.Context, v Violation) error

	// ListForMonth returns a user's violations for the given month.
	// Empty userID lists all users.
	ListForMonth(ctx context.Context, userID string, month time.Time) ([]Violation, error)
}

// Notifier dispatches to the notification rules engine. Fire-and-forget:
// implementations must not block punch handling, and failures are
// logged, not propagated.
type Notifier interface {
	Dispatch(ctx context.Context, eventKind string, payload map[string]any)
}

// EventKindGeofenceViolation identifies the rule triggered by an
// out-of-zone punch.
const EventKindGeofenceViolation = "attendance.geofence_violation"

// LogNotifier is the default Notifier: it writes the dispatch to the
// structured log and nothing else. Delivery transport is out of scope.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n *LogNotifier) Dispatch(_ context.Context, eventKind string, payload map[string]any) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification dispatched", slog.String("event", eventKind), slog.Any("payload", payload))
}

// =============================================================================
// LOGGER
// =============================================================================

// Logger appends violations and triggers the notification rule.
type Logger struct {
	Sink     Sink
	Notifier Notifier
	Log      *slog.Logger
	Now      func() time.Time
}

func (l *Logger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now().UTC()
}

func (l *Logger) logger() *slog.Logger {
	if l.Log != nil {
		return l.Log
	}
	return slog.Default()
}

// LogViolation appends a violation for the attempted fix and dispatches
// the notification rule with actor identity, action verb, and the
// human-readable location string.
//
// The returned error covers only the sink append; notification failures
// never surface here.
func (l *Logger) LogViolation(ctx context.Context, userID string, fix geo.Fix, resolvedLabel string) (Violation, error) {
	now := l.now()
	v := Violation{
		ID:             uuid.NewString(),
		UserID:         userID,
		ViolationDate:  now.Truncate(24 * time.Hour),
		ViolationMonth: now.Format("2006-01"),
		AttemptedLat:   fix.Latitude,
		AttemptedLng:   fix.Longitude,
		LocationName:   resolvedLabel,
		CreatedAt:      now,
	}

	if err := l.Sink.Record(ctx, v); err != nil {
		return Violation{}, err
	}

	if l.Notifier != nil {
		// Best-effort by contract: Dispatch never returns an error and
		// the violation record above is already durable.
		l.Notifier.Dispatch(ctx, EventKindGeofenceViolation, map[string]any{
			"actor":    userID,
			"action":   "punched outside geofence",
			"location": resolvedLabel,
			"lat":      fix.Latitude,
			"lng":      fix.Longitude,
			"date":     v.ViolationDate.Format("2006-01-02"),
		})
	}

	return v, nil
}
