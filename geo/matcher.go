/*
Package geo provides geofence matching for attendance punches.

PURPOSE:
  Given a GPS fix and a set of geofenced locations, decide whether the
  punch happened on-site. This is a pure calculation: no storage, no
  network, no side effects. The caller owns persistence and violation
  handling based on the verdict.

KEY CONCEPTS:
  - Fix: A resolved GPS reading (coordinates + reported accuracy)
  - GeoLocation: A circular geofence (center + radius in meters)
  - Verdict: The outcome of evaluating a fix against known locations
  - FallbackReason: Why no fix was available (permission, timeout, signal)

MATCHING RULES:
  1. Distance is great-circle (haversine) from fix to each center.
  2. The first candidate whose distance <= its radius wins.
  3. Locations assigned to the user are checked before the global pool,
     so an employee standing inside two overlapping fences resolves to
     their own site.

RELIABILITY RULES:
  A fix with accuracy worse than the configured ceiling is treated as
  unreliable: the raw coordinates are still recorded by the caller, but
  geofence evaluation is skipped entirely. Neither a match nor a
  violation is produced - noisy fixes must not generate false violations.
  A missing fix (acquisition failure) likewise skips evaluation and is
  labeled with a human-readable fallback status.

SEE ALSO:
  - attendance/service.go: Consumes verdicts during punch handling
  - violation/logger.go: Records out-of-geofence punches
*/
package geo

import (
	"context"
	"math"
)

// =============================================================================
// TYPES
// =============================================================================

// GeoLocation is a circular geofence owned by the location registry.
// The engine only reads these.
type GeoLocation struct {
	ID           string
	Name         string
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
}

// Fix is a resolved GPS reading. AccuracyMeters is the radius of the
// 68% confidence circle as reported by the device; zero means unknown.
type Fix struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
}

// MatchResult identifies the location a fix resolved to.
type MatchResult struct {
	LocationID   string
	LocationName string
}

// Verdict classifies the outcome of geofence evaluation.
type Verdict string

const (
	// VerdictMatched: the fix is inside a known geofence.
	VerdictMatched Verdict = "matched"

	// VerdictOutside: a reliable fix matched no known geofence.
	VerdictOutside Verdict = "outside"

	// VerdictUnreliable: accuracy exceeded the ceiling; evaluation skipped.
	VerdictUnreliable Verdict = "unreliable"

	// VerdictUnavailable: no fix was acquired; evaluation skipped.
	VerdictUnavailable Verdict = "unavailable"

	// VerdictSkipped: geofencing is disabled for this staff category.
	VerdictSkipped Verdict = "skipped"
)

// FallbackReason explains why GPS acquisition failed upstream.
type FallbackReason string

const (
	FallbackNone             FallbackReason = ""
	FallbackPermissionDenied FallbackReason = "permission_denied"
	FallbackTimeout          FallbackReason = "timeout"
	FallbackNoSignal         FallbackReason = "no_signal"
)

// Label returns the human-readable status recorded on the punch when no
// location name is available.
func (r FallbackReason) Label() string {
	switch r {
	case FallbackPermissionDenied:
		return "Location permission denied"
	case FallbackTimeout:
		return "Location request timed out"
	case FallbackNoSignal:
		return "No GPS signal"
	default:
		return "Location unavailable"
	}
}

// Evaluation is the full result of evaluating a punch's location.
type Evaluation struct {
	Verdict Verdict

	// Match is set only when Verdict == VerdictMatched.
	Match *MatchResult

	// FallbackLabel is set when no location name could be resolved
	// (unreliable, unavailable, or outside with no reverse-geocoded
	// address supplied by the caller).
	FallbackLabel string
}

// =============================================================================
// DISTANCE
// =============================================================================

const earthRadiusMeters = 6371000

// Distance returns the great-circle distance in meters between two
// coordinates, using the haversine formula.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// =============================================================================
// MATCHING
// =============================================================================

// Match returns the first candidate whose geofence contains the fix,
// or nil when none does. Candidate order is significant.
func Match(fix Fix, candidates []GeoLocation) *MatchResult {
	for _, loc := range candidates {
		d := Distance(fix.Latitude, fix.Longitude, loc.Latitude, loc.Longitude)
		if d <= loc.RadiusMeters {
			return &MatchResult{LocationID: loc.ID, LocationName: loc.Name}
		}
	}
	return nil
}

// MatchAssignedFirst checks the user's assigned locations before the
// global pool. A fix inside both an assigned fence and an unrelated one
// resolves to the assigned site.
func MatchAssignedFirst(fix Fix, assigned, all []GeoLocation) *MatchResult {
	if m := Match(fix, assigned); m != nil {
		return m
	}
	return Match(fix, all)
}

// =============================================================================
// EVALUATOR
// =============================================================================

// DefaultAccuracyCeilingMeters is the accuracy threshold beyond which a
// fix is treated as unreliable.
const DefaultAccuracyCeilingMeters = 1000

// Evaluator applies the full evaluation policy: reliability checks, then
// assigned-first matching.
type Evaluator struct {
	// AccuracyCeilingMeters: fixes with worse accuracy skip evaluation.
	// Zero means DefaultAccuracyCeilingMeters.
	AccuracyCeilingMeters float64
}

// Evaluate resolves a punch's location verdict.
//
// fix == nil means acquisition failed; reason describes why. A non-nil
// fix with accuracy above the ceiling is recorded but not evaluated.
func (e Evaluator) Evaluate(fix *Fix, reason FallbackReason, assigned, all []GeoLocation) Evaluation {
	if fix == nil {
		return Evaluation{Verdict: VerdictUnavailable, FallbackLabel: reason.Label()}
	}

	ceiling := e.AccuracyCeilingMeters
	if ceiling == 0 {
		ceiling = DefaultAccuracyCeilingMeters
	}
	if fix.AccuracyMeters > ceiling {
		return Evaluation{Verdict: VerdictUnreliable, FallbackLabel: "Low GPS accuracy"}
	}

	if m := MatchAssignedFirst(*fix, assigned, all); m != nil {
		return Evaluation{Verdict: VerdictMatched, Match: m}
	}
	return Evaluation{Verdict: VerdictOutside}
}

// =============================================================================
// LOCATION REGISTRY - External collaborator
// =============================================================================

// LocationRegistry supplies geofenced locations. Owned by the
// location-management collaborator; the engine only reads.
type LocationRegistry interface {
	// AssignedLocations returns the locations assigned to a user.
	AssignedLocations(ctx context.Context, userID string) ([]GeoLocation, error)

	// AllLocations returns the global location pool.
	AllLocations(ctx context.Context) ([]GeoLocation, error)
}
