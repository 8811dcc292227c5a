// Package memory provides in-memory store implementations for testing
// and development. One mutex guards all state; the gated check-in
// append is atomic the same way the SQLite transaction is.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/geo"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/violation"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

// Store implements every persistence contract the engine consumes.
type Store struct {
	mu sync.RWMutex

	seq    int64
	events map[string][]attendance.AttendanceEvent // userID -> events

	unlocks map[string]*attendance.UnlockGrant // grantID -> grant

	locations   []geo.GeoLocation
	assignments map[string][]string // userID -> locationIDs

	violations []violation.Violation

	bankCredits map[string]map[string]int // userID -> monthKey -> credits
	bankUsed    map[string]int            // userID -> consumed credits

	leaveUsage map[string]map[string]decimal.Decimal // userID -> category -> used
}

func New() *Store {
	return &Store{
		events:      make(map[string][]attendance.AttendanceEvent),
		unlocks:     make(map[string]*attendance.UnlockGrant),
		assignments: make(map[string][]string),
		bankCredits: make(map[string]map[string]int),
		bankUsed:    make(map[string]int),
		leaveUsage:  make(map[string]map[string]decimal.Decimal),
	}
}

// =============================================================================
// EVENT STORE (attendance.EventStore)
// =============================================================================

func (s *Store) AppendEvent(_ context.Context, ev attendance.AttendanceEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(ev)
	return nil
}

func (s *Store) AppendCheckInGated(_ context.Context, ev attendance.AttendanceEvent) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := attendance.DayOf(ev.Timestamp)
	punches := s.officeCheckInsLocked(ev.UserID, day)
	approved := s.approvedUnlocksLocked(ev.UserID, day)

	if !attendance.CanPunchIn(punches, approved) {
		return 0, attendance.NewPunchCycleViolation(punches, approved)
	}

	cycle := punches + 1
	if cycle > 1 {
		ev.IsOvertime = true
	}
	s.appendLocked(ev)
	return cycle, nil
}

func (s *Store) ListEventsForUserInRange(_ context.Context, userID string, start, end time.Time) ([]attendance.AttendanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []attendance.AttendanceEvent
	for _, ev := range s.events[userID] {
		if !ev.Timestamp.Before(start) && ev.Timestamp.Before(end) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) ListEventsForUserDay(ctx context.Context, userID string, day time.Time) ([]attendance.AttendanceEvent, error) {
	start := attendance.DayOf(day)
	return s.ListEventsForUserInRange(ctx, userID, start, start.AddDate(0, 0, 1))
}

// appendLocked inserts ordered by timestamp, insertion order breaking
// ties via Seq.
func (s *Store) appendLocked(ev attendance.AttendanceEvent) {
	s.seq++
	ev.Seq = s.seq

	evs := s.events[ev.UserID]
	i := sort.Search(len(evs), func(i int) bool {
		return evs[i].Timestamp.After(ev.Timestamp)
	})
	evs = append(evs, attendance.AttendanceEvent{})
	copy(evs[i+1:], evs[i:])
	evs[i] = ev
	s.events[ev.UserID] = evs
}

func (s *Store) officeCheckInsLocked(userID string, day time.Time) int {
	count := 0
	for _, ev := range s.events[userID] {
		if !attendance.SameDay(ev.Timestamp, day) {
			continue
		}
		if ev.Type == attendance.EventCheckIn && attendance.ChannelOf(ev) == attendance.ChannelOffice {
			count++
		}
	}
	return count
}

// =============================================================================
// UNLOCK STORE (attendance.UnlockStore)
// =============================================================================

func (s *Store) CreateRequest(_ context.Context, userID string, date time.Time) (attendance.UnlockGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := attendance.DayOf(date)
	count := s.requestCountLocked(userID, day)
	if count >= attendance.MaxDailyUnlockRequests {
		return attendance.UnlockGrant{}, attendance.NewUnlockQuotaViolation(count)
	}

	grant := attendance.UnlockGrant{
		ID:        grantID(userID, day, count),
		UserID:    userID,
		Date:      day,
		Status:    attendance.UnlockPending,
		CreatedAt: time.Now().UTC(),
	}
	s.unlocks[grant.ID] = &grant
	return grant, nil
}

func (s *Store) Decide(_ context.Context, grantID string, status attendance.UnlockStatus, decidedBy string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.unlocks[grantID]
	if !ok {
		return attendance.ErrEventNotFound
	}
	if grant.Status != attendance.UnlockPending {
		return attendance.ErrAlreadyDecided
	}
	grant.Status = status
	grant.DecidedBy = decidedBy
	grant.DecidedAt = &at
	return nil
}

func (s *Store) ApprovedCount(_ context.Context, userID string, date time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approvedUnlocksLocked(userID, attendance.DayOf(date)), nil
}

func (s *Store) RequestCount(_ context.Context, userID string, date time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestCountLocked(userID, attendance.DayOf(date)), nil
}

func (s *Store) ListForUser(_ context.Context, userID string, from, to time.Time) ([]attendance.UnlockGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []attendance.UnlockGrant
	for _, g := range s.unlocks {
		if g.UserID != userID {
			continue
		}
		if g.Date.Before(attendance.DayOf(from)) || g.Date.After(attendance.DayOf(to)) {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) approvedUnlocksLocked(userID string, day time.Time) int {
	count := 0
	for _, g := range s.unlocks {
		if g.UserID == userID && g.Date.Equal(day) && g.Status == attendance.UnlockApproved {
			count++
		}
	}
	return count
}

func (s *Store) requestCountLocked(userID string, day time.Time) int {
	count := 0
	for _, g := range s.unlocks {
		if g.UserID == userID && g.Date.Equal(day) {
			count++
		}
	}
	return count
}

func grantID(userID string, day time.Time, n int) string {
	return "unlock-" + userID + "-" + day.Format("20060102") + "-" + string(rune('a'+n))
}

// =============================================================================
// LOCATION REGISTRY (geo.LocationRegistry)
// =============================================================================

// AddLocation registers a location in the global pool.
func (s *Store) AddLocation(loc geo.GeoLocation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations = append(s.locations, loc)
}

// AssignLocation links a user to a location.
func (s *Store) AssignLocation(userID, locationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[userID] = append(s.assignments[userID], locationID)
}

func (s *Store) AssignedLocations(_ context.Context, userID string) ([]geo.GeoLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.assignments[userID]
	var out []geo.GeoLocation
	for _, loc := range s.locations {
		for _, id := range ids {
			if loc.ID == id {
				out = append(out, loc)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) AllLocations(_ context.Context) ([]geo.GeoLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]geo.GeoLocation, len(s.locations))
	copy(out, s.locations)
	return out, nil
}

// =============================================================================
// VIOLATION SINK (violation.Sink)
// =============================================================================

func (s *Store) Record(_ context.Context, v violation.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, v)
	return nil
}

func (s *Store) ListForMonth(_ context.Context, userID string, month time.Time) ([]violation.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := month.UTC().Format("2006-01")
	var out []violation.Violation
	for _, v := range s.violations {
		if v.ViolationMonth != key {
			continue
		}
		if userID != "" && v.UserID != userID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// =============================================================================
// COMP-OFF BANK (overtime.BankStore)
// =============================================================================

func (s *Store) Credits(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, c := range s.bankCredits[userID] {
		total += c
	}
	return total - s.bankUsed[userID], nil
}

func (s *Store) AddCredits(_ context.Context, userID string, month time.Time, credits int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := month.UTC().Format("2006-01")
	if s.bankCredits[userID] == nil {
		s.bankCredits[userID] = make(map[string]int)
	}
	// Idempotent per (user, month): re-banking a month records once.
	if _, done := s.bankCredits[userID][key]; done {
		return nil
	}
	s.bankCredits[userID][key] = credits
	return nil
}

func (s *Store) Consume(_ context.Context, userID string, credits int, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bankUsed[userID] += credits
	return nil
}

// =============================================================================
// LEAVE USAGE (leave.UsageSource)
// =============================================================================

// RecordUsage appends approved leave usage for a user.
func (s *Store) RecordUsage(userID string, category string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leaveUsage[userID] == nil {
		s.leaveUsage[userID] = make(map[string]decimal.Decimal)
	}
	s.leaveUsage[userID][category] = s.leaveUsage[userID][category].Add(amount)
}

func (s *Store) UsedToDate(_ context.Context, userID string, category leave.Category, _ time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.leaveUsage[userID][string(category)], nil
}
