/*
handlers_test.go - HTTP API tests

PURPOSE:
  Exercises the REST surface end to end against an in-memory SQLite
  store: employee management, the punch flow, punch-cycle conflicts and
  the unlock flow, overtime and leave reads, and violation listings.

TEST STYLE:
  Each test spins up a fresh router over a fresh database via
  newAPIFixture. Requests go through the real chi router so URL params,
  middleware, and JSON mapping are all covered.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance-engine/api"
	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/settings"
	"github.com/warp/attendance-engine/store/sqlite"
	"github.com/warp/attendance-engine/violation"
)

// =============================================================================
// FIXTURE
// =============================================================================

type apiFixture struct {
	t      *testing.T
	store  *sqlite.Store
	router http.Handler

	// now is the fixture clock; advance() moves it.
	now time.Time
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &apiFixture{
		t:     t,
		store: store,
		now:   time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC),
	}
	nowFn := func() time.Time { return f.now }

	cfg := settings.Default()
	// Default() opens accrual windows at the real current year; pin them
	// to the fixture clock's year so balances are deterministic.
	yearStart := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, -1)
	for cat, cs := range cfg.Categories {
		lcs := make([]leave.CategoryConfig, len(cs.LeaveCategories))
		copy(lcs, cs.LeaveCategories)
		for i := range lcs {
			if !lcs[i].OpeningDate.IsZero() {
				lcs[i].OpeningDate = yearStart
			}
			if lcs[i].ExpiryDate != nil {
				end := yearEnd
				lcs[i].ExpiryDate = &end
			}
		}
		cs.LeaveCategories = lcs
		cfg.Categories[cat] = cs
	}
	cfg.Roles = map[settings.Role]settings.StaffCategory{
		"engineer": settings.StaffOffice,
		"surveyor": settings.StaffField,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	vlog := &violation.Logger{Sink: store, Log: logger, Now: nowFn}
	punches := &attendance.PunchService{
		Events:     store,
		Unlocks:    store,
		Locations:  store,
		Settings:   cfg,
		Violations: vlog,
		Log:        logger,
		Now:        nowFn,
	}
	unlocks := &attendance.UnlockService{Store: store, Now: nowFn}

	f.router = api.NewRouter(&api.Handler{
		Store:    store,
		Punches:  punches,
		Unlocks:  unlocks,
		Balances: &leave.Service{Usage: store, CompOff: store},
		Bank:     &overtime.Bank{Events: store, Store: store},
		Settings: cfg,
		Now:      nowFn,
	})
	return f
}

func (f *apiFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

// do issues a request through the router and decodes the JSON response
// into out (when non-nil).
func (f *apiFixture) do(method, path string, body any, out any) *httptest.ResponseRecorder {
	f.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if out != nil {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), out),
			"body: %s", rec.Body.String())
	}
	return rec
}

// seedAlice creates the standard test employee with an assigned
// headquarters geofence.
func (f *apiFixture) seedAlice() {
	f.t.Helper()

	rec := f.do(http.MethodPost, "/api/employees", api.CreateEmployeeRequest{
		ID: "alice", Name: "Alice", Email: "alice@example.com", Role: "engineer",
	}, nil)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/locations", api.LocationDTO{
		ID: "hq", Name: "Headquarters", Latitude: 12.9716, Longitude: 77.5946, RadiusMeters: 100,
	}, nil)
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = f.do(http.MethodPost, "/api/employees/alice/locations",
		api.AssignLocationRequest{LocationID: "hq"}, nil)
	require.Equal(f.t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func (f *apiFixture) punch(punchType string, fix *api.FixDTO) (api.PunchResponse, *httptest.ResponseRecorder) {
	f.t.Helper()
	var resp api.PunchResponse
	rec := f.do(http.MethodPost, "/api/employees/alice/punch",
		api.PunchRequest{Type: punchType, Fix: fix}, nil)
	if rec.Code == http.StatusCreated {
		require.NoError(f.t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return resp, rec
}

func hqFix() *api.FixDTO {
	return &api.FixDTO{Latitude: 12.9716, Longitude: 77.5946, AccuracyMeters: 15}
}

// =============================================================================
// EMPLOYEES
// =============================================================================

func TestAPI_EmployeeLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/employees", api.CreateEmployeeRequest{
		ID: "bob", Name: "Bob", Role: "surveyor",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var got api.EmployeeDTO
	rec = f.do(http.MethodGet, "/api/employees/bob", nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bob", got.Name)
	assert.Equal(t, "surveyor", got.Role)

	var all []api.EmployeeDTO
	rec = f.do(http.MethodGet, "/api/employees", nil, &all)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, all, 1)
}

func TestAPI_CreateEmployeeUnknownRoleRejected(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/api/employees", api.CreateEmployeeRequest{
		ID: "eve", Name: "Eve", Role: "astronaut",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UnknownEmployeeIs404(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/api/employees/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/api/employees/ghost/punch",
		api.PunchRequest{Type: "check_in", Fix: hqFix()}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// PUNCH FLOW
// =============================================================================

func TestAPI_PunchInsideGeofence(t *testing.T) {
	f := newAPIFixture(t)
	f.seedAlice()

	resp, rec := f.punch("check_in", hqFix())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, "matched", resp.Verdict)
	assert.Equal(t, "Headquarters", resp.Event.LocationName)
	assert.False(t, resp.ViolationLogged)
	assert.True(t, resp.State.IsCheckedIn)
	assert.Equal(t, 1, resp.State.PunchCycleCount)

	var day api.DayStateDTO
	rec = f.do(http.MethodGet, "/api/employees/alice/day?date=2026-03-02", nil, &day)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, day.IsCheckedIn)
	require.NotNil(t, day.FirstCheckIn)
}

func TestAPI_OutOfZonePunchAppearsInViolationLog(t *testing.T) {
	f := newAPIFixture(t)
	f.seedAlice()

	rec := f.do(http.MethodPost, "/api/employees/alice/punch", api.PunchRequest{
		Type:            "check_in",
		Fix:             &api.FixDTO{Latitude: 12.99, Longitude: 77.62, AccuracyMeters: 10},
		ResolvedAddress: "MG Road, Bengaluru",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp api.PunchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "outside", resp.Verdict)
	assert.True(t, resp.ViolationLogged)

	var mine []api.ViolationDTO
	rec = f.do(http.MethodGet, "/api/employees/alice/violations?month=2026-03", nil, &mine)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].UserID)
	assert.Equal(t, "MG Road, Bengaluru", mine[0].LocationName)
	assert.Equal(t, "2026-03", mine[0].Month)

	var all []api.ViolationDTO
	rec = f.do(http.MethodGet, "/api/violations?month=2026-03", nil, &all)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, all, 1)
}

// =============================================================================
// PUNCH CYCLE AND UNLOCKS
// =============================================================================

func TestAPI_SecondCycleConflictThenUnlockFlow(t *testing.T) {
	f := newAPIFixture(t)
	f.seedAlice()

	_, rec := f.punch("check_in", hqFix())
	require.Equal(t, http.StatusCreated, rec.Code)
	f.advance(8 * time.Hour)
	_, rec = f.punch("check_out", hqFix())
	require.Equal(t, http.StatusCreated, rec.Code)

	// Closed cycle: the gate rejects a second check-in.
	f.advance(30 * time.Minute)
	_, rec = f.punch("check_in", hqFix())
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	var errResp api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, string(attendance.CodePunchCycleLimit), errResp.Code)

	// File and approve an unlock request.
	var grant api.UnlockGrantDTO
	rec = f.do(http.MethodPost, "/api/employees/alice/unlock-requests", nil, &grant)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "pending", grant.Status)

	rec = f.do(http.MethodPost, "/api/unlock-requests/"+grant.ID+"/decision",
		api.UnlockDecisionRequest{Approve: true, DecidedBy: "manager-1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The gate now admits a second cycle, flagged overtime.
	resp, rec := f.punch("check_in", hqFix())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, resp.Event.IsOvertime)
	assert.Equal(t, 2, resp.State.PunchCycleCount)

	var grants []api.UnlockGrantDTO
	rec = f.do(http.MethodGet, "/api/employees/alice/unlock-requests?date=2026-03-02", nil, &grants)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, grants, 1)
	assert.Equal(t, "approved", grants[0].Status)
	assert.Equal(t, "manager-1", grants[0].DecidedBy)
}

func TestAPI_UnlockDecisionIsFinal(t *testing.T) {
	f := newAPIFixture(t)
	f.seedAlice()

	var grant api.UnlockGrantDTO
	rec := f.do(http.MethodPost, "/api/employees/alice/unlock-requests", nil, &grant)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodPost, "/api/unlock-requests/"+grant.ID+"/decision",
		api.UnlockDecisionRequest{Approve: false, DecidedBy: "manager-1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Second decision conflicts.
	rec = f.do(http.MethodPost, "/api/unlock-requests/"+grant.ID+"/decision",
		api.UnlockDecisionRequest{Approve: true, DecidedBy: "manager-2"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Unknown grant is a 404.
	rec = f.do(http.MethodPost, "/api/unlock-requests/nope/decision",
		api.UnlockDecisionRequest{Approve: true, DecidedBy: "manager-1"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// OVERTIME AND LEAVE
// =============================================================================

func TestAPI_OvertimeSummary(t *testing.T) {
	f := newAPIFixture(t)
	f.seedAlice()

	_, rec := f.punch("check_in", hqFix())
	require.Equal(t, http.StatusCreated, rec.Code)
	f.advance(9*time.Hour + 30*time.Minute)
	_, rec = f.punch("check_out", hqFix())
	require.Equal(t, http.StatusCreated, rec.Code)

	var ot api.OvertimeResponse
	rec = f.do(http.MethodGet, "/api/employees/alice/overtime?month=2026-03", nil, &ot)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "2026-03", ot.Month)
	assert.Equal(t, 90, ot.TotalOTMinutes)
	require.Len(t, ot.Days, 1)
	assert.Equal(t, "2026-03-02", ot.Days[0].Date)
	assert.Equal(t, 90, ot.Days[0].OTMinutes)
}

func TestAPI_AdminBankCompOffIsIdempotent(t *testing.T) {
	f := newAPIFixture(t)
	f.seedAlice()

	// 16.5 hours worked is 510 OT minutes, enough for one credit. Start
	// the shift early so the check-out stays on the same day.
	f.now = time.Date(2026, time.March, 2, 4, 0, 0, 0, time.UTC)
	_, rec := f.punch("check_in", hqFix())
	require.Equal(t, http.StatusCreated, rec.Code)
	f.advance(16*time.Hour + 30*time.Minute)
	_, rec = f.punch("check_out", hqFix())
	require.Equal(t, http.StatusCreated, rec.Code)

	body := map[string]string{"user_id": "alice", "month": "2026-03"}
	rec = f.do(http.MethodPost, "/api/admin/bank-compoff", body, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Re-running does not double-bank.
	rec = f.do(http.MethodPost, "/api/admin/bank-compoff", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var ot api.OvertimeResponse
	rec = f.do(http.MethodGet, "/api/employees/alice/overtime?month=2026-03", nil, &ot)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ot.EarnedCredits)
	assert.Equal(t, 1, ot.AvailableCredits)
}

func TestAPI_LeaveBalances(t *testing.T) {
	f := newAPIFixture(t)
	f.seedAlice()

	var resp api.LeaveBalancesResponse
	rec := f.do(http.MethodGet, "/api/employees/alice/leave-balances?as_of=2026-03-02", nil, &resp)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "alice", resp.UserID)
	byCategory := make(map[string]api.LeaveBalanceDTO, len(resp.Balances))
	for _, b := range resp.Balances {
		byCategory[b.Category] = b
	}

	earned, ok := byCategory[string(leave.CategoryEarned)]
	require.True(t, ok)
	assert.Equal(t, "18", earned.Total)
	assert.Equal(t, "18", earned.Remaining)

	// Monthly sick leave: Jan + Feb elapsed as of March 2nd.
	sick, ok := byCategory[string(leave.CategorySick)]
	require.True(t, ok)
	assert.Equal(t, "2", sick.Total)
}
