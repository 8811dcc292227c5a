/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes the attendance and leave engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                     List all employees
    POST   /api/employees                     Create employee
    GET    /api/employees/{id}                Get employee details
    POST   /api/employees/{id}/punch          Record a punch
    GET    /api/employees/{id}/day            Derived day state
    GET    /api/employees/{id}/overtime       Monthly OT and credits
    GET    /api/employees/{id}/leave-balances Active leave balances
    GET    /api/employees/{id}/violations     Monthly violations
    POST   /api/employees/{id}/locations      Assign a geofence

  Unlocks:
    POST   /api/employees/{id}/unlock-requests  File an unlock request
    GET    /api/employees/{id}/unlock-requests  List the day's requests
    POST   /api/unlock-requests/{id}/decision   Approve or reject

  Locations / Violations:
    GET    /api/locations                     Geofence pool
    POST   /api/locations                     Add a geofence
    GET    /api/violations                    All users' monthly violations

  Admin:
    POST   /api/admin/bank-compoff            Manually bank a user-month

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Policy violations (punch-cycle limit, unlock quota, re-decision)
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/geo"
	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/settings"
	"github.com/warp/attendance-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Punches  *attendance.PunchService
	Unlocks  *attendance.UnlockService
	Balances *leave.Service
	Bank     *overtime.Bank
	Settings settings.Provider

	Now func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

// staffCategoryFor resolves an employee's staff category through the
// role mapping table. Unknown roles are a configuration gap surfaced to
// the caller, never silently defaulted.
func (h *Handler) staffCategoryFor(w http.ResponseWriter, r *http.Request) (*sqlite.Employee, settings.StaffCategory, bool) {
	id := chi.URLParam(r, "id")

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return nil, "", false
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return nil, "", false
	}

	cat, err := h.Settings.CategoryForRole(settings.Role(emp.Role))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Employee role has no staff category mapping", err)
		return nil, "", false
	}
	return emp, cat, true
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{
			ID:        e.ID,
			Name:      e.Name,
			Email:     e.Email,
			Role:      e.Role,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}

	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, EmployeeDTO{
		ID:        emp.ID,
		Name:      emp.Name,
		Email:     emp.Email,
		Role:      emp.Role,
		CreatedAt: emp.CreatedAt.Format(time.RFC3339),
	})
}

// CreateEmployee creates a new employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "id, name and role are required", nil)
		return
	}
	if _, err := h.Settings.CategoryForRole(settings.Role(req.Role)); err != nil {
		writeError(w, http.StatusBadRequest, "Role has no staff category mapping", err)
		return
	}

	emp := sqlite.Employee{
		ID:    req.ID,
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, EmployeeDTO{
		ID:    emp.ID,
		Name:  emp.Name,
		Email: emp.Email,
		Role:  emp.Role,
	})
}

// =============================================================================
// PUNCH HANDLERS
// =============================================================================

// Punch records a punch action for an employee.
func (h *Handler) Punch(w http.ResponseWriter, r *http.Request) {
	emp, cat, ok := h.staffCategoryFor(w, r)
	if !ok {
		return
	}

	var req PunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	cmd := attendance.PunchCommand{
		UserID:          emp.ID,
		StaffCategory:   cat,
		Type:            attendance.EventType(req.Type),
		WorkType:        attendance.WorkType(req.WorkType),
		FixFailure:      geo.FallbackReason(req.FixFailure),
		ResolvedAddress: req.ResolvedAddress,
		Note:            req.Note,
		AttachmentRef:   req.AttachmentRef,
	}
	if req.Fix != nil {
		cmd.Fix = &geo.Fix{
			Latitude:       req.Fix.Latitude,
			Longitude:      req.Fix.Longitude,
			AccuracyMeters: req.Fix.AccuracyMeters,
		}
	}

	res, err := h.Punches.Punch(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, PunchResponse{
		Event:           toEventDTO(res.Event),
		Verdict:         string(res.Verdict),
		ViolationLogged: res.ViolationLogged,
		State:           toDayStateDTO(attendance.DayOf(h.now()), res.State),
	})
}

// GetDayState returns the derived state for a day (today by default).
func (h *Handler) GetDayState(w http.ResponseWriter, r *http.Request) {
	emp, _, ok := h.staffCategoryFor(w, r)
	if !ok {
		return
	}

	now := h.now()
	day := attendance.DayOf(now)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		day = parsed
	}

	state, err := h.Punches.DayState(r.Context(), emp.ID, day, now)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toDayStateDTO(day, state))
}

// =============================================================================
// OVERTIME HANDLERS
// =============================================================================

// GetOvertime returns a month's OT summary and comp-off credit position.
func (h *Handler) GetOvertime(w http.ResponseWriter, r *http.Request) {
	emp, cat, ok := h.staffCategoryFor(w, r)
	if !ok {
		return
	}

	month := attendance.MonthOf(h.now())
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
			return
		}
		month = parsed
	}

	cs, err := h.Settings.ForStaffCategory(cat)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve settings", err)
		return
	}

	ctx := r.Context()
	events, err := h.Store.ListEventsForUserInRange(ctx, emp.ID, month, month.AddDate(0, 1, 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load events", err)
		return
	}

	monthly := overtime.ComputeMonthlyOT(events, cs.ShiftThresholdMinutes)

	available, err := h.Store.Credits(ctx, emp.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load credits", err)
		return
	}

	days := make([]DailyOTDTO, len(monthly.Days))
	for i, d := range monthly.Days {
		days[i] = DailyOTDTO{
			Date:       d.Date.Format("2006-01-02"),
			OTMinutes:  d.OTMinutes,
			HasOTPunch: d.HasOTPunch,
		}
	}

	writeJSON(w, http.StatusOK, OvertimeResponse{
		Month:            attendance.MonthKey(month),
		TotalOTMinutes:   monthly.TotalOTMinutes,
		Days:             days,
		EarnedCredits:    monthly.CompOffCredits,
		AvailableCredits: available,
	})
}

// TriggerBankCompOff banks one user-month on demand. Re-running is a
// no-op; the bank is idempotent per (user, month).
func (h *Handler) TriggerBankCompOff(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Month  string `json:"month"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	month, err := time.Parse("2006-01", req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
		return
	}

	emp, err := h.Store.GetEmployee(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get employee", err)
		return
	}
	if emp == nil {
		writeError(w, http.StatusNotFound, "Employee not found", nil)
		return
	}

	cat, err := h.Settings.CategoryForRole(settings.Role(emp.Role))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Employee role has no staff category mapping", err)
		return
	}
	cs, err := h.Settings.ForStaffCategory(cat)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve settings", err)
		return
	}

	monthly, err := h.Bank.BankMonth(r.Context(), emp.ID, month, cs.ShiftThresholdMinutes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to bank comp-off credits", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":          emp.ID,
		"month":            attendance.MonthKey(month),
		"total_ot_minutes": monthly.TotalOTMinutes,
		"earned_credits":   monthly.CompOffCredits,
	})
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// GetLeaveBalances returns the employee's active leave balances.
func (h *Handler) GetLeaveBalances(w http.ResponseWriter, r *http.Request) {
	emp, cat, ok := h.staffCategoryFor(w, r)
	if !ok {
		return
	}

	asOf := h.now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
			return
		}
		asOf = parsed
	}

	cs, err := h.Settings.ForStaffCategory(cat)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve settings", err)
		return
	}

	balances, err := h.Balances.Balances(r.Context(), emp.ID, cs.LeaveCategories, asOf)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]LeaveBalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = LeaveBalanceDTO{
			Category:  string(b.Category),
			Total:     b.Total.String(),
			Used:      b.Used.String(),
			Remaining: b.Remaining.String(),
		}
	}

	writeJSON(w, http.StatusOK, LeaveBalancesResponse{
		UserID:   emp.ID,
		AsOf:     asOf.Format("2006-01-02"),
		Balances: dtos,
	})
}

// =============================================================================
// UNLOCK HANDLERS
// =============================================================================

// RequestUnlock files an unlock request for the employee's day.
func (h *Handler) RequestUnlock(w http.ResponseWriter, r *http.Request) {
	emp, _, ok := h.staffCategoryFor(w, r)
	if !ok {
		return
	}

	grant, err := h.Unlocks.Request(r.Context(), emp.ID, h.now())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUnlockDTO(grant))
}

// ListUnlocks returns the employee's unlock requests for a day (today by
// default).
func (h *Handler) ListUnlocks(w http.ResponseWriter, r *http.Request) {
	emp, _, ok := h.staffCategoryFor(w, r)
	if !ok {
		return
	}

	day := attendance.DayOf(h.now())
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		day = attendance.DayOf(parsed)
	}

	grants, err := h.Store.ListForUser(r.Context(), emp.ID, day, day)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list unlock requests", err)
		return
	}

	dtos := make([]UnlockGrantDTO, len(grants))
	for i, g := range grants {
		dtos[i] = toUnlockDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DecideUnlock approves or rejects a pending unlock request.
func (h *Handler) DecideUnlock(w http.ResponseWriter, r *http.Request) {
	grantID := chi.URLParam(r, "id")

	var req UnlockDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.DecidedBy == "" {
		writeError(w, http.StatusBadRequest, "decided_by is required", nil)
		return
	}

	if err := h.Unlocks.Decide(r.Context(), grantID, req.Approve, req.DecidedBy); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": decisionStatus(req.Approve)})
}

func decisionStatus(approve bool) string {
	if approve {
		return string(attendance.UnlockApproved)
	}
	return string(attendance.UnlockRejected)
}

// =============================================================================
// VIOLATION HANDLERS
// =============================================================================

// ListEmployeeViolations returns one employee's violations for a month.
func (h *Handler) ListEmployeeViolations(w http.ResponseWriter, r *http.Request) {
	emp, _, ok := h.staffCategoryFor(w, r)
	if !ok {
		return
	}
	h.listViolations(w, r, emp.ID)
}

// ListViolations returns all users' violations for a month.
func (h *Handler) ListViolations(w http.ResponseWriter, r *http.Request) {
	h.listViolations(w, r, "")
}

func (h *Handler) listViolations(w http.ResponseWriter, r *http.Request, userID string) {
	month := attendance.MonthOf(h.now())
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid month format (use YYYY-MM)", err)
			return
		}
		month = parsed
	}

	violations, err := h.Store.ListForMonth(r.Context(), userID, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list violations", err)
		return
	}

	dtos := make([]ViolationDTO, len(violations))
	for i, v := range violations {
		dtos[i] = ViolationDTO{
			ID:           v.ID,
			UserID:       v.UserID,
			Date:         v.ViolationDate.Format("2006-01-02"),
			Month:        v.ViolationMonth,
			Latitude:     v.AttemptedLat,
			Longitude:    v.AttemptedLng,
			LocationName: v.LocationName,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LOCATION HANDLERS
// =============================================================================

// ListLocations returns the geofence pool.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.Store.AllLocations(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list locations", err)
		return
	}

	dtos := make([]LocationDTO, len(locations))
	for i, loc := range locations {
		dtos[i] = toLocationDTO(loc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLocation adds a geofence to the pool.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req LocationDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" || req.RadiusMeters <= 0 {
		writeError(w, http.StatusBadRequest, "id, name and a positive radius_meters are required", nil)
		return
	}

	loc := geo.GeoLocation{
		ID:           req.ID,
		Name:         req.Name,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		RadiusMeters: req.RadiusMeters,
	}
	if err := h.Store.SaveLocation(r.Context(), loc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save location", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLocationDTO(loc))
}

// AssignLocation links an employee to a geofence.
func (h *Handler) AssignLocation(w http.ResponseWriter, r *http.Request) {
	emp, _, ok := h.staffCategoryFor(w, r)
	if !ok {
		return
	}

	var req AssignLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.LocationID == "" {
		writeError(w, http.StatusBadRequest, "location_id is required", nil)
		return
	}

	if err := h.Store.AssignLocation(r.Context(), emp.ID, req.LocationID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to assign location", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// DTO MAPPING
// =============================================================================

func toEventDTO(ev attendance.AttendanceEvent) EventDTO {
	return EventDTO{
		ID:           ev.ID,
		UserID:       ev.UserID,
		Timestamp:    ev.Timestamp.Format(time.RFC3339),
		Type:         string(ev.Type),
		WorkType:     string(ev.WorkType),
		Latitude:     ev.Latitude,
		Longitude:    ev.Longitude,
		LocationID:   ev.LocationID,
		LocationName: ev.LocationName,
		IsOvertime:   ev.IsOvertime,
		Note:         ev.Note,
	}
}

func toDayStateDTO(day time.Time, st attendance.DerivedDayState) DayStateDTO {
	dto := DayStateDTO{
		Date:             day.Format("2006-01-02"),
		IsCheckedIn:      st.IsCheckedIn,
		IsOnBreak:        st.IsOnBreak,
		IsFieldCheckedIn: st.IsFieldCheckedIn,
		WorkedMinutes:    st.WorkedMinutes,
		BreakMinutes:     st.BreakMinutes,
		PunchCycleCount:  st.PunchCycleCount,
	}
	if st.FirstCheckIn != nil {
		s := st.FirstCheckIn.Format(time.RFC3339)
		dto.FirstCheckIn = &s
	}
	if st.LastCheckOut != nil {
		s := st.LastCheckOut.Format(time.RFC3339)
		dto.LastCheckOut = &s
	}
	return dto
}

func toUnlockDTO(g attendance.UnlockGrant) UnlockGrantDTO {
	dto := UnlockGrantDTO{
		ID:        g.ID,
		UserID:    g.UserID,
		Date:      g.Date.Format("2006-01-02"),
		Status:    string(g.Status),
		DecidedBy: g.DecidedBy,
		CreatedAt: g.CreatedAt.Format(time.RFC3339),
	}
	if g.DecidedAt != nil {
		s := g.DecidedAt.Format(time.RFC3339)
		dto.DecidedAt = &s
	}
	return dto
}

func toLocationDTO(loc geo.GeoLocation) LocationDTO {
	return LocationDTO{
		ID:           loc.ID,
		Name:         loc.Name,
		Latitude:     loc.Latitude,
		Longitude:    loc.Longitude,
		RadiusMeters: loc.RadiusMeters,
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the engine's closed outcome set onto HTTP
// statuses: policy violations are the caller's to resolve (409),
// collaborator failures are ours (500).
func writeDomainError(w http.ResponseWriter, err error) {
	var pv *attendance.PolicyViolationError
	if errors.As(err, &pv) {
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error: pv.Reason,
			Code:  string(pv.Code),
		})
		return
	}
	if errors.Is(err, attendance.ErrAlreadyDecided) {
		writeError(w, http.StatusConflict, "Request already decided", err)
		return
	}
	if errors.Is(err, attendance.ErrEventNotFound) {
		writeError(w, http.StatusNotFound, "Not found", err)
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal error", err)
}
