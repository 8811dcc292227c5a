/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  All JSON shapes crossing the HTTP boundary live here. Domain types
  never serialize directly; handlers map them into DTOs so the wire
  format can evolve independently of the engine.

CONVENTIONS:
  - Dates are "2006-01-02", months are "2006-01", instants are RFC3339
  - Decimal amounts serialize as strings to avoid float drift
  - Error responses carry a stable machine-readable code when the
    failure is a policy violation
*/
package api

// =============================================================================
// EMPLOYEES
// =============================================================================

type EmployeeDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateEmployeeRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// =============================================================================
// PUNCHES
// =============================================================================

type FixDTO struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters,omitempty"`
}

type PunchRequest struct {
	Type     string `json:"type"`
	WorkType string `json:"work_type,omitempty"`

	// Fix is nil when GPS acquisition failed; FixFailure then carries
	// the reason (permission_denied, timeout, no_signal).
	Fix        *FixDTO `json:"fix,omitempty"`
	FixFailure string  `json:"fix_failure,omitempty"`

	ResolvedAddress string `json:"resolved_address,omitempty"`
	Note            string `json:"note,omitempty"`
	AttachmentRef   string `json:"attachment_ref,omitempty"`
}

type PunchResponse struct {
	Event           EventDTO    `json:"event"`
	Verdict         string      `json:"verdict"`
	ViolationLogged bool        `json:"violation_logged"`
	State           DayStateDTO `json:"state"`
}

type EventDTO struct {
	ID           string   `json:"id"`
	UserID       string   `json:"user_id"`
	Timestamp    string   `json:"timestamp"`
	Type         string   `json:"type"`
	WorkType     string   `json:"work_type"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationID   string   `json:"location_id,omitempty"`
	LocationName string   `json:"location_name,omitempty"`
	IsOvertime   bool     `json:"is_overtime"`
	Note         string   `json:"note,omitempty"`
}

type DayStateDTO struct {
	Date             string  `json:"date"`
	IsCheckedIn      bool    `json:"is_checked_in"`
	IsOnBreak        bool    `json:"is_on_break"`
	IsFieldCheckedIn bool    `json:"is_field_checked_in"`
	FirstCheckIn     *string `json:"first_check_in,omitempty"`
	LastCheckOut     *string `json:"last_check_out,omitempty"`
	WorkedMinutes    int     `json:"worked_minutes"`
	BreakMinutes     int     `json:"break_minutes"`
	PunchCycleCount  int     `json:"punch_cycle_count"`
}

// =============================================================================
// OVERTIME
// =============================================================================

type OvertimeResponse struct {
	Month            string       `json:"month"`
	TotalOTMinutes   int          `json:"total_ot_minutes"`
	Days             []DailyOTDTO `json:"days"`
	EarnedCredits    int          `json:"earned_credits"`
	AvailableCredits int          `json:"available_credits"`
}

type DailyOTDTO struct {
	Date       string `json:"date"`
	OTMinutes  int    `json:"ot_minutes"`
	HasOTPunch bool   `json:"has_ot_punch"`
}

// =============================================================================
// LEAVE
// =============================================================================

type LeaveBalanceDTO struct {
	Category  string `json:"category"`
	Total     string `json:"total"`
	Used      string `json:"used"`
	Remaining string `json:"remaining"`
}

type LeaveBalancesResponse struct {
	UserID   string            `json:"user_id"`
	AsOf     string            `json:"as_of"`
	Balances []LeaveBalanceDTO `json:"balances"`
}

// =============================================================================
// UNLOCKS
// =============================================================================

type UnlockGrantDTO struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Date      string  `json:"date"`
	Status    string  `json:"status"`
	DecidedBy string  `json:"decided_by,omitempty"`
	DecidedAt *string `json:"decided_at,omitempty"`
	CreatedAt string  `json:"created_at"`
}

type UnlockDecisionRequest struct {
	Approve   bool   `json:"approve"`
	DecidedBy string `json:"decided_by"`
}

// =============================================================================
// VIOLATIONS AND LOCATIONS
// =============================================================================

type ViolationDTO struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	Date         string  `json:"date"`
	Month        string  `json:"month"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	LocationName string  `json:"location_name,omitempty"`
}

type LocationDTO struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	RadiusMeters float64 `json:"radius_meters"`
}

type AssignLocationRequest struct {
	LocationID string `json:"location_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
