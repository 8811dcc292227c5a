package settings_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/attendance-engine/leave"
	"github.com/warp/attendance-engine/settings"
)

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault_IsValid(t *testing.T) {
	if err := settings.Default().Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestDefault_FieldStaffSkipGeofencing(t *testing.T) {
	cfg := settings.Default()

	office, err := cfg.ForStaffCategory(settings.StaffOffice)
	if err != nil {
		t.Fatal(err)
	}
	if !office.GeofencingEnabled {
		t.Error("office staff should have geofencing enabled")
	}

	field, err := cfg.ForStaffCategory(settings.StaffField)
	if err != nil {
		t.Fatal(err)
	}
	if field.GeofencingEnabled {
		t.Error("field staff should have geofencing disabled")
	}
}

func TestForStaffCategory_Unknown(t *testing.T) {
	if _, err := settings.Default().ForStaffCategory("astronaut"); err == nil {
		t.Error("expected error for unknown staff category")
	}
}

// =============================================================================
// YAML PARSING
// =============================================================================

func TestParse_OverridesLayerOverDefaults(t *testing.T) {
	cfg, err := settings.Parse([]byte(`
categories:
  office:
    shift_threshold_minutes: 540
    geofencing_enabled: false
roles:
  "HR Manager": office
  "Site Engineer": site
`))
	if err != nil {
		t.Fatal(err)
	}

	office, _ := cfg.ForStaffCategory(settings.StaffOffice)

	// WHEN a key is present in the file it replaces the default
	if office.ShiftThresholdMinutes != 540 {
		t.Errorf("ShiftThresholdMinutes = %d, want 540", office.ShiftThresholdMinutes)
	}
	if office.GeofencingEnabled {
		t.Error("geofencing override not applied")
	}

	// AND keys absent from the file keep their defaults
	if office.BreakLimitMinutes != 60 {
		t.Errorf("BreakLimitMinutes = %d, want default 60", office.BreakLimitMinutes)
	}
	if len(office.LeaveCategories) == 0 {
		t.Error("default leave categories dropped by a partial override")
	}

	// AND unnamed categories are untouched
	site, _ := cfg.ForStaffCategory(settings.StaffSite)
	if site.ShiftThresholdMinutes != 480 {
		t.Errorf("site threshold = %d, want default 480", site.ShiftThresholdMinutes)
	}
}

func TestParse_LeaveCategories(t *testing.T) {
	cfg, err := settings.Parse([]byte(`
categories:
  office:
    leave:
      - category: sick
        accrual: monthly
        opening_balance: 2
        opening_date: 2026-01-01T00:00:00Z
        monthly_rate: 1
      - category: floating
        accrual: flat
        flat_total: 2
        expiry_date: 2026-12-31T00:00:00Z
`))
	if err != nil {
		t.Fatal(err)
	}

	office, _ := cfg.ForStaffCategory(settings.StaffOffice)
	if len(office.LeaveCategories) != 2 {
		t.Fatalf("got %d leave categories, want 2", len(office.LeaveCategories))
	}

	sick := office.LeaveCategories[0]
	if sick.Category != leave.CategorySick || sick.Kind != leave.AccrualMonthly {
		t.Errorf("unexpected first category: %+v", sick)
	}
	if !sick.OpeningBalance.Equal(decimal.NewFromInt(2)) {
		t.Errorf("opening balance = %s, want 2", sick.OpeningBalance)
	}
	if sick.OpeningDate != time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("opening date = %s", sick.OpeningDate)
	}

	floating := office.LeaveCategories[1]
	if floating.ExpiryDate == nil || floating.ExpiryDate.Year() != 2026 {
		t.Errorf("expiry date not parsed: %+v", floating.ExpiryDate)
	}
}

func TestParse_RoleTableReplacesWholesale(t *testing.T) {
	cfg, err := settings.Parse([]byte(`
roles:
  "Plant Supervisor": site
`))
	if err != nil {
		t.Fatal(err)
	}

	cat, err := cfg.CategoryForRole("Plant Supervisor")
	if err != nil {
		t.Fatal(err)
	}
	if cat != settings.StaffSite {
		t.Errorf("CategoryForRole = %q, want site", cat)
	}

	if _, err := cfg.CategoryForRole("Stranger"); err == nil {
		t.Error("unmapped role should be an error, not a silent default")
	}
}

// =============================================================================
// VALIDATION FAILURES
// =============================================================================

func TestParse_Rejections(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown staff category",
			yaml:    "categories:\n  astronaut:\n    shift_threshold_minutes: 480\n",
			wantErr: "unknown staff category",
		},
		{
			name:    "non-positive shift threshold",
			yaml:    "categories:\n  office:\n    shift_threshold_minutes: 0\n",
			wantErr: "shift threshold must be positive",
		},
		{
			name:    "negative break limit",
			yaml:    "categories:\n  office:\n    break_limit_minutes: -5\n",
			wantErr: "break limit cannot be negative",
		},
		{
			name:    "unknown accrual kind",
			yaml:    "categories:\n  office:\n    leave:\n      - category: sick\n        accrual: hourly\n",
			wantErr: "unknown accrual kind",
		},
		{
			name:    "accrual without opening date",
			yaml:    "categories:\n  office:\n    leave:\n      - category: sick\n        accrual: monthly\n        monthly_rate: 1\n",
			wantErr: "requires an opening date",
		},
		{
			name:    "role maps to unconfigured category",
			yaml:    "roles:\n  \"HR Manager\": astronaut\n",
			wantErr: "unconfigured staff category",
		},
		{
			name:    "malformed yaml",
			yaml:    "categories: [not a map",
			wantErr: "parse settings",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := settings.Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
