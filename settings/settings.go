/*
Package settings supplies the engine's configuration: shift thresholds,
geofencing flags, break limits, and per-category leave accrual, keyed by
staff category (office/field/site).

PURPOSE:
  Every tunable the engine consults lives here behind the Provider
  interface. Role-to-staff-category resolution is an explicit enumerated
  mapping table validated at load time - not inline string membership
  checks scattered across call sites.

LAYERS:
  - Config: the typed, validated configuration value
  - loader.go: YAML file loading with defaults
  - watcher.go: optional hot reload on file change

SEE ALSO:
  - attendance/service.go: consults CategorySettings on every punch
  - leave/balance.go: CategoryConfig consumed by the balance calculator
*/
package settings

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/leave"
)

// =============================================================================
// STAFF CATEGORIES AND ROLES
// =============================================================================

type StaffCategory string

const (
	StaffOffice StaffCategory = "office"
	StaffField  StaffCategory = "field"
	StaffSite   StaffCategory = "site"
)

// Valid reports whether c is a known staff category.
func (c StaffCategory) Valid() bool {
	switch c {
	case StaffOffice, StaffField, StaffSite:
		return true
	}
	return false
}

// Role is an organisation role name as administered in the portal.
type Role string

// =============================================================================
// CATEGORY SETTINGS
// =============================================================================

// CategorySettings is the engine configuration for one staff category.
type CategorySettings struct {
	ShiftThresholdMinutes    int
	GeofencingEnabled        bool
	BreakLimitMinutes        int
	GeoAccuracyCeilingMeters float64

	// LeaveCategories configure the balance calculator for this staff
	// category.
	LeaveCategories []leave.CategoryConfig
}

// Provider is what the engine consumes. Config implements it; the
// watcher wraps it with an atomically swapped snapshot.
type Provider interface {
	ForStaffCategory(cat StaffCategory) (CategorySettings, error)
	CategoryForRole(role Role) (StaffCategory, error)
}

// =============================================================================
// CONFIG
// =============================================================================

// Config is the complete validated configuration.
type Config struct {
	Categories map[StaffCategory]CategorySettings

	// Roles maps each role name to its staff category. Unknown roles
	// are rejected at punch time rather than silently defaulted.
	Roles map[Role]StaffCategory
}

// Default returns a usable configuration: 8-hour shift, geofencing on
// for office and site staff, standard leave categories opened at the
// current year.
func Default() *Config {
	yearStart := time.Date(time.Now().UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, -1)

	standardLeave := []leave.CategoryConfig{
		{
			Category:  leave.CategoryEarned,
			Kind:      leave.AccrualFlat,
			FlatTotal: decimal.NewFromInt(18),
		},
		{
			Category:       leave.CategorySick,
			Kind:           leave.AccrualMonthly,
			OpeningBalance: decimal.Zero,
			OpeningDate:    yearStart,
			MonthlyRate:    decimal.NewFromInt(1),
		},
		{
			Category:   leave.CategoryFloating,
			Kind:       leave.AccrualFlat,
			FlatTotal:  decimal.NewFromInt(2),
			ExpiryDate: &yearEnd,
		},
		{
			Category: leave.CategoryCompOff,
			Kind:     leave.AccrualFlat,
		},
	}

	base := CategorySettings{
		ShiftThresholdMinutes:    480,
		GeofencingEnabled:        true,
		BreakLimitMinutes:        60,
		GeoAccuracyCeilingMeters: 1000,
		LeaveCategories:          standardLeave,
	}

	field := base
	field.GeofencingEnabled = false // field staff punch from client sites

	return &Config{
		Categories: map[StaffCategory]CategorySettings{
			StaffOffice: base,
			StaffField:  field,
			StaffSite:   base,
		},
		Roles: map[Role]StaffCategory{},
	}
}

// ForStaffCategory returns the settings for a staff category.
func (c *Config) ForStaffCategory(cat StaffCategory) (CategorySettings, error) {
	s, ok := c.Categories[cat]
	if !ok {
		return CategorySettings{}, fmt.Errorf("no settings for staff category %q", cat)
	}
	return s, nil
}

// CategoryForRole resolves a role through the mapping table.
func (c *Config) CategoryForRole(role Role) (StaffCategory, error) {
	cat, ok := c.Roles[role]
	if !ok {
		return "", fmt.Errorf("role %q has no staff category mapping", role)
	}
	return cat, nil
}

// Validate checks the configuration at load time. Unknown staff
// categories in the role table, negative thresholds, and malformed
// leave categories are configuration errors, not runtime surprises.
func (c *Config) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("no staff categories configured")
	}

	for cat, s := range c.Categories {
		if !cat.Valid() {
			return fmt.Errorf("unknown staff category %q", cat)
		}
		if s.ShiftThresholdMinutes <= 0 {
			return fmt.Errorf("%s: shift threshold must be positive, got %d", cat, s.ShiftThresholdMinutes)
		}
		if s.BreakLimitMinutes < 0 {
			return fmt.Errorf("%s: break limit cannot be negative, got %d", cat, s.BreakLimitMinutes)
		}
		if s.GeoAccuracyCeilingMeters < 0 {
			return fmt.Errorf("%s: accuracy ceiling cannot be negative", cat)
		}
		for _, lc := range s.LeaveCategories {
			if !lc.Category.Valid() {
				return fmt.Errorf("%s: unknown leave category %q", cat, lc.Category)
			}
			if lc.Kind == leave.AccrualMonthly && lc.MonthlyRate.IsNegative() {
				return fmt.Errorf("%s/%s: monthly rate cannot be negative", cat, lc.Category)
			}
			if lc.Kind == leave.AccrualMonthly && lc.OpeningDate.IsZero() {
				return fmt.Errorf("%s/%s: accrual category requires an opening date", cat, lc.Category)
			}
		}
	}

	for role, cat := range c.Roles {
		if _, ok := c.Categories[cat]; !ok {
			return fmt.Errorf("role %q maps to unconfigured staff category %q", role, cat)
		}
	}
	return nil
}
