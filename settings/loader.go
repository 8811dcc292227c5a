/*
loader.go - YAML configuration loading

PURPOSE:
  Loads a Config from a YAML file, layered over Default(): file values
  replace the defaults for any staff category they name, and the role
  table replaces wholesale. Validation runs on the merged result - a
  file that fails validation never becomes the active config.

FILE FORMAT:

  categories:
    office:
      shift_threshold_minutes: 480
      geofencing_enabled: true
      break_limit_minutes: 60
      geo_accuracy_ceiling_meters: 1000
      leave:
        - category: sick
          accrual: monthly
          opening_balance: 2
          opening_date: 2026-01-01
          monthly_rate: 1
        - category: earned
          accrual: flat
          flat_total: 18
          expiry_date: 2026-12-31
  roles:
    "HR Manager": office
    "Site Engineer": site

SEE ALSO:
  - watcher.go: hot reload of the same file
*/
package settings

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/attendance-engine/leave"
)

// =============================================================================
// FILE SCHEMA
// =============================================================================

type fileConfig struct {
	Categories map[string]fileCategory `yaml:"categories"`
	Roles      map[string]string       `yaml:"roles"`
}

type fileCategory struct {
	ShiftThresholdMinutes    *int            `yaml:"shift_threshold_minutes"`
	GeofencingEnabled        *bool           `yaml:"geofencing_enabled"`
	BreakLimitMinutes        *int            `yaml:"break_limit_minutes"`
	GeoAccuracyCeilingMeters *float64        `yaml:"geo_accuracy_ceiling_meters"`
	Leave                    []fileLeaveItem `yaml:"leave"`
}

type fileLeaveItem struct {
	Category       string     `yaml:"category"`
	Accrual        string     `yaml:"accrual"`
	OpeningBalance float64    `yaml:"opening_balance"`
	OpeningDate    time.Time  `yaml:"opening_date"`
	MonthlyRate    float64    `yaml:"monthly_rate"`
	FlatTotal      float64    `yaml:"flat_total"`
	ExpiryDate     *time.Time `yaml:"expiry_date"`
}

// =============================================================================
// LOADING
// =============================================================================

// LoadFile parses and validates a YAML config file, layered over
// Default().
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse builds a validated Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	cfg := Default()

	for name, raw := range fc.Categories {
		cat := StaffCategory(name)
		base := cfg.Categories[cat] // zero value for new categories; Validate catches unknowns

		if raw.ShiftThresholdMinutes != nil {
			base.ShiftThresholdMinutes = *raw.ShiftThresholdMinutes
		}
		if raw.GeofencingEnabled != nil {
			base.GeofencingEnabled = *raw.GeofencingEnabled
		}
		if raw.BreakLimitMinutes != nil {
			base.BreakLimitMinutes = *raw.BreakLimitMinutes
		}
		if raw.GeoAccuracyCeilingMeters != nil {
			base.GeoAccuracyCeilingMeters = *raw.GeoAccuracyCeilingMeters
		}
		if raw.Leave != nil {
			items, err := leaveConfigs(raw.Leave)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", name, err)
			}
			base.LeaveCategories = items
		}
		cfg.Categories[cat] = base
	}

	if fc.Roles != nil {
		cfg.Roles = make(map[Role]StaffCategory, len(fc.Roles))
		for role, cat := range fc.Roles {
			cfg.Roles[Role(role)] = StaffCategory(cat)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func leaveConfigs(items []fileLeaveItem) ([]leave.CategoryConfig, error) {
	out := make([]leave.CategoryConfig, 0, len(items))
	for _, it := range items {
		kind := leave.AccrualKind(it.Accrual)
		switch kind {
		case leave.AccrualMonthly, leave.AccrualFlat:
		default:
			return nil, fmt.Errorf("leave category %q: unknown accrual kind %q", it.Category, it.Accrual)
		}

		out = append(out, leave.CategoryConfig{
			Category:       leave.Category(it.Category),
			Kind:           kind,
			OpeningBalance: decimal.NewFromFloat(it.OpeningBalance),
			OpeningDate:    it.OpeningDate,
			MonthlyRate:    decimal.NewFromFloat(it.MonthlyRate),
			FlatTotal:      decimal.NewFromFloat(it.FlatTotal),
			ExpiryDate:     it.ExpiryDate,
		})
	}
	return out, nil
}
