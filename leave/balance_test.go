package leave_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/attendance-engine/leave"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func sickConfig(opening float64, openedAt time.Time, rate float64) leave.CategoryConfig {
	return leave.CategoryConfig{
		Category:       leave.CategorySick,
		Kind:           leave.AccrualMonthly,
		OpeningBalance: d(opening),
		OpeningDate:    openedAt,
		MonthlyRate:    d(rate),
	}
}

// =============================================================================
// ACCRUAL TESTS
// =============================================================================

func TestComputeBalance_MonthlyAccrual(t *testing.T) {
	// GIVEN: sick leave opening 2, accrual 1/month, opened 2026-01-01
	// WHEN: asOf 2026-04-15
	// THEN: total = 2 + 3 = 5 (three full months elapsed)
	cfg := sickConfig(2, date(2026, time.January, 1), 1)
	b := leave.ComputeBalance(cfg, decimal.Zero, date(2026, time.April, 15))

	if !b.Total.Equal(d(5)) {
		t.Errorf("expected total 5, got %s", b.Total)
	}
	if !b.Remaining.Equal(d(5)) {
		t.Errorf("expected remaining 5, got %s", b.Remaining)
	}
}

func TestComputeBalance_SameMonthNoAccrual(t *testing.T) {
	cfg := sickConfig(2, date(2026, time.January, 1), 1)
	b := leave.ComputeBalance(cfg, decimal.Zero, date(2026, time.January, 28))
	if !b.Total.Equal(d(2)) {
		t.Errorf("no full month elapsed: expected 2, got %s", b.Total)
	}
}

func TestComputeBalance_AsOfBeforeOpeningClampsToZeroMonths(t *testing.T) {
	cfg := sickConfig(2, date(2026, time.June, 1), 1)
	b := leave.ComputeBalance(cfg, decimal.Zero, date(2026, time.March, 1))
	if !b.Total.Equal(d(2)) {
		t.Errorf("months elapsed clamps at zero: expected 2, got %s", b.Total)
	}
}

func TestComputeBalance_FractionalRateDoesNotDrift(t *testing.T) {
	// 1.25/month over 12 months must be exactly 15.
	cfg := sickConfig(0, date(2025, time.January, 1), 1.25)
	b := leave.ComputeBalance(cfg, decimal.Zero, date(2026, time.January, 1))
	if !b.Total.Equal(d(15)) {
		t.Errorf("expected exactly 15, got %s", b.Total)
	}
}

func TestComputeBalance_FlatCategoryIgnoresAccrual(t *testing.T) {
	cfg := leave.CategoryConfig{
		Category:  leave.CategoryEarned,
		Kind:      leave.AccrualFlat,
		FlatTotal: d(18),
	}
	b := leave.ComputeBalance(cfg, d(4), date(2026, time.November, 1))
	if !b.Total.Equal(d(18)) {
		t.Errorf("flat total fixed at 18, got %s", b.Total)
	}
	if !b.Remaining.Equal(d(14)) {
		t.Errorf("expected remaining 14, got %s", b.Remaining)
	}
}

// =============================================================================
// EXPIRY TESTS
// =============================================================================

func TestComputeBalance_ExpiredCategory(t *testing.T) {
	expiry := date(2026, time.June, 30)
	cfg := sickConfig(2, date(2026, time.January, 1), 1)
	cfg.ExpiryDate = &expiry

	b := leave.ComputeBalance(cfg, decimal.Zero, date(2026, time.July, 1))
	if !b.IsExpired {
		t.Error("asOf past expiry must mark the category expired")
	}
}

func TestComputeBalance_OnExpiryDateNotExpired(t *testing.T) {
	expiry := date(2026, time.June, 30)
	cfg := sickConfig(2, date(2026, time.January, 1), 1)
	cfg.ExpiryDate = &expiry

	b := leave.ComputeBalance(cfg, decimal.Zero, expiry)
	if b.IsExpired {
		t.Error("the expiry date itself is still active")
	}
}

func TestActiveBalances_OmitsExpiredEntirely(t *testing.T) {
	// GIVEN: a category with expiryDate in the past
	// THEN: it never contributes to the visible balance set, regardless
	//       of its total - omitted, not shown as zero
	expired := date(2025, time.December, 31)
	cfgs := []leave.CategoryConfig{
		sickConfig(10, date(2025, time.January, 1), 1),
		{
			Category:   leave.CategoryFloating,
			Kind:       leave.AccrualFlat,
			FlatTotal:  d(2),
			ExpiryDate: &expired,
		},
	}

	balances := leave.ActiveBalances(cfgs, nil, date(2026, time.February, 1))
	if len(balances) != 1 {
		t.Fatalf("expected 1 active balance, got %d", len(balances))
	}
	if balances[0].Category != leave.CategorySick {
		t.Errorf("expected sick to survive, got %s", balances[0].Category)
	}
}

// =============================================================================
// OVERDRAFT TESTS
// =============================================================================

func TestComputeBalance_OverdraftPassesThrough(t *testing.T) {
	// used > total is permitted by policy (approvals past remaining
	// balance); the calculator reports the negative remaining rather
	// than clamping or erroring.
	cfg := leave.CategoryConfig{
		Category:  leave.CategoryEarned,
		Kind:      leave.AccrualFlat,
		FlatTotal: d(5),
	}
	b := leave.ComputeBalance(cfg, d(7), date(2026, time.May, 1))
	if !b.Remaining.Equal(d(-2)) {
		t.Errorf("expected remaining -2, got %s", b.Remaining)
	}
}
