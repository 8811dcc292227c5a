/*
Package leave computes per-category leave balances with accrual and
expiry.

PURPOSE:
  Remaining leave per category is derived from opening balance, monthly
  accrual, usage, and expiry date - never stored. Categories are
  independently configurable by staff category and can carry different
  opening dates (sick-leave accrual historically runs separate from the
  earned-leave yearly reset), which is why expiry is per-category rather
  than one global cutover.

ACCRUAL:
  total = openingBalance + monthlyRate * monthsElapsed(openingDate, asOf)
  where monthsElapsed counts full calendar months by month index. Flat
  categories (e.g. yearly earned leave) use a fixed configured total
  instead.

EXPIRY:
  An expired category is EXCLUDED from the active balance view entirely,
  not shown as zero - zero would visually imply "0 remaining, request
  more".

OVERDRAFT:
  used > total is not blocked here. Approvals past remaining balance are
  allowed by policy, so Remaining passes through negative.

PRECISION:
  Amounts and rates use decimal.Decimal; monthly rates like 1.25 must
  not drift under repeated accrual.

SEE ALSO:
  - settings: per-staff-category CategoryConfig source
  - overtime: comp-off credit bank feeding CategoryCompOff
*/
package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORIES
// =============================================================================

type Category string

const (
	CategoryEarned   Category = "earned"
	CategorySick     Category = "sick"
	CategoryFloating Category = "floating"
	CategoryCompOff  Category = "comp_off"
)

// Valid reports whether c is a known leave category.
func (c Category) Valid() bool {
	switch c {
	case CategoryEarned, CategorySick, CategoryFloating, CategoryCompOff:
		return true
	}
	return false
}

// AccrualKind distinguishes balances that grow monthly from fixed
// yearly allocations.
type AccrualKind string

const (
	AccrualMonthly AccrualKind = "monthly"
	AccrualFlat    AccrualKind = "flat"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

// CategoryConfig is the per-category policy supplied by the settings
// provider for a staff category.
type CategoryConfig struct {
	Category Category
	Kind     AccrualKind

	// Accrual categories.
	OpeningBalance decimal.Decimal
	OpeningDate    time.Time
	MonthlyRate    decimal.Decimal

	// Flat categories.
	FlatTotal decimal.Decimal

	// ExpiryDate, when set, removes the category from the active view
	// once asOf passes it.
	ExpiryDate *time.Time
}

// CompOffConfig builds the comp-off category from banked credits. The
// bank value is the flat total; it persists across days until consumed
// by a comp-off leave request.
func CompOffConfig(credits int) CategoryConfig {
	return CategoryConfig{
		Category:  CategoryCompOff,
		Kind:      AccrualFlat,
		FlatTotal: decimal.NewFromInt(int64(credits)),
	}
}

// =============================================================================
// BALANCE
// =============================================================================

// Balance is the derived view of one category.
type Balance struct {
	Category  Category
	Total     decimal.Decimal
	Used      decimal.Decimal
	Remaining decimal.Decimal
	IsExpired bool
}

// ComputeBalance derives a category's balance as of a date.
func ComputeBalance(cfg CategoryConfig, used decimal.Decimal, asOf time.Time) Balance {
	b := Balance{Category: cfg.Category, Used: used}

	if cfg.ExpiryDate != nil && asOf.After(*cfg.ExpiryDate) {
		b.IsExpired = true
	}

	switch cfg.Kind {
	case AccrualFlat:
		b.Total = cfg.FlatTotal
	default:
		months := monthsElapsed(cfg.OpeningDate, asOf)
		b.Total = cfg.OpeningBalance.Add(cfg.MonthlyRate.Mul(decimal.NewFromInt(int64(months))))
	}

	// Overdraft passes through: used > total yields negative remaining.
	b.Remaining = b.Total.Sub(used)
	return b
}

// ActiveBalances derives every configured category and drops expired
// ones from the result entirely.
func ActiveBalances(cfgs []CategoryConfig, used map[Category]decimal.Decimal, asOf time.Time) []Balance {
	var out []Balance
	for _, cfg := range cfgs {
		b := ComputeBalance(cfg, used[cfg.Category], asOf)
		if b.IsExpired {
			continue
		}
		out = append(out, b)
	}
	return out
}

// monthsElapsed counts full calendar months between two dates by month
// index, clamped at zero for asOf before opening.
func monthsElapsed(opening, asOf time.Time) int {
	elapsed := monthIndex(asOf) - monthIndex(opening)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

func monthIndex(t time.Time) int {
	u := t.UTC()
	return u.Year()*12 + int(u.Month()) - 1
}

// =============================================================================
// USAGE SOURCE + SERVICE
// =============================================================================

// UsageSource supplies approved usage per category, derived from the
// persisted request history.
type UsageSource interface {
	UsedToDate(ctx context.Context, userID string, category Category, asOf time.Time) (decimal.Decimal, error)
}

// CreditSource supplies banked comp-off credits.
type CreditSource interface {
	Credits(ctx context.Context, userID string) (int, error)
}

// Service assembles the active balance view for a user from configured
// categories, usage history, and the comp-off bank.
type Service struct {
	Usage   UsageSource
	CompOff CreditSource
}

// Balances computes the active per-category balances for a user. The
// comp-off category's total is replaced by the user's banked credits
// when a credit source is wired.
func (s *Service) Balances(ctx context.Context, userID string, cfgs []CategoryConfig, asOf time.Time) ([]Balance, error) {
	used := make(map[Category]decimal.Decimal, len(cfgs))
	resolved := make([]CategoryConfig, 0, len(cfgs))

	for _, cfg := range cfgs {
		u, err := s.Usage.UsedToDate(ctx, userID, cfg.Category, asOf)
		if err != nil {
			return nil, err
		}
		used[cfg.Category] = u

		if cfg.Category == CategoryCompOff && s.CompOff != nil {
			credits, err := s.CompOff.Credits(ctx, userID)
			if err != nil {
				return nil, err
			}
			banked := CompOffConfig(credits)
			banked.ExpiryDate = cfg.ExpiryDate
			cfg = banked
		}
		resolved = append(resolved, cfg)
	}

	return ActiveBalances(resolved, used, asOf), nil
}
