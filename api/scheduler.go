/*
scheduler.go - Automated comp-off banking scheduler

PURPOSE:
  Periodically banks the previous month's overtime into comp-off
  credits for every employee. Banking is idempotent per (user, month)
  so re-running a check is always safe.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Banks the month that most recently closed
  - Skips employees whose role has no staff category mapping
  - The credit store's insert-or-ignore semantics provide idempotency

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewBankingScheduler(store, bank, provider)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerBankCompOff endpoint (manual banking)
  - overtime/calc.go: Bank
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/overtime"
	"github.com/warp/attendance-engine/settings"
	"github.com/warp/attendance-engine/store/sqlite"
)

// BankingScheduler banks closed months' overtime into comp-off credits.
type BankingScheduler struct {
	Store         *sqlite.Store
	Bank          *overtime.Bank
	Settings      settings.Provider
	Log           *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	// Now is overridable for tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBankingScheduler creates a new scheduler.
func NewBankingScheduler(store *sqlite.Store, bank *overtime.Bank, provider settings.Provider) *BankingScheduler {
	return &BankingScheduler{
		Store:         store,
		Bank:          bank,
		Settings:      provider,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

func (bs *BankingScheduler) now() time.Time {
	if bs.Now != nil {
		return bs.Now()
	}
	return time.Now().UTC()
}

func (bs *BankingScheduler) logger() *slog.Logger {
	if bs.Log != nil {
		return bs.Log
	}
	return slog.Default()
}

// Start begins the scheduler.
func (bs *BankingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		bs.logger().Info("banking scheduler disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	bs.logger().Info("banking scheduler started", slog.Duration("interval", bs.CheckInterval))
}

// Stop stops the scheduler.
func (bs *BankingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		bs.logger().Info("banking scheduler stopped")
	}
}

func (bs *BankingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.checkAndBank()

	for {
		select {
		case <-bs.ticker.C:
			bs.checkAndBank()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BankingScheduler) checkAndBank() {
	ctx := context.Background()
	now := bs.now()

	// Bank the month that just closed. Months further back were banked
	// by earlier checks; re-banking them is a no-op anyway.
	month := attendance.MonthOf(now).AddDate(0, -1, 0)

	employees, err := bs.Store.ListEmployees(ctx)
	if err != nil {
		bs.logger().Error("banking scheduler: listing employees failed", slog.String("error", err.Error()))
		return
	}

	var banked, skipped int
	for _, emp := range employees {
		cat, err := bs.Settings.CategoryForRole(settings.Role(emp.Role))
		if err != nil {
			bs.logger().Warn("banking scheduler: role has no staff category, skipping",
				slog.String("user", emp.ID), slog.String("role", emp.Role))
			skipped++
			continue
		}
		cs, err := bs.Settings.ForStaffCategory(cat)
		if err != nil {
			bs.logger().Warn("banking scheduler: unresolvable settings, skipping",
				slog.String("user", emp.ID), slog.String("error", err.Error()))
			skipped++
			continue
		}

		monthly, err := bs.Bank.BankMonth(ctx, emp.ID, month, cs.ShiftThresholdMinutes)
		if err != nil {
			bs.logger().Error("banking scheduler: banking failed",
				slog.String("user", emp.ID),
				slog.String("month", attendance.MonthKey(month)),
				slog.String("error", err.Error()))
			continue
		}
		if monthly.CompOffCredits > 0 {
			banked++
		}
	}

	if banked > 0 || skipped > 0 {
		bs.logger().Info("banking scheduler run complete",
			slog.String("month", attendance.MonthKey(month)),
			slog.Int("banked", banked),
			slog.Int("skipped", skipped))
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (bs *BankingScheduler) RunNow() {
	bs.checkAndBank()
}
