package services

import (
	"context"
	"testing"
	"time"

	"antspend/internal/cache"
	"antspend/internal/core"
	"antspend/internal/storage"
)

type fakeDashboardStore struct {
	totalCents int64
	count      int
	categories []core.CategorySum
	daily      []core.DailyTotal
	recent     []core.ExpenseDetail
	budget     core.Budget
	hasBudget  bool

	monthCents int64 // current-month spend for budget usage
	sumCalls   int
}

func (f *fakeDashboardStore) SumExpenses(_ context.Context, _ int64, from, to core.Date) (int64, int, error) {
	f.sumCalls++
	// The budget usage lookup always asks for the month of testNow.
	if f.monthCents != 0 && from.Time.Month() == testNow.Month() && from.Time.Day() == 1 {
		return f.monthCents, 0, nil
	}
	return f.totalCents, f.count, nil
}

func (f *fakeDashboardStore) CategorySummary(context.Context, int64, core.Date, core.Date) ([]core.CategorySum, error) {
	return f.categories, nil
}

func (f *fakeDashboardStore) DailyTotals(context.Context, int64, core.Date, core.Date) ([]core.DailyTotal, error) {
	return f.daily, nil
}

func (f *fakeDashboardStore) RecentExpenses(context.Context, int64, int) ([]core.ExpenseDetail, error) {
	return f.recent, nil
}

func (f *fakeDashboardStore) GetBudget(context.Context, int64) (core.Budget, error) {
	if !f.hasBudget {
		return core.Budget{}, storage.ErrNotFound
	}
	return f.budget, nil
}

func mustNormalize(t *testing.T, now time.Time, p FilterParams) NormalizedFilter {
	t.Helper()
	nf, errs := NormalizeFilter(now, p)
	if len(errs) != 0 {
		t.Fatalf("normalize: %v", errs)
	}
	return nf
}

func TestDashboardMetrics(t *testing.T) {
	store := &fakeDashboardStore{
		totalCents: 15000,
		count:      6,
		categories: []core.CategorySum{{Name: "Groceries", Amount: core.Money{Cents: 15000}, Count: 6}},
	}
	svc := NewAggregationService(store, nil, nil)

	nf := mustNormalize(t, testNow, FilterParams{Period: PeriodCurrentMonth})
	d, err := svc.Dashboard(context.Background(), 1, testNow, nf)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if d.Total.Cents != 15000 || d.Count != 6 {
		t.Errorf("total = %d count = %d", d.Total.Cents, d.Count)
	}
	// 15 days of August elapsed at testNow.
	if d.DailyAverage.Cents != 1000 {
		t.Errorf("daily average = %d, want 1000", d.DailyAverage.Cents)
	}
	if d.Budget != nil {
		t.Error("no budget configured, usage should be nil")
	}
}

func TestDashboardDailyAverageFullRange(t *testing.T) {
	store := &fakeDashboardStore{totalCents: 8000}
	svc := NewAggregationService(store, nil, nil)

	// last_7_days spans 8 inclusive days (today minus 7 through today).
	nf := mustNormalize(t, testNow, FilterParams{Period: PeriodLast7Days})
	d, err := svc.Dashboard(context.Background(), 1, testNow, nf)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.DailyAverage.Cents != 1000 {
		t.Errorf("daily average = %d, want 1000 (8000 over 8 days)", d.DailyAverage.Cents)
	}
}

func TestDashboardBudgetUsage(t *testing.T) {
	store := &fakeDashboardStore{
		totalCents: 2000,
		monthCents: 12000,
		hasBudget:  true,
		budget: core.Budget{
			MonthlyLimit:    core.Money{Cents: 10000},
			WarningPercent:  75,
			CriticalPercent: 90,
			AlertsEnabled:   true,
		},
	}
	svc := NewAggregationService(store, nil, nil)

	// Budget usage tracks the current month even when viewing last month.
	nf := mustNormalize(t, testNow, FilterParams{Period: PeriodLastMonth})
	d, err := svc.Dashboard(context.Background(), 1, testNow, nf)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}

	if d.Budget == nil {
		t.Fatal("expected budget usage")
	}
	if d.Budget.Percent != 120 {
		t.Errorf("Percent = %v, want 120 unclamped", d.Budget.Percent)
	}
	if d.Budget.BarPercent != 100 {
		t.Errorf("BarPercent = %v, want clamped 100", d.Budget.BarPercent)
	}
	if d.Budget.Status != core.BudgetExceeded {
		t.Errorf("Status = %q, want exceeded", d.Budget.Status)
	}
	if d.Budget.Remaining.Cents != 0 {
		t.Errorf("Remaining = %d, want 0", d.Budget.Remaining.Cents)
	}
}

func TestDashboardCaching(t *testing.T) {
	store := &fakeDashboardStore{totalCents: 5000}
	c := cache.NewLRUCache[Dashboard](10, time.Minute)
	svc := NewAggregationService(store, c, nil)

	nf := mustNormalize(t, testNow, FilterParams{Period: PeriodCurrentMonth})
	ctx := context.Background()

	if _, err := svc.Dashboard(ctx, 1, testNow, nf); err != nil {
		t.Fatal(err)
	}
	callsAfterFirst := store.sumCalls

	if _, err := svc.Dashboard(ctx, 1, testNow, nf); err != nil {
		t.Fatal(err)
	}
	if store.sumCalls != callsAfterFirst {
		t.Error("second call should be served from cache")
	}

	svc.Invalidate(1)
	if _, err := svc.Dashboard(ctx, 1, testNow, nf); err != nil {
		t.Fatal(err)
	}
	if store.sumCalls == callsAfterFirst {
		t.Error("invalidation should force a rebuild")
	}

	// Custom ranges bypass the cache entirely.
	custom := mustNormalize(t, testNow, FilterParams{
		Period: PeriodCustom, DateFrom: "2026-02-01", DateTo: "2026-02-28",
	})
	before := store.sumCalls
	if _, err := svc.Dashboard(ctx, 1, testNow, custom); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Dashboard(ctx, 1, testNow, custom); err != nil {
		t.Fatal(err)
	}
	if store.sumCalls <= before+1 {
		t.Error("custom range should not be cached")
	}
}
