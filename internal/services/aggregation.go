package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"antspend/internal/cache"
	"antspend/internal/core"
	"antspend/internal/log"
	"antspend/internal/storage"
)

// DashboardStore is the slice of the repository the aggregation service
// reads from.
type DashboardStore interface {
	SumExpenses(ctx context.Context, userID int64, from, to core.Date) (int64, int, error)
	CategorySummary(ctx context.Context, userID int64, from, to core.Date) ([]core.CategorySum, error)
	DailyTotals(ctx context.Context, userID int64, from, to core.Date) ([]core.DailyTotal, error)
	RecentExpenses(ctx context.Context, userID int64, limit int) ([]core.ExpenseDetail, error)
	GetBudget(ctx context.Context, userID int64) (core.Budget, error)
}

// BudgetUsage is the dashboard's view of a budget against current-month
// spending. Percent stays unclamped so "120%" renders honestly; BarPercent
// is capped for the progress bar width.
type BudgetUsage struct {
	Limit      core.Money
	Spent      core.Money
	Remaining  core.Money
	Percent    float64
	BarPercent float64
	Status     string
}

// Dashboard is everything the metrics partial and charts need for one
// (user, period) pair.
type Dashboard struct {
	Period       string
	Label        string
	From         core.Date
	To           core.Date
	Total        core.Money
	Count        int
	DailyAverage core.Money
	Categories   []core.CategorySum
	Daily        []core.DailyTotal
	Recent       []core.ExpenseDetail
	Budget       *BudgetUsage
}

const recentExpenseLimit = 10

// AggregationService computes dashboard metrics with a per-(user,period)
// cache in front of the repository.
type AggregationService struct {
	store  DashboardStore
	cache  cache.Cache[Dashboard]
	logger *log.Logger
}

func NewAggregationService(store DashboardStore, c cache.Cache[Dashboard], logger *log.Logger) *AggregationService {
	return &AggregationService{store: store, cache: c, logger: logger}
}

func dashboardKey(userID int64, period string) string {
	return fmt.Sprintf("dashboard:%d:%s", userID, period)
}

// Dashboard builds the metrics for the given normalized filter. Shorthand
// periods are served from cache when possible; custom ranges always hit the
// repository since their keyspace is unbounded.
func (s *AggregationService) Dashboard(ctx context.Context, userID int64, now time.Time, nf NormalizedFilter) (Dashboard, error) {
	cacheable := nf.Period != PeriodCustom && s.cache != nil
	key := dashboardKey(userID, nf.Period)

	if cacheable {
		if d, ok := s.cache.Get(key); ok {
			return d, nil
		}
	}

	d, err := s.build(ctx, userID, now, nf)
	if err != nil {
		return Dashboard{}, err
	}

	if cacheable {
		s.cache.Set(key, d)
	}
	return d, nil
}

func (s *AggregationService) build(ctx context.Context, userID int64, now time.Time, nf NormalizedFilter) (Dashboard, error) {
	from, to := nf.Filter.From, nf.Filter.To

	totalCents, count, err := s.store.SumExpenses(ctx, userID, from, to)
	if err != nil {
		return Dashboard{}, fmt.Errorf("sum expenses: %w", err)
	}

	categories, err := s.store.CategorySummary(ctx, userID, from, to)
	if err != nil {
		return Dashboard{}, fmt.Errorf("category summary: %w", err)
	}

	daily, err := s.store.DailyTotals(ctx, userID, from, to)
	if err != nil {
		return Dashboard{}, fmt.Errorf("daily totals: %w", err)
	}

	recent, err := s.store.RecentExpenses(ctx, userID, recentExpenseLimit)
	if err != nil {
		return Dashboard{}, fmt.Errorf("recent expenses: %w", err)
	}

	d := Dashboard{
		Period:       nf.Period,
		Label:        nf.Label,
		From:         from,
		To:           to,
		Total:        core.Money{Cents: totalCents},
		Count:        count,
		DailyAverage: core.Money{Cents: dailyAverageCents(totalCents, nf.Period, now, from, to)},
		Categories:   categories,
		Daily:        daily,
		Recent:       recent,
	}

	usage, err := s.budgetUsage(ctx, userID, now)
	if err != nil {
		return Dashboard{}, err
	}
	d.Budget = usage

	return d, nil
}

// dailyAverageCents divides the total over the period's days. The current
// month only counts days elapsed so far, so mid-month averages stay honest.
func dailyAverageCents(totalCents int64, period string, now time.Time, from, to core.Date) int64 {
	var days int64
	if period == PeriodCurrentMonth {
		days = int64(now.Day())
	} else {
		days = int64(to.Time.Sub(from.Time).Hours()/24) + 1
	}
	if days <= 0 {
		return 0
	}
	return totalCents / days
}

// budgetUsage compares the budget to current-month spending regardless of
// the selected period. Nil when the user has no budget.
func (s *AggregationService) budgetUsage(ctx context.Context, userID int64, now time.Time) (*BudgetUsage, error) {
	budget, err := s.store.GetBudget(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}

	from, to, _ := PeriodBounds(now, PeriodCurrentMonth)
	spentCents, _, err := s.store.SumExpenses(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("sum current month: %w", err)
	}

	percent := budget.PercentUsed(spentCents)
	bar := percent
	if bar > 100 {
		bar = 100
	}

	return &BudgetUsage{
		Limit:      budget.MonthlyLimit,
		Spent:      core.Money{Cents: spentCents},
		Remaining:  budget.Remaining(spentCents),
		Percent:    percent,
		BarPercent: bar,
		Status:     budget.Status(spentCents),
	}, nil
}

// Invalidate drops every cached period for the user. Called after any
// expense or budget mutation.
func (s *AggregationService) Invalidate(userID int64) {
	if s.cache == nil {
		return
	}
	n := s.cache.DeletePrefix(fmt.Sprintf("dashboard:%d:", userID))
	if n > 0 && s.logger != nil {
		s.logger.Debug("Invalidated dashboard cache", log.FieldUserID, userID, "entries", n)
	}
}
