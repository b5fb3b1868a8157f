package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"antspend/internal/core"
	"antspend/internal/storage"
)

type fakeReportStore struct {
	user       core.User
	userErr    error
	budget     core.Budget
	budgetErr  error
	active     []storage.ActiveUserRow
	since      core.Date
	expenses   []core.ExpenseDetail
	months     []storage.MonthlySummaryRow
	categories []core.CategorySum
	totalCents int64
	count      int
}

func (f *fakeReportStore) GetUserByID(context.Context, int64) (core.User, error) {
	return f.user, f.userErr
}

func (f *fakeReportStore) GetBudget(context.Context, int64) (core.Budget, error) {
	return f.budget, f.budgetErr
}

func (f *fakeReportStore) ActiveUsers(_ context.Context, since core.Date) ([]storage.ActiveUserRow, error) {
	f.since = since
	return f.active, nil
}

func (f *fakeReportStore) ListExpenses(context.Context, int64, core.ExpenseFilter) ([]core.ExpenseDetail, error) {
	return f.expenses, nil
}

func (f *fakeReportStore) MonthlySummaries(context.Context, int64) ([]storage.MonthlySummaryRow, error) {
	return f.months, nil
}

func (f *fakeReportStore) AllTimeCategorySummary(context.Context, int64) ([]core.CategorySum, error) {
	return f.categories, nil
}

func (f *fakeReportStore) AllTimeTotal(context.Context, int64) (int64, int, error) {
	return f.totalCents, f.count, nil
}

func TestActiveUsersReport(t *testing.T) {
	store := &fakeReportStore{
		active: []storage.ActiveUserRow{
			{
				User:            core.User{ID: 1, Username: "alice", Email: "alice@example.com"},
				Budget:          core.Budget{MonthlyLimit: core.Money{Cents: 100000}, AlertsEnabled: true},
				LastExpenseDate: core.NewDate(2026, 8, 14),
				ExpenseCount:    12,
			},
		},
	}
	svc := NewReportService(store)

	report, err := svc.ActiveUsers(context.Background(), testNow)
	if err != nil {
		t.Fatalf("ActiveUsers: %v", err)
	}

	if store.since.String() != "2026-07-16" {
		t.Errorf("cutoff = %s, want 30 days before now", store.since)
	}
	if report.TotalActiveUsers != 1 || len(report.Users) != 1 {
		t.Fatalf("TotalActiveUsers = %d", report.TotalActiveUsers)
	}

	u := report.Users[0]
	if u.Username != "alice" || u.MonthlyLimit != 1000.0 || !u.AlertsEnabled {
		t.Errorf("unexpected entry: %+v", u)
	}
	if u.LastExpenseDate != "2026-08-14" || u.RecentExpenses != 12 {
		t.Errorf("unexpected activity fields: %+v", u)
	}
	if report.Criteria == "" {
		t.Error("criteria should describe the selection")
	}
}

func TestActiveUsersReportEmpty(t *testing.T) {
	svc := NewReportService(&fakeReportStore{})

	report, err := svc.ActiveUsers(context.Background(), testNow)
	if err != nil {
		t.Fatalf("ActiveUsers: %v", err)
	}
	if report.TotalActiveUsers != 0 {
		t.Errorf("TotalActiveUsers = %d, want 0", report.TotalActiveUsers)
	}
	if report.Users == nil {
		t.Error("Users should marshal as [] not null")
	}
}

func TestUserCompleteReport(t *testing.T) {
	memberSince := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeReportStore{
		user: core.User{ID: 7, Username: "bob", Email: "bob@example.com", CreatedAt: memberSince},
		budget: core.Budget{
			MonthlyLimit:    core.Money{Cents: 80000},
			WarningPercent:  75,
			CriticalPercent: 90,
			AlertsEnabled:   true,
		},
		totalCents: 20000,
		count:      4,
		months: []storage.MonthlySummaryRow{
			{Month: "2026-08", Amount: core.Money{Cents: 15000}, Count: 3},
			{Month: "2026-07", Amount: core.Money{Cents: 5000}, Count: 1},
		},
		categories: []core.CategorySum{
			{Name: "Groceries", Color: "#10B981", Amount: core.Money{Cents: 15000}, Count: 3},
			{Name: "Transport", Color: "#3B82F6", Amount: core.Money{Cents: 5000}, Count: 1},
		},
		expenses: []core.ExpenseDetail{
			{
				Expense: core.Expense{
					ID: 1, Amount: core.Money{Cents: 15000},
					Date: core.NewDate(2026, 8, 10), Description: "weekly shop",
				},
				CategoryName: "Groceries",
			},
		},
	}
	svc := NewReportService(store)

	report, err := svc.UserComplete(context.Background(), 7, testNow)
	if err != nil {
		t.Fatalf("UserComplete: %v", err)
	}

	if report.Username != "bob" || report.MemberSince != memberSince {
		t.Errorf("user fields: %+v", report)
	}
	if report.Budget.MonthlyLimit != 800.0 || report.Budget.CriticalPercent != 90 {
		t.Errorf("budget fields: %+v", report.Budget)
	}
	if report.TotalSpent != 200.0 || report.ExpenseCount != 4 {
		t.Errorf("totals: spent %v count %d", report.TotalSpent, report.ExpenseCount)
	}
	if len(report.MonthlySummaries) != 2 || report.MonthlySummaries[0].Month != "2026-08" {
		t.Errorf("monthly summaries: %+v", report.MonthlySummaries)
	}
	if len(report.CategoriesSummary) != 2 {
		t.Fatalf("categories: %+v", report.CategoriesSummary)
	}
	if report.CategoriesSummary[0].Percentage != 75.0 {
		t.Errorf("groceries percentage = %v, want 75", report.CategoriesSummary[0].Percentage)
	}
	if report.CategoriesSummary[1].Percentage != 25.0 {
		t.Errorf("transport percentage = %v, want 25", report.CategoriesSummary[1].Percentage)
	}
	if len(report.Expenses) != 1 || report.Expenses[0].Category != "Groceries" {
		t.Errorf("expenses: %+v", report.Expenses)
	}
	if report.Expenses[0].Date != "2026-08-10" {
		t.Errorf("expense date = %q", report.Expenses[0].Date)
	}
}

func TestUserCompleteNotFound(t *testing.T) {
	t.Run("missing user", func(t *testing.T) {
		svc := NewReportService(&fakeReportStore{userErr: storage.ErrNotFound})
		_, err := svc.UserComplete(context.Background(), 99, testNow)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("user without budget", func(t *testing.T) {
		svc := NewReportService(&fakeReportStore{
			user:      core.User{ID: 7, Username: "bob"},
			budgetErr: storage.ErrNotFound,
		})
		_, err := svc.UserComplete(context.Background(), 7, testNow)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})
}
