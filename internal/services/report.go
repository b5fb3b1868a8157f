package services

import (
	"context"
	"fmt"
	"time"

	"antspend/internal/core"
	"antspend/internal/storage"
)

const activeUserWindowDays = 30

// ReportStore is the slice of the repository the reporting API reads.
type ReportStore interface {
	GetUserByID(ctx context.Context, userID int64) (core.User, error)
	GetBudget(ctx context.Context, userID int64) (core.Budget, error)
	ActiveUsers(ctx context.Context, since core.Date) ([]storage.ActiveUserRow, error)
	ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.ExpenseDetail, error)
	MonthlySummaries(ctx context.Context, userID int64) ([]storage.MonthlySummaryRow, error)
	AllTimeCategorySummary(ctx context.Context, userID int64) ([]core.CategorySum, error)
	AllTimeTotal(ctx context.Context, userID int64) (int64, int, error)
}

// ReportService serves the token-authenticated reporting API.
type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// ActiveUserEntry is one active user in the report payload.
type ActiveUserEntry struct {
	ID              int64   `json:"id"`
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	MonthlyLimit    float64 `json:"monthly_limit"`
	AlertsEnabled   bool    `json:"alerts_enabled"`
	LastExpenseDate string  `json:"last_expense_date"`
	RecentExpenses  int     `json:"recent_expenses"`
}

// ActiveUsersReport is the GET /api/users/active/ payload.
type ActiveUsersReport struct {
	Users            []ActiveUserEntry `json:"users"`
	TotalActiveUsers int               `json:"total_active_users"`
	Timestamp        time.Time         `json:"timestamp"`
	Criteria         string            `json:"criteria"`
}

// ActiveUsers lists users with a budget, alerts enabled, and at least one
// expense within the trailing 30 days.
func (s *ReportService) ActiveUsers(ctx context.Context, now time.Time) (ActiveUsersReport, error) {
	since := core.Date{Time: now.AddDate(0, 0, -activeUserWindowDays)}

	rows, err := s.store.ActiveUsers(ctx, since)
	if err != nil {
		return ActiveUsersReport{}, fmt.Errorf("list active users: %w", err)
	}

	users := make([]ActiveUserEntry, 0, len(rows))
	for _, row := range rows {
		users = append(users, ActiveUserEntry{
			ID:              row.User.ID,
			Username:        row.User.Username,
			Email:           row.User.Email,
			MonthlyLimit:    row.Budget.MonthlyLimit.Float(),
			AlertsEnabled:   row.Budget.AlertsEnabled,
			LastExpenseDate: row.LastExpenseDate.String(),
			RecentExpenses:  row.ExpenseCount,
		})
	}

	return ActiveUsersReport{
		Users:            users,
		TotalActiveUsers: len(users),
		Timestamp:        now.UTC(),
		Criteria:         "budget configured, alerts enabled, expenses in last 30 days",
	}, nil
}

// BudgetReport is the budget section of a user snapshot.
type BudgetReport struct {
	MonthlyLimit    float64 `json:"monthly_limit"`
	WarningPercent  int     `json:"warning_percent"`
	CriticalPercent int     `json:"critical_percent"`
	AlertsEnabled   bool    `json:"alerts_enabled"`
}

// MonthlySummary is one calendar month in a user snapshot.
type MonthlySummary struct {
	Month string  `json:"month"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// CategorySummaryEntry is one category rollup with its share of total spend.
type CategorySummaryEntry struct {
	Name       string  `json:"name"`
	Color      string  `json:"color"`
	Total      float64 `json:"total"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ExpenseReport is one expense row in a user snapshot.
type ExpenseReport struct {
	ID          int64   `json:"id"`
	Amount      float64 `json:"amount"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
	Location    string  `json:"location,omitempty"`
}

// UserCompleteReport is the GET /api/users/{id}/complete/ payload.
type UserCompleteReport struct {
	ID                int64                  `json:"id"`
	Username          string                 `json:"username"`
	Email             string                 `json:"email"`
	MemberSince       time.Time              `json:"member_since"`
	Budget            BudgetReport           `json:"budget"`
	TotalSpent        float64                `json:"total_spent"`
	ExpenseCount      int                    `json:"expense_count"`
	MonthlySummaries  []MonthlySummary       `json:"monthly_summaries"`
	CategoriesSummary []CategorySummaryEntry `json:"categories_summary"`
	Expenses          []ExpenseReport        `json:"expenses"`
	Timestamp         time.Time              `json:"timestamp"`
}

// UserComplete builds the full snapshot for one user. Users without a
// budget are reported as not found, same as missing users.
func (s *ReportService) UserComplete(ctx context.Context, userID int64, now time.Time) (UserCompleteReport, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return UserCompleteReport{}, err
	}

	budget, err := s.store.GetBudget(ctx, userID)
	if err != nil {
		return UserCompleteReport{}, err
	}

	totalCents, count, err := s.store.AllTimeTotal(ctx, userID)
	if err != nil {
		return UserCompleteReport{}, fmt.Errorf("all-time total: %w", err)
	}

	months, err := s.store.MonthlySummaries(ctx, userID)
	if err != nil {
		return UserCompleteReport{}, fmt.Errorf("monthly summaries: %w", err)
	}
	monthly := make([]MonthlySummary, 0, len(months))
	for _, m := range months {
		monthly = append(monthly, MonthlySummary{
			Month: m.Month,
			Total: m.Amount.Float(),
			Count: m.Count,
		})
	}

	sums, err := s.store.AllTimeCategorySummary(ctx, userID)
	if err != nil {
		return UserCompleteReport{}, fmt.Errorf("category summary: %w", err)
	}
	categories := make([]CategorySummaryEntry, 0, len(sums))
	for _, sum := range sums {
		var pct float64
		if totalCents > 0 {
			pct = float64(sum.Amount.Cents) / float64(totalCents) * 100
		}
		categories = append(categories, CategorySummaryEntry{
			Name:       sum.Name,
			Color:      sum.Color,
			Total:      sum.Amount.Float(),
			Count:      sum.Count,
			Percentage: pct,
		})
	}

	details, err := s.store.ListExpenses(ctx, userID, core.ExpenseFilter{})
	if err != nil {
		return UserCompleteReport{}, fmt.Errorf("list expenses: %w", err)
	}
	expenses := make([]ExpenseReport, 0, len(details))
	for _, d := range details {
		expenses = append(expenses, ExpenseReport{
			ID:          d.ID,
			Amount:      d.Amount.Float(),
			Category:    d.CategoryName,
			Date:        d.Date.String(),
			Description: d.Description,
			Location:    d.Location,
		})
	}

	return UserCompleteReport{
		ID:                user.ID,
		Username:          user.Username,
		Email:             user.Email,
		MemberSince:       user.CreatedAt,
		Budget: BudgetReport{
			MonthlyLimit:    budget.MonthlyLimit.Float(),
			WarningPercent:  budget.WarningPercent,
			CriticalPercent: budget.CriticalPercent,
			AlertsEnabled:   budget.AlertsEnabled,
		},
		TotalSpent:        core.Money{Cents: totalCents}.Float(),
		ExpenseCount:      count,
		MonthlySummaries:  monthly,
		CategoriesSummary: categories,
		Expenses:          expenses,
		Timestamp:         now.UTC(),
	}, nil
}
