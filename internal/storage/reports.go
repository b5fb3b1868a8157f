package storage

import (
	"context"
	"fmt"

	"antspend/internal/core"
)

// ActiveUserRow is one user matching the active-user criteria: a budget with
// alerts enabled and at least one expense on or after the cutoff date.
type ActiveUserRow struct {
	User            core.User
	Budget          core.Budget
	LastExpenseDate core.Date
	ExpenseCount    int
}

func (r *Repository) ActiveUsers(ctx context.Context, since core.Date) ([]ActiveUserRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.created_at,
		       b.id, b.monthly_limit_cents, b.warning_percent, b.critical_percent, b.alerts_enabled,
		       MAX(e.date), COUNT(e.id)
		FROM users u
		JOIN budgets b ON b.user_id = u.id AND b.alerts_enabled = 1
		JOIN expenses e ON e.user_id = u.id AND e.date >= ?
		GROUP BY u.id
		ORDER BY u.username`, since.String())
	if err != nil {
		return nil, fmt.Errorf("active users: %w", err)
	}
	defer rows.Close()

	var out []ActiveUserRow
	for rows.Next() {
		var (
			a       ActiveUserRow
			rawDate string
		)
		err := rows.Scan(&a.User.ID, &a.User.Username, &a.User.Email, &a.User.CreatedAt,
			&a.Budget.ID, &a.Budget.MonthlyLimit.Cents, &a.Budget.WarningPercent,
			&a.Budget.CriticalPercent, &a.Budget.AlertsEnabled,
			&rawDate, &a.ExpenseCount)
		if err != nil {
			return nil, fmt.Errorf("scan active user: %w", err)
		}
		d, err := core.ParseDate(rawDate)
		if err != nil {
			return nil, fmt.Errorf("parse last expense date %q: %w", rawDate, err)
		}
		a.LastExpenseDate = d
		a.Budget.UserID = a.User.ID
		out = append(out, a)
	}
	return out, rows.Err()
}

// MonthlySummaryRow aggregates one calendar month of a user's spending.
type MonthlySummaryRow struct {
	Month  string // "2006-01"
	Amount core.Money
	Count  int
}

func (r *Repository) MonthlySummaries(ctx context.Context, userID int64) ([]MonthlySummaryRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT substr(date, 1, 7), SUM(amount_cents), COUNT(*)
		FROM expenses
		WHERE user_id = ?
		GROUP BY substr(date, 1, 7)
		ORDER BY substr(date, 1, 7) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("monthly summaries: %w", err)
	}
	defer rows.Close()

	var out []MonthlySummaryRow
	for rows.Next() {
		var m MonthlySummaryRow
		if err := rows.Scan(&m.Month, &m.Amount.Cents, &m.Count); err != nil {
			return nil, fmt.Errorf("scan monthly summary: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AllTimeCategorySummary aggregates the user's entire history per category,
// largest total first.
func (r *Repository) AllTimeCategorySummary(ctx context.Context, userID int64) ([]core.CategorySum, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.color, SUM(e.amount_cents), COUNT(*)
		FROM expenses e JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ?
		GROUP BY c.id, c.name, c.color
		ORDER BY SUM(e.amount_cents) DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("all-time category summary: %w", err)
	}
	defer rows.Close()

	var out []core.CategorySum
	for rows.Next() {
		var s core.CategorySum
		if err := rows.Scan(&s.CategoryID, &s.Name, &s.Color, &s.Amount.Cents, &s.Count); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AllTimeTotal returns the user's lifetime spending and expense count.
func (r *Repository) AllTimeTotal(ctx context.Context, userID int64) (int64, int, error) {
	var (
		total int64
		count int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0), COUNT(*) FROM expenses WHERE user_id = ?`,
		userID).Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("all-time total: %w", err)
	}
	return total, count, nil
}
