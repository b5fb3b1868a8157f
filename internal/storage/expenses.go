package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"antspend/internal/core"
)

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (user_id, category_id, amount_cents, date, description, location)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.CategoryID, e.Amount.Cents, e.Date.String(), e.Description, e.Location)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: last insert id: %w", err)
	}
	return r.GetExpense(ctx, id, e.UserID)
}

func (r *Repository) GetExpense(ctx context.Context, id, userID int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, category_id, amount_cents, date, description, location, created_at, updated_at
		FROM expenses WHERE id = ? AND user_id = ?`, id, userID)

	e, err := scanExpense(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func scanExpense(scan func(dest ...any) error) (core.Expense, error) {
	var (
		e       core.Expense
		rawDate string
	)
	err := scan(&e.ID, &e.UserID, &e.CategoryID, &e.Amount.Cents, &rawDate,
		&e.Description, &e.Location, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(rawDate)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse stored date %q: %w", rawDate, err)
	}
	e.Date = d
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET category_id = ?, amount_cents = ?, date = ?, description = ?, location = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`,
		e.CategoryID, e.Amount.Cents, e.Date.String(), e.Description, e.Location,
		e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// filterClauses translates an ExpenseFilter into extra WHERE fragments.
func filterClauses(f core.ExpenseFilter) (string, []any) {
	var (
		parts []string
		args  []any
	)
	if f.HasRange {
		parts = append(parts, "e.date >= ?", "e.date <= ?")
		args = append(args, f.From.String(), f.To.String())
	}
	if f.CategoryID != 0 {
		parts = append(parts, "e.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.HasMin {
		parts = append(parts, "e.amount_cents >= ?")
		args = append(args, f.MinCents)
	}
	if f.HasMax {
		parts = append(parts, "e.amount_cents <= ?")
		args = append(args, f.MaxCents)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(parts, " AND "), args
}

// ListExpenses returns the user's expenses matching the filter, newest first,
// joined with their category names and colors for display.
func (r *Repository) ListExpenses(ctx context.Context, userID int64, f core.ExpenseFilter) ([]core.ExpenseDetail, error) {
	where, args := filterClauses(f)
	query := `
		SELECT e.id, e.user_id, e.category_id, e.amount_cents, e.date,
		       e.description, e.location, e.created_at, e.updated_at,
		       c.name, c.color, c.icon
		FROM expenses e JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ?` + where + `
		ORDER BY e.date DESC, e.id DESC`

	rows, err := r.db.QueryContext(ctx, query, append([]any{userID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	return collectDetails(rows)
}

// RecentExpenses returns the user's most recent expenses by date, capped at limit.
func (r *Repository) RecentExpenses(ctx context.Context, userID int64, limit int) ([]core.ExpenseDetail, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.user_id, e.category_id, e.amount_cents, e.date,
		       e.description, e.location, e.created_at, e.updated_at,
		       c.name, c.color, c.icon
		FROM expenses e JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ?
		ORDER BY e.date DESC, e.id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent expenses: %w", err)
	}
	defer rows.Close()

	return collectDetails(rows)
}

func collectDetails(rows *sql.Rows) ([]core.ExpenseDetail, error) {
	var out []core.ExpenseDetail
	for rows.Next() {
		var (
			d       core.ExpenseDetail
			rawDate string
		)
		err := rows.Scan(&d.ID, &d.UserID, &d.CategoryID, &d.Amount.Cents, &rawDate,
			&d.Description, &d.Location, &d.CreatedAt, &d.UpdatedAt,
			&d.CategoryName, &d.CategoryColor, &d.CategoryIcon)
		if err != nil {
			return nil, fmt.Errorf("scan expense row: %w", err)
		}
		date, err := core.ParseDate(rawDate)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", rawDate, err)
		}
		d.Date = date
		out = append(out, d)
	}
	return out, rows.Err()
}

// SumExpenses returns the total cents and count of a user's expenses in the
// inclusive date range.
func (r *Repository) SumExpenses(ctx context.Context, userID int64, from, to core.Date) (int64, int, error) {
	var (
		total int64
		count int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0), COUNT(*)
		FROM expenses
		WHERE user_id = ? AND date >= ? AND date <= ?`,
		userID, from.String(), to.String()).Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total, count, nil
}

// CategorySummary aggregates a user's spending per category over the range,
// largest total first.
func (r *Repository) CategorySummary(ctx context.Context, userID int64, from, to core.Date) ([]core.CategorySum, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.color, SUM(e.amount_cents), COUNT(*)
		FROM expenses e JOIN categories c ON c.id = e.category_id
		WHERE e.user_id = ? AND e.date >= ? AND e.date <= ?
		GROUP BY c.id, c.name, c.color
		ORDER BY SUM(e.amount_cents) DESC`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
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

// DailyTotals returns per-day spending in the range, only for days that have
// at least one expense, ascending by date.
func (r *Repository) DailyTotals(ctx context.Context, userID int64, from, to core.Date) ([]core.DailyTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, SUM(amount_cents)
		FROM expenses
		WHERE user_id = ? AND date >= ? AND date <= ?
		GROUP BY date
		ORDER BY date`,
		userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	var out []core.DailyTotal
	for rows.Next() {
		var (
			t       core.DailyTotal
			rawDate string
		)
		if err := rows.Scan(&rawDate, &t.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan daily total: %w", err)
		}
		d, err := core.ParseDate(rawDate)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", rawDate, err)
		}
		t.Date = d
		out = append(out, t)
	}
	return out, rows.Err()
}
