package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"antspend/internal/core"
)

func (r *Repository) GetBudget(ctx context.Context, userID int64) (core.Budget, error) {
	var b core.Budget
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, monthly_limit_cents, warning_percent, critical_percent,
		       alerts_enabled, created_at, updated_at
		FROM budgets WHERE user_id = ?`, userID).
		Scan(&b.ID, &b.UserID, &b.MonthlyLimit.Cents, &b.WarningPercent, &b.CriticalPercent,
			&b.AlertsEnabled, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// UpsertBudget creates the user's budget or updates the existing one, keeping
// the one-budget-per-user invariant.
func (r *Repository) UpsertBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, monthly_limit_cents, warning_percent, critical_percent, alerts_enabled)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			monthly_limit_cents = excluded.monthly_limit_cents,
			warning_percent = excluded.warning_percent,
			critical_percent = excluded.critical_percent,
			alerts_enabled = excluded.alerts_enabled,
			updated_at = CURRENT_TIMESTAMP`,
		b.UserID, b.MonthlyLimit.Cents, b.WarningPercent, b.CriticalPercent, b.AlertsEnabled)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}
	return r.GetBudget(ctx, b.UserID)
}
