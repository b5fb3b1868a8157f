package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"antspend/internal/amqp"
	"antspend/internal/core"
	"antspend/internal/log"
	"antspend/internal/storage"
)

// AlertPublisher pushes budget alerts to the broker. *amqp.Client satisfies
// it; tests use a fake.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// AlertStore is the slice of the repository the alert check reads.
type AlertStore interface {
	GetBudget(ctx context.Context, userID int64) (core.Budget, error)
	GetUserByID(ctx context.Context, userID int64) (core.User, error)
	SumExpenses(ctx context.Context, userID int64, from, to core.Date) (int64, int, error)
}

// AlertService decides after each expense mutation whether the owner has
// crossed their critical threshold and, if so, publishes a budget alert.
// It never fails the caller: a broken broker costs an alert, not a write.
type AlertService struct {
	store     AlertStore
	publisher AlertPublisher
	logger    *log.Logger
}

func NewAlertService(store AlertStore, publisher AlertPublisher, logger *log.Logger) *AlertService {
	return &AlertService{store: store, publisher: publisher, logger: logger}
}

// CheckAndNotify evaluates the user's current-month spend against their
// budget and publishes an alert when it reaches the critical threshold.
// Returns whether an alert was published, for tests and logging.
func (s *AlertService) CheckAndNotify(ctx context.Context, userID int64, now time.Time) bool {
	budget, err := s.store.GetBudget(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load budget for alert check",
			log.FieldUserID, userID, log.FieldError, err)
		return false
	}
	if !budget.AlertsEnabled {
		return false
	}

	from, to, _ := PeriodBounds(now, PeriodCurrentMonth)
	spentCents, _, err := s.store.SumExpenses(ctx, userID, from, to)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to sum spending for alert check",
			log.FieldUserID, userID, log.FieldError, err)
		return false
	}

	if spentCents < budget.CriticalCents() {
		return false
	}

	if s.publisher == nil {
		s.logger.WarnContext(ctx, "Broker unavailable, skipping budget alert",
			log.FieldUserID, userID)
		return false
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load user for alert",
			log.FieldUserID, userID, log.FieldError, err)
		return false
	}

	msg := amqp.NewBudgetAlertMessage(
		user.ID, user.Username, user.Email,
		budget.MonthlyLimit.Cents, spentCents,
		budget.PercentUsed(spentCents), budget.Status(spentCents),
	)
	if err := s.publisher.PublishBudgetAlert(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish budget alert",
			log.FieldUserID, userID, log.FieldError, err)
		return false
	}

	s.logger.InfoContext(ctx, "Budget alert published",
		log.FieldUserID, userID,
		"percent_used", fmt.Sprintf("%.1f", budget.PercentUsed(spentCents)))
	return true
}
