package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"antspend/internal/auth"
	"antspend/internal/core"
	"antspend/internal/log"
	"antspend/internal/services"
	"antspend/internal/storage"
)

// budgetErrorField maps a Budget.Validate error to the form field it
// concerns.
func budgetErrorField(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "monthly_limit"
	case errors.Is(err, core.ErrInvalidPercentages):
		return "warning_percent"
	case errors.Is(err, core.ErrPercentOutOfRange):
		return "critical_percent"
	}
	return "monthly_limit"
}

func (s *Server) handleBudgetForm(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	budget, err := s.store.GetBudget(r.Context(), user.ID)
	hasBudget := true
	if errors.Is(err, storage.ErrNotFound) {
		hasBudget = false
		budget = core.Budget{
			WarningPercent:  core.DefaultWarningPercent,
			CriticalPercent: core.DefaultCriticalPercent,
			AlertsEnabled:   true,
		}
	} else if err != nil {
		s.logger.ErrorContext(r.Context(), "Get budget failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		InternalServerError("Failed to load budget").Write(w)
		return
	}

	data := struct {
		HasBudget bool
		Budget    core.Budget
		Limit     string
	}{
		HasBudget: hasBudget,
		Budget:    budget,
		Limit:     budget.MonthlyLimit.String(),
	}
	s.render(w, r, "budget_form.html", data)
}

// handleSaveBudget creates or updates the user's single budget.
func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	user, _ := auth.UserFromContext(r.Context())

	errs := services.FieldErrors{}

	limitCents, err := core.ParseDecimalToCents(sanitizeInput(r.Form.Get("monthly_limit")))
	if err != nil || limitCents <= 0 {
		errs["monthly_limit"] = "Monthly limit must be a positive amount"
	}

	warning := core.DefaultWarningPercent
	critical := core.DefaultCriticalPercent
	if v := sanitizeInput(r.Form.Get("warning_percent")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			warning = n
		} else {
			errs["warning_percent"] = "Warning threshold must be a whole number"
		}
	}
	if v := sanitizeInput(r.Form.Get("critical_percent")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			critical = n
		} else {
			errs["critical_percent"] = "Critical threshold must be a whole number"
		}
	}
	if len(errs) > 0 {
		s.renderFormErrors(w, r, errs)
		return
	}

	budget := core.Budget{
		UserID:          user.ID,
		MonthlyLimit:    core.Money{Cents: limitCents},
		WarningPercent:  warning,
		CriticalPercent: critical,
		AlertsEnabled:   r.Form.Get("alerts_enabled") != "",
	}
	if err := budget.Validate(); err != nil {
		errs[budgetErrorField(err)] = err.Error()
		s.renderFormErrors(w, r, errs)
		return
	}

	saved, err := s.store.UpsertBudget(r.Context(), budget)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Save budget failed",
			log.FieldError, err, log.FieldUserID, user.ID)
		InternalServerError("Failed to save budget").Write(w)
		return
	}

	s.aggregation.Invalidate(user.ID)
	if s.alerts != nil {
		s.alerts.CheckAndNotify(r.Context(), user.ID, time.Now())
	}
	s.logger.InfoContext(r.Context(), "Budget saved",
		log.FieldUserID, user.ID, log.FieldAmountCents, saved.MonthlyLimit.Cents)

	NewHTMXResponse().
		TriggerBudgetSaved().
		TriggerPageRefresh().
		TriggerSuccessNotification("Budget saved").
		BodyHTML(`<div class="success">Budget saved</div>`).
		Write(w)
}
