package services

import (
	"strconv"
	"time"

	"antspend/internal/core"
)

// Period names accepted by the filter and dashboard endpoints.
const (
	PeriodCurrentMonth = "current_month"
	PeriodLastMonth    = "last_month"
	PeriodLast7Days    = "last_7_days"
	PeriodLast30Days   = "last_30_days"
	PeriodCurrentYear  = "current_year"
	PeriodCustom       = "custom"
)

// FilterParams carries the raw query string values before validation.
type FilterParams struct {
	Period    string
	DateFrom  string
	DateTo    string
	Category  string
	MinAmount string
	MaxAmount string
}

// FieldErrors maps a form field name to its validation message. Empty means
// the parameters were valid.
type FieldErrors map[string]string

// NormalizedFilter is a validated filter plus its display label.
type NormalizedFilter struct {
	Period string
	Label  string
	Filter core.ExpenseFilter
}

var periodLabels = map[string]string{
	PeriodCurrentMonth: "This month",
	PeriodLastMonth:    "Last month",
	PeriodLast7Days:    "Last 7 days",
	PeriodLast30Days:   "Last 30 days",
	PeriodCurrentYear:  "This year",
	PeriodCustom:       "Custom range",
}

// PeriodBounds resolves a shorthand period to its inclusive date range,
// anchored at now. Current month and year run to their calendar end rather
// than today, so future-dated expenses inside the period stay visible.
// Custom is handled by NormalizeFilter since it needs explicit dates.
func PeriodBounds(now time.Time, period string) (core.Date, core.Date, bool) {
	today := core.Date{Time: now}
	switch period {
	case PeriodCurrentMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		last := first.AddDate(0, 1, -1)
		return core.Date{Time: first}, core.Date{Time: last}, true
	case PeriodLastMonth:
		firstOfThis := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		lastOfPrev := firstOfThis.AddDate(0, 0, -1)
		firstOfPrev := time.Date(lastOfPrev.Year(), lastOfPrev.Month(), 1, 0, 0, 0, 0, now.Location())
		return core.Date{Time: firstOfPrev}, core.Date{Time: lastOfPrev}, true
	case PeriodLast7Days:
		return core.Date{Time: now.AddDate(0, 0, -7)}, today, true
	case PeriodLast30Days:
		return core.Date{Time: now.AddDate(0, 0, -30)}, today, true
	case PeriodCurrentYear:
		first := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		last := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, now.Location())
		return core.Date{Time: first}, core.Date{Time: last}, true
	}
	return core.Date{}, core.Date{}, false
}

// NormalizeFilter validates raw query parameters into a usable filter.
// An empty period defaults to the current month. Validation problems come
// back as field-keyed messages so forms can show them inline.
func NormalizeFilter(now time.Time, p FilterParams) (NormalizedFilter, FieldErrors) {
	errs := FieldErrors{}

	period := p.Period
	if period == "" {
		period = PeriodCurrentMonth
	}

	var filter core.ExpenseFilter

	switch period {
	case PeriodCustom:
		if p.DateFrom == "" || p.DateTo == "" {
			errs["period"] = "Custom range requires both start and end dates"
			break
		}
		from, err := core.ParseDate(p.DateFrom)
		if err != nil {
			errs["date_from"] = "Invalid start date, expected YYYY-MM-DD"
		}
		to, err := core.ParseDate(p.DateTo)
		if err != nil {
			errs["date_to"] = "Invalid end date, expected YYYY-MM-DD"
		}
		if len(errs) > 0 {
			break
		}
		if to.Before(from) {
			errs["date_to"] = "End date must not be before start date"
			break
		}
		filter.From, filter.To, filter.HasRange = from, to, true
	default:
		from, to, ok := PeriodBounds(now, period)
		if !ok {
			errs["period"] = "Unknown period"
			break
		}
		filter.From, filter.To, filter.HasRange = from, to, true
	}

	if p.Category != "" {
		id, err := strconv.ParseInt(p.Category, 10, 64)
		if err != nil || id <= 0 {
			errs["category"] = "Invalid category"
		} else {
			filter.CategoryID = id
		}
	}

	if p.MinAmount != "" {
		cents, err := core.ParseDecimalToCents(p.MinAmount)
		if err != nil {
			errs["min_amount"] = "Invalid minimum amount"
		} else {
			filter.MinCents, filter.HasMin = cents, true
		}
	}
	if p.MaxAmount != "" {
		cents, err := core.ParseDecimalToCents(p.MaxAmount)
		if err != nil {
			errs["max_amount"] = "Invalid maximum amount"
		} else {
			filter.MaxCents, filter.HasMax = cents, true
		}
	}
	if filter.HasMin && filter.HasMax && filter.MinCents > filter.MaxCents {
		errs["max_amount"] = "Maximum amount must not be below minimum"
	}

	if len(errs) > 0 {
		return NormalizedFilter{}, errs
	}

	return NormalizedFilter{
		Period: period,
		Label:  periodLabels[period],
		Filter: filter,
	}, nil
}
