package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

type (
	// Date is a calendar day; the time-of-day component is always midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Category is a shared label attachable to expenses.
	Category struct {
		ID          int64
		Name        string
		Icon        string
		Color       string // hex triplet, e.g. #3B82F6
		Description string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Expense is a single spend recorded by a user. Always owner-scoped.
	Expense struct {
		ID          int64
		UserID      int64
		CategoryID  int64
		Amount      Money
		Date        Date
		Description string
		Location    string
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// Budget is the per-user monthly spending ceiling. One per user.
	Budget struct {
		ID              int64
		UserID          int64
		MonthlyLimit    Money
		WarningPercent  int
		CriticalPercent int
		AlertsEnabled   bool
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// User identity is owned by the auth subsystem; expenses and budgets
	// reference it by id.
	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}
)

// Budget status values ordered by severity.
const (
	BudgetSafe     = "safe"
	BudgetWarning  = "warning"
	BudgetCritical = "critical"
	BudgetExceeded = "exceeded"
)

const (
	DefaultWarningPercent  = 75
	DefaultCriticalPercent = 90
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidColor       = errors.New("invalid color")
	ErrDescriptionTooLong = errors.New("description too long (max 255 characters)")
	ErrInvalidPercentages = errors.New("warning percentage must be less than the critical percentage")
	ErrPercentOutOfRange  = errors.New("percentage must be between 1 and 100")
	ErrMissingCategory    = errors.New("missing category")
)

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// NewDate builds a Date from year, month and day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Before reports whether d falls on an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("name too long (max 100 characters)")
	}
	if !hexColor.MatchString(c.Color) {
		return ErrInvalidColor
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if e.CategoryID <= 0 {
		return ErrMissingCategory
	}
	if len(e.Description) > 255 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (b Budget) Validate() error {
	if err := b.MonthlyLimit.Validate(); err != nil {
		return err
	}
	if b.WarningPercent < 1 || b.WarningPercent > 100 ||
		b.CriticalPercent < 1 || b.CriticalPercent > 100 {
		return ErrPercentOutOfRange
	}
	if b.WarningPercent >= b.CriticalPercent {
		return ErrInvalidPercentages
	}
	return nil
}

// WarningCents is the spend level that flips the budget to warning state.
func (b Budget) WarningCents() int64 {
	return b.MonthlyLimit.Cents * int64(b.WarningPercent) / 100
}

// CriticalCents is the spend level that flips the budget to critical state.
func (b Budget) CriticalCents() int64 {
	return b.MonthlyLimit.Cents * int64(b.CriticalPercent) / 100
}

// Status classifies the given current spend against the budget thresholds.
func (b Budget) Status(spentCents int64) string {
	switch {
	case spentCents >= b.MonthlyLimit.Cents:
		return BudgetExceeded
	case spentCents >= b.CriticalCents():
		return BudgetCritical
	case spentCents >= b.WarningCents():
		return BudgetWarning
	default:
		return BudgetSafe
	}
}

// PercentUsed returns the unclamped share of the limit consumed by spentCents.
// The limit is validated to be positive, so the guard is for zero-value budgets.
func (b Budget) PercentUsed(spentCents int64) float64 {
	if b.MonthlyLimit.Cents <= 0 {
		return 0
	}
	return float64(spentCents) / float64(b.MonthlyLimit.Cents) * 100
}

// Remaining returns what is left of the limit, never negative.
func (b Budget) Remaining(spentCents int64) Money {
	rem := b.MonthlyLimit.Cents - spentCents
	if rem < 0 {
		rem = 0
	}
	return Money{Cents: rem}
}
