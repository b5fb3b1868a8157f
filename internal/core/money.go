package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ParseDecimalToCents converts a user-supplied decimal amount ("12.50",
// "12,50", "7") into integer cents. More than two fraction digits is an
// error rather than a silent rounding.
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	// Accept comma as decimal separator.
	s = strings.ReplaceAll(s, ",", ".")

	whole, frac, found := strings.Cut(s, ".")
	if strings.Contains(frac, ".") {
		return 0, ErrInvalidAmount
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if units < 0 {
		return 0, ErrInvalidAmount
	}

	cents := units * 100
	if found && frac != "" {
		if len(frac) > 2 {
			return 0, errors.New("amount has more than two decimal places")
		}
		f, err := strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, ErrInvalidAmount
		}
		if len(frac) == 1 {
			f *= 10
		}
		cents += f
	}
	return cents, nil
}

// Float returns the amount as a decimal number of currency units. Used only
// at JSON boundaries; internal arithmetic stays in cents.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100
}

// String formats the amount as a plain decimal, e.g. "12.50".
func (m Money) String() string {
	neg := m.Cents < 0
	c := m.Cents
	if neg {
		c = -c
	}
	s := fmt.Sprintf("%d.%02d", c/100, c%100)
	if neg {
		return "-" + s
	}
	return s
}
