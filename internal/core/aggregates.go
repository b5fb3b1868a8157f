package core

// ExpenseDetail is an expense joined with its category, as rendered in lists
// and exports.
type ExpenseDetail struct {
	Expense
	CategoryName  string
	CategoryColor string
	CategoryIcon  string
}

// CategorySum is one slice of the category breakdown for a period.
type CategorySum struct {
	CategoryID int64
	Name       string
	Color      string
	Amount     Money
	Count      int
}

// DailyTotal is one point of the spending trend series. Only days with at
// least one expense produce a point.
type DailyTotal struct {
	Date   Date
	Amount Money
}

// ExpenseFilter is a normalized predicate over a user's expenses. Zero value
// matches everything.
type ExpenseFilter struct {
	From       Date
	To         Date
	HasRange   bool
	CategoryID int64 // 0 = all categories
	MinCents   int64
	MaxCents   int64
	HasMin     bool
	HasMax     bool
}

// Active reports whether the filter constrains anything.
func (f ExpenseFilter) Active() bool {
	return f.HasRange || f.CategoryID != 0 || f.HasMin || f.HasMax
}
