package core

// Summary is the unwindowed rollup shown on the dashboard.
type Summary struct {
	Balance      float64 `json:"balance"`
	Income       float64 `json:"income"`
	Expense      float64 `json:"expense"`
	MonthIncome  float64 `json:"monthIncome"`
	MonthExpense float64 `json:"monthExpense"`
}

// Series is chart data. The three slices always have the same length.
type Series struct {
	Labels  []string  `json:"labels"`
	Income  []float64 `json:"income"`
	Expense []float64 `json:"expense"`
}

// Len returns the number of periods.
func (s Series) Len() int {
	return len(s.Labels)
}

// GoalView pairs a goal with its progress percentage.
type GoalView struct {
	Goal
	Progress float64 `json:"progress"`
}
