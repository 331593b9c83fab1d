package aggregate

import (
	"math"
	"time"

	"pocketplan/internal/core"
)

// Summarize totals every transaction regardless of date. Month figures cover
// the calendar month containing now.
func (b *Bucketer) Summarize(txs []core.Transaction, baseBalance float64, now time.Time) core.Summary {
	var s core.Summary
	now = now.In(b.loc())
	for _, tx := range txs {
		amount := tx.Amount.Float()
		inMonth := false
		if t, ok := b.EffectiveDate(tx); ok {
			inMonth = t.Year() == now.Year() && t.Month() == now.Month()
		}
		switch tx.Type {
		case core.Income:
			s.Income += amount
			if inMonth {
				s.MonthIncome += amount
			}
		case core.Expense:
			s.Expense += amount
			if inMonth {
				s.MonthExpense += amount
			}
		}
	}
	s.Balance = baseBalance + s.Income - s.Expense
	return s
}

// GoalProgress is the rounded percentage of target reached, in [0, 100].
// Saving goals that track no amount of their own measure the balance.
func GoalProgress(g core.Goal, balance float64) float64 {
	target := g.Target.Float()
	if target <= 0 || math.IsNaN(target) {
		return 0
	}
	current := g.Amount.Float()
	if g.Type == core.Saving && current <= 0 {
		current = balance
	}
	pct := math.Round(current / target * 100)
	return math.Max(0, math.Min(100, pct))
}

// GoalViews attaches progress to each goal.
func GoalViews(goals []core.Goal, balance float64) []core.GoalView {
	out := make([]core.GoalView, 0, len(goals))
	for _, g := range goals {
		out = append(out, core.GoalView{Goal: g, Progress: GoalProgress(g, balance)})
	}
	return out
}
