package aggregate

import (
	"testing"
	"time"

	"pocketplan/internal/core"
)

func TestSummarizeBalance(t *testing.T) {
	b := New(time.UTC, core.LocaleEN)
	txs := []core.Transaction{
		tx(core.Income, 300, "2024-03-01"),
		tx(core.Income, 200, "2025-01-05"),
		tx(core.Expense, 150, "2025-01-06"),
		tx(core.Expense, 50, "garbage"), // undated records still count
	}
	now := time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC)
	got := b.Summarize(txs, 1000, now)

	if got.Balance != 1300 {
		t.Fatalf("balance = %v, want 1300", got.Balance)
	}
	if got.Income != 500 || got.Expense != 200 {
		t.Fatalf("income/expense = %v/%v, want 500/200", got.Income, got.Expense)
	}
	if got.MonthIncome != 200 || got.MonthExpense != 150 {
		t.Fatalf("month income/expense = %v/%v, want 200/150", got.MonthIncome, got.MonthExpense)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	b := New(time.UTC, core.LocaleEN)
	got := b.Summarize(nil, 250, time.Now())
	if got != (core.Summary{Balance: 250}) {
		t.Fatalf("got %+v", got)
	}
}

func TestGoalProgress(t *testing.T) {
	cases := []struct {
		name    string
		goal    core.Goal
		balance float64
		want    float64
	}{
		{"quarter", core.Goal{Type: core.ExpenseGoal, Amount: 50, Target: 200}, 0, 25},
		{"over target clamps", core.Goal{Type: core.Saving, Amount: 300, Target: 200}, 0, 100},
		{"rounds", core.Goal{Type: core.ExpenseGoal, Amount: 1, Target: 3}, 0, 33},
		{"zero target", core.Goal{Type: core.Saving, Amount: 10, Target: 0}, 0, 0},
		{"saving uses balance", core.Goal{Type: core.Saving, Target: 1000}, 500, 50},
		{"negative balance clamps", core.Goal{Type: core.Saving, Target: 1000}, -100, 0},
		{"expense goal ignores balance", core.Goal{Type: core.ExpenseGoal, Target: 1000}, 500, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GoalProgress(tc.goal, tc.balance); got != tc.want {
				t.Fatalf("GoalProgress = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGoalViews(t *testing.T) {
	views := GoalViews([]core.Goal{{ID: "g1", Type: core.Saving, Amount: 10, Target: 20}}, 0)
	if len(views) != 1 || views[0].ID != "g1" || views[0].Progress != 50 {
		t.Fatalf("unexpected views %+v", views)
	}
}

func TestFilterTransactions(t *testing.T) {
	b := New(time.UTC, core.LocaleEN)
	txs := []core.Transaction{
		{ID: "a", Category: "Food", Type: core.Expense, Amount: 10, Date: core.ISODay("2025-01-02")},
		{ID: "b", Category: "Salary", Type: core.Income, Amount: 100, Date: core.ISODay("2025-01-05")},
		{ID: "c", Category: "Misc", Type: core.Expense, Amount: 5, Description: "food truck", CreatedAt: "2025-01-03T00:00:00Z"},
		{ID: "d", Category: "Unknown", Type: core.Expense, Amount: 1},
	}

	ids := func(list []core.Transaction) string {
		s := ""
		for _, tx := range list {
			s += tx.ID
		}
		return s
	}

	if got := ids(b.FilterTransactions(txs, Query{})); got != "bcad" {
		t.Fatalf("newest order = %s, want bcad", got)
	}
	if got := ids(b.FilterTransactions(txs, Query{Order: OrderOldest})); got != "dacb" {
		t.Fatalf("oldest order = %s, want dacb", got)
	}
	if got := ids(b.FilterTransactions(txs, Query{Search: "FOOD"})); got != "ca" {
		t.Fatalf("search = %s, want ca", got)
	}
	if got := ids(b.FilterTransactions(txs, Query{Search: "income"})); got != "b" {
		t.Fatalf("search by type = %s, want b", got)
	}
	if got := ids(b.FilterTransactions(txs, Query{Type: "Expense", Order: OrderOldest})); got != "dac" {
		t.Fatalf("type filter = %s, want dac", got)
	}
	if txs[0].ID != "a" {
		t.Fatalf("input reordered")
	}
}

func TestFilterGoals(t *testing.T) {
	b := New(time.UTC, core.LocaleEN)
	goals := []core.Goal{
		{ID: "1", Name: "Laptop", Type: core.Saving, CreatedAt: "2025-01-01T00:00:00Z"},
		{ID: "2", Name: "Dining cap", Type: core.ExpenseGoal, CreatedAt: "2025-02-01T00:00:00Z"},
	}
	got := b.FilterGoals(goals, Query{Type: "Saving"})
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("type filter = %+v", got)
	}
	got = b.FilterGoals(goals, Query{})
	if got[0].ID != "2" {
		t.Fatalf("newest first expected, got %+v", got)
	}
}
