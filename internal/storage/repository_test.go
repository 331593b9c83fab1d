package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"pocketplan/internal/core"
	"pocketplan/internal/store"
)

var _ store.Store = (*SQLiteRepository)(nil)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "pocketplan.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteTransactions(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	first, err := repo.CreateTransaction(ctx, "u1", core.Transaction{
		Category: "Food", Type: core.Expense, Amount: 30, Date: core.ISODay("2025-01-02"), Description: "lunch",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID == "" || first.CreatedAt == "" {
		t.Fatalf("expected id and createdAt, got %+v", first)
	}
	if _, err := repo.CreateTransaction(ctx, "u1", core.Transaction{
		Category: "Salary", Type: core.Income, Amount: 150, Date: core.ISODay("2025-01-05"),
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.CreateTransaction(ctx, "u2", core.Transaction{Type: core.Income, Amount: 1}); err != nil {
		t.Fatalf("create other user: %v", err)
	}

	list, err := repo.ListTransactions(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Category != "Salary" {
		t.Fatalf("expected newest first, got %+v", list)
	}
	if list[1].Date.Kind != core.DateISODay || list[1].Date.Text != "2025-01-02" || list[1].Description != "lunch" {
		t.Fatalf("round trip lost fields: %+v", list[1])
	}

	amt := core.Amount(45)
	updated, err := repo.UpdateTransaction(ctx, "u1", first.ID, core.TransactionPatch{Amount: &amt})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Amount != 45 || updated.Category != "Food" {
		t.Fatalf("unexpected update %+v", updated)
	}

	if _, err := repo.UpdateTransaction(ctx, "u2", first.ID, core.TransactionPatch{Amount: &amt}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("cross-user update: expected ErrNotFound, got %v", err)
	}

	if err := repo.DeleteTransaction(ctx, "u1", first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, "u1", first.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteEpochDatesKeepInstant(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	if _, err := repo.CreateTransaction(ctx, "u1", core.Transaction{Type: core.Income, Amount: 1, Date: core.EpochMillis(1736294400000)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, _ := repo.ListTransactions(ctx, "u1")
	if len(list) != 1 || list[0].Date.Kind != core.DateText || list[0].Date.Text != "2025-01-08T00:00:00Z" {
		t.Fatalf("unexpected stored date %+v", list)
	}
}

func TestSQLiteGoalsAndProfile(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	g, err := repo.CreateGoal(ctx, "u1", core.Goal{Name: "laptop", Type: core.Saving, Target: 1000})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := repo.CreateGoal(ctx, "u1", core.Goal{Name: "Bike", Type: core.Saving, Target: 300}); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	goals, _ := repo.ListGoals(ctx, "u1")
	if len(goals) != 2 || goals[0].Name != "Bike" {
		t.Fatalf("expected name order, got %+v", goals)
	}

	amount := core.Amount(250)
	updated, err := repo.UpdateGoal(ctx, "u1", g.ID, core.GoalPatch{Amount: &amount})
	if err != nil || updated.Amount != 250 || updated.Target != 1000 {
		t.Fatalf("update goal: %+v %v", updated, err)
	}
	if err := repo.DeleteGoal(ctx, "u1", g.ID); err != nil {
		t.Fatalf("delete goal: %v", err)
	}

	p, err := repo.GetProfile(ctx, "u1")
	if err != nil || p.BaseBalance != 0 {
		t.Fatalf("default profile: %+v %v", p, err)
	}
	for _, bal := range []float64{1000, 1250.5} {
		if err := repo.SaveProfile(ctx, core.Profile{UserID: "u1", BaseBalance: bal}); err != nil {
			t.Fatalf("save profile: %v", err)
		}
	}
	p, _ = repo.GetProfile(ctx, "u1")
	if p.BaseBalance != 1250.5 {
		t.Fatalf("balance = %v, want 1250.5", p.BaseBalance)
	}
}

func TestSQLiteAccounts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a := core.Account{ID: "a1", Name: "Ana", Email: "Ana@Example.com", PasswordHash: "h", Provider: "password"}
	if err := repo.CreateAccount(ctx, a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if err := repo.CreateAccount(ctx, core.Account{ID: "a2", Email: "ana@example.com"}); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := repo.GetAccountByEmail(ctx, " ANA@example.com")
	if err != nil || got.ID != "a1" || got.EmailVerified {
		t.Fatalf("lookup: %+v %v", got, err)
	}

	got.EmailVerified = true
	got.Name = "Ana B"
	if err := repo.UpdateAccount(ctx, got); err != nil {
		t.Fatalf("update account: %v", err)
	}
	got, _ = repo.GetAccount(ctx, "a1")
	if !got.EmailVerified || got.Name != "Ana B" {
		t.Fatalf("update not persisted: %+v", got)
	}

	if _, err := repo.GetAccount(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
