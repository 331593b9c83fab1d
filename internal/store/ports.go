// Package store declares the persistence ports shared by every backend.
package store

import (
	"context"
	"errors"

	"pocketplan/internal/core"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// Ports for outbound adapters. Every collection is scoped by user id.
type (
	TransactionStore interface {
		// ListTransactions returns the user's transactions, newest date first.
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)
		// CreateTransaction assigns an id and returns the stored record.
		CreateTransaction(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, userID, id string, patch core.TransactionPatch) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, userID, id string) error
	}

	GoalStore interface {
		// ListGoals returns the user's goals ordered by name.
		ListGoals(ctx context.Context, userID string) ([]core.Goal, error)
		CreateGoal(ctx context.Context, userID string, g core.Goal) (core.Goal, error)
		UpdateGoal(ctx context.Context, userID, id string, patch core.GoalPatch) (core.Goal, error)
		DeleteGoal(ctx context.Context, userID, id string) error
	}

	ProfileStore interface {
		// GetProfile returns a zero-balance profile when none was saved.
		GetProfile(ctx context.Context, userID string) (core.Profile, error)
		SaveProfile(ctx context.Context, p core.Profile) error
	}

	AccountStore interface {
		CreateAccount(ctx context.Context, a core.Account) error
		GetAccount(ctx context.Context, id string) (core.Account, error)
		// GetAccountByEmail matches the normalized address.
		GetAccountByEmail(ctx context.Context, email string) (core.Account, error)
		UpdateAccount(ctx context.Context, a core.Account) error
	}

	// Store is the full backend surface wired by the factory.
	Store interface {
		TransactionStore
		GoalStore
		ProfileStore
		AccountStore
		Ping(ctx context.Context) error
		Close() error
	}
)
