package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pocketplan/internal/aggregate"
	"pocketplan/internal/amqp"
	"pocketplan/internal/core"
	"pocketplan/internal/log"
)

// Ledger is one user's financial data for the lifetime of a session. It is
// created by LedgerService.Open and released with Close.
type Ledger struct {
	svc    *LedgerService
	userID string
	demo   bool

	mu     sync.RWMutex
	txs    []core.Transaction
	goals  []core.Goal
	base   float64
	closed bool
}

// Dashboard bundles everything the home screen shows.
type Dashboard struct {
	Summary core.Summary    `json:"summary"`
	Chart   core.Series     `json:"chart"`
	Goals   []core.GoalView `json:"goals"`
}

func (l *Ledger) UserID() string { return l.userID }

func (l *Ledger) Demo() bool { return l.demo }

// Close releases the ledger. Later operations fail.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.txs, l.goals = nil, nil
}

func (l *Ledger) success(msg string) Notification {
	if l.demo {
		msg += " (demo mode)"
	}
	return Notification{Type: NotifySuccess, Message: msg}
}

func (l *Ledger) failure(ctx context.Context, action string, err error) Notification {
	l.svc.logger.ErrorContext(ctx, "Ledger operation failed",
		log.FieldUserID, l.userID,
		log.FieldOperation, action,
		log.FieldError, err)
	return Notification{Type: NotifyError, Message: fmt.Sprintf("Failed to %s: %v", action, err), Err: err}
}

func (l *Ledger) now() time.Time {
	return l.svc.bucketer.Clock()
}

// AddTransaction stores a new transaction. A missing date means today.
func (l *Ledger) AddTransaction(ctx context.Context, in core.Transaction) (core.Transaction, Notification) {
	const action = "add transaction"
	if l.isClosed() {
		return core.Transaction{}, l.failure(ctx, action, ErrLedgerClosed)
	}

	now := l.now()
	if in.Date.IsMissing() {
		in.Date = core.DayOf(l.svc.bucketer.Today())
	}
	in.CreatedAt = now.UTC().Format(time.RFC3339)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, l.failure(ctx, action, err)
	}

	saved, err := l.svc.store.CreateTransaction(ctx, l.userID, in)
	if err != nil {
		return core.Transaction{}, l.failure(ctx, action, err)
	}

	l.mu.Lock()
	l.txs = l.svc.bucketer.FilterTransactions(append(l.txs, saved), aggregate.Query{})
	l.mu.Unlock()

	l.logChange(ctx, log.OpCreate, saved)
	l.svc.publish(ctx, l.userID, collectionTransactions, amqp.OpCreated, saved.ID)
	return saved, l.success("Transaction added")
}

// UpdateTransaction patches a transaction. The local copy is updated first
// and kept even when the store rejects the change.
func (l *Ledger) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, Notification) {
	const action = "update transaction"
	if l.isClosed() {
		return core.Transaction{}, l.failure(ctx, action, ErrLedgerClosed)
	}

	l.mu.Lock()
	for i := range l.txs {
		if l.txs[i].ID == id {
			l.txs[i] = patch.Apply(l.txs[i])
		}
	}
	l.mu.Unlock()

	saved, err := l.svc.store.UpdateTransaction(ctx, l.userID, id, patch)
	if err != nil {
		l.svc.invalidate(l.userID, false)
		return core.Transaction{}, l.failure(ctx, action, err)
	}

	l.logChange(ctx, log.OpUpdate, saved)
	l.svc.publish(ctx, l.userID, collectionTransactions, amqp.OpUpdated, saved.ID)
	return saved, l.success("Transaction updated")
}

// DeleteTransaction removes a transaction locally and from the store.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) Notification {
	const action = "delete transaction"
	if l.isClosed() {
		return l.failure(ctx, action, ErrLedgerClosed)
	}

	l.mu.Lock()
	kept := l.txs[:0]
	for _, tx := range l.txs {
		if tx.ID != id {
			kept = append(kept, tx)
		}
	}
	l.txs = kept
	l.mu.Unlock()

	if err := l.svc.store.DeleteTransaction(ctx, l.userID, id); err != nil {
		l.svc.invalidate(l.userID, false)
		return l.failure(ctx, action, err)
	}

	l.svc.publish(ctx, l.userID, collectionTransactions, amqp.OpDeleted, id)
	return l.success("Transaction deleted")
}

// AddGoal stores a new goal.
func (l *Ledger) AddGoal(ctx context.Context, in core.Goal) (core.Goal, Notification) {
	const action = "add goal"
	if l.isClosed() {
		return core.Goal{}, l.failure(ctx, action, ErrLedgerClosed)
	}

	in.CreatedAt = l.now().UTC().Format(time.RFC3339)
	if err := in.Validate(); err != nil {
		return core.Goal{}, l.failure(ctx, action, err)
	}

	saved, err := l.svc.store.CreateGoal(ctx, l.userID, in)
	if err != nil {
		return core.Goal{}, l.failure(ctx, action, err)
	}

	l.mu.Lock()
	l.goals = append(l.goals, saved)
	l.mu.Unlock()

	l.svc.publish(ctx, l.userID, collectionGoals, amqp.OpCreated, saved.ID)
	return saved, l.success("Goal added")
}

func (l *Ledger) UpdateGoal(ctx context.Context, id string, patch core.GoalPatch) (core.Goal, Notification) {
	const action = "update goal"
	if l.isClosed() {
		return core.Goal{}, l.failure(ctx, action, ErrLedgerClosed)
	}

	l.mu.Lock()
	for i := range l.goals {
		if l.goals[i].ID == id {
			l.goals[i] = patch.Apply(l.goals[i])
		}
	}
	l.mu.Unlock()

	saved, err := l.svc.store.UpdateGoal(ctx, l.userID, id, patch)
	if err != nil {
		l.svc.invalidate(l.userID, false)
		return core.Goal{}, l.failure(ctx, action, err)
	}

	l.svc.publish(ctx, l.userID, collectionGoals, amqp.OpUpdated, saved.ID)
	return saved, l.success("Goal updated")
}

func (l *Ledger) DeleteGoal(ctx context.Context, id string) Notification {
	const action = "delete goal"
	if l.isClosed() {
		return l.failure(ctx, action, ErrLedgerClosed)
	}

	l.mu.Lock()
	kept := l.goals[:0]
	for _, g := range l.goals {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	l.goals = kept
	l.mu.Unlock()

	if err := l.svc.store.DeleteGoal(ctx, l.userID, id); err != nil {
		l.svc.invalidate(l.userID, false)
		return l.failure(ctx, action, err)
	}

	l.svc.publish(ctx, l.userID, collectionGoals, amqp.OpDeleted, id)
	return l.success("Goal deleted")
}

// SetBaseBalance saves the opening balance the summary starts from.
func (l *Ledger) SetBaseBalance(ctx context.Context, v float64) Notification {
	const action = "save base balance"
	if l.isClosed() {
		return l.failure(ctx, action, ErrLedgerClosed)
	}
	if err := l.svc.store.SaveProfile(ctx, core.Profile{UserID: l.userID, BaseBalance: v}); err != nil {
		return l.failure(ctx, action, err)
	}

	l.mu.Lock()
	l.base = v
	l.mu.Unlock()

	l.svc.publish(ctx, l.userID, collectionProfiles, amqp.OpUpdated, l.userID)
	l.svc.balances.Set(l.userID, v)
	return l.success("Base balance saved")
}

func (l *Ledger) BaseBalance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.base
}

// Transactions returns the filtered list view.
func (l *Ledger) Transactions(q aggregate.Query) []core.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.svc.bucketer.FilterTransactions(l.txs, q)
}

func (l *Ledger) Goals(q aggregate.Query) []core.Goal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.svc.bucketer.FilterGoals(l.goals, q)
}

func (l *Ledger) Summary() core.Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.svc.bucketer.Summarize(l.txs, l.base, l.now())
}

func (l *Ledger) Chart(opts aggregate.Options) core.Series {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.svc.bucketer.Aggregate(l.txs, opts)
}

// GoalsWithProgress measures every goal against the current balance.
func (l *Ledger) GoalsWithProgress() []core.GoalView {
	summary := l.Summary()
	l.mu.RLock()
	defer l.mu.RUnlock()
	return aggregate.GoalViews(l.goals, summary.Balance)
}

func (l *Ledger) Dashboard(opts aggregate.Options) Dashboard {
	return Dashboard{
		Summary: l.Summary(),
		Chart:   l.Chart(opts),
		Goals:   l.GoalsWithProgress(),
	}
}

func (l *Ledger) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

func (l *Ledger) logChange(ctx context.Context, op string, tx core.Transaction) {
	l.svc.events.LogTransactionChange(ctx, op, l.userID, log.TransactionInfo{
		ID:       tx.ID,
		Type:     string(tx.Type),
		Amount:   tx.Amount.Float(),
		Category: tx.Category,
	}, l.demo)
}
