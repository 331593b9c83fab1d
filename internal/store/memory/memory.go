// Package memory is the demo-mode store. Data lives only as long as the process.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pocketplan/internal/core"
	"pocketplan/internal/store"
)

type Store struct {
	mu       sync.Mutex
	txs      map[string][]core.Transaction
	goals    map[string][]core.Goal
	profiles map[string]core.Profile
	accounts map[string]core.Account
	now      func() time.Time
}

func New() *Store {
	return &Store{
		txs:      make(map[string][]core.Transaction),
		goals:    make(map[string][]core.Goal),
		profiles: make(map[string]core.Profile),
		accounts: make(map[string]core.Account),
		now:      time.Now,
	}
}

// Seed loads transactions and goals for a user, keeping ids that are already set.
func (s *Store) Seed(userID string, txs []core.Transaction, goals []core.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = newID("t")
		}
		s.txs[userID] = append(s.txs[userID], tx)
	}
	for _, g := range goals {
		if g.ID == "" {
			g.ID = newID("g")
		}
		s.goals[userID] = append(s.goals[userID], g)
	}
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	out := append([]core.Transaction(nil), s.txs[userID]...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.String() > out[j].Date.String()
	})
	return out, nil
}

func (s *Store) CreateTransaction(_ context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = newID("t")
	if tx.CreatedAt == "" {
		tx.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	s.txs[userID] = append(s.txs[userID], tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, userID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.txs[userID]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		updated := patch.Apply(list[i])
		if err := updated.Validate(); err != nil {
			return core.Transaction{}, err
		}
		list[i] = updated
		return updated, nil
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.txs[userID]
	for i := range list {
		if list[i].ID == id {
			s.txs[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
}

func (s *Store) ListGoals(_ context.Context, userID string) ([]core.Goal, error) {
	s.mu.Lock()
	out := append([]core.Goal(nil), s.goals[userID]...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *Store) CreateGoal(_ context.Context, userID string, g core.Goal) (core.Goal, error) {
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = newID("g")
	if g.CreatedAt == "" {
		g.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	s.goals[userID] = append(s.goals[userID], g)
	return g, nil
}

func (s *Store) UpdateGoal(_ context.Context, userID, id string, patch core.GoalPatch) (core.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.goals[userID]
	for i := range list {
		if list[i].ID != id {
			continue
		}
		updated := patch.Apply(list[i])
		if err := updated.Validate(); err != nil {
			return core.Goal{}, err
		}
		list[i] = updated
		return updated, nil
	}
	return core.Goal{}, fmt.Errorf("goal %s: %w", id, store.ErrNotFound)
}

func (s *Store) DeleteGoal(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.goals[userID]
	for i := range list {
		if list[i].ID == id {
			s.goals[userID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("goal %s: %w", id, store.ErrNotFound)
}

func (s *Store) GetProfile(_ context.Context, userID string) (core.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return core.Profile{UserID: userID}, nil
}

func (s *Store) SaveProfile(_ context.Context, p core.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}

func (s *Store) CreateAccount(_ context.Context, a core.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email := core.NormalizeEmail(a.Email)
	for _, existing := range s.accounts {
		if core.NormalizeEmail(existing.Email) == email {
			return fmt.Errorf("account %s: %w", email, store.ErrDuplicate)
		}
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		return a, nil
	}
	return core.Account{}, fmt.Errorf("account %s: %w", id, store.ErrNotFound)
}

func (s *Store) GetAccountByEmail(_ context.Context, email string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = core.NormalizeEmail(email)
	for _, a := range s.accounts {
		if core.NormalizeEmail(a.Email) == email {
			return a, nil
		}
	}
	return core.Account{}, fmt.Errorf("account %s: %w", email, store.ErrNotFound)
}

func (s *Store) UpdateAccount(_ context.Context, a core.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; !ok {
		return fmt.Errorf("account %s: %w", a.ID, store.ErrNotFound)
	}
	email := core.NormalizeEmail(a.Email)
	for id, existing := range s.accounts {
		if id != a.ID && core.NormalizeEmail(existing.Email) == email {
			return fmt.Errorf("account %s: %w", email, store.ErrDuplicate)
		}
	}
	s.accounts[a.ID] = a
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
