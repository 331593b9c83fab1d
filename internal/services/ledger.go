package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pocketplan/internal/aggregate"
	"pocketplan/internal/amqp"
	"pocketplan/internal/cache"
	"pocketplan/internal/core"
	"pocketplan/internal/log"
	"pocketplan/internal/store"
)

// Notification types.
const (
	NotifySuccess = "success"
	NotifyError   = "error"
)

const (
	collectionTransactions = "transactions"
	collectionGoals        = "goals"
	collectionProfiles     = "profiles"
)

var ErrLedgerClosed = errors.New("ledger is closed")

// Notification is the user-visible outcome of a ledger mutation.
type Notification struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (n Notification) OK() bool { return n.Type == NotifySuccess }

// Publisher announces ledger changes to other instances.
type Publisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// LedgerStore is the persistence a ledger needs.
type LedgerStore interface {
	store.TransactionStore
	store.GoalStore
	store.ProfileStore
}

// LedgerOptions tunes the per-user caches.
type LedgerOptions struct {
	CacheTTL  time.Duration
	CacheSize int
}

type snapshot struct {
	txs   []core.Transaction
	goals []core.Goal
	base  float64
}

// LedgerService opens per-user ledgers over a store.
type LedgerService struct {
	store     LedgerStore
	publisher Publisher
	bucketer  *aggregate.Bucketer
	snapshots *cache.LRUCache[snapshot]
	balances  *cache.LRUCache[float64]
	logger    *log.Logger
	events    *log.StructuredLogger

	// generations counts invalidations per user. A load only fills the
	// caches if no invalidation happened while it was reading the store.
	genMu       sync.Mutex
	generations map[string]uint64
}

func NewLedgerService(st LedgerStore, publisher Publisher, b *aggregate.Bucketer, opts LedgerOptions, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	logger = logger.WithComponent(log.ComponentLedger)
	return &LedgerService{
		store:       st,
		publisher:   publisher,
		bucketer:    b,
		snapshots:   cache.NewLRUCache[snapshot](opts.CacheSize, opts.CacheTTL),
		balances:    cache.NewLRUCache[float64](opts.CacheSize, opts.CacheTTL),
		logger:      logger,
		events:      log.NewStructuredLogger(logger),
		generations: make(map[string]uint64),
	}
}

// Caches exposes the expiring caches for periodic cleanup.
func (s *LedgerService) Caches() map[string]cache.Cleaner {
	return map[string]cache.Cleaner{
		"ledger_snapshots": s.snapshots,
		"ledger_balances":  s.balances,
	}
}

// CacheStats reports hit and eviction counts of the snapshot cache.
func (s *LedgerService) CacheStats() cache.Stats { return s.snapshots.Stats() }

func (s *LedgerService) Bucketer() *aggregate.Bucketer { return s.bucketer }

// Open loads the user's transactions, goals and base balance concurrently.
func (s *LedgerService) Open(ctx context.Context, userID string) (*Ledger, error) {
	if snap, ok := s.snapshots.Get(userID); ok {
		return s.newLedger(userID, snap), nil
	}

	gen := s.generation(userID)
	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		txs, err := s.store.ListTransactions(gctx, userID)
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		snap.txs = txs
		return nil
	})
	g.Go(func() error {
		goals, err := s.store.ListGoals(gctx, userID)
		if err != nil {
			return fmt.Errorf("load goals: %w", err)
		}
		snap.goals = goals
		return nil
	})
	g.Go(func() error {
		if base, ok := s.balances.Get(userID); ok {
			snap.base = base
			return nil
		}
		p, err := s.store.GetProfile(gctx, userID)
		if err != nil {
			return fmt.Errorf("load profile: %w", err)
		}
		snap.base = p.BaseBalance
		s.fill(userID, gen, func() { s.balances.Set(userID, p.BaseBalance) })
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to open ledger", log.FieldUserID, userID, log.FieldError, err)
		return nil, err
	}

	if !s.fill(userID, gen, func() { s.snapshots.Set(userID, snap) }) {
		s.logger.DebugContext(ctx, "Ledger changed while loading, not caching", log.FieldUserID, userID)
	}
	s.logger.DebugContext(ctx, "Ledger opened",
		log.FieldUserID, userID,
		"transactions", len(snap.txs),
		"goals", len(snap.goals))
	return s.newLedger(userID, snap), nil
}

func (s *LedgerService) newLedger(userID string, snap snapshot) *Ledger {
	return &Ledger{
		svc:    s,
		userID: userID,
		demo:   userID == core.DemoUserID,
		txs:    append([]core.Transaction(nil), snap.txs...),
		goals:  append([]core.Goal(nil), snap.goals...),
		base:   snap.base,
	}
}

// Invalidate drops cached state for the user named in msg. It is safe to
// call any number of times for the same message.
func (s *LedgerService) Invalidate(ctx context.Context, msg *amqp.ChangeMessage) error {
	s.invalidate(msg.UserID, msg.Collection == collectionProfiles)
	s.logger.DebugContext(ctx, "Ledger cache invalidated",
		log.FieldUserID, msg.UserID,
		log.FieldCollection, msg.Collection,
		log.FieldOperation, log.OpInvalidate)
	return nil
}

func (s *LedgerService) invalidate(userID string, balance bool) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	s.generations[userID]++
	s.snapshots.Delete(userID)
	if balance {
		s.balances.Delete(userID)
	}
}

func (s *LedgerService) generation(userID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[userID]
}

// fill runs set only if userID has not been invalidated since gen was read.
func (s *LedgerService) fill(userID string, gen uint64, set func()) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[userID] != gen {
		return false
	}
	set()
	return true
}

func (s *LedgerService) publish(ctx context.Context, userID, collection, op, id string) {
	s.invalidate(userID, collection == collectionProfiles)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, amqp.NewChangeMessage(userID, collection, op, id)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish change message",
			log.FieldUserID, userID,
			log.FieldCollection, collection,
			log.FieldRecordID, id,
			log.FieldError, err)
	}
}
