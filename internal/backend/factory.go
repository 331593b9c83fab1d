package backend

import (
	"context"
	"fmt"

	"pocketplan/internal/core"
	"pocketplan/internal/log"
	"pocketplan/internal/storage"
	"pocketplan/internal/store/memory"
	"pocketplan/internal/store/mongo"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case MongoBackend:
		return f.createMongoBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMongoBackend(ctx context.Context, config Config) (*BackendResult, error) {
	db, err := mongo.New(ctx, config.MongoURI, config.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MongoDB store: %w", err)
	}

	f.logger.Info("Initialized MongoDB backend", "database", config.MongoDB)

	return &BackendResult{
		Store:   db,
		Cleanup: db.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	st := memory.New()
	if config.SeedDemo {
		st.Seed(core.DemoUserID, DemoTransactions(), DemoGoals())
	}

	f.logger.Info("Initialized memory backend", "demo_seeded", config.SeedDemo)

	return &BackendResult{
		Store:   st,
		Cleanup: st.Close,
		Demo:    true,
	}, nil
}

// DemoTransactions is the sample ledger shown before anyone signs in.
func DemoTransactions() []core.Transaction {
	return []core.Transaction{{
		ID:          "t1",
		Category:    "Charity",
		Type:        core.Expense,
		Amount:      2000000,
		Date:        core.ISODay("2025-11-22"),
		Description: "Sumbangan",
	}}
}

func DemoGoals() []core.Goal {
	return []core.Goal{{ID: "g1", Name: "Laptop", Type: core.Saving, Amount: 2340000, Target: 15000000}}
}
