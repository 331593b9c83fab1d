package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pocketplan/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Size() int
}

// Cleaner is anything holding entries that can expire: caches, session
// registries, one-shot token books.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs CleanExpired on every registered Cleaner on a cron schedule.
type Manager struct {
	mu       sync.Mutex
	cleaners map[string]Cleaner
	cron     *cron.Cron
	logger   *log.Logger
}

// NewManager creates a new cache manager
func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Discard()
	}
	return &Manager{
		cleaners: make(map[string]Cleaner),
		cron:     cron.New(),
		logger:   logger.WithComponent(log.ComponentCache),
	}
}

// Register adds a named cleaner. Registering a name twice replaces it.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleaners[name] = c
}

// CleanAll sweeps every registered cleaner once and reports removals per name.
func (m *Manager) CleanAll() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := make(map[string]int, len(m.cleaners))
	for name, c := range m.cleaners {
		removed[name] = c.CleanExpired()
	}
	return removed
}

// StartCleanup schedules CleanAll every interval.
func (m *Manager) StartCleanup(interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("cleanup interval %v: must be at least 1s", interval)
	}
	_, err := m.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		total := 0
		for name, n := range m.CleanAll() {
			if n > 0 {
				m.logger.Debug("Expired entries removed", "cleaner", name, "removed", n)
			}
			total += n
		}
		if total > 0 {
			m.logger.Info("Cleanup sweep finished", "removed", total)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	m.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
}
