package aggregate

import (
	"sort"
	"strings"
	"time"

	"pocketplan/internal/core"
)

const (
	OrderNewest = "newest"
	OrderOldest = "oldest"
	TypeAll     = "All"
)

// Query narrows and orders a list view.
type Query struct {
	Search string
	Type   string // All, or a transaction/goal type
	Order  string // newest (default) or oldest
}

func (q Query) matchesType(t string) bool {
	return q.Type == "" || strings.EqualFold(q.Type, TypeAll) || t == q.Type
}

// FilterTransactions returns matching transactions sorted by date, falling
// back to createdAt. The input slice is not reordered.
func (b *Bucketer) FilterTransactions(txs []core.Transaction, q Query) []core.Transaction {
	needle := strings.ToLower(q.Search)
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		hit := strings.Contains(strings.ToLower(tx.Category), needle) ||
			strings.Contains(strings.ToLower(string(tx.Type)), needle) ||
			strings.Contains(strings.ToLower(tx.Description), needle)
		if hit && q.matchesType(string(tx.Type)) {
			out = append(out, tx)
		}
	}
	sortByTime(out, q.Order, func(tx core.Transaction) time.Time {
		t, ok := b.EffectiveDate(tx)
		if !ok {
			return time.UnixMilli(0)
		}
		return t
	})
	return out
}

// FilterGoals matches name and type and sorts by createdAt.
func (b *Bucketer) FilterGoals(goals []core.Goal, q Query) []core.Goal {
	needle := strings.ToLower(q.Search)
	out := make([]core.Goal, 0, len(goals))
	for _, g := range goals {
		hit := strings.Contains(strings.ToLower(g.Name), needle) ||
			strings.Contains(strings.ToLower(string(g.Type)), needle)
		if hit && q.matchesType(string(g.Type)) {
			out = append(out, g)
		}
	}
	sortByTime(out, q.Order, func(g core.Goal) time.Time {
		t, ok := b.NormalizeDate(core.TextDate(g.CreatedAt))
		if !ok {
			return time.UnixMilli(0)
		}
		return t
	})
	return out
}

func sortByTime[T any](items []T, order string, at func(T) time.Time) {
	oldest := order == OrderOldest
	sort.SliceStable(items, func(i, j int) bool {
		a, b := at(items[i]), at(items[j])
		if oldest {
			return a.Before(b)
		}
		return a.After(b)
	})
}
