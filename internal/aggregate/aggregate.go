package aggregate

import (
	"time"

	"pocketplan/internal/core"
)

// Options selects the chart window and period width. A Days value that is
// not finite and positive means the whole data range.
type Options struct {
	Days        float64
	Granularity Granularity
}

// Window is the inclusive range of calendar days charted by Aggregate. Both
// ends are civil days held as UTC midnights.
type Window struct {
	Start time.Time
	End   time.Time
}

type dated struct {
	tx  core.Transaction
	day time.Time
}

// Window computes the chart range for txs without bucketing anything.
func (b *Bucketer) Window(txs []core.Transaction, days float64) Window {
	w, _ := b.window(txs, days)
	return w
}

func (b *Bucketer) window(txs []core.Transaction, days float64) (Window, []dated) {
	valid := make([]dated, 0, len(txs))
	var minDay, maxDay time.Time
	for _, tx := range txs {
		t, ok := b.EffectiveDate(tx)
		if !ok {
			continue
		}
		day := b.dayOf(t)
		if len(valid) == 0 || day.Before(minDay) {
			minDay = day
		}
		if len(valid) == 0 || day.After(maxDay) {
			maxDay = day
		}
		valid = append(valid, dated{tx: tx, day: day})
	}

	end := b.Today()
	if len(valid) > 0 {
		end = maxDay
	}

	start := end
	if n, ok := clampDays(days); ok {
		start = end.AddDate(0, 0, -(n - 1))
	} else if len(valid) > 0 {
		start = minDay
	}
	return Window{Start: start, End: end}, valid
}

// Aggregate buckets income and expense totals over the window selected by
// opts. The result is zero-filled, so every period has a label and both
// series have the same length. An empty input yields a single period.
func (b *Bucketer) Aggregate(txs []core.Transaction, opts Options) core.Series {
	g := opts.Granularity
	if g == "" {
		g = Daily
	}
	w, valid := b.window(txs, opts.Days)

	income := make(map[string]float64)
	expense := make(map[string]float64)
	for _, d := range valid {
		if d.day.Before(w.Start) || d.day.After(w.End) {
			continue
		}
		key := dayKey(d.day, g)
		switch d.tx.Type {
		case core.Income:
			income[key] += d.tx.Amount.Float()
		case core.Expense:
			expense[key] += d.tx.Amount.Float()
		}
	}

	axis := b.axis(w.Start, w.End, g)
	series := core.Series{
		Labels:  make([]string, len(axis)),
		Income:  make([]float64, len(axis)),
		Expense: make([]float64, len(axis)),
	}
	for i, p := range axis {
		series.Labels[i] = p.Label
		series.Income[i] = income[p.Key]
		series.Expense[i] = expense[p.Key]
	}
	return series
}
