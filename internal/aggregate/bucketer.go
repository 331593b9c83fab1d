// Package aggregate turns a snapshot of transactions into chart series and
// summary totals.
//
// Instants are read in the Bucketer's Location. A date written as YYYY-MM-DD
// is always read as that calendar day in Location, never as a UTC instant, so
// it cannot shift to a neighbouring day. Once an instant is reduced to its
// local calendar day, windows, keys and axes work on civil days held as UTC
// midnights, so daylight saving transitions never move a day.
package aggregate

import (
	"math"
	"strconv"
	"strings"
	"time"

	"pocketplan/internal/core"
)

const (
	MinWindowDays = 1
	MaxWindowDays = 3660
)

// Granularity is the width of one chart period.
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity maps unknown values to Daily.
func ParseGranularity(s string) Granularity {
	switch Granularity(strings.ToLower(strings.TrimSpace(s))) {
	case Weekly:
		return Weekly
	case Monthly:
		return Monthly
	default:
		return Daily
	}
}

// Bucketer owns the local calendar used for normalization, keys and labels.
type Bucketer struct {
	Location *time.Location
	Locale   core.Locale
	// Now defaults to time.Now.
	Now func() time.Time
}

func New(loc *time.Location, locale core.Locale) *Bucketer {
	return &Bucketer{Location: loc, Locale: locale}
}

func (b *Bucketer) loc() *time.Location {
	if b == nil || b.Location == nil {
		return time.Local
	}
	return b.Location
}

func (b *Bucketer) now() time.Time {
	if b != nil && b.Now != nil {
		return b.Now().In(b.loc())
	}
	return time.Now().In(b.loc())
}

// Clock is the current instant in Location.
func (b *Bucketer) Clock() time.Time {
	return b.now()
}

// Today is the current local calendar day as a UTC midnight.
func (b *Bucketer) Today() time.Time {
	return b.dayOf(b.now())
}

// dayOf reduces an instant to its calendar day in Location.
func (b *Bucketer) dayOf(t time.Time) time.Time {
	y, m, d := t.In(b.loc()).Date()
	return civil(y, m, d)
}

func civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// localStart is the first instant of a calendar day in Location. Where
// midnight is skipped by a clock change, that is the first wall time after
// the gap.
func (b *Bucketer) localStart(day time.Time) time.Time {
	y, m, d := day.Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, b.loc())
	if got := b.dayOf(t); got.Before(day) {
		wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		t = t.Add(day.Sub(wall))
	}
	return t
}

// freeFormLayouts are tried in order for text that is not a strict ISO day.
// Layouts without a zone are read in the Bucketer's location.
var freeFormLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05Z07:00",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RubyDate,
	time.UnixDate,
	time.ANSIC,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"Mon Jan 2 2006",
	"2006-1-2",
	"2006/01/02",
	"2006/1/2",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"02 Jan 2006",
}

// NormalizeDate converts any supported date representation into a local time.
// It reports false for missing or unparseable input.
func (b *Bucketer) NormalizeDate(in core.DateInput) (time.Time, bool) {
	switch in.Kind {
	case core.DateISODay, core.DateText:
		return b.normalizeText(in.Text)
	case core.DateEpochMillis:
		if !core.EpochInRange(in.Millis) {
			return time.Time{}, false
		}
		return time.UnixMilli(in.Millis).In(b.loc()), true
	case core.DateNative:
		if in.Time.IsZero() || !core.TimeInRange(in.Time) {
			return time.Time{}, false
		}
		return in.Time.In(b.loc()), true
	default:
		return time.Time{}, false
	}
}

func (b *Bucketer) normalizeText(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if core.IsISODay(s) {
		y, _ := strconv.Atoi(s[0:4])
		m, _ := strconv.Atoi(s[5:7])
		d, _ := strconv.Atoi(s[8:10])
		// Out-of-range parts roll over the way time.Date normalizes them.
		return b.localStart(civil(y, time.Month(m), d)), true
	}
	for _, layout := range freeFormLayouts {
		if t, err := time.ParseInLocation(layout, s, b.loc()); err == nil && core.TimeInRange(t) {
			return t.In(b.loc()), true
		}
	}
	return time.Time{}, false
}

// EffectiveDate is the transaction date, falling back to its creation time.
func (b *Bucketer) EffectiveDate(tx core.Transaction) (time.Time, bool) {
	if t, ok := b.NormalizeDate(tx.Date); ok {
		return t, true
	}
	return b.NormalizeDate(core.TextDate(tx.CreatedAt))
}

// periodStart snaps a calendar day to the first day of its period. Weeks
// start on Monday.
func periodStart(day time.Time, g Granularity) time.Time {
	y, m, d := day.Date()
	switch g {
	case Weekly:
		offset := 1 - int(day.Weekday())
		if day.Weekday() == time.Sunday {
			offset = -6
		}
		return civil(y, m, d+offset)
	case Monthly:
		return civil(y, m, 1)
	default:
		return civil(y, m, d)
	}
}

// CanonicalKey names the bucket t falls into: YYYY-MM-DD for days, the
// YYYY-MM-DD of the Monday for weeks and YYYY-MM for months.
func (b *Bucketer) CanonicalKey(t time.Time, g Granularity) string {
	return dayKey(b.dayOf(t), g)
}

func dayKey(day time.Time, g Granularity) string {
	start := periodStart(day, g)
	if g == Monthly {
		return start.Format("2006-01")
	}
	return start.Format("2006-01-02")
}

func step(t time.Time, g Granularity) time.Time {
	switch g {
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// AxisPoint is one period of the chart axis.
type AxisPoint struct {
	Key   string
	Label string
}

// EnumerateAxis lists every period from the day of start to the day of end
// inclusive. The cursor is snapped to the start of its period but end is
// not, so the last period may extend past end.
func (b *Bucketer) EnumerateAxis(start, end time.Time, g Granularity) []AxisPoint {
	return b.axis(b.dayOf(start), b.dayOf(end), g)
}

func (b *Bucketer) axis(first, last time.Time, g Granularity) []AxisPoint {
	var axis []AxisPoint
	for cursor := periodStart(first, g); !cursor.After(last); cursor = step(cursor, g) {
		axis = append(axis, AxisPoint{
			Key:   dayKey(cursor, g),
			Label: b.dayLabel(cursor, g),
		})
	}
	return axis
}

// clampDays returns the window length for a finite positive day count.
func clampDays(days float64) (int, bool) {
	if math.IsNaN(days) || math.IsInf(days, 0) || days <= 0 {
		return 0, false
	}
	days = math.Max(MinWindowDays, math.Min(MaxWindowDays, days))
	return int(math.Floor(days)), true
}
