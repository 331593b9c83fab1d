package aggregate

import (
	"fmt"
	"time"

	"pocketplan/internal/core"
)

var monthAbbr = map[core.Locale][12]string{
	core.LocaleEN: {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
	core.LocaleID: {"Jan", "Feb", "Mar", "Apr", "Mei", "Jun", "Jul", "Agu", "Sep", "Okt", "Nov", "Des"},
}

var weekPrefix = map[core.Locale]string{
	core.LocaleEN: "Week of",
	core.LocaleID: "Minggu",
}

func (b *Bucketer) locale() core.Locale {
	if b == nil {
		return core.LocaleEN
	}
	if _, ok := monthAbbr[b.Locale]; ok {
		return b.Locale
	}
	return core.LocaleEN
}

// MonthName returns the short month name for the Bucketer's locale.
func (b *Bucketer) MonthName(m time.Month) string {
	return monthAbbr[b.locale()][m-1]
}

// Label renders the local day of t for display: "2 Jan", "Week of 6 Jan" or
// "Jan 2025". t is expected to be a period start.
func (b *Bucketer) Label(t time.Time, g Granularity) string {
	return b.dayLabel(b.dayOf(t), g)
}

func (b *Bucketer) dayLabel(t time.Time, g Granularity) string {
	switch g {
	case Weekly:
		return fmt.Sprintf("%s %d %s", weekPrefix[b.locale()], t.Day(), b.MonthName(t.Month()))
	case Monthly:
		return fmt.Sprintf("%s %d", b.MonthName(t.Month()), t.Year())
	default:
		return fmt.Sprintf("%d %s", t.Day(), b.MonthName(t.Month()))
	}
}
