package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateKind tags the representation a transaction date arrived in.
type DateKind int

const (
	DateMissing DateKind = iota
	DateISODay
	DateEpochMillis
	DateNative
	DateText
)

func (k DateKind) String() string {
	switch k {
	case DateISODay:
		return "iso_day"
	case DateEpochMillis:
		return "epoch_millis"
	case DateNative:
		return "native"
	case DateText:
		return "text"
	default:
		return "missing"
	}
}

// MaxEpochMillis bounds the representable instants to 100,000,000 days either
// side of the Unix epoch. Values beyond it carry no date.
const MaxEpochMillis = 8.64e15

var (
	minInstant = time.UnixMilli(-MaxEpochMillis)
	maxInstant = time.UnixMilli(MaxEpochMillis)
)

// EpochInRange reports whether ms lies within MaxEpochMillis of the epoch.
func EpochInRange(ms int64) bool {
	return ms >= -MaxEpochMillis && ms <= MaxEpochMillis
}

// TimeInRange is EpochInRange for a time value.
func TimeInRange(t time.Time) bool {
	return !t.Before(minInstant) && !t.After(maxInstant)
}

var isoDayPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsISODay reports whether s is exactly YYYY-MM-DD.
func IsISODay(s string) bool {
	return isoDayPattern.MatchString(s)
}

// DateInput is a transaction date in whatever shape the caller supplied.
// Only the field matching Kind is meaningful.
type DateInput struct {
	Kind   DateKind
	Text   string
	Millis int64
	Time   time.Time
}

func ISODay(s string) DateInput { return DateInput{Kind: DateISODay, Text: s} }

func EpochMillis(ms int64) DateInput { return DateInput{Kind: DateEpochMillis, Millis: ms} }

func NativeDate(t time.Time) DateInput { return DateInput{Kind: DateNative, Time: t} }

func TextDate(s string) DateInput { return DateInput{Kind: DateText, Text: s} }

// DayOf formats t as an ISODay input.
func DayOf(t time.Time) DateInput { return ISODay(t.Format("2006-01-02")) }

// ParseDateInput classifies a raw string: empty is missing, YYYY-MM-DD is an
// ISO day and anything else is free text.
func ParseDateInput(s string) DateInput {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return DateInput{}
	case IsISODay(s):
		return ISODay(s)
	default:
		return TextDate(s)
	}
}

func (d DateInput) IsMissing() bool {
	switch d.Kind {
	case DateISODay, DateText:
		return strings.TrimSpace(d.Text) == ""
	case DateNative:
		return d.Time.IsZero() || !TimeInRange(d.Time)
	case DateEpochMillis:
		return !EpochInRange(d.Millis)
	default:
		return true
	}
}

// String renders the value in a form that ParseDateInput reads back to the
// same instant. Epoch and native values become RFC 3339 text.
func (d DateInput) String() string {
	switch d.Kind {
	case DateISODay, DateText:
		return d.Text
	case DateEpochMillis:
		if !EpochInRange(d.Millis) {
			return ""
		}
		return time.UnixMilli(d.Millis).UTC().Format(time.RFC3339Nano)
	case DateNative:
		if d.IsMissing() {
			return ""
		}
		return d.Time.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func (d DateInput) MarshalJSON() ([]byte, error) {
	switch {
	case d.IsMissing():
		return []byte("null"), nil
	case d.Kind == DateEpochMillis:
		return []byte(strconv.FormatInt(d.Millis, 10)), nil
	default:
		return json.Marshal(d.String())
	}
}

// UnmarshalJSON accepts null, a string or a number of epoch milliseconds.
// Fractional milliseconds are truncated and numbers beyond MaxEpochMillis
// are treated as missing.
func (d *DateInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*d = DateInput{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("date: %w", err)
		}
		*d = ParseDateInput(s)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil || math.IsNaN(f) || math.Abs(f) > MaxEpochMillis {
		// Booleans, objects and the like carry no date.
		*d = DateInput{}
		return nil
	}
	*d = EpochMillis(int64(math.Trunc(f)))
	return nil
}
