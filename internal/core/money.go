// Package core provides amount coercion and currency formatting.
//
// Amounts are plain float64 whole-currency values. Input that is not a
// finite number coerces to zero instead of failing.
package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Amount is a currency value that decodes from a JSON number or numeric string.
type Amount float64

func (a Amount) Float() float64 { return float64(a) }

// ParseAmount converts s to a finite number, or 0.
//
// Examples:
//
//	ParseAmount("150")   -> 150
//	ParseAmount(" 12.5") -> 12.5
//	ParseAmount("abc")   -> 0
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Amount(f)
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = 0
			return nil
		}
		*a = ParseAmount(s)
		return nil
	}
	*a = ParseAmount(string(data))
	return nil
}

// Locale selects label language and number grouping.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleID Locale = "id"
)

// ParseLocale falls back to LocaleEN for anything it does not know.
func ParseLocale(s string) Locale {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "id", "id-id", "in":
		return LocaleID
	default:
		return LocaleEN
	}
}

func (l Locale) Tag() language.Tag {
	if l == LocaleID {
		return language.Indonesian
	}
	return language.English
}

func (l Locale) decimalSeparator() string {
	if l == LocaleID {
		return ","
	}
	return "."
}

// FormatNumber groups the integer part for the locale and keeps at most
// three fraction digits.
func FormatNumber(v float64, l Locale) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	d := decimal.NewFromFloat(v).Round(3)
	neg := d.IsNegative()
	d = d.Abs()
	whole := d.Truncate(0)
	frac := d.Sub(whole)

	s := message.NewPrinter(l.Tag()).Sprintf("%d", whole.IntPart())
	if !frac.IsZero() {
		digits := strings.TrimPrefix(frac.String(), "0.")
		s += l.decimalSeparator() + digits
	}
	if neg {
		s = "-" + s
	}
	return s
}

// FormatRupiah renders v as "Rp " followed by the Indonesian grouping.
func FormatRupiah(v float64) string {
	return "Rp " + FormatNumber(v, LocaleID)
}
