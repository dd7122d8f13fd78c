/*
Package locale is the single number and date formatting boundary.

PURPOSE:
  Salary strings, ledger amounts and calendar dates cross this package
  exactly once on their way in or out. Nothing else in the module does
  string surgery on currency values or date strings.

NUMBER RULE (ParseAmount):
  1. Drop every character that is not a digit, a separator or '-'
  2. Drop thousands separators
  3. Replace the decimal separator with '.'
  4. Parse the longest leading number; nothing parseable yields zero

  With AR ('.' thousands, ',' decimal):
    "$ 2.200,50" -> 2200.50
    "1.500"      -> 1500
    ""           -> 0

DATES:
  Calendar days are time.Time values at UTC midnight. DateLayout is the
  persisted and wire format.
*/
package locale

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the YYYY-MM-DD layout used for persisted dates.
const DateLayout = "2006-01-02"

// Format describes how a locale writes money.
type Format struct {
	Thousands rune
	Decimal   rune
	Symbol    string
}

// AR is the default restaurant locale: "$ 12.500,50".
var AR = Format{Thousands: '.', Decimal: ',', Symbol: "$"}

var leadingNumber = regexp.MustCompile(`^-?(\d+(\.\d*)?|\.\d+)`)

// ParseAmount converts a locale formatted string into a decimal.
// It never fails: malformed input yields zero.
func (f Format) ParseAmount(s string) decimal.Decimal {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == f.Thousands:
			// dropped
		case r == f.Decimal:
			b.WriteRune('.')
		case r == '.' || r == ',':
			// a separator this locale does not use is treated as thousands
		}
	}

	m := leadingNumber.FindString(b.String())
	m = strings.TrimSuffix(m, ".")
	if m == "" || m == "-" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FromFloat converts a float to a decimal, mapping NaN and Inf to zero.
func FromFloat(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// FormatAmount renders d as "$ 12.500" or "$ 12.500,50".
func (f Format) FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	d = d.Abs()

	places := int32(0)
	if !d.Equal(d.Truncate(0)) {
		places = 2
	}
	raw := d.StringFixed(places)

	intPart, frac, _ := strings.Cut(raw, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteRune(f.Thousands)
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteRune(f.Decimal)
		b.WriteString(frac)
	}

	out := b.String()
	if neg {
		out = "-" + out
	}
	if f.Symbol != "" {
		out = f.Symbol + " " + out
	}
	return out
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Day truncates t to the calendar day it falls on in loc, as UTC midnight.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
