package accrual

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/locale"
)

// SalaryPeriod is the span a salary amount pays for.
type SalaryPeriod string

const (
	PeriodMonthly  SalaryPeriod = "monthly"
	PeriodBiweekly SalaryPeriod = "biweekly"
	PeriodWeekly   SalaryPeriod = "weekly"
	PeriodDaily    SalaryPeriod = "daily"
)

// Normalize returns p trimmed and lower-cased, the form it is stored in.
func (p SalaryPeriod) Normalize() SalaryPeriod {
	return SalaryPeriod(strings.ToLower(strings.TrimSpace(string(p))))
}

// Days returns how many days the period covers. Unknown periods are monthly.
func (p SalaryPeriod) Days() int64 {
	switch p.Normalize() {
	case PeriodBiweekly:
		return 15
	case PeriodWeekly:
		return 7
	case PeriodDaily:
		return 1
	default:
		return 30
	}
}

// Valid reports whether p is one of the known periods, ignoring case.
func (p SalaryPeriod) Valid() bool {
	switch p.Normalize() {
	case PeriodMonthly, PeriodBiweekly, PeriodWeekly, PeriodDaily:
		return true
	}
	return false
}

// NormalizeSalary coerces a raw salary into a decimal using the AR locale.
// See NormalizeSalaryIn.
func NormalizeSalary(raw any) decimal.Decimal {
	return NormalizeSalaryIn(locale.AR, raw)
}

// NormalizeSalaryIn coerces a raw salary (number, numeric string or a
// locale formatted string) into a decimal. It never panics; anything it
// cannot read becomes zero. Negative numbers pass through unchanged.
func NormalizeSalaryIn(f locale.Format, raw any) decimal.Decimal {
	switch v := raw.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return v
	case *decimal.Decimal:
		if v == nil {
			return decimal.Zero
		}
		return *v
	case float64:
		return locale.FromFloat(v)
	case float32:
		return locale.FromFloat(float64(v))
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case uint:
		return decimal.RequireFromString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		return decimal.RequireFromString(strconv.FormatUint(v, 10))
	case json.Number:
		// already a plain number, not a locale string
		d, err := decimal.NewFromString(string(v))
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		return f.ParseAmount(v)
	case []byte:
		return f.ParseAmount(string(v))
	default:
		return decimal.Zero
	}
}
