/*
Package accrual turns a worked shift into money.

PURPOSE:
  Given an employee's salary, salary period and official schedule, and the
  times actually worked, compute what one attendance event is worth. The
  result is a full breakdown (Result) that every consumer shares: the
  preview screen, the ledger movement metadata and the reports all read the
  same numbers instead of recomputing parts of them.

ALGORITHM:
  dailyBase       = salary / {monthly 30, biweekly 15, weekly 7, daily 1}
  officialMinutes = DurationMinutes(officialStart, officialEnd)
  workedMinutes   = DurationMinutes(workedStart, workedEnd)
  minuteValue     = dailyBase / officialMinutes
  baseMinutes     = min(worked, official)
  extraMinutes    = max(worked - official, 0)
  baseAmount      = baseMinutes * minuteValue
  extraAmount     = extraMinutes * minuteValue * overtimeFactor
  amount          = round(baseAmount + extraAmount)                  (normal day)
                  = round((baseAmount + extraAmount) * holidayFactor) (holiday)

  There is no upper cap on amount.

DEGENERATE INPUT:
  officialMinutes <= 0 or workedMinutes <= 0 yields a zero amount. This is
  a defined result, not an error.

PRECISION:
  All arithmetic uses decimal.Decimal. Amounts multiply before dividing so
  a full official shift pays exactly one daily base.

EXAMPLE:
  r := accrual.Compute(accrual.Input{
      Salary: "$ 300.000", Period: accrual.PeriodMonthly,
      OfficialStart: "09:00", OfficialEnd: "17:00",
      WorkedStart: "09:00", WorkedEnd: "19:00",
  })
  // r.DailyBase = 10000, r.ExtraMinutes = 120, r.Amount = 12500
*/
package accrual

import (
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/locale"
)

var (
	// DefaultHolidayFactor multiplies a holiday shift.
	DefaultHolidayFactor = decimal.NewFromInt(2)
	// DefaultOvertimeFactor multiplies minutes beyond the official schedule.
	DefaultOvertimeFactor = decimal.NewFromInt(1)

	half = decimal.NewFromFloat(0.5)
)

// =============================================================================
// INPUT / RESULT
// =============================================================================

// Input is one shift to price. Nil factors take the calculator defaults.
type Input struct {
	Salary         any
	Period         SalaryPeriod
	OfficialStart  string
	OfficialEnd    string
	WorkedStart    string
	WorkedEnd      string
	IsHoliday      bool
	HolidayFactor  *decimal.Decimal
	OvertimeFactor *decimal.Decimal
}

// Result is the itemized price of one shift.
type Result struct {
	DailyBase       decimal.Decimal `json:"dailyBase"`
	OfficialMinutes int             `json:"officialMinutes"`
	WorkedMinutes   int             `json:"workedMinutes"`
	MinuteValue     decimal.Decimal `json:"minuteValue"`
	Amount          decimal.Decimal `json:"amount"`
	BaseMinutes     int             `json:"baseMinutes"`
	ExtraMinutes    int             `json:"extraMinutes"`
	BaseAmount      decimal.Decimal `json:"baseAmount"`
	ExtraAmount     decimal.Decimal `json:"extraAmount"`
	IsHoliday       bool            `json:"isHoliday"`
	HolidayFactor   decimal.Decimal `json:"holidayFactor"`
	OvertimeFactor  decimal.Decimal `json:"overtimeFactor"`
}

// OvertimeHours is ExtraMinutes expressed in hours, two decimals.
func (r Result) OvertimeHours() decimal.Decimal {
	return decimal.NewFromInt(int64(r.ExtraMinutes)).Div(decimal.NewFromInt(60)).Round(2)
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator prices shifts. The zero value is not usable; use NewCalculator.
type Calculator struct {
	Locale         locale.Format
	HolidayFactor  decimal.Decimal
	OvertimeFactor decimal.Decimal
}

// NewCalculator returns a calculator with the AR locale and default factors.
func NewCalculator() *Calculator {
	return &Calculator{
		Locale:         locale.AR,
		HolidayFactor:  DefaultHolidayFactor,
		OvertimeFactor: DefaultOvertimeFactor,
	}
}

var defaultCalculator = NewCalculator()

// Compute prices a shift with the default calculator.
func Compute(in Input) Result {
	return defaultCalculator.Compute(in)
}

// Compute prices a shift. It never fails; see the package doc for the
// degenerate cases.
func (c *Calculator) Compute(in Input) Result {
	holidayFactor := c.HolidayFactor
	if in.HolidayFactor != nil {
		holidayFactor = *in.HolidayFactor
	}
	overtimeFactor := c.OvertimeFactor
	if in.OvertimeFactor != nil {
		overtimeFactor = *in.OvertimeFactor
	}

	salary := NormalizeSalaryIn(c.Locale, in.Salary)
	dailyBase := salary.Div(decimal.NewFromInt(in.Period.Days()))

	official := DurationMinutes(in.OfficialStart, in.OfficialEnd)
	worked := DurationMinutes(in.WorkedStart, in.WorkedEnd)

	r := Result{
		IsHoliday:      in.IsHoliday,
		HolidayFactor:  holidayFactor,
		OvertimeFactor: overtimeFactor,
	}

	if official <= 0 || worked <= 0 {
		r.DailyBase = decimal.Max(dailyBase, decimal.Zero)
		r.OfficialMinutes = max(official, 0)
		r.WorkedMinutes = max(worked, 0)
		r.MinuteValue = decimal.Zero
		r.BaseAmount = decimal.Zero
		r.ExtraAmount = decimal.Zero
		r.Amount = decimal.Zero
		return r
	}

	baseMinutes := min(worked, official)
	extraMinutes := max(worked-official, 0)

	officialD := decimal.NewFromInt(int64(official))
	base := dailyBase.Mul(decimal.NewFromInt(int64(baseMinutes))).Div(officialD)
	extra := dailyBase.Mul(decimal.NewFromInt(int64(extraMinutes))).Mul(overtimeFactor).Div(officialD)

	total := base.Add(extra)
	if in.IsHoliday {
		total = total.Mul(holidayFactor)
	}

	r.DailyBase = dailyBase
	r.OfficialMinutes = official
	r.WorkedMinutes = worked
	r.MinuteValue = dailyBase.Div(officialD)
	r.BaseMinutes = baseMinutes
	r.ExtraMinutes = extraMinutes
	r.BaseAmount = base
	r.ExtraAmount = extra
	r.Amount = roundHalfUp(total)
	return r
}

// roundHalfUp rounds to an integer with halves going toward +Inf.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Add(half).Floor()
}
