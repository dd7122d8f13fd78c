package accrual_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/accrual"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msg ...any) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s, got %s %v", want, got, msg)
}

// =============================================================================
// TIME ARITHMETIC
// =============================================================================

func TestMinutesOf(t *testing.T) {
	assert.Equal(t, 0, accrual.MinutesOf("00:00"))
	assert.Equal(t, 540, accrual.MinutesOf("09:00"))
	assert.Equal(t, 1439, accrual.MinutesOf("23:59"))
	assert.Equal(t, 545, accrual.MinutesOf(" 9:05 "))

	for _, bad := range []string{"", "9", "ab:cd", "25:00", "10:75", ":"} {
		assert.Equal(t, 0, accrual.MinutesOf(bad), "input %q", bad)
	}
}

func TestDurationMinutes(t *testing.T) {
	assert.Equal(t, 480, accrual.DurationMinutes("09:00", "17:00"))
	assert.Equal(t, 240, accrual.DurationMinutes("22:00", "02:00"), "crosses midnight")
	assert.Equal(t, 0, accrual.DurationMinutes("09:00", "09:00"))
	assert.Equal(t, 0, accrual.DurationMinutes("", ""))
	// a missing end reads as midnight
	assert.Equal(t, 900, accrual.DurationMinutes("09:00", ""))
}

// =============================================================================
// SALARY NORMALIZER
// =============================================================================

func TestNormalizeSalary(t *testing.T) {
	assertDec(t, "2200.50", accrual.NormalizeSalary("$ 2.200,50"))
	assertDec(t, "0", accrual.NormalizeSalary(""))
	assertDec(t, "0", accrual.NormalizeSalary(nil))
	assertDec(t, "0", accrual.NormalizeSalary("sin dato"))
	assertDec(t, "300000", accrual.NormalizeSalary(300000))
	assertDec(t, "1500.75", accrual.NormalizeSalary(1500.75))
	assertDec(t, "0", accrual.NormalizeSalary(math.NaN()))
	assertDec(t, "0", accrual.NormalizeSalary(struct{}{}))
}

func TestNormalizeSalary_NegativePassesThrough(t *testing.T) {
	// Negative salaries are preserved as-is; whether they are legitimate is
	// an open question, so the behavior is pinned here.
	assertDec(t, "-5", accrual.NormalizeSalary(-5))
	assertDec(t, "-5", accrual.NormalizeSalary("-5"))
}

func TestSalaryPeriod_Days(t *testing.T) {
	assert.Equal(t, int64(30), accrual.PeriodMonthly.Days())
	assert.Equal(t, int64(15), accrual.PeriodBiweekly.Days())
	assert.Equal(t, int64(7), accrual.PeriodWeekly.Days())
	assert.Equal(t, int64(1), accrual.PeriodDaily.Days())
	assert.Equal(t, int64(30), accrual.SalaryPeriod("").Days(), "unknown is monthly")
	assert.False(t, accrual.SalaryPeriod("yearly").Valid())
	assert.True(t, accrual.SalaryPeriod("Monthly").Valid())
	assert.Equal(t, accrual.PeriodBiweekly, accrual.SalaryPeriod(" BiWeekly ").Normalize())
}

// =============================================================================
// CALCULATOR - worked examples
// =============================================================================

func monthlyShift(workedEnd string) accrual.Input {
	return accrual.Input{
		Salary:        300000,
		Period:        accrual.PeriodMonthly,
		OfficialStart: "09:00",
		OfficialEnd:   "17:00",
		WorkedStart:   "09:00",
		WorkedEnd:     workedEnd,
	}
}

func TestCompute_Overtime(t *testing.T) {
	// GIVEN: 300000/month, official 09-17, worked 09-19
	r := accrual.Compute(monthlyShift("19:00"))

	// THEN: two extra hours at the regular minute value
	assertDec(t, "10000", r.DailyBase)
	assert.Equal(t, 480, r.OfficialMinutes)
	assert.Equal(t, 600, r.WorkedMinutes)
	assertDec(t, "20.83", r.MinuteValue.Round(2))
	assert.Equal(t, 480, r.BaseMinutes)
	assert.Equal(t, 120, r.ExtraMinutes)
	assertDec(t, "10000", r.BaseAmount)
	assertDec(t, "2500", r.ExtraAmount)
	assertDec(t, "12500", r.Amount)
	assertDec(t, "2", r.OvertimeHours())
}

func TestCompute_Holiday(t *testing.T) {
	in := monthlyShift("19:00")
	in.IsHoliday = true
	r := accrual.Compute(in)

	assertDec(t, "25000", r.Amount)
	assert.True(t, r.IsHoliday)
	assertDec(t, "2", r.HolidayFactor)
}

func TestCompute_CustomFactors(t *testing.T) {
	ot := dec("1.5")
	hf := dec("3")
	in := monthlyShift("19:00")
	in.OvertimeFactor = &ot
	r := accrual.Compute(in)
	assertDec(t, "3750", r.ExtraAmount)
	assertDec(t, "13750", r.Amount)

	in.IsHoliday = true
	in.HolidayFactor = &hf
	r = accrual.Compute(in)
	assertDec(t, "41250", r.Amount)
}

func TestCompute_ExactOfficialShift(t *testing.T) {
	r := accrual.Compute(monthlyShift("17:00"))

	assert.Equal(t, 0, r.ExtraMinutes)
	assertDec(t, "0", r.ExtraAmount)
	assertDec(t, "10000", r.Amount)
}

func TestCompute_ShortShift(t *testing.T) {
	r := accrual.Compute(monthlyShift("13:00"))

	assert.Equal(t, 240, r.BaseMinutes)
	assert.Equal(t, 0, r.ExtraMinutes)
	assertDec(t, "5000", r.Amount)
}

func TestCompute_NightShiftCrossesMidnight(t *testing.T) {
	r := accrual.Compute(accrual.Input{
		Salary:        "48000",
		Period:        accrual.PeriodDaily,
		OfficialStart: "22:00",
		OfficialEnd:   "06:00",
		WorkedStart:   "22:00",
		WorkedEnd:     "07:00",
	})

	assert.Equal(t, 480, r.OfficialMinutes)
	assert.Equal(t, 540, r.WorkedMinutes)
	assertDec(t, "54000", r.Amount)
}

func TestCompute_Periods(t *testing.T) {
	cases := []struct {
		period accrual.SalaryPeriod
		salary any
	}{
		{accrual.PeriodMonthly, "$ 300.000"},
		{accrual.PeriodBiweekly, 150000},
		{accrual.PeriodWeekly, "70.000,00"},
		{accrual.PeriodDaily, 10000},
	}
	for _, tc := range cases {
		t.Run(string(tc.period), func(t *testing.T) {
			in := monthlyShift("17:00")
			in.Period = tc.period
			in.Salary = tc.salary
			r := accrual.Compute(in)
			assertDec(t, "10000", r.Amount)
		})
	}
}

func TestCompute_NoCap(t *testing.T) {
	// 09:00 to 08:59 is a 1439 minute shift; nothing caps it at a day's pay.
	r := accrual.Compute(monthlyShift("08:59"))
	assert.Equal(t, 1439, r.WorkedMinutes)
	assert.True(t, r.Amount.GreaterThan(dec("29000")))
}

func TestCompute_RoundsHalfUp(t *testing.T) {
	// 1 per day over a 2 minute schedule, 1 minute worked: 0.5 -> 1
	r := accrual.Compute(accrual.Input{
		Salary: 1, Period: accrual.PeriodDaily,
		OfficialStart: "09:00", OfficialEnd: "09:02",
		WorkedStart: "09:00", WorkedEnd: "09:01",
	})
	assertDec(t, "1", r.Amount)

	// 100 per day over 3 minutes: 1 minute = 33.33 -> 33, 2 minutes = 66.67 -> 67
	in := accrual.Input{
		Salary: 100, Period: accrual.PeriodDaily,
		OfficialStart: "09:00", OfficialEnd: "09:03",
		WorkedStart: "09:00", WorkedEnd: "09:01",
	}
	assertDec(t, "33", accrual.Compute(in).Amount)
	in.WorkedEnd = "09:02"
	assertDec(t, "67", accrual.Compute(in).Amount)
}

// =============================================================================
// CALCULATOR - degenerate input
// =============================================================================

func TestCompute_ZeroOfficialSchedule(t *testing.T) {
	in := monthlyShift("19:00")
	in.OfficialEnd = "09:00"

	var r accrual.Result
	require.NotPanics(t, func() { r = accrual.Compute(in) })

	assert.Equal(t, 0, r.OfficialMinutes)
	assertDec(t, "0", r.MinuteValue)
	assertDec(t, "0", r.Amount)
	assertDec(t, "10000", r.DailyBase)
}

func TestCompute_ZeroWorked(t *testing.T) {
	r := accrual.Compute(monthlyShift("09:00"))
	assert.Equal(t, 0, r.WorkedMinutes)
	assertDec(t, "0", r.Amount)
}

func TestCompute_MalformedSalary(t *testing.T) {
	in := monthlyShift("19:00")
	in.Salary = "consultar"
	r := accrual.Compute(in)
	assertDec(t, "0", r.DailyBase)
	assertDec(t, "0", r.Amount)
}

func TestCompute_NegativeSalaryClampedWhenDegenerate(t *testing.T) {
	in := monthlyShift("09:00")
	in.Salary = -300000
	r := accrual.Compute(in)
	assertDec(t, "0", r.DailyBase)
	assertDec(t, "0", r.Amount)
}

// =============================================================================
// CALCULATOR - properties
// =============================================================================

func TestCompute_MatchesClosedForm(t *testing.T) {
	salaries := []float64{123456, 300000, 987654.32}
	factors := []float64{1, 1.25, 1.5, 2}
	ends := []string{"10:17", "16:59", "17:00", "18:45", "23:10", "02:30"}

	for _, s := range salaries {
		for _, ot := range factors {
			for _, end := range ends {
				name := fmt.Sprintf("%v/%v/%s", s, ot, end)
				otf := decimal.NewFromFloat(ot)
				in := monthlyShift(end)
				in.Salary = s
				in.OvertimeFactor = &otf
				r := accrual.Compute(in)

				w := float64(r.WorkedMinutes)
				o := float64(r.OfficialMinutes)
				daily := s / 30
				want := math.Floor((math.Min(w, o)+math.Max(w-o, 0)*ot)*daily/o + 0.5)
				got, _ := r.Amount.Float64()
				assert.InDelta(t, want, got, 1, name)

				if r.WorkedMinutes <= r.OfficialMinutes {
					assert.Equal(t, 0, r.ExtraMinutes, name)
					assert.True(t, r.ExtraAmount.IsZero(), name)
				}
			}
		}
	}
}

func TestCompute_MonotonicInWorkedMinutes(t *testing.T) {
	prev := decimal.NewFromInt(-1)
	for m := 9*60 + 1; m < 24*60; m += 7 {
		end := fmt.Sprintf("%02d:%02d", m/60, m%60)
		r := accrual.Compute(monthlyShift(end))
		assert.False(t, r.Amount.LessThan(prev), "amount dropped at %s", end)
		prev = r.Amount
	}
}

func TestCalculator_Defaults(t *testing.T) {
	c := accrual.NewCalculator()
	c.HolidayFactor = dec("1.5")

	in := monthlyShift("17:00")
	in.IsHoliday = true
	assertDec(t, "15000", c.Compute(in).Amount)
}

func TestResultMeta_RoundTrip(t *testing.T) {
	r := accrual.Compute(monthlyShift("19:00"))
	back := accrual.ResultFromMeta(r.Meta())

	assertDec(t, r.Amount.String(), back.Amount)
	assertDec(t, r.MinuteValue.String(), back.MinuteValue)
	assert.Equal(t, r.ExtraMinutes, back.ExtraMinutes)
	assert.Equal(t, r.IsHoliday, back.IsHoliday)
}

// =============================================================================
// LATENESS
// =============================================================================

func TestLateness_Window(t *testing.T) {
	cases := []struct {
		actual  string
		late    bool
		minutes int
	}{
		{"08:50", false, 0},
		{"09:00", false, 0},
		{"09:10", false, 0},
		{"09:11", true, 11},
		{"12:59", true, 239},
		{"13:00", false, 0},
		{"18:00", false, 0},
		{"", false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.actual, func(t *testing.T) {
			minutes, late := accrual.DefaultLateness.Check("09:00", tc.actual)
			assert.Equal(t, tc.late, late)
			assert.Equal(t, tc.minutes, minutes)
		})
	}
	assert.False(t, accrual.IsLate("", "09:30"))
}
