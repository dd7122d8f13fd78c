package accrual

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Meta keys written on ledger movements that carry an accrual breakdown.
const (
	MetaDailyBase       = "daily_base"
	MetaOfficialMinutes = "official_minutes"
	MetaWorkedMinutes   = "worked_minutes"
	MetaMinuteValue     = "minute_value"
	MetaBaseMinutes     = "base_minutes"
	MetaExtraMinutes    = "extra_minutes"
	MetaBaseAmount      = "base_amount"
	MetaExtraAmount     = "extra_amount"
	MetaAmount          = "amount"
	MetaIsHoliday       = "is_holiday"
	MetaHolidayFactor   = "holiday_factor"
	MetaOvertimeFactor  = "overtime_factor"
)

// Meta flattens the breakdown into ledger metadata.
func (r Result) Meta() map[string]string {
	return map[string]string{
		MetaDailyBase:       r.DailyBase.String(),
		MetaOfficialMinutes: strconv.Itoa(r.OfficialMinutes),
		MetaWorkedMinutes:   strconv.Itoa(r.WorkedMinutes),
		MetaMinuteValue:     r.MinuteValue.String(),
		MetaBaseMinutes:     strconv.Itoa(r.BaseMinutes),
		MetaExtraMinutes:    strconv.Itoa(r.ExtraMinutes),
		MetaBaseAmount:      r.BaseAmount.String(),
		MetaExtraAmount:     r.ExtraAmount.String(),
		MetaAmount:          r.Amount.String(),
		MetaIsHoliday:       strconv.FormatBool(r.IsHoliday),
		MetaHolidayFactor:   r.HolidayFactor.String(),
		MetaOvertimeFactor:  r.OvertimeFactor.String(),
	}
}

// ResultFromMeta rebuilds a breakdown from ledger metadata. Missing or
// malformed keys read as zero.
func ResultFromMeta(m map[string]string) Result {
	dec := func(k string) decimal.Decimal {
		d, err := decimal.NewFromString(m[k])
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	num := func(k string) int {
		n, _ := strconv.Atoi(m[k])
		return n
	}
	holiday, _ := strconv.ParseBool(m[MetaIsHoliday])

	return Result{
		DailyBase:       dec(MetaDailyBase),
		OfficialMinutes: num(MetaOfficialMinutes),
		WorkedMinutes:   num(MetaWorkedMinutes),
		MinuteValue:     dec(MetaMinuteValue),
		Amount:          dec(MetaAmount),
		BaseMinutes:     num(MetaBaseMinutes),
		ExtraMinutes:    num(MetaExtraMinutes),
		BaseAmount:      dec(MetaBaseAmount),
		ExtraAmount:     dec(MetaExtraAmount),
		IsHoliday:       holiday,
		HolidayFactor:   dec(MetaHolidayFactor),
		OvertimeFactor:  dec(MetaOvertimeFactor),
	}
}
