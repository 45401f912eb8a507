// Package schedule turns an approved amount into a dated list of installments.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/shopspring/decimal"
)

// FirstPaymentOffset is the setup buffer between the start date and the first due date.
const FirstPaymentOffset = 7 * 24 * time.Hour

// WeeksPerMonth converts a duration in months to a weekly installment count.
const WeeksPerMonth = 4

// ErrInvalidScheduleInput is returned for a non-positive amount or count, or
// when the amount is too small to leave a positive last installment.
var ErrInvalidScheduleInput = errors.New("invalid schedule input")

// IDFunc mints installment ids.
type IDFunc func() string

// Generate builds a schedule that sums exactly to total.
// Every installment but the last is ceil(total/count); the last takes the remainder.
func Generate(total decimal.Decimal, freq models.Frequency, count int, start time.Time, newID IDFunc) (models.PaymentSchedule, error) {
	if count < 1 {
		return models.PaymentSchedule{}, fmt.Errorf("%w: installment count must be at least 1, got %d", ErrInvalidScheduleInput, count)
	}
	if !total.IsPositive() {
		return models.PaymentSchedule{}, fmt.Errorf("%w: total amount must be positive, got %s", ErrInvalidScheduleInput, total)
	}
	if !freq.Valid() {
		return models.PaymentSchedule{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidScheduleInput, freq)
	}

	per := total.Div(decimal.NewFromInt(int64(count))).Ceil()
	last := total.Sub(per.Mul(decimal.NewFromInt(int64(count - 1))))
	if !last.IsPositive() {
		return models.PaymentSchedule{}, fmt.Errorf("%w: %s cannot be split into %d installments", ErrInvalidScheduleInput, total, count)
	}

	first := start.Add(FirstPaymentOffset)
	installments := make([]models.Installment, count)
	for i := 0; i < count; i++ {
		amount := per
		if i == count-1 {
			amount = last
		}
		installments[i] = models.Installment{
			ID:      newID(),
			DueDate: DueDate(first, freq, i),
			Amount:  amount,
			Status:  models.InstallmentPending,
		}
	}

	return models.PaymentSchedule{
		Frequency:            freq,
		InstallmentCount:     count,
		PerInstallmentAmount: per,
		Total:                total,
		StartDate:            first,
		EndDate:              installments[count-1].DueDate,
		Installments:         installments,
	}, nil
}

// DueDate returns the due date of the i-th (0-based) installment.
// Monthly dates follow calendar months without weekend or holiday adjustment;
// a day past the end of the target month falls on its last day.
func DueDate(first time.Time, freq models.Frequency, i int) time.Time {
	if freq == models.FrequencyWeekly {
		return first.AddDate(0, 0, 7*i)
	}
	y, m, d := first.Date()
	target := m + time.Month(i)
	if last := time.Date(y, target+1, 0, 0, 0, 0, 0, first.Location()).Day(); d > last {
		d = last
	}
	return time.Date(y, target, d, first.Hour(), first.Minute(), first.Second(), first.Nanosecond(), first.Location())
}

// InstallmentCount converts a duration in months into a number of installments.
func InstallmentCount(durationMonths int, freq models.Frequency) int {
	if freq == models.FrequencyWeekly {
		return durationMonths * WeeksPerMonth
	}
	return durationMonths
}
