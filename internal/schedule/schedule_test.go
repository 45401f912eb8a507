package schedule

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("inst-%d", n)
	}
}

func amounts(s models.PaymentSchedule) []string {
	out := make([]string, len(s.Installments))
	for i, in := range s.Installments {
		out[i] = in.Amount.String()
	}
	return out
}

func TestGenerate_AbsorbsRemainderInLastInstallment(t *testing.T) {
	start := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	s, err := Generate(decimal.NewFromInt(1000), models.FrequencyMonthly, 3, start, seqIDs())
	require.NoError(t, err)

	assert.Equal(t, []string{"334", "334", "332"}, amounts(s))
	assert.Equal(t, "334", s.PerInstallmentAmount.String())
	assert.Equal(t, "1000", s.Total.String())
}

func TestGenerate_EvenSplit(t *testing.T) {
	s, err := Generate(decimal.NewFromInt(900), models.FrequencyMonthly, 3, time.Now(), seqIDs())
	require.NoError(t, err)
	assert.Equal(t, []string{"300", "300", "300"}, amounts(s))
}

func TestGenerate_TwoThousandOverThree(t *testing.T) {
	s, err := Generate(decimal.NewFromInt(2000), models.FrequencyMonthly, 3, time.Now(), seqIDs())
	require.NoError(t, err)
	assert.Equal(t, []string{"667", "667", "666"}, amounts(s))
}

func TestGenerate_MonthlyDueDates(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s, err := Generate(decimal.NewFromInt(300), models.FrequencyMonthly, 3, start, seqIDs())
	require.NoError(t, err)

	first := time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, first, s.StartDate)
	assert.Equal(t, first, s.Installments[0].DueDate)
	assert.Equal(t, time.Date(2026, 4, 8, 12, 0, 0, 0, time.UTC), s.Installments[1].DueDate)
	assert.Equal(t, time.Date(2026, 5, 8, 12, 0, 0, 0, time.UTC), s.Installments[2].DueDate)
	assert.Equal(t, s.Installments[2].DueDate, s.EndDate)
}

func TestGenerate_MonthlyDueDatesClampToMonthEnd(t *testing.T) {
	cases := []struct {
		name  string
		start time.Time
		want  []time.Time
	}{
		{
			name:  "31st through february",
			start: time.Date(2025, 1, 24, 10, 0, 0, 0, time.UTC),
			want: []time.Time{
				time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC),
				time.Date(2025, 2, 28, 10, 0, 0, 0, time.UTC),
				time.Date(2025, 3, 31, 10, 0, 0, 0, time.UTC),
			},
		},
		{
			name:  "29th in a leap year",
			start: time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC),
			want: []time.Time{
				time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 29, 0, 0, 0, 0, time.UTC),
			},
		},
		{
			name:  "31st across the year end",
			start: time.Date(2025, 10, 24, 0, 0, 0, 0, time.UTC),
			want: []time.Time{
				time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC),
				time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
				time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := Generate(decimal.NewFromInt(1000), models.FrequencyMonthly, len(tc.want), tc.start, seqIDs())
			require.NoError(t, err)
			for i, in := range s.Installments {
				assert.Equal(t, tc.want[i], in.DueDate, "installment %d", i)
			}
		})
	}
}

func TestGenerate_WeeklyDueDates(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	s, err := Generate(decimal.NewFromInt(400), models.FrequencyWeekly, 4, start, seqIDs())
	require.NoError(t, err)

	for i, in := range s.Installments {
		assert.Equal(t, time.Date(2026, 3, 8+7*i, 0, 0, 0, 0, time.UTC), in.DueDate)
		assert.Equal(t, models.InstallmentPending, in.Status)
	}
}

func TestGenerate_AssignsDistinctIDs(t *testing.T) {
	s, err := Generate(decimal.NewFromInt(100), models.FrequencyWeekly, 5, time.Now(), seqIDs())
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, in := range s.Installments {
		assert.False(t, seen[in.ID], "duplicate id %s", in.ID)
		seen[in.ID] = true
	}
}

func TestGenerate_RejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name  string
		total decimal.Decimal
		freq  models.Frequency
		count int
	}{
		{"zero count", decimal.NewFromInt(100), models.FrequencyMonthly, 0},
		{"negative count", decimal.NewFromInt(100), models.FrequencyMonthly, -2},
		{"zero total", decimal.Zero, models.FrequencyMonthly, 3},
		{"negative total", decimal.NewFromInt(-5), models.FrequencyMonthly, 3},
		{"unknown frequency", decimal.NewFromInt(100), models.Frequency("daily"), 3},
		{"no room for last installment", decimal.NewFromInt(100), models.FrequencyWeekly, 48},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Generate(tc.total, tc.freq, tc.count, time.Now(), seqIDs())
			assert.ErrorIs(t, err, ErrInvalidScheduleInput)
		})
	}
}

func TestInstallmentCount(t *testing.T) {
	assert.Equal(t, 6, InstallmentCount(6, models.FrequencyMonthly))
	assert.Equal(t, 24, InstallmentCount(6, models.FrequencyWeekly))
}

// Property: the installments always sum to the requested total.
func TestGenerate_SumInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("installments sum exactly to total", prop.ForAll(
		func(cents int64, count int) bool {
			total := decimal.New(cents, -2)
			s, err := Generate(total, models.FrequencyMonthly, count, time.Now(), seqIDs())
			per := total.Div(decimal.NewFromInt(int64(count))).Ceil()
			if per.Mul(decimal.NewFromInt(int64(count - 1))).GreaterThanOrEqual(total) {
				return errors.Is(err, ErrInvalidScheduleInput)
			}
			if err != nil {
				return false
			}
			sum := decimal.Zero
			for _, in := range s.Installments {
				sum = sum.Add(in.Amount)
			}
			return sum.Equal(total) && len(s.Installments) == count
		},
		gen.Int64Range(1, 50_000_000),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}
