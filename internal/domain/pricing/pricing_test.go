package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/money"
)

func TestDailyRateThreeDays(t *testing.T) {
	dr, err := daterange.Parse("2024-01-01", "2024-01-03")
	require.NoError(t, err)

	q, err := Calculate(money.Must(1000, "USD"), listings.UnitDay, dr)
	require.NoError(t, err)
	assert.Equal(t, 3, q.Days)
	assert.Equal(t, int64(3000), q.Total.Amount)
	assert.Equal(t, "USD", q.Total.Currency)
}

func TestTotalBillsEveryDayWhateverTheUnit(t *testing.T) {
	dr, err := daterange.Parse("2024-01-01", "2024-01-03")
	require.NoError(t, err)

	cases := []struct {
		unit  listings.PriceUnit
		units int64
	}{
		{listings.UnitHour, 72},
		{listings.UnitDay, 3},
		{listings.UnitWeek, 1},
		{listings.UnitMonth, 1},
	}
	for _, tc := range cases {
		q, err := Calculate(money.Must(1000, "PKR"), tc.unit, dr)
		require.NoError(t, err)
		assert.Equal(t, int64(3000), q.Total.Amount, tc.unit)
		assert.Equal(t, tc.units, q.Units, tc.unit)
		assert.Equal(t, tc.unit, q.Unit)
	}
}

func TestLongRangeIsPricedExactly(t *testing.T) {
	dr, err := daterange.Parse("2026-01-01", "9999-12-31")
	require.NoError(t, err)

	q, err := Calculate(money.Must(1000, "USD"), listings.UnitDay, dr)
	require.NoError(t, err)
	assert.Equal(t, 2912443, q.Days)
	assert.Equal(t, int64(2912443000), q.Total.Amount)
}

func TestTotalOverflowIsInvalidRange(t *testing.T) {
	dr, err := daterange.Parse("2026-01-01", "2026-01-02")
	require.NoError(t, err)

	_, err = Calculate(money.Must(math.MaxInt64/2+1, "USD"), listings.UnitDay, dr)
	require.ErrorIs(t, err, daterange.ErrInvalidRange)
	require.ErrorIs(t, err, money.ErrOverflow)
}

func TestDisplayUnits(t *testing.T) {
	cases := []struct {
		unit listings.PriceUnit
		days int
		want int64
	}{
		{listings.UnitDay, 1, 1},
		{listings.UnitHour, 2, 48},
		{listings.UnitWeek, 7, 1},
		{listings.UnitWeek, 8, 2},
		{listings.UnitMonth, 30, 1},
		{listings.UnitMonth, 31, 2},
	}
	for _, tc := range cases {
		got, err := DisplayUnits(tc.unit, tc.days)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s x %d", tc.unit, tc.days)
	}
}

func TestUnknownUnit(t *testing.T) {
	_, err := DisplayUnits("fortnight", 3)
	require.ErrorIs(t, err, listings.ErrInvalidUnit)
}

func TestCalculateRequiresCurrency(t *testing.T) {
	dr, _ := daterange.Parse("2024-01-01", "2024-01-01")
	_, err := Calculate(money.Money{Amount: 10}, listings.UnitDay, dr)
	require.ErrorIs(t, err, ErrCurrencyUnset)
}
