package brokerage_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/brokerage/brokerage"
)

func TestMonthWindow_April(t *testing.T) {
	w, err := brokerage.MonthWindow(2023, time.April)
	require.NoError(t, err)

	assert.Equal(t, brokerage.NewDate(2023, time.April, 1), w.Start)
	assert.Equal(t, brokerage.NewDate(2023, time.May, 1), w.End)
	assert.Equal(t, w.End, w.Key(), "period key is the exclusive end")
	assert.Equal(t, "[2023-04-01, 2023-05-01)", w.String())
}

func TestMonthWindow_DecemberRollsOver(t *testing.T) {
	w, err := brokerage.MonthWindow(2023, time.December)
	require.NoError(t, err)

	assert.Equal(t, brokerage.NewDate(2024, time.January, 1), w.End)
	assert.Equal(t, 2023, w.Year())
	assert.Equal(t, time.December, w.Month())
}

func TestMonthWindow_InvalidMonth(t *testing.T) {
	for _, m := range []time.Month{0, 13} {
		_, err := brokerage.MonthWindow(2023, m)
		assert.True(t, errors.Is(err, brokerage.ErrInvalidPeriod), "month %d", m)
	}
}

func TestWindow_ContainsIsHalfOpen(t *testing.T) {
	w := brokerage.MustMonthWindow(2023, time.April)

	assert.True(t, w.Contains(brokerage.NewDate(2023, time.April, 1)))
	assert.True(t, w.Contains(brokerage.NewDate(2023, time.April, 30)))
	assert.False(t, w.Contains(brokerage.NewDate(2023, time.May, 1)))
	assert.False(t, w.Contains(brokerage.NewDate(2023, time.March, 31)))
}

func TestDaysBetween(t *testing.T) {
	listed := brokerage.NewDate(2023, time.March, 1)
	sold := brokerage.NewDate(2023, time.April, 10)

	assert.Equal(t, 40, brokerage.DaysBetween(listed, sold))
	assert.Equal(t, 0, brokerage.DaysBetween(sold, sold))
}

func TestSale_DaysOnMarket(t *testing.T) {
	l := brokerage.Listing{DateOfListing: brokerage.NewDate(2023, time.March, 1)}
	s := brokerage.Sale{DateOfSale: brokerage.NewDate(2023, time.April, 10)}

	assert.Equal(t, 40, s.DaysOnMarket(l))
}

func TestParseDate_RoundTrip(t *testing.T) {
	got, err := brokerage.ParseDate("2023-04-10")
	require.NoError(t, err)
	assert.Equal(t, "2023-04-10", brokerage.FormatDate(got))

	_, err = brokerage.ParseDate("04/10/2023")
	assert.Error(t, err)
}
