package period

import (
	"testing"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestComputeMonthly(t *testing.T) {
	c := NewCalculator(time.UTC)
	now := time.Date(2026, time.March, 17, 15, 30, 0, 0, time.UTC)

	p := c.Compute(model.PayoutCadenceMonthly, now, nil)

	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), p.End)
}

func TestComputeMonthlyJanuaryWrapsYear(t *testing.T) {
	c := NewCalculator(time.UTC)
	now := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)

	p := c.Monthly(now)

	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), p.End)
}

func TestComputeUnknownCadenceFallsBackToMonthly(t *testing.T) {
	c := NewCalculator(nil)
	now := time.Date(2026, time.May, 20, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, c.Monthly(now), c.Compute("quarterly", now, nil))
}

func TestComputeWeekly(t *testing.T) {
	c := NewCalculator(time.UTC)
	// 2026-10-14 是星期三
	now := time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

	p := c.Compute(model.PayoutCadenceWeekly, now, nil)

	assert.Equal(t, time.Date(2026, time.October, 11, 0, 0, 0, 0, time.UTC), p.End)
	assert.Equal(t, time.Sunday, p.End.Weekday())
	assert.Equal(t, time.Date(2026, time.October, 4, 0, 0, 0, 0, time.UTC), p.Start)
}

func TestComputeWeeklyOnSunday(t *testing.T) {
	c := NewCalculator(time.UTC)
	now := time.Date(2026, time.October, 18, 23, 59, 0, 0, time.UTC)

	p := c.Compute(model.PayoutCadenceWeekly, now, nil)

	assert.Equal(t, time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC), p.End)
}

func TestComputeBiweekly(t *testing.T) {
	c := NewCalculator(time.UTC)
	now := time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

	p := c.Compute(model.PayoutCadenceBiweekly, now, nil)

	assert.Equal(t, time.Date(2026, time.October, 11, 0, 0, 0, 0, time.UTC), p.End)
	assert.Equal(t, time.Date(2026, time.September, 27, 0, 0, 0, 0, time.UTC), p.Start)
}

func TestComputeOverrideUsedVerbatim(t *testing.T) {
	c := NewCalculator(time.UTC)
	start := time.Date(2026, time.June, 3, 12, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.June, 9, 0, 0, 0, 0, time.UTC)

	p := c.Compute(model.PayoutCadenceWeekly, time.Now(), &Override{Start: start, End: end})

	assert.Equal(t, start, p.Start)
	assert.Equal(t, end, p.End)
}

func TestComputeUsesCalculatorLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	c := NewCalculator(loc)
	// UTC 3 月 1 日凌晨在 UTC-5 仍是 2 月
	now := time.Date(2026, time.March, 1, 2, 0, 0, 0, time.UTC)

	p := c.Monthly(now)

	assert.Equal(t, time.Date(2026, time.February, 1, 0, 0, 0, 0, loc), p.End)
	assert.Equal(t, time.Date(2026, time.February, 1, 5, 0, 0, 0, time.UTC), p.UTC().End)
}

func TestPeriodContains(t *testing.T) {
	p := Period{
		Start: time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	}

	assert.True(t, p.Contains(p.Start))
	assert.False(t, p.Contains(p.End))
}
