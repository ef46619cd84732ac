// Package period derives billing and payout period bounds from a cadence.
package period

import (
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
)

// Period 周期区间，Start 含，End 不含
type Period struct {
	Start time.Time
	End   time.Time
}

// UTC 返回转换为 UTC 的区间，用于持久化和等值查询
func (p Period) UTC() Period {
	return Period{Start: p.Start.UTC(), End: p.End.UTC()}
}

// Contains 判断时间点是否落在区间内
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Override 调用方显式指定的区间
type Override struct {
	Start time.Time
	End   time.Time
}

// Calculator 周期计算器
type Calculator struct {
	loc *time.Location
}

// NewCalculator 创建周期计算器，loc 为 nil 时使用 UTC
func NewCalculator(loc *time.Location) *Calculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Calculator{loc: loc}
}

// Location 返回计算使用的时区
func (c *Calculator) Location() *time.Location {
	return c.loc
}

// Compute 计算最近一个已结束的周期
func (c *Calculator) Compute(cadence model.PayoutCadence, now time.Time, override *Override) Period {
	if override != nil {
		return Period{Start: override.Start, End: override.End}
	}

	local := now.In(c.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)

	switch cadence {
	case model.PayoutCadenceWeekly:
		end := lastSunday(midnight)
		return Period{Start: end.AddDate(0, 0, -7), End: end}
	case model.PayoutCadenceBiweekly:
		end := lastSunday(midnight)
		return Period{Start: end.AddDate(0, 0, -14), End: end}
	default:
		end := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, c.loc)
		return Period{Start: end.AddDate(0, -1, 0), End: end}
	}
}

// Monthly 计提引擎使用的月度周期
func (c *Calculator) Monthly(now time.Time) Period {
	return c.Compute(model.PayoutCadenceMonthly, now, nil)
}

func lastSunday(midnight time.Time) time.Time {
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}
