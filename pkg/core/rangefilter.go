// Package core 日期范围过滤
package core

import "time"

// FilterByRange 按日期范围收窄窗口数据，防止服务端与客户端的过滤或时钟偏差
// 实时模式原样返回；今天模式保留 [本地今日零点, 明日零点)；自定义模式保留 [start, end]
func FilterByRange(readings []Reading, mode DateRangeMode, start, end *time.Time, now time.Time) []Reading {
	switch mode {
	case RangeToday:
		dayStart, dayEnd := LocalDayBounds(now)
		return filterReadings(readings, func(ts time.Time) bool {
			return !ts.Before(dayStart) && ts.Before(dayEnd)
		})
	case RangeCustom:
		if start == nil || end == nil {
			return readings
		}
		lo, hi := *start, *end
		return filterReadings(readings, func(ts time.Time) bool {
			return !ts.Before(lo) && !ts.After(hi)
		})
	default:
		return readings
	}
}

// LocalDayBounds 返回now所在时区当天的零点和次日零点
func LocalDayBounds(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return dayStart, dayStart.AddDate(0, 0, 1)
}

// filterReadings 保留时间戳满足条件的数据，顺序不变
func filterReadings(readings []Reading, keep func(time.Time) bool) []Reading {
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		if keep(r.Timestamp) {
			out = append(out, r)
		}
	}
	return out
}
