// Package tui 时间管理模块
package tui

import (
	"time"
)

// minWindow 只有一个时间点时图表横轴的最小跨度
const minWindow = time.Minute

// getTimeWindow 由所有曲线的数据点确定图表的时间窗口
func getTimeWindow(all []series) (start, end time.Time, ok bool) {
	for _, s := range all {
		for _, p := range s.points {
			if !ok || p.ts.Before(start) {
				start = p.ts
			}
			if !ok || p.ts.After(end) {
				end = p.ts
			}
			ok = true
		}
	}
	if !ok {
		return start, end, false
	}

	if end.Sub(start) < minWindow {
		// 数据集中在一处时以其为中心展开
		mid := start.Add(end.Sub(start) / 2)
		start, end = mid.Add(-minWindow/2), mid.Add(minWindow/2)
	}
	return start, end, true
}

// timestampToX 将时间戳转换为X坐标，窗口两端分别对应 0 和 chartWidth-1
func timestampToX(timestamp time.Time, windowStart, windowEnd time.Time, chartWidth int) int {
	windowDuration := windowEnd.Sub(windowStart)
	if windowDuration <= 0 || chartWidth <= 1 {
		return 0
	}

	offset := timestamp.Sub(windowStart)
	if offset < 0 {
		return -1 // 在窗口左边界外
	}
	if offset > windowDuration {
		return chartWidth // 在窗口右边界外
	}

	// 将时间偏移转换为X坐标
	return int(float64(offset) / float64(windowDuration) * float64(chartWidth-1))
}
