// Package tui 数据处理模块
package tui

import (
	"time"

	"github.com/Kevin-Rudy/gospeed/pkg/analytics"
	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// topSensorCount 最活跃传感器面板显示的个数
const topSensorCount = 3

// recompute 按当前设置重新计算所有面板数据，调用方持有写锁
func (t *TUI) recompute(now time.Time) {
	if t.vm.Epoch != t.epoch {
		// 新的采集周期重新建立纪录基线
		t.epoch = t.vm.Epoch
		t.records.Reset()
		t.recordUntil = time.Time{}
	}

	t.filtered = t.prefs.Criteria().Apply(t.vm.Readings)
	t.stats = analytics.Summarize(t.filtered)
	t.lanes = analytics.LaneSplit(t.filtered)
	t.histogram = analytics.SpeedHistogram(t.filtered, analytics.DefaultBinSize)

	t.alertCount = 0
	if t.prefs.EnableAlerts {
		t.alertCount = len(analytics.Alerts(t.vm.Readings, t.prefs.SpeedThresholdMin, t.prefs.SpeedThresholdMax))
	}

	if t.stats.Total > 0 && t.records.Observe(t.stats.Max) {
		t.recordUntil = now.Add(t.tuiConfig.RecordHighlight)
	}

	t.hourly = analytics.HourlyTrend(t.filtered)
	t.periods = analytics.TimePeriods(t.filtered)
	t.heatmap = analytics.ActivityHeatmap(t.filtered)
	t.topSensors = analytics.TopSensors(t.filtered, topSensorCount)

	stats := analytics.BySensor(t.filtered)
	t.averages = stats
	if len(stats) > t.tuiConfig.MaxSensorRows {
		stats = stats[:t.tuiConfig.MaxSensorRows]
	}
	t.sensorStats = stats
	t.updateIdentifiers()
}

// updateIdentifiers 由传感器统计刷新表格行，保持选择状态有效
func (t *TUI) updateIdentifiers() {
	identifiers := make([]string, len(t.sensorStats))
	for i, s := range t.sensorStats {
		identifiers[i] = s.Identifier
	}
	t.identifiers = identifiers

	if t.selectedRow >= len(t.identifiers) {
		t.selectedRow = len(t.identifiers) - 1
	}
}

// isNewRecord 判断新纪录标记是否仍在显示
func (t *TUI) isNewRecord(now time.Time) bool {
	return now.Before(t.recordUntil)
}

// laneSeries 为每个车道生成一条曲线
func (t *TUI) laneSeries() []series {
	out := make([]series, 0, len(core.Lanes()))
	for _, lane := range core.Lanes() {
		var points []chartPoint
		for _, r := range t.filtered {
			if r.Lane == lane {
				points = append(points, chartPoint{ts: r.Timestamp, value: r.Speed})
			}
		}
		out = append(out, series{name: lane.String(), color: laneColor(lane), points: points})
	}
	return out
}

// sensorSeries 生成选中传感器的曲线
func (t *TUI) sensorSeries(identifier string) []series {
	var points []chartPoint
	for _, r := range t.filtered {
		name := r.Sensor
		if name == "" {
			name = analytics.UnknownSensor
		}
		if name == identifier {
			points = append(points, chartPoint{ts: r.Timestamp, value: r.Speed})
		}
	}
	return []series{{name: identifier, color: t.getTargetColor(identifier), points: points}}
}
