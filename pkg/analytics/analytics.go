// Package analytics 对窗口中的测速数据做过滤与聚合，供看板各面板使用
// 所有函数都是纯函数，不修改输入
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// UnknownSensor 未知传感器的分组名
const UnknownSensor = "Unknown"

// Criteria 看板过滤条件
type Criteria struct {
	Sensors      []string    // 选中的传感器，为空表示全部
	Lanes        []core.Lane // 选中的车道
	EnableAlerts bool        // 启用后只保留阈值范围内的数据
	ThresholdMin float64
	ThresholdMax float64
}

// Apply 返回满足条件的数据，保持原有顺序
func (c Criteria) Apply(readings []core.Reading) []core.Reading {
	out := make([]core.Reading, 0, len(readings))
	for _, r := range readings {
		if !c.matchSensor(r.Sensor) || !c.matchLane(r.Lane) {
			continue
		}
		if c.EnableAlerts && (r.Speed < c.ThresholdMin || r.Speed > c.ThresholdMax) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (c Criteria) matchSensor(name string) bool {
	if len(c.Sensors) == 0 {
		return true
	}
	for _, s := range c.Sensors {
		if s == name {
			return true
		}
	}
	return false
}

func (c Criteria) matchLane(lane core.Lane) bool {
	for _, l := range c.Lanes {
		if l == lane {
			return true
		}
	}
	return false
}

// Summary 汇总统计
type Summary struct {
	Avg   float64
	Max   float64
	Min   float64
	Total int
}

// Summarize 计算平均、最高、最低速度，保留一位小数；无数据时全部为0
func Summarize(readings []core.Reading) Summary {
	if len(readings) == 0 {
		return Summary{}
	}

	sum := 0.0
	max, min := math.Inf(-1), math.Inf(1)
	for _, r := range readings {
		sum += r.Speed
		max = math.Max(max, r.Speed)
		min = math.Min(min, r.Speed)
	}

	return Summary{
		Avg:   Round1(sum / float64(len(readings))),
		Max:   Round1(max),
		Min:   Round1(min),
		Total: len(readings),
	}
}

// Round1 四舍五入到一位小数
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// sensorName 返回分组用的传感器名
func sensorName(r core.Reading) string {
	if r.Sensor == "" {
		return UnknownSensor
	}
	return r.Sensor
}

// BySensor 按传感器分组统计，结果按名称排序
func BySensor(readings []core.Reading) []*core.Stats {
	groups := make(map[string]*core.Stats)
	for _, r := range readings {
		name := sensorName(r)
		s, ok := groups[name]
		if !ok {
			s = core.NewStats(name)
			groups[name] = s
		}
		s.Add(r.Speed)
	}

	out := make([]*core.Stats, 0, len(groups))
	for _, s := range groups {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Identifier < out[j].Identifier
	})
	return out
}

// TopSensors 返回数据量最多的 n 个传感器，数量相同时平均速度高者在前
func TopSensors(readings []core.Reading, n int) []*core.Stats {
	stats := BySensor(readings)
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		return stats[i].Mean() > stats[j].Mean()
	})
	if n >= 0 && len(stats) > n {
		stats = stats[:n]
	}
	return stats
}

// LaneStats 单个车道的统计
type LaneStats struct {
	Lane  core.Lane
	Count int
	Avg   float64
	Max   float64
	Min   float64
}

// LaneSplit 按车道统计，顺序与 core.Lanes 一致
func LaneSplit(readings []core.Reading) []LaneStats {
	lanes := core.Lanes()
	out := make([]LaneStats, len(lanes))
	for i, lane := range lanes {
		var subset []core.Reading
		for _, r := range readings {
			if r.Lane == lane {
				subset = append(subset, r)
			}
		}
		s := Summarize(subset)
		out[i] = LaneStats{Lane: lane, Count: s.Total, Avg: s.Avg, Max: s.Max, Min: s.Min}
	}
	return out
}

// 速度分布范围
const (
	HistogramMin     = 0.0
	HistogramMax     = 400.0
	DefaultBinSize   = 25.0
	histogramMaxBins = 1000
)

// Bin 速度分布区间 [Low, High)
type Bin struct {
	Low   float64
	High  float64
	Count int
}

// SpeedHistogram 在 0..400 范围内按 binSize 统计速度分布，超出范围的数据不计入
func SpeedHistogram(readings []core.Reading, binSize float64) []Bin {
	if binSize <= 0 {
		binSize = DefaultBinSize
	}
	n := int(math.Ceil((HistogramMax - HistogramMin) / binSize))
	if n > histogramMaxBins {
		n = histogramMaxBins
	}

	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Low = HistogramMin + float64(i)*binSize
		bins[i].High = bins[i].Low + binSize
	}

	for _, r := range readings {
		if r.Speed < HistogramMin || r.Speed >= HistogramMax {
			continue
		}
		idx := int(math.Floor((r.Speed - HistogramMin) / binSize))
		if idx >= 0 && idx < n {
			bins[idx].Count++
		}
	}
	return bins
}

// HourPoint 某个本地小时的统计
type HourPoint struct {
	Hour  time.Time // 小时起点（本地时区）
	Count int
	Avg   float64
}

// HourlyTrend 按本地小时分组，结果按时间排序
func HourlyTrend(readings []core.Reading) []HourPoint {
	type acc struct {
		count int
		sum   float64
	}
	groups := make(map[time.Time]*acc)
	for _, r := range readings {
		t := r.Timestamp.Local()
		hour := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.Local)
		a, ok := groups[hour]
		if !ok {
			a = &acc{}
			groups[hour] = a
		}
		a.count++
		a.sum += r.Speed
	}

	out := make([]HourPoint, 0, len(groups))
	for hour, a := range groups {
		out = append(out, HourPoint{Hour: hour, Count: a.count, Avg: Round1(a.sum / float64(a.count))})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Hour.Before(out[j].Hour)
	})
	return out
}

// Alerts 返回阈值范围外的数据
func Alerts(readings []core.Reading, min, max float64) []core.Reading {
	var out []core.Reading
	for _, r := range readings {
		if r.Speed < min || r.Speed > max {
			out = append(out, r)
		}
	}
	return out
}

// AvailableSensors 返回去重排序后的传感器名称，忽略未知传感器
func AvailableSensors(readings []core.Reading) []string {
	seen := make(map[string]struct{})
	for _, r := range readings {
		if r.Sensor != "" {
			seen[r.Sensor] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
