// Package analytics 时段与活跃度统计
package analytics

import (
	"fmt"
	"sort"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// Heatmap 传感器 × 本地小时的通过次数矩阵
type Heatmap struct {
	Sensors []string // 行，按名称排序
	Hours   []int    // 列，出现过的本地小时 0..23，升序
	Counts  [][]int  // Counts[i][j] 为 Sensors[i] 在 Hours[j] 的次数
	Max     int      // 单元格最大值，用于着色
}

// ActivityHeatmap 统计每个传感器在一天中各小时的通过次数
func ActivityHeatmap(readings []core.Reading) Heatmap {
	cells := make(map[string]map[int]int)
	hourSeen := make(map[int]bool)
	for _, r := range readings {
		name := sensorName(r)
		hour := r.Timestamp.Local().Hour()
		row, ok := cells[name]
		if !ok {
			row = make(map[int]int)
			cells[name] = row
		}
		row[hour]++
		hourSeen[hour] = true
	}

	h := Heatmap{}
	for name := range cells {
		h.Sensors = append(h.Sensors, name)
	}
	sort.Strings(h.Sensors)
	for hour := range hourSeen {
		h.Hours = append(h.Hours, hour)
	}
	sort.Ints(h.Hours)

	h.Counts = make([][]int, len(h.Sensors))
	for i, name := range h.Sensors {
		h.Counts[i] = make([]int, len(h.Hours))
		for j, hour := range h.Hours {
			n := cells[name][hour]
			h.Counts[i][j] = n
			if n > h.Max {
				h.Max = n
			}
		}
	}
	return h
}

// TimePeriod 一天中的时段
type TimePeriod int

const (
	PeriodMorning   TimePeriod = iota // 6:00-12:00
	PeriodAfternoon                   // 12:00-18:00
	PeriodEvening                     // 18:00-22:00
	PeriodNight                       // 22:00-6:00
)

// String 返回时段名称
func (p TimePeriod) String() string {
	switch p {
	case PeriodMorning:
		return "上午"
	case PeriodAfternoon:
		return "下午"
	case PeriodEvening:
		return "晚上"
	case PeriodNight:
		return "夜间"
	default:
		return fmt.Sprintf("TimePeriod(%d)", int(p))
	}
}

// PeriodOf 返回本地小时所属的时段
func PeriodOf(hour int) TimePeriod {
	switch {
	case hour >= 6 && hour < 12:
		return PeriodMorning
	case hour >= 12 && hour < 18:
		return PeriodAfternoon
	case hour >= 18 && hour < 22:
		return PeriodEvening
	default:
		return PeriodNight
	}
}

// PeriodStats 单个时段的统计，没有数据时均为0
type PeriodStats struct {
	Period TimePeriod
	Count  int
	Avg    float64
	Max    float64
}

// TimePeriods 按时段统计，总是返回四个时段，顺序固定
func TimePeriods(readings []core.Reading) []PeriodStats {
	groups := make([][]core.Reading, PeriodNight+1)
	for _, r := range readings {
		p := PeriodOf(r.Timestamp.Local().Hour())
		groups[p] = append(groups[p], r)
	}

	out := make([]PeriodStats, len(groups))
	for i, subset := range groups {
		s := Summarize(subset)
		out[i] = PeriodStats{Period: TimePeriod(i), Count: s.Total}
		if s.Total > 0 {
			out[i].Avg = s.Avg
			out[i].Max = s.Max
		}
	}
	return out
}
