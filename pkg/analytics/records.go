package analytics

import (
	"math"
	"sort"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// RecordTracker 跟踪会话最高速度，首次观测只建立基线
type RecordTracker struct {
	best float64
}

// Observe 记录当前最高速度，超过之前的记录时返回 true
func (t *RecordTracker) Observe(max float64) bool {
	if max > t.best && t.best > 0 {
		t.best = max
		return true
	}
	if t.best == 0 {
		t.best = max
	}
	return false
}

// Best 返回当前记录
func (t *RecordTracker) Best() float64 {
	return t.best
}

// Reset 清除记录，新的采集周期开始时调用
func (t *RecordTracker) Reset() {
	t.best = 0
}

// ConsistencyLevel 速度一致性等级
type ConsistencyLevel int

const (
	VeryConsistent ConsistencyLevel = iota
	Consistent
	Moderate
	Variable
)

func (l ConsistencyLevel) String() string {
	switch l {
	case VeryConsistent:
		return "very consistent"
	case Consistent:
		return "consistent"
	case Moderate:
		return "moderate"
	default:
		return "variable"
	}
}

// Consistency 速度离散程度
type Consistency struct {
	Mean   float64
	Median float64
	StdDev float64 // 总体标准差
	CV     float64 // 变异系数 (%)
	Level  ConsistencyLevel
}

// MeasureConsistency 计算均值、中位数、标准差和变异系数，保留一位小数
func MeasureConsistency(readings []core.Reading) Consistency {
	if len(readings) == 0 {
		return Consistency{}
	}

	speeds := make([]float64, len(readings))
	for i, r := range readings {
		speeds[i] = r.Speed
	}
	sort.Float64s(speeds)

	stats := core.NewStats("")
	for _, v := range speeds {
		stats.Add(v)
	}
	mean := stats.Mean()
	stdDev := math.Sqrt(stats.WelfordM2 / float64(stats.Count))

	cv := 0.0
	if mean != 0 {
		cv = stdDev / mean * 100
	}

	return Consistency{
		Mean:   Round1(mean),
		Median: Round1(speeds[len(speeds)/2]),
		StdDev: Round1(stdDev),
		CV:     Round1(cv),
		Level:  levelFor(cv),
	}
}

func levelFor(cv float64) ConsistencyLevel {
	switch {
	case cv < 10:
		return VeryConsistent
	case cv < 20:
		return Consistent
	case cv < 30:
		return Moderate
	default:
		return Variable
	}
}
