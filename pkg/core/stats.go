// Package core 统计累加器
package core

import "math"

// Stats 单个分组（如传感器、车道）的全局统计累加器
type Stats struct {
	Identifier string // 分组标识符（如传感器名称）

	Count int64 // 样本数

	// Welford's Online Algorithm 所需的累加器
	WelfordMean float64 // 均值
	WelfordM2   float64 // M2值

	// 全局最大/最小值
	MinSpeed float64
	MaxSpeed float64
}

// NewStats 创建一个新的Stats实例
func NewStats(identifier string) *Stats {
	return &Stats{
		Identifier: identifier,
		MinSpeed:   math.Inf(1),  // 初始化为正无穷
		MaxSpeed:   math.Inf(-1), // 初始化为负无穷
	}
}

// Add 使用Welford在线算法累加一个样本
func (s *Stats) Add(value float64) {
	s.Count++
	delta := value - s.WelfordMean
	s.WelfordMean += delta / float64(s.Count)
	delta2 := value - s.WelfordMean
	s.WelfordM2 += delta * delta2

	if value < s.MinSpeed {
		s.MinSpeed = value
	}
	if value > s.MaxSpeed {
		s.MaxSpeed = value
	}
}

// Mean 返回均值，无样本时为NaN
func (s *Stats) Mean() float64 {
	if s.Count == 0 {
		return math.NaN()
	}
	return s.WelfordMean
}

// StdDev 返回样本标准差，少于两个样本时为NaN
func (s *Stats) StdDev() float64 {
	if s.Count < 2 {
		return math.NaN()
	}
	return math.Sqrt(s.WelfordM2 / float64(s.Count-1))
}
