// Package core 采集参数定义
package core

import (
	"errors"
	"fmt"
	"time"
)

// Params 采集参数，每个采集周期内不可变
// 参数变化即意味着新的采集周期开始
type Params struct {
	Mode          Mode          // 数据来源模式
	DateRange     DateRangeMode // 日期范围模式
	CustomStart   *time.Time    // 自定义范围起点，可为空
	CustomEnd     *time.Time    // 自定义范围终点，可为空
	PollInterval  time.Duration // 模拟模式下生成新数据的间隔
	MaxDataPoints int           // 内存窗口的最大长度
}

// HasCustomBounds 判断自定义范围的起止时间是否都已设置
func (p Params) HasCustomBounds() bool {
	return p.CustomStart != nil && p.CustomEnd != nil
}

// Validate 验证参数组合，返回的错误属于调用方的编程错误
func (p Params) Validate() error {
	if p.Mode != ModeSimulation && p.Mode != ModeLive {
		return fmt.Errorf("无效的数据模式: %d", int(p.Mode))
	}

	switch p.DateRange {
	case RangeRealtime, RangeToday, RangeCustom:
	default:
		return fmt.Errorf("无效的日期范围模式: %d", int(p.DateRange))
	}

	if p.PollInterval <= 0 {
		return errors.New("更新间隔必须大于0")
	}

	if p.MaxDataPoints <= 0 {
		return errors.New("最大数据点数必须大于0")
	}

	if p.HasCustomBounds() && p.CustomStart.After(*p.CustomEnd) {
		return fmt.Errorf("自定义范围起点 %s 晚于终点 %s",
			p.CustomStart.Format(time.RFC3339), p.CustomEnd.Format(time.RFC3339))
	}

	return nil
}

// Equal 比较两组参数，时间按时刻比较
func (p Params) Equal(other Params) bool {
	return p.Mode == other.Mode &&
		p.DateRange == other.DateRange &&
		p.PollInterval == other.PollInterval &&
		p.MaxDataPoints == other.MaxDataPoints &&
		sameInstant(p.CustomStart, other.CustomStart) &&
		sameInstant(p.CustomEnd, other.CustomEnd)
}

// sameInstant 比较两个可空时间
func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
