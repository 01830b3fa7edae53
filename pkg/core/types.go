// Package core 定义了测速看板的核心数据结构和接口
// 这些类型在数据源、采集控制器与展示层之间共享，保证各层完全解耦
package core

import (
	"fmt"
	"strings"
	"time"
)

// Lane 表示赛道车道，只有左右两个取值
type Lane int

const (
	LaneLeft  Lane = iota // 左车道
	LaneRight             // 右车道
)

// String 返回车道的文本表示
func (l Lane) String() string {
	switch l {
	case LaneLeft:
		return "Left"
	case LaneRight:
		return "Right"
	default:
		return fmt.Sprintf("Lane(%d)", int(l))
	}
}

// MarshalText 实现 encoding.TextMarshaler，用于设置文件
func (l Lane) MarshalText() ([]byte, error) {
	switch l {
	case LaneLeft, LaneRight:
		return []byte(l.String()), nil
	default:
		return nil, fmt.Errorf("无效的车道值: %d", int(l))
	}
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (l *Lane) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "left":
		*l = LaneLeft
	case "right":
		*l = LaneRight
	default:
		return fmt.Errorf("无效的车道: %q", string(text))
	}
	return nil
}

// Lanes 返回全部车道，顺序固定
func Lanes() []Lane {
	return []Lane{LaneLeft, LaneRight}
}

// Reading 表示一次传感器测速结果
type Reading struct {
	ID        int64     // 会话内单调分配的编号，服务端也可能分配
	Sensor    string    // 传感器名称，空字符串表示未知传感器
	Speed     float64   // 速度 (km/h)
	Lane      Lane      // 车道
	Timestamp time.Time // 测量时间，用于排序、过滤和显示
}

// NewReading 表示待提交到 POST /api/speeds 的测速数据
type NewReading struct {
	Sensor string
	Speed  float64
	Lane   Lane
}

// Mode 表示数据来源模式
type Mode int

const (
	ModeSimulation Mode = iota // 模拟模式，本地生成数据
	ModeLive                   // 实时模式，连接远程遥测API
)

// String 返回模式名称
func (m Mode) String() string {
	switch m {
	case ModeSimulation:
		return "simulation"
	case ModeLive:
		return "live"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (m Mode) MarshalText() ([]byte, error) {
	if m != ModeSimulation && m != ModeLive {
		return nil, fmt.Errorf("无效的模式值: %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode 解析模式名称
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simulation":
		return ModeSimulation, nil
	case "live":
		return ModeLive, nil
	default:
		return 0, fmt.Errorf("未知的数据模式: %q", s)
	}
}

// DateRangeMode 表示日期范围模式
type DateRangeMode int

const (
	RangeRealtime DateRangeMode = iota // 实时滚动窗口
	RangeToday                         // 今天（本地时区）
	RangeCustom                        // 自定义起止时间
)

// String 返回日期范围模式名称
func (d DateRangeMode) String() string {
	switch d {
	case RangeRealtime:
		return "realtime"
	case RangeToday:
		return "today"
	case RangeCustom:
		return "custom"
	default:
		return fmt.Sprintf("DateRangeMode(%d)", int(d))
	}
}

// MarshalText 实现 encoding.TextMarshaler
func (d DateRangeMode) MarshalText() ([]byte, error) {
	switch d {
	case RangeRealtime, RangeToday, RangeCustom:
		return []byte(d.String()), nil
	default:
		return nil, fmt.Errorf("无效的日期范围模式: %d", int(d))
	}
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (d *DateRangeMode) UnmarshalText(text []byte) error {
	parsed, err := ParseDateRangeMode(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDateRangeMode 解析日期范围模式名称
func ParseDateRangeMode(s string) (DateRangeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "realtime":
		return RangeRealtime, nil
	case "today":
		return RangeToday, nil
	case "custom":
		return RangeCustom, nil
	default:
		return 0, fmt.Errorf("未知的日期范围模式: %q", s)
	}
}
