// Package tui 配置定义
package tui

import (
	"errors"
	"time"
)

// Config TUI组件的配置结构
type Config struct {
	RefreshInterval  time.Duration // UI刷新间隔
	MinChartWidth    int           // 最小图表宽度
	MinChartHeight   int           // 最小图表高度
	ValueBufferRatio float64       // 值缓冲比例
	MaxChartSize     int           // 最大图表尺寸（防止极端值）
	MaxSensorRows    int           // 传感器表格最多显示的行数
	RecordHighlight  time.Duration // 新纪录标记的显示时长
	ModeLabel        string        // 标题栏显示的运行模式
	SettingsPath     string        // 设置文件路径，为空时不保存
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval:  200 * time.Millisecond, // 默认200ms刷新
		MinChartWidth:    20,                     // 最小图表宽度
		MinChartHeight:   5,                      // 最小图表高度
		ValueBufferRatio: 0.1,                    // 10%缓冲
		MaxChartSize:     1000,                   // 最大图表尺寸
		MaxSensorRows:    8,
		RecordHighlight:  3 * time.Second,
		ModeLabel:        "SIMULATION",
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if c.RefreshInterval <= 0 {
		return errors.New("UI刷新间隔必须大于0")
	}

	if c.RefreshInterval < 10*time.Millisecond {
		return errors.New("UI刷新间隔不能小于10ms")
	}

	if c.MinChartWidth <= 0 {
		return errors.New("最小图表宽度必须大于0")
	}

	if c.MinChartHeight <= 0 {
		return errors.New("最小图表高度必须大于0")
	}

	if c.ValueBufferRatio < 0 {
		return errors.New("值缓冲比例不能为负数")
	}

	if c.MaxChartSize <= 0 {
		return errors.New("最大图表尺寸必须大于0")
	}

	if c.MaxSensorRows <= 0 {
		return errors.New("传感器行数必须大于0")
	}

	if c.RecordHighlight < 0 {
		return errors.New("新纪录标记时长不能为负数")
	}

	return nil
}
