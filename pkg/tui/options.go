// Package tui 选项模式支持
package tui

import (
	"time"
)

// Option TUI配置选项函数类型
type Option func(*Config)

// WithRefreshInterval 设置UI刷新间隔
func WithRefreshInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.RefreshInterval = interval
	}
}

// WithChartSize 设置图表尺寸
func WithChartSize(width, height int) Option {
	return func(c *Config) {
		c.MinChartWidth = width
		c.MinChartHeight = height
	}
}

// WithValueBufferRatio 设置值缓冲比例
func WithValueBufferRatio(ratio float64) Option {
	return func(c *Config) {
		c.ValueBufferRatio = ratio
	}
}

// WithMaxSensorRows 设置传感器表格行数
func WithMaxSensorRows(rows int) Option {
	return func(c *Config) {
		c.MaxSensorRows = rows
	}
}

// WithRecordHighlight 设置新纪录标记时长
func WithRecordHighlight(d time.Duration) Option {
	return func(c *Config) {
		c.RecordHighlight = d
	}
}

// WithModeLabel 设置标题栏的运行模式
func WithModeLabel(label string) Option {
	return func(c *Config) {
		c.ModeLabel = label
	}
}

// WithSettingsPath 设置偏好变化后保存的文件
func WithSettingsPath(path string) Option {
	return func(c *Config) {
		c.SettingsPath = path
	}
}

// NewConfigWithOptions 使用选项模式创建TUI配置
func NewConfigWithOptions(opts ...Option) *Config {
	config := DefaultConfig()

	// 应用所有选项
	for _, opt := range opts {
		opt(config)
	}

	return config
}
