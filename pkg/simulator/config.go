// Package simulator 配置定义
package simulator

import (
	"errors"
	"time"

	"github.com/Kevin-Rudy/gospeed/pkg/timeutil"
)

// Config 模拟数据源的配置结构
type Config struct {
	Interval   time.Duration // 生成新记录的间隔
	FirstID    int64         // 第一条实时记录的编号
	BufferSize int           // 事件通道缓冲区大小
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Interval:   3 * time.Second, // 与看板默认更新间隔一致
		FirstID:    1,
		BufferSize: 16,
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("模拟间隔必须大于0")
	}

	if c.FirstID <= 0 {
		return errors.New("起始编号必须为正整数")
	}

	if c.BufferSize <= 0 {
		return errors.New("缓冲区大小必须大于0")
	}

	return nil
}

// Option 配置选项函数类型
type Option func(*Config)

// WithInterval 设置生成间隔
func WithInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.Interval = interval
	}
}

// WithFirstID 设置起始编号
func WithFirstID(id int64) Option {
	return func(c *Config) {
		c.FirstID = id
	}
}

// WithBufferSize 设置缓冲区大小
func WithBufferSize(size int) Option {
	return func(c *Config) {
		c.BufferSize = size
	}
}

// NewSourceWithOptions 使用选项模式创建模拟数据源
func NewSourceWithOptions(gen *Generator, clock timeutil.Clock, opts ...Option) (*Source, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return NewSource(gen, clock, config)
}
