package backend

import (
	"errors"
	"time"
)

// Config 开发服务配置
type Config struct {
	Token        string        // 非空时要求 Bearer 认证，/health 除外
	DefaultLimit int           // 未指定 limit 时返回的条数
	MaxLimit     int           // limit 上限
	PingInterval time.Duration // SSE 保活注释的间隔
	FeedInterval time.Duration // 模拟数据注入间隔，0 表示不注入
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DefaultLimit: 100,
		MaxLimit:     1000,
		PingInterval: 15 * time.Second,
		FeedInterval: 3 * time.Second,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.DefaultLimit <= 0 {
		return errors.New("默认条数必须大于0")
	}
	if c.MaxLimit < c.DefaultLimit {
		return errors.New("条数上限不能小于默认条数")
	}
	if c.PingInterval <= 0 {
		return errors.New("保活间隔必须大于0")
	}
	if c.FeedInterval < 0 {
		return errors.New("注入间隔不能为负数")
	}
	return nil
}
