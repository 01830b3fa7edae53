// Package acquisition 配置定义
package acquisition

import (
	"errors"
	"time"
)

// Config 采集控制器的配置结构
type Config struct {
	FlushDelay        time.Duration // 合并写入窗口的防抖间隔
	TodayLimit        int           // 今天模式批量查询的条数上限
	ReconnectDelay    time.Duration // 实时连接中断后重连的等待时间，0 表示不自动重连
	SimulationSeed    int           // 模拟模式历史语料条数
	SimulationSpacing time.Duration // 模拟历史语料的时间间隔
	EventBuffer       int           // 异步事件通道缓冲区大小
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		FlushDelay:        100 * time.Millisecond,
		TodayLimit:        1000,
		ReconnectDelay:    0,
		SimulationSeed:    120, // 两小时，每分钟一条
		SimulationSpacing: time.Minute,
		EventBuffer:       64,
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if c.FlushDelay <= 0 {
		return errors.New("防抖间隔必须大于0")
	}

	if c.TodayLimit <= 0 {
		return errors.New("今天模式的查询上限必须大于0")
	}

	if c.ReconnectDelay < 0 {
		return errors.New("重连等待时间不能为负")
	}

	if c.SimulationSeed < 0 {
		return errors.New("模拟历史条数不能为负")
	}

	if c.SimulationSpacing <= 0 {
		return errors.New("模拟历史间隔必须大于0")
	}

	if c.EventBuffer <= 0 {
		return errors.New("缓冲区大小必须大于0")
	}

	return nil
}
