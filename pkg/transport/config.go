// Package transport 配置定义
package transport

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Config 遥测API客户端的配置结构
type Config struct {
	BaseURL           string        // API根地址，如 https://192.168.1.100:3000
	Token             string        // 静态Bearer令牌，为空时不发送
	UseProxy          bool          // 使用同源中继路径 /api/proxy 与 /api/proxy-stream
	InsecureTLS       bool          // 接受自签名证书，仅用于开发环境
	RequestTimeout    time.Duration // 单次批量请求超时
	StreamIdleTimeout time.Duration // HTTP/2 连接空闲多久后发送PING
	StreamPingTimeout time.Duration // PING无响应多久后判定连接失效
	StreamBuffer      int           // 实时事件通道缓冲区大小
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		BaseURL:           "http://192.168.1.100:3000",
		RequestTimeout:    10 * time.Second,
		StreamIdleTimeout: 30 * time.Second,
		StreamPingTimeout: 15 * time.Second,
		StreamBuffer:      64,
	}
}

// Validate 验证配置的合理性
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New("API地址不能为空")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("无法解析API地址 '%s': %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API地址必须以http或https开头: %s", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("API地址缺少主机名: %s", c.BaseURL)
	}

	if c.RequestTimeout <= 0 {
		return errors.New("请求超时时间必须大于0")
	}

	if c.StreamIdleTimeout < 0 || c.StreamPingTimeout < 0 {
		return errors.New("连接健康检查时间不能为负")
	}

	if c.StreamBuffer <= 0 {
		return errors.New("缓冲区大小必须大于0")
	}

	return nil
}

// Option 配置选项函数类型
type Option func(*Config)

// WithBaseURL 设置API根地址
func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

// WithToken 设置Bearer令牌
func WithToken(token string) Option {
	return func(c *Config) {
		c.Token = token
	}
}

// WithProxy 设置是否使用中继路径
func WithProxy(useProxy bool) Option {
	return func(c *Config) {
		c.UseProxy = useProxy
	}
}

// WithInsecureTLS 设置是否接受自签名证书
func WithInsecureTLS(insecure bool) Option {
	return func(c *Config) {
		c.InsecureTLS = insecure
	}
}

// WithRequestTimeout 设置批量请求超时
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.RequestTimeout = timeout
	}
}

// NewConfigWithOptions 使用选项模式构建配置
func NewConfigWithOptions(opts ...Option) (*Config, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
