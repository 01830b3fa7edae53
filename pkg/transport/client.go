// Package transport 实现了遥测API的HTTP客户端
// 批量查询实现 core.BatchFetcher，SSE实时流实现 core.StreamOpener
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// 直连路径
const (
	pathSpeeds    = "/api/speeds"
	pathToday     = "/api/speeds/today"
	pathRange     = "/api/speeds/range"
	pathLatest    = "/api/speeds/latest"
	pathPaginated = "/api/speeds/paginated"
	pathStream    = "/api/speeds/stream"
	pathHealth    = "/health"
)

// 中继路径
const (
	proxyPrefix     = "/api/proxy"
	proxyStreamPath = "/api/proxy-stream/speeds/stream"
)

// maxBodyBytes 批量响应体的读取上限
const maxBodyBytes = 32 << 20

// Client 遥测API客户端，可并发使用
type Client struct {
	config  *Config
	base    *url.URL
	http    *http.Client // 批量请求，带整体超时
	stream  *http.Client // 实时流，不设整体超时
	logger  *log.Logger
	metrics *Metrics
}

// Health GET /health 的响应
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewClient 创建客户端，logger 和 metrics 可为空
func NewClient(config *Config, logger *log.Logger, metrics *Metrics) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("无法解析API地址: %w", err)
	}

	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	tr, err := newTransport(config)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:  config,
		base:    base,
		http:    &http.Client{Transport: tr, Timeout: config.RequestTimeout},
		stream:  &http.Client{Transport: tr},
		logger:  logger,
		metrics: metrics,
	}, nil
}

// newTransport 创建传输层并启用HTTP/2连接健康检查
func newTransport(config *Config) (*http.Transport, error) {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if config.InsecureTLS {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // 开发环境自签名证书
	}

	h2, err := http2.ConfigureTransports(tr)
	if err != nil {
		return nil, fmt.Errorf("配置HTTP/2失败: %w", err)
	}
	h2.ReadIdleTimeout = config.StreamIdleTimeout
	h2.PingTimeout = config.StreamPingTimeout

	return tr, nil
}

// endpoint 拼接请求地址，中继模式下 /api/speeds/x 变为 /api/proxy/speeds/x
func (c *Client) endpoint(path string, query url.Values) string {
	if c.config.UseProxy {
		path = proxyPrefix + strings.TrimPrefix(path, "/api")
	}
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// streamEndpoint 返回实时流地址
func (c *Client) streamEndpoint() string {
	path := pathStream
	if c.config.UseProxy {
		path = proxyStreamPath
	}
	u := *c.base
	u.Path = c.base.Path + path
	return u.String()
}

// authorize 配置了令牌时添加Bearer头
func (c *Client) authorize(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}

// do 执行请求并读取响应体，非2xx返回 *core.FetchError
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body []byte) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return 0, nil, &core.FetchError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observeRequest(op, "error")
		return 0, nil, &core.FetchError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.metrics.observeRequest(op, strconv.Itoa(resp.StatusCode))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, &core.FetchError{Op: op, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, data, &core.FetchError{Op: op, Status: resp.StatusCode, Err: statusCause(resp.StatusCode, data)}
	}

	return resp.StatusCode, data, nil
}

// statusCause 从错误响应体中提取简短原因
func statusCause(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return errors.New(msg)
}

// FetchBatch 实现 core.BatchFetcher 接口
func (c *Client) FetchBatch(ctx context.Context, q core.Query) ([]core.Reading, error) {
	var (
		path  string
		query = url.Values{}
	)

	switch q.Kind {
	case core.QueryRecent:
		path = pathSpeeds
		query.Set("limit", strconv.Itoa(q.Limit))
	case core.QueryToday:
		path = pathToday
		query.Set("limit", strconv.Itoa(q.Limit))
	case core.QueryRange:
		path = pathRange
		query.Set("start_date", q.Start.UTC().Format(time.RFC3339))
		query.Set("end_date", q.End.UTC().Format(time.RFC3339))
	default:
		return nil, &core.FetchError{Op: q.Kind.String(), Err: fmt.Errorf("不支持的查询类型: %d", int(q.Kind))}
	}

	return c.fetchList(ctx, q.Kind.String(), path, query)
}

// Paginated GET /api/speeds/paginated
func (c *Client) Paginated(ctx context.Context, offset, limit int) ([]core.Reading, error) {
	query := url.Values{}
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	return c.fetchList(ctx, "paginated", pathPaginated, query)
}

// fetchList 请求并校验记录数组
func (c *Client) fetchList(ctx context.Context, op, path string, query url.Values) ([]core.Reading, error) {
	status, body, err := c.do(ctx, op, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}

	readings, err := core.ParseWireReadings(body)
	if err != nil {
		return nil, &core.FetchError{Op: op, Status: status, Err: err}
	}
	return readings, nil
}

// Latest GET /api/speeds/latest
func (c *Client) Latest(ctx context.Context) (core.Reading, error) {
	status, body, err := c.do(ctx, "latest", http.MethodGet, pathLatest, nil, nil)
	if err != nil {
		return core.Reading{}, err
	}

	reading, err := core.ParseWireReading(body)
	if err != nil {
		return core.Reading{}, &core.FetchError{Op: "latest", Status: status, Err: err}
	}
	return reading, nil
}

// CreateReading POST /api/speeds，只有201视为成功
func (c *Client) CreateReading(ctx context.Context, n core.NewReading) error {
	body, err := json.Marshal(core.ToWireNew(n))
	if err != nil {
		return &core.FetchError{Op: "create", Err: err}
	}

	status, _, err := c.do(ctx, "create", http.MethodPost, pathSpeeds, nil, body)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return &core.FetchError{Op: "create", Status: status, Err: fmt.Errorf("期望状态码201，实际为 %d", status)}
	}
	return nil
}

// Health GET /health
func (c *Client) Health(ctx context.Context) (Health, error) {
	status, body, err := c.do(ctx, "health", http.MethodGet, pathHealth, nil, nil)
	if err != nil {
		return Health{}, err
	}

	var h Health
	if err := json.Unmarshal(body, &h); err != nil {
		return Health{}, &core.FetchError{Op: "health", Status: status, Err: &core.ValidationError{Reason: "JSON格式错误", Err: err}}
	}
	return h, nil
}
