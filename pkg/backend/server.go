package backend

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/timeutil"
)

const maxRequestBytes = 64 << 10

// Option 服务依赖注入选项
type Option func(*Server)

// WithClock 设置写入时间使用的时钟
func WithClock(clock timeutil.Clock) Option {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithLogger 设置日志输出
func WithLogger(logger *log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithGatherer 在 /metrics 暴露给定的指标
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// Server 遥测API服务
type Server struct {
	config   *Config
	store    *Store
	hub      *Hub
	clock    timeutil.Clock
	logger   *log.Logger
	metrics  *Metrics
	gatherer prometheus.Gatherer
}

// NewServer 创建服务，config 为空时使用默认配置
func NewServer(config *Config, store *Store, hub *Hub, opts ...Option) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if store == nil || hub == nil {
		return nil, errors.New("存储和广播中心不能为空")
	}

	s := &Server{config: config, store: store, hub: hub}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard, "", 0)
	}
	return s, nil
}

// Handler 返回带认证和请求日志的路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/speeds", s.listRecent)
	mux.HandleFunc("POST /api/speeds", s.createReading)
	mux.HandleFunc("GET /api/speeds/latest", s.latest)
	mux.HandleFunc("GET /api/speeds/today", s.today)
	mux.HandleFunc("GET /api/speeds/paginated", s.paginated)
	mux.HandleFunc("GET /api/speeds/range", s.betweenDates)
	mux.HandleFunc("GET /api/speeds/stream", s.stream)
	mux.HandleFunc("GET /health", s.health)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return s.loggingMiddleware(s.authMiddleware(mux))
}

// Ingest 保存记录并推送给实时订阅者
func (s *Server) Ingest(ctx context.Context, n core.NewReading, origin string) (core.Reading, error) {
	reading, err := s.store.Insert(ctx, n, s.clock.Now())
	if err != nil {
		return core.Reading{}, err
	}
	s.metrics.readingInserted(origin)

	payload, err := json.Marshal(core.ToWire(reading))
	if err != nil {
		return reading, err
	}
	s.metrics.broadcastDropped(s.hub.Broadcast(payload))
	return reading, nil
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// loggingMiddleware 记录方法、路径、状态码和耗时
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.request(route, strconv.Itoa(lrw.statusCode))
		s.logger.Printf("[%d] %s %s %.2fms", lrw.statusCode, r.Method, r.RequestURI,
			float64(time.Since(start).Nanoseconds())/1e6)
	})
}

// authMiddleware 配置了令牌时校验 Bearer 头，/health 不需要认证
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.config.Token == "" {
		return next
	}
	expected := []byte("Bearer " + s.config.Token)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, expected) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("写入响应失败: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func toWire(readings []core.Reading) []core.WireReading {
	out := make([]core.WireReading, len(readings))
	for i, r := range readings {
		out[i] = core.ToWire(r)
	}
	return out
}

// intParam 读取非负整数查询参数，缺失时返回默认值
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s 必须为非负整数", name)
	}
	return v, nil
}

// limitParam 读取 limit，0 或缺失时使用默认值，超过上限时截断
func (s *Server) limitParam(r *http.Request) (int, error) {
	limit, err := intParam(r, "limit", s.config.DefaultLimit)
	if err != nil {
		return 0, err
	}
	if limit == 0 {
		limit = s.config.DefaultLimit
	}
	if limit > s.config.MaxLimit {
		limit = s.config.MaxLimit
	}
	return limit, nil
}

func (s *Server) listRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := s.limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.internalError(w, "查询最近记录", err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(readings))
}

func (s *Server) createReading(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "读取请求体失败")
		return
	}
	n, err := core.ParseWireNewReading(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reading, err := s.Ingest(r.Context(), n, "api")
	if err != nil {
		s.internalError(w, "写入记录", err)
		return
	}
	writeJSON(w, http.StatusCreated, core.ToWire(reading))
}

func (s *Server) latest(w http.ResponseWriter, r *http.Request) {
	reading, err := s.store.Latest(r.Context())
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(w, "查询最新记录", err)
		return
	}
	writeJSON(w, http.StatusOK, core.ToWire(reading))
}

func (s *Server) today(w http.ResponseWriter, r *http.Request) {
	limit, err := s.limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := s.store.Today(r.Context(), s.clock.Now(), limit)
	if err != nil {
		s.internalError(w, "查询今日记录", err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(readings))
}

func (s *Server) paginated(w http.ResponseWriter, r *http.Request) {
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := s.limitParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	readings, err := s.store.Paginated(r.Context(), offset, limit)
	if err != nil {
		s.internalError(w, "分页查询", err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(readings))
}

func (s *Server) betweenDates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339Nano, q.Get("start_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date 必须为ISO-8601时间")
		return
	}
	end, err := time.Parse(time.RFC3339Nano, q.Get("end_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date 必须为ISO-8601时间")
		return
	}
	if start.After(end) {
		writeError(w, http.StatusBadRequest, "start_date 晚于 end_date")
		return
	}

	readings, err := s.store.Between(r.Context(), start, end, 0)
	if err != nil {
		s.internalError(w, "范围查询", err)
		return
	}
	writeJSON(w, http.StatusOK, toWire(readings))
}

// stream 推送新记录，先发保活注释确认连接
func (s *Server) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, c := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)
	s.metrics.subscriberDelta(1)
	defer s.metrics.subscriberDelta(-1)

	if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
		return
	}
	flusher.Flush()

	ping := s.clock.NewTicker(s.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case payload, ok := <-c:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C():
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	n, err := s.store.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": fmt.Sprintf("%d readings stored", n)})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Printf("WARN %s失败: %v", op, err)
	writeError(w, http.StatusInternalServerError, op+"失败")
}
