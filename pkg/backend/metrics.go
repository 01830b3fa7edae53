package backend

import "github.com/prometheus/client_golang/prometheus"

// Metrics 服务端指标，nil 时所有方法为空操作
type Metrics struct {
	requests    *prometheus.CounterVec
	inserted    *prometheus.CounterVec
	subscribers prometheus.Gauge
	dropped     prometheus.Counter
}

// NewMetrics 创建并注册服务端指标，reg 为空时使用默认注册表
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gospeed_backend_requests_total",
			Help: "HTTP requests served, by route pattern and status code.",
		}, []string{"route", "status"}),
		inserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gospeed_backend_readings_inserted_total",
			Help: "Readings stored, by origin.",
		}, []string{"origin"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gospeed_backend_stream_subscribers",
			Help: "Connected SSE subscribers.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gospeed_backend_stream_dropped_total",
			Help: "Broadcast messages dropped because a subscriber was full.",
		}),
	}

	reg.MustRegister(m.requests, m.inserted, m.subscribers, m.dropped)
	return m
}

func (m *Metrics) request(route string, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, status).Inc()
}

func (m *Metrics) readingInserted(origin string) {
	if m == nil {
		return
	}
	m.inserted.WithLabelValues(origin).Inc()
}

func (m *Metrics) subscriberDelta(d float64) {
	if m == nil {
		return
	}
	m.subscribers.Add(d)
}

func (m *Metrics) broadcastDropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.dropped.Add(float64(n))
}
