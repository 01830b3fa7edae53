package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics 客户端指标，nil 时所有方法为空操作
type Metrics struct {
	requests       *prometheus.CounterVec
	framesDecoded  prometheus.Counter
	framesRejected prometheus.Counter
}

// NewMetrics 创建并注册客户端指标，reg 为空时使用默认注册表
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gospeed_api_requests_total",
			Help: "Telemetry API requests by endpoint and HTTP status.",
		}, []string{"endpoint", "status"}),
		framesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gospeed_stream_frames_decoded_total",
			Help: "SSE frames decoded into valid readings.",
		}),
		framesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gospeed_stream_frames_rejected_total",
			Help: "SSE frames skipped because they failed validation.",
		}),
	}

	reg.MustRegister(m.requests, m.framesDecoded, m.framesRejected)
	return m
}

func (m *Metrics) observeRequest(endpoint, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(endpoint, status).Inc()
}

func (m *Metrics) frameDecoded() {
	if m == nil {
		return
	}
	m.framesDecoded.Inc()
}

func (m *Metrics) frameRejected() {
	if m == nil {
		return
	}
	m.framesRejected.Inc()
}
