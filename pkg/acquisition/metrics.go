package acquisition

import "github.com/prometheus/client_golang/prometheus"

// Metrics 采集控制器指标，nil 时所有方法为空操作
type Metrics struct {
	epochs         *prometheus.CounterVec
	readings       *prometheus.CounterVec
	fetchFailures  *prometheus.CounterVec
	staleDiscarded prometheus.Counter
	flushes        prometheus.Counter
	windowSize     prometheus.Gauge
	connected      prometheus.Gauge
}

// NewMetrics 创建并注册控制器指标，reg 为空时使用默认注册表
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		epochs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gospeed_acquisition_epochs_total",
			Help: "Acquisition epochs started, by data mode.",
		}, []string{"mode"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gospeed_acquisition_readings_total",
			Help: "Readings applied to the window, by source.",
		}, []string{"source"}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gospeed_acquisition_fetch_failures_total",
			Help: "Initial batch fetches that failed, by failure kind.",
		}, []string{"kind"}),
		staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gospeed_acquisition_stale_discarded_total",
			Help: "Completions dropped because their epoch had ended.",
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gospeed_acquisition_flushes_total",
			Help: "Debounced batch flushes into the window.",
		}),
		windowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gospeed_acquisition_window_size",
			Help: "Current number of readings in the window.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gospeed_acquisition_connected",
			Help: "1 when the data feed is healthy, 0 otherwise.",
		}),
	}

	reg.MustRegister(m.epochs, m.readings, m.fetchFailures, m.staleDiscarded, m.flushes, m.windowSize, m.connected)
	return m
}

func (m *Metrics) epochStarted(mode string) {
	if m == nil {
		return
	}
	m.epochs.WithLabelValues(mode).Inc()
}

func (m *Metrics) readingsApplied(source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.readings.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) fetchFailed(kind string) {
	if m == nil {
		return
	}
	m.fetchFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) stale() {
	if m == nil {
		return
	}
	m.staleDiscarded.Inc()
}

func (m *Metrics) flushed() {
	if m == nil {
		return
	}
	m.flushes.Inc()
}

func (m *Metrics) observe(windowSize int, connected bool) {
	if m == nil {
		return
	}
	m.windowSize.Set(float64(windowSize))
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
