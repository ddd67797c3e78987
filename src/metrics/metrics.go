package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tripreport"

// Metrics 报表运行指标，使用独立的registry
type Metrics struct {
	registry *prometheus.Registry

	tripsLoaded    prometheus.Counter
	tripsKept      prometheus.Counter
	tripsDropped   prometheus.Counter
	chartsRendered prometheus.Counter
	runs           *prometheus.CounterVec
	lastDuration   prometheus.Gauge
	lastSuccess    prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tripsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trips",
			Name:      "loaded_total",
			Help:      "Number of trip records read from input files.",
		}),
		tripsKept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trips",
			Name:      "kept_total",
			Help:      "Number of trip records kept after cleaning.",
		}),
		tripsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trips",
			Name:      "dropped_total",
			Help:      "Number of trip records dropped for missing locations or timestamps.",
		}),
		chartsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "charts_rendered_total",
			Help:      "Number of chart files written.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "runs_total",
			Help:      "Number of report runs grouped by result.",
		}, []string{"result"}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the most recent report run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "report",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix timestamp of the most recent successful report run.",
		}),
	}

	m.registry.MustRegister(
		m.tripsLoaded, m.tripsKept, m.tripsDropped,
		m.chartsRendered, m.runs, m.lastDuration, m.lastSuccess,
	)
	return m
}

// RunStats 一次运行的统计
type RunStats struct {
	Loaded   int
	Kept     int
	Charts   int
	Duration time.Duration
	Finished time.Time
}

// ObserveRun 记录一次运行，err非nil时只计失败次数和耗时
func (m *Metrics) ObserveRun(stats RunStats, err error) {
	m.lastDuration.Set(stats.Duration.Seconds())
	if err != nil {
		m.runs.WithLabelValues("failure").Inc()
		return
	}

	m.runs.WithLabelValues("success").Inc()
	m.tripsLoaded.Add(float64(stats.Loaded))
	m.tripsKept.Add(float64(stats.Kept))
	if stats.Loaded > stats.Kept {
		m.tripsDropped.Add(float64(stats.Loaded - stats.Kept))
	}
	m.chartsRendered.Add(float64(stats.Charts))
	if !stats.Finished.IsZero() {
		m.lastSuccess.Set(float64(stats.Finished.Unix()))
	}
}

// WriteTextfile 写入node_exporter textfile格式，path为空时不写
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

// Handler 供/metrics使用
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
