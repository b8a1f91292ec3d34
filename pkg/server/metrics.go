package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the hub. Each Metrics
// owns its own prometheus.Registry so several hubs can live in one process.
type Metrics struct {
	hub       *Hub
	startTime time.Time
	reg       *prometheus.Registry

	portalsTotal     prometheus.Gauge
	linksTotal       prometheus.Gauge
	customColors     prometheus.Gauge
	playersConnected *prometheus.GaugeVec
	teleportsTotal   *prometheus.CounterVec
	burstsTotal      prometheus.Counter
	commandsTotal    *prometheus.CounterVec
	tickDuration     prometheus.Histogram
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the hub.
func NewMetrics(hub *Hub, startTime time.Time) *Metrics {
	m := &Metrics{
		hub:       hub,
		startTime: startTime,
		reg:       prometheus.NewRegistry(),
		portalsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hubportal_portals_total",
			Help: "Number of portals in the registry.",
		}),
		linksTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hubportal_links_total",
			Help: "Number of linked portal pairs.",
		}),
		customColors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hubportal_custom_colors_total",
			Help: "Number of custom colors defined.",
		}),
		playersConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hubportal_players_connected",
			Help: "Players currently present by world.",
		}, []string{"world"}),
		teleportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubportal_teleports_total",
			Help: "Teleports fired since start by world.",
		}, []string{"world"}),
		burstsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hubportal_particle_bursts_total",
			Help: "Particle bursts emitted since start.",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubportal_commands_total",
			Help: "Commands processed by subcommand and result.",
		}, []string{"command", "result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hubportal_tick_duration_seconds",
			Help:    "Time spent running one tick across all worlds.",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hubportal_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hubportal_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hubportal_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	m.reg.MustRegister(
		m.portalsTotal,
		m.linksTotal,
		m.customColors,
		m.playersConnected,
		m.teleportsTotal,
		m.burstsTotal,
		m.commandsTotal,
		m.tickDuration,
		m.uptimeSeconds,
		m.memoryHeapBytes,
		m.goroutines,
	)

	return m
}

// ObserveTick records one tick's teleports, bursts and duration.
func (m *Metrics) ObserveTick(teleports map[string]int, bursts int, took time.Duration) {
	for w, n := range teleports {
		m.teleportsTotal.WithLabelValues(w).Add(float64(n))
	}
	m.burstsTotal.Add(float64(bursts))
	m.tickDuration.Observe(took.Seconds())
}

// ObserveCommand counts one dispatched command.
func (m *Metrics) ObserveCommand(name string, ok bool) {
	result := "ok"
	if !ok {
		result = "fail"
	}
	m.commandsTotal.WithLabelValues(name, result).Inc()
}

// Update refreshes all gauge metrics from current hub state.
func (m *Metrics) Update() {
	reg := m.hub.Registry
	m.portalsTotal.Set(float64(reg.Len()))
	m.linksTotal.Set(float64(len(reg.Links())))
	m.customColors.Set(float64(len(reg.CustomColorNames())))

	m.playersConnected.Reset()
	for _, w := range m.hub.Worlds.All() {
		m.playersConnected.WithLabelValues(w.ID()).Set(float64(len(w.Players())))
	}

	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Gatherer exposes the underlying registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.reg }

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	inner := promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		inner.ServeHTTP(w, r)
	})
}
