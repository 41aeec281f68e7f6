package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lab_inventory_http_requests_total",
			Help: "Total number of HTTP requests by method, route, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lab_inventory_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "lab_inventory_http_requests_in_flight",
		Help: "Current number of HTTP requests being processed.",
	})
)

// HostSource is the subset of inventory.Store needed for host metrics.
type HostSource interface {
	CountByEnvironment() map[string]int
}

// LookupDB is the subset of db.DB needed for audit metrics.
type LookupDB interface {
	CountByMode() (map[string]int, error)
}

// inventoryCollector reports host and audited lookup counts on each scrape.
type inventoryCollector struct {
	hosts       HostSource
	db          LookupDB
	hostsDesc   *prometheus.Desc
	lookupsDesc *prometheus.Desc
}

func newInventoryCollector(hosts HostSource, db LookupDB) *inventoryCollector {
	return &inventoryCollector{
		hosts: hosts,
		db:    db,
		hostsDesc: prometheus.NewDesc(
			"lab_inventory_hosts",
			"Number of hosts in the inventory, partitioned by environment.",
			[]string{"environment"},
			nil,
		),
		lookupsDesc: prometheus.NewDesc(
			"lab_inventory_lookups_total",
			"Number of audited inventory lookups, partitioned by mode.",
			[]string{"mode"},
			nil,
		),
	}
}

func (c *inventoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hostsDesc
	ch <- c.lookupsDesc
}

func (c *inventoryCollector) Collect(ch chan<- prometheus.Metric) {
	for env, n := range c.hosts.CountByEnvironment() {
		ch <- prometheus.MustNewConstMetric(c.hostsDesc, prometheus.GaugeValue, float64(n), env)
	}

	counts, err := c.db.CountByMode()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.lookupsDesc, err)
		return
	}
	for mode, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.lookupsDesc, prometheus.CounterValue, float64(n), mode)
	}
}

// Register registers all metrics with reg. Call once at startup after the
// database is initialised.
func Register(reg prometheus.Registerer, hosts HostSource, db LookupDB) {
	reg.MustRegister(
		// Standard Go runtime and process metrics
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),

		// HTTP service metrics
		httpRequestsTotal,
		httpRequestDuration,
		httpRequestsInFlight,

		// Application metrics
		newInventoryCollector(hosts, db),
	)
}

// Handler returns the Prometheus HTTP handler for g, typically the registry
// passed to Register.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the response status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware wraps an http.Handler to record HTTP metrics.
// pattern should be the route pattern string (e.g. "/api/v1/hosts/{name}")
// so the path label has bounded cardinality.
func Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			httpRequestsInFlight.Dec()
			status := strconv.Itoa(rw.status)
			httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}
