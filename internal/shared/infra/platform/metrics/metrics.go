package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scoreregistry"

// Metrics agrupa los colectores del servicio sobre un registry propio.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec

	pages     *prometheus.CounterVec
	pageItems *prometheus.HistogramVec
	pageTime  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Peticiones HTTP atendidas.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latencia de las peticiones HTTP.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Páginas servidas por recurso y resultado.",
		}, []string{"resource", "outcome"}),
		pageItems: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_items",
			Help:      "Elementos por página.",
			Buckets:   []float64{0, 1, 10, 50, 100, 250, 500, 1000},
		}, []string{"resource"}),
		pageTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_duration_seconds",
			Help:      "Tiempo en resolver una página.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resource"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.latency, m.pages, m.pageItems, m.pageTime,
	)
	return m
}

// Registry expone el registry para colectores adicionales.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObservePage registra el resultado de resolver una página.
func (m *Metrics) ObservePage(resource string, items int, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.pages.WithLabelValues(resource, outcome).Inc()
	m.pageTime.WithLabelValues(resource).Observe(elapsed.Seconds())
	if err == nil {
		m.pageItems.WithLabelValues(resource).Observe(float64(items))
	}
}

// Middleware mide cada petición por ruta (la plantilla, no la URL).
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler sirve /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
