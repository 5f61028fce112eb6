package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ItemsScrapedTotal *prometheus.CounterVec
	ItemsCachedTotal  *prometheus.CounterVec
	AttachmentsTotal  *prometheus.CounterVec
	RetriesTotal      prometheus.Counter
	ErrorsTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	itemsScraped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of records produced by a fetch.",
		},
		[]string{"entity"},
	)
	itemsCached := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_cached_total",
			Help: "Total number of records reused from a previous run.",
		},
		[]string{"entity"},
	)
	attachments := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_attachments_total",
			Help: "Price list downloads by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, itemsScraped, itemsCached, attachments, retries, errorsTotal)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ItemsScrapedTotal: itemsScraped,
		ItemsCachedTotal:  itemsCached,
		AttachmentsTotal:  attachments,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// IncItems increments the items scraped counter.
func (m *Metrics) IncItems(entity string) {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.WithLabelValues(entity).Inc()
}

// IncCached increments the cached items counter.
func (m *Metrics) IncCached(entity string) {
	if m == nil {
		return
	}
	m.ItemsCachedTotal.WithLabelValues(entity).Inc()
}

// IncAttachment counts one attachment outcome: downloaded, skipped or failed.
func (m *Metrics) IncAttachment(outcome string) {
	if m == nil {
		return
	}
	m.AttachmentsTotal.WithLabelValues(outcome).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
