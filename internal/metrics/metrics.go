// Package metrics exposes Prometheus collectors for the directory scraper.
package metrics

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Profile outcomes.
const (
	ProfileEnriched = "enriched"
	ProfileDegraded = "degraded"
	ProfileSkipped  = "skipped"
)

// Metrics holds the collectors of one registry. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	listingPages      *prometheus.CounterVec
	listingCards      *prometheus.CounterVec
	profiles          *prometheus.CounterVec
	profileDuration   prometheus.Histogram
	exportedRecords   prometheus.Counter
	sinkErrors        *prometheus.CounterVec
	runs              *prometheus.CounterVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		listingPages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_listing_pages_total",
				Help: "Listing pages visited, labeled by site.",
			},
			[]string{"site"},
		),
		listingCards: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_listing_cards_total",
				Help: "Member cards extracted from listing pages, labeled by site.",
			},
			[]string{"site"},
		),
		profiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_profiles_total",
				Help: "Profile enrichments, labeled by outcome.",
			},
			[]string{"status"},
		),
		profileDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_profile_duration_seconds",
				Help:    "Histogram of profile enrichment latencies.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		exportedRecords: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_exported_records_total",
				Help: "Records written to the CSV export.",
			},
		),
		sinkErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_sink_errors_total",
				Help: "Failed result sink writes, labeled by sink.",
			},
			[]string{"sink"},
		),
		runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_runs_total",
				Help: "Completed runs, labeled by status.",
			},
			[]string{"status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
	}
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveListingPage counts one visited listing page and its cards.
func (m *Metrics) ObserveListingPage(pageURL string, cards int) {
	if m == nil {
		return
	}
	site := SanitizeSite(pageURL)
	m.listingPages.WithLabelValues(site).Inc()
	m.listingCards.WithLabelValues(site).Add(float64(cards))
}

// ObserveProfile records one profile outcome. Skipped profiles carry no duration.
func (m *Metrics) ObserveProfile(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.profiles.WithLabelValues(status).Inc()
	if status != ProfileSkipped {
		m.profileDuration.Observe(d.Seconds())
	}
}

// ObserveExport counts exported rows.
func (m *Metrics) ObserveExport(rows int) {
	if m == nil {
		return
	}
	m.exportedRecords.Add(float64(rows))
}

// ObserveSinkError counts a failed sink write.
func (m *Metrics) ObserveSinkError(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// ObserveRun counts a finished run.
func (m *Metrics) ObserveRun(status string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest records one request served by the metrics endpoint.
func (m *Metrics) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
