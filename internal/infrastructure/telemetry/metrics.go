package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metric names.
const (
	MetricAPIRequestsTotal       = "portal_api_requests_total"
	MetricAPIRequestDuration     = "portal_api_request_duration_seconds"
	MetricCacheOutcomesTotal     = "portal_cache_outcomes_total"
	MetricSearchQueriesTotal     = "portal_search_queries_total"
	MetricSearchBranchFailures   = "portal_search_branch_failures_total"
	MetricSearchResultsReturned  = "portal_search_results"
	MetricGatewayRequestsTotal   = "portal_gateway_requests_total"
	MetricGatewayRequestDuration = "portal_gateway_request_duration_seconds"
)

// Metrics holds the portal's Prometheus collectors on a private registry.
// It satisfies the observer interfaces of apiclient, cache and search.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests     *prometheus.CounterVec
	apiDuration     *prometheus.HistogramVec
	cacheOutcomes   *prometheus.CounterVec
	searchQueries   *prometheus.CounterVec
	searchFailures  *prometheus.CounterVec
	searchResults   prometheus.Histogram
	gatewayRequests *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricAPIRequestsTotal,
			Help: "Outbound portal API calls by endpoint and status code.",
		}, []string{"method", "endpoint", "status"}),
		apiDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricAPIRequestDuration,
			Help:    "Outbound portal API call latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		cacheOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricCacheOutcomesTotal,
			Help: "Cached resource lookups by outcome (hit, miss, refresh, error).",
		}, []string{"resource", "outcome"}),
		searchQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSearchQueriesTotal,
			Help: "Global searches executed by scope.",
		}, []string{"scope"}),
		searchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricSearchBranchFailures,
			Help: "Search fan-out branches that failed and contributed no results.",
		}, []string{"collection"}),
		searchResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSearchResultsReturned,
			Help:    "Number of results returned per search.",
			Buckets: []float64{0, 1, 2, 5, 10},
		}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricGatewayRequestsTotal,
			Help: "Requests served by the local gateway.",
		}, []string{"method", "route", "status"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricGatewayRequestDuration,
			Help:    "Local gateway request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	registry.MustRegister(
		m.apiRequests, m.apiDuration, m.cacheOutcomes,
		m.searchQueries, m.searchFailures, m.searchResults,
		m.gatewayRequests, m.gatewayDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records an outbound API call.
func (m *Metrics) ObserveRequest(method, endpoint string, status int, d time.Duration) {
	m.apiRequests.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.apiDuration.WithLabelValues(method, endpoint).Observe(d.Seconds())
}

// ObserveCache records a cached resource outcome.
func (m *Metrics) ObserveCache(resource, outcome string) {
	m.cacheOutcomes.WithLabelValues(resource, outcome).Inc()
}

// ObserveSearch records one search and how many results it returned.
func (m *Metrics) ObserveSearch(scope string, results int) {
	m.searchQueries.WithLabelValues(scope).Inc()
	m.searchResults.Observe(float64(results))
}

// ObserveBranchFailure records a failed fan-out branch.
func (m *Metrics) ObserveBranchFailure(collection string) {
	m.searchFailures.WithLabelValues(collection).Inc()
}

// ObserveGateway records a request served by the gateway.
func (m *Metrics) ObserveGateway(method, route string, status int, d time.Duration) {
	m.gatewayRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.gatewayDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
