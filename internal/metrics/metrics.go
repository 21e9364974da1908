package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the fetch path.
//
// A nil *Metrics is valid and records nothing, so components accept nil
// when metrics are disabled.
type Metrics struct {
	upstreamRequests *prometheus.CounterVec
	parseOutcomes    *prometheus.CounterVec
	cookieRefreshes  *prometheus.CounterVec
	routeRefreshes   *prometheus.CounterVec
	refreshCommits   *prometheus.CounterVec
	bootstrapWaits   prometheus.Counter
}

// New registers all collectors with reg.
//
// Example usage:
//
//	reg := prometheus.NewRegistry()
//	m := metrics.New(reg)
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		upstreamRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextmuni_upstream_requests_total",
				Help: "Upstream HTTP requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"}, // outcome: ok, error
		),
		parseOutcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextmuni_parse_outcomes_total",
				Help: "Parser results by parser kind and outcome",
			},
			[]string{"parser", "outcome"},
		),
		cookieRefreshes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextmuni_cookie_refresh_total",
				Help: "Forced cookie refresh requests by outcome",
			},
			[]string{"outcome"},
		),
		routeRefreshes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextmuni_route_refresh_total",
				Help: "Staleness tier decisions for per-route direction/stop data",
			},
			[]string{"tier"}, // fresh, background, blocking
		),
		refreshCommits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nextmuni_route_refresh_commits_total",
				Help: "Results of per-route refresh transactions",
			},
			[]string{"result"}, // committed, skipped, failed
		),
		bootstrapWaits: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "nextmuni_bootstrap_waits_total",
				Help: "Callers that waited on an in-flight route-list bootstrap",
			},
		),
	}
}

func (m *Metrics) ObserveUpstream(endpoint, outcome string) {
	if m != nil {
		m.upstreamRequests.WithLabelValues(endpoint, outcome).Inc()
	}
}

func (m *Metrics) ObserveParse(parser, outcome string) {
	if m != nil {
		m.parseOutcomes.WithLabelValues(parser, outcome).Inc()
	}
}

func (m *Metrics) ObserveCookieRefresh(ok bool) {
	if m != nil {
		m.cookieRefreshes.WithLabelValues(okLabel(ok)).Inc()
	}
}

func (m *Metrics) ObserveRefreshTier(tier string) {
	if m != nil {
		m.routeRefreshes.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) ObserveRefreshResult(result string) {
	if m != nil {
		m.refreshCommits.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) ObserveBootstrapWait() {
	if m != nil {
		m.bootstrapWaits.Inc()
	}
}

func okLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
