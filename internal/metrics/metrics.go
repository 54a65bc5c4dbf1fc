// Package metrics holds the service-specific Prometheus series.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/that-cod/reepost-ai-sub001/pkg/monitoring"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	AnalyticsQueries *prometheus.CounterVec
	AnalyticsSyncs   *prometheus.CounterVec
	SearchRequests   *prometheus.CounterVec
	SearchDuration   *prometheus.HistogramVec
	Generations      *prometheus.CounterVec
	Publishes        *prometheus.CounterVec
	QuotaRejections  *prometheus.CounterVec
	Webhooks         *prometheus.CounterVec
	TrendingCache    *prometheus.CounterVec
}

func New(mc *monitoring.MetricsCollector) *Metrics {
	return &Metrics{
		AnalyticsQueries: mc.NewCounter("analytics_queries_total", "Analytics summary requests", []string{"status"}),
		AnalyticsSyncs:   mc.NewCounter("analytics_synced_posts_total", "Posts refreshed from LinkedIn", []string{"outcome"}),
		SearchRequests:   mc.NewCounter("search_requests_total", "Semantic search requests", []string{"outcome"}),
		SearchDuration:   mc.NewHistogram("search_duration_seconds", "Semantic search latency", []string{"outcome"}, nil),
		Generations:      mc.NewCounter("generations_total", "LLM post generations", []string{"outcome"}),
		Publishes:        mc.NewCounter("publishes_total", "LinkedIn publish attempts", []string{"trigger", "outcome"}),
		QuotaRejections:  mc.NewCounter("quota_rejections_total", "Requests rejected by the daily quota", []string{"action"}),
		Webhooks:         mc.NewCounter("webhooks_total", "Webhook deliveries", []string{"provider", "outcome"}),
		TrendingCache:    mc.NewCounter("trending_cache_lookups_total", "Trending feed cache lookups", []string{"result"}),
	}
}

func (m *Metrics) IncAnalyticsQuery(status string) {
	if m == nil || m.AnalyticsQueries == nil {
		return
	}
	m.AnalyticsQueries.WithLabelValues(status).Inc()
}

func (m *Metrics) AddSynced(synced, failed int) {
	if m == nil || m.AnalyticsSyncs == nil {
		return
	}
	m.AnalyticsSyncs.WithLabelValues("synced").Add(float64(synced))
	m.AnalyticsSyncs.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) ObserveSearch(outcome string, started time.Time) {
	if m == nil {
		return
	}
	if m.SearchRequests != nil {
		m.SearchRequests.WithLabelValues(outcome).Inc()
	}
	if m.SearchDuration != nil {
		m.SearchDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	}
}

func (m *Metrics) IncGeneration(outcome string) {
	if m == nil || m.Generations == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPublish(trigger, outcome string) {
	if m == nil || m.Publishes == nil {
		return
	}
	m.Publishes.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) IncQuotaRejection(action string) {
	if m == nil || m.QuotaRejections == nil {
		return
	}
	m.QuotaRejections.WithLabelValues(action).Inc()
}

func (m *Metrics) IncWebhook(provider, outcome string) {
	if m == nil || m.Webhooks == nil {
		return
	}
	m.Webhooks.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) IncTrendingCache(result string) {
	if m == nil || m.TrendingCache == nil {
		return
	}
	m.TrendingCache.WithLabelValues(result).Inc()
}
