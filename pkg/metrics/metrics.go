package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)

	EditDecisionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governance_edit_decisions_total",
			Help: "Baseline protection decisions on protected-field edits",
		},
		[]string{"decision"}, // allowed, blocked, fail_open, fail_closed, admin_override
	)

	SignatureCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "governance_signatures_total",
			Help: "Signatures applied to baselines and certificates",
		},
		[]string{"subject", "party"}, // subject: baseline, certificate
	)

	VariationDraftedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "variations_drafted_total",
			Help: "Draft variations created from blocked edits",
		},
		[]string{"path", "variation_type"}, // path: single, batch
	)

	VariationRefFallbackCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "variation_ref_fallback_total",
			Help: "Variation references that fell back to a timestamp",
		},
	)

	PlanCommitItemCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plan_commit_items_total",
			Help: "Plan items processed by commit runs",
		},
		[]string{"outcome"}, // committed, skipped, failed
	)

	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_publish_total",
			Help: "Outbox events published to the broker",
		},
		[]string{"routing_key", "status"},
	)
)

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func IncrementSlowQuery(operation string) {
	SlowQueryCount.WithLabelValues(operation).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func IncrementEditDecision(decision string) {
	EditDecisionCount.WithLabelValues(decision).Inc()
}

func IncrementSignature(subject, party string) {
	SignatureCount.WithLabelValues(subject, party).Inc()
}

func IncrementVariationDrafted(path, variationType string) {
	VariationDraftedCount.WithLabelValues(path, variationType).Inc()
}

func IncrementVariationRefFallback() {
	VariationRefFallbackCount.Inc()
}

// AddPlanCommitItems records the tallies of one commit run.
func AddPlanCommitItems(committed, skipped, failed int) {
	PlanCommitItemCount.WithLabelValues("committed").Add(float64(committed))
	PlanCommitItemCount.WithLabelValues("skipped").Add(float64(skipped))
	PlanCommitItemCount.WithLabelValues("failed").Add(float64(failed))
}

func IncrementOutboxPublish(routingKey, status string) {
	OutboxPublishCount.WithLabelValues(routingKey, status).Inc()
}
