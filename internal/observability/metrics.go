package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treematch_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RegistrationsTotal counts registration attempts by outcome.
	RegistrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treematch_registrations_total",
		Help: "Registration attempts by outcome",
	}, []string{"outcome"})

	// LikesTotal counts like attempts by outcome (created, mutual, rejected).
	LikesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treematch_likes_total",
		Help: "Like attempts by outcome",
	}, []string{"outcome"})

	// BlocksTotal counts block and unblock operations.
	BlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treematch_blocks_total",
		Help: "Block relation changes by action",
	}, []string{"action"})

	// MessagesTotal counts chat sends by outcome (sent, rejected).
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treematch_messages_total",
		Help: "Chat message sends by outcome",
	}, []string{"outcome"})

	// TraversalNodes records how many users a tree traversal visited.
	TraversalNodes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "treematch_traversal_nodes",
		Help:    "Users visited per referral traversal",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000, 5000},
	}, []string{"kind"})

	// TraversalLatency records referral traversal latency by kind.
	TraversalLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "treematch_traversal_latency_seconds",
		Help:    "Referral traversal latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
)

// TrackTraversal returns a function that records latency and visited nodes when called (e.g. defer).
func TrackTraversal(kind string) func(visited int) {
	start := time.Now()
	return func(visited int) {
		TraversalLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		TraversalNodes.WithLabelValues(kind).Observe(float64(visited))
	}
}
