package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PostsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_posts_ingested_total",
		Help: "The total number of posts accepted into the record store",
	}, []string{"narrative"})

	PostsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_posts_rejected_total",
		Help: "The total number of posts rejected at the ingestion boundary",
	}, []string{"reason"})

	PostsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narrative_posts_evicted_total",
		Help: "The total number of posts dropped by rolling-window eviction",
	})

	PassesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_passes_total",
		Help: "The total number of pipeline passes by outcome",
	}, []string{"status"})

	PassDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narrative_pass_duration_seconds",
		Help:    "Duration of a full pipeline pass for one narrative",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	ClustersPerPass = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narrative_clusters_per_pass",
		Help:    "Number of duplicate clusters produced in a pass",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
	})

	AccountsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "narrative_scoring_accounts_skipped_total",
		Help: "Accounts omitted from scoring for lack of posts in the window",
	})

	PublishedSummaries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "narrative_published_summaries",
		Help: "Number of narratives with a published summary",
	})

	GraphEdges = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "narrative_graph_edges",
		Help:    "Edge count of the spread graph produced in a pass",
		Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	QueryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_query_requests_total",
		Help: "Total query API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	ArchiveWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "narrative_archive_writes_total",
		Help: "Total archive write operations by entity and result",
	}, []string{"entity", "result"})
)
