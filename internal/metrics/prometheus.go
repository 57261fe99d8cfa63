package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mdgraph_rebuild_duration_seconds",
			Help:    "Full index rebuild duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	RebuildTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdgraph_rebuild_total",
			Help: "Total number of index rebuilds",
		},
		[]string{"status"},
	)

	DocumentsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mdgraph_documents_indexed_total",
			Help: "Total documents indexed",
		},
	)

	DocumentsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mdgraph_documents_skipped_total",
			Help: "Total documents skipped because they could not be read",
		},
	)

	SectionsIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mdgraph_sections_indexed_total",
			Help: "Total sections indexed",
		},
	)

	RelationshipsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdgraph_relationships_created_total",
			Help: "Total relationships synthesized",
		},
		[]string{"type"},
	)

	GraphNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mdgraph_graph_nodes",
			Help: "Nodes in the current graph",
		},
	)

	GraphEdges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mdgraph_graph_edges",
			Help: "Edges in the current graph",
		},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdgraph_search_duration_seconds",
			Help:    "Full-text search duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdgraph_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdgraph_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	MirrorFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mdgraph_mirror_failures_total",
			Help: "Total failed graph mirror syncs",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RebuildDuration,
			RebuildTotal,
			DocumentsIndexed,
			DocumentsSkipped,
			SectionsIndexed,
			RelationshipsCreated,
			GraphNodes,
			GraphEdges,
			SearchDuration,
			CacheHits,
			CacheMisses,
			MirrorFailures,
		)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
