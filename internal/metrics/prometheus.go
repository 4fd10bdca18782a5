package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "helpdesk_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"tier"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"tier"},
	)

	HumanReviewFlagged = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_human_review_flagged_total",
			Help: "Total answers flagged for human review",
		},
	)

	GatewayDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_gateway_degraded_total",
			Help: "Total degraded gateway calls by gateway",
		},
		[]string{"gateway"},
	)

	TopDistance = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helpdesk_top_distance",
			Help:    "Best candidate distance per query",
			Buckets: []float64{0.05, 0.1, 0.15, 0.2, 0.25, 0.3, 0.35, 0.5, 0.75, 1.0},
		},
	)

	RetrievedCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "helpdesk_retrieved_candidates",
			Help:    "Number of retrieved candidates per query",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "helpdesk_feedback_total",
			Help: "Total feedback submissions by type",
		},
		[]string{"type"},
	)

	FAQsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "helpdesk_faqs_ingested_total",
			Help: "Total FAQ entries ingested into the knowledge base",
		},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(HumanReviewFlagged)
	prometheus.MustRegister(GatewayDegraded)
	prometheus.MustRegister(TopDistance)
	prometheus.MustRegister(RetrievedCandidates)
	prometheus.MustRegister(FeedbackTotal)
	prometheus.MustRegister(FAQsIngested)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
