package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// HTTP endpoints
	EndpointActivities    = "activities"
	EndpointActivity      = "activity"
	EndpointAggregateDay  = "aggregate_day"
	EndpointAggregateType = "aggregate_type"
	EndpointQuality       = "quality"
	EndpointHealth        = "health"

	// Garmin API operations
	OpLogin           = "login"
	OpRefreshToken    = "refresh_token"
	OpListActivities  = "list_activities"
	OpActivityDetails = "activity_details"

	// Session acquisition outcomes
	OutcomeMemory  = "memory"
	OutcomeCached  = "cached"
	OutcomeRefresh = "refresh"
	OutcomeLogin   = "login"
	OutcomeFailed  = "failed"

	// Record skip reasons
	SkipOutOfRange = "out_of_range"
	SkipType       = "type_filtered"
	SkipMalformed  = "malformed"

	// Walk results
	ResultSuccess = "success"
	ResultFailure = "failure"

	// Database operations
	DBOpGetSession    = "get_session"
	DBOpUpsertSession = "upsert_session"
	DBOpDeleteSession = "delete_session"
	DBOpListSessions  = "list_sessions"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Walker Metrics
var (
	WalkPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walk_pages_total",
			Help: "Total number of listing pages requested",
		},
	)

	WalkRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walk_records_kept_total",
			Help: "Total number of activity records returned by walks",
		},
	)

	WalkSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walk_records_skipped_total",
			Help: "Total number of records dropped by a walk, by reason",
		},
		[]string{"reason"},
	)

	WalkDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walk_duplicates_total",
			Help: "Total number of records seen again on a later page",
		},
	)

	WalkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walk_duration_seconds",
			Help:    "Time spent walking a date range",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"result"},
	)

	FetchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetch_failures_total",
			Help: "Total number of walks or detail lookups aborted by upstream failures",
		},
		[]string{"operation"},
	)
)

// Session Metrics
var (
	SessionAcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_acquisitions_total",
			Help: "Total number of session acquisitions by outcome",
		},
		[]string{"outcome"},
	)

	SessionTTLSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "session_ttl_seconds",
			Help: "Seconds until the cached session token expires",
		},
		[]string{"username"},
	)
)

// Garmin API Metrics
var (
	GarminAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "garmin_api_requests_total",
			Help: "Total number of Garmin Connect API requests",
		},
		[]string{"operation", "status_code"},
	)

	GarminAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "garmin_api_request_duration_seconds",
			Help:    "Garmin Connect API request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	GarminThrottled = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "garmin_throttled",
			Help: "Whether requests are held back by a 429 cool-down (1) or not (0)",
		},
	)
)

// Database Metrics
var (
	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_operation_duration_seconds",
			Help:    "Database operation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	DBOperationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_operation_errors_total",
			Help: "Total number of database operation errors",
		},
		[]string{"operation"},
	)
)
