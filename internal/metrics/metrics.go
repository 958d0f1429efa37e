package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsStarted counts quiz sessions created.
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_sessions_started_total",
			Help: "Total number of quiz sessions started",
		},
	)

	// SessionsCompleted counts sessions scored, whether or not the result write succeeded.
	SessionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_sessions_completed_total",
			Help: "Total number of quiz sessions completed and scored",
		},
	)

	// ResultWrites counts result persistence attempts by outcome (success/failure).
	ResultWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trivia_result_writes_total",
			Help: "Result persistence attempts by outcome",
		},
		[]string{"status"},
	)

	// LeaderboardBuildDuration tracks fetch plus aggregation time of leaderboard views.
	LeaderboardBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trivia_leaderboard_build_duration_seconds",
			Help:    "Time spent fetching results and building a leaderboard",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// RejectedQuestions counts question records dropped by validation.
	RejectedQuestions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trivia_questions_rejected_total",
			Help: "Question records discarded because they failed validation",
		},
	)
)
