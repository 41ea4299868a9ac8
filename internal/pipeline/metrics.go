package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curriculum_generations_total",
		Help: "Model-backed generations by task and outcome",
	}, []string{"task", "outcome"})

	SavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curriculum_saves_total",
		Help: "Curriculum saves by outcome",
	}, []string{"outcome"})

	AssignmentWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curriculum_assignment_persist_warnings_total",
		Help: "Saves that succeeded without their module assignments",
	})

	ModelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "curriculum_model_request_duration_seconds",
		Help:    "Completion call duration",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"task"})

	ModelTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curriculum_model_tokens_total",
		Help: "Tokens consumed by completion calls",
	}, []string{"task"})

	ProgressUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curriculum_progress_updates_total",
		Help: "Step completions and assignment submissions",
	}, []string{"action"})
)

const outcomeOK = "ok"

func outcome(err error) string {
	if err == nil {
		return outcomeOK
	}
	return KindOf(err).Code()
}
