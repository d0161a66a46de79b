package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(tasksSubmittedTotal, tasksCompletedTotal, tasksEvictedTotal, queueDepth, queryDurationMs, longQueriesTotal)
}

var (
	tasksSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "asyncsql_tasks_submitted_total",
			Help: "Total number of queries accepted into the task queue.",
		},
	)

	tasksCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asyncsql_tasks_completed_total",
			Help: "Total number of queries executed, labeled by status.",
		},
		[]string{"status"}, // 'succeeded', 'failed'
	)

	tasksEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "asyncsql_tasks_evicted_total",
			Help: "Done tasks dropped because nobody fetched them within done_ttl.",
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "asyncsql_queue_depth",
			Help: "Tasks currently held in the queue, by state.",
		},
		[]string{"state"}, // 'pending', 'running', 'done'
	)

	queryDurationMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "asyncsql_query_duration_ms",
			Help:    "Query execution latency distribution in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"driver", "save", "success"},
	)

	longQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asyncsql_long_queries_total",
			Help: "Long query buffer events (opened, overflow, submitted, discarded).",
		},
		[]string{"event"},
	)
)

func IncTaskSubmitted() { tasksSubmittedTotal.Inc() }

func IncTaskCompleted(status string) {
	tasksCompletedTotal.WithLabelValues(norm(status)).Inc()
}

func AddTasksEvicted(n int) {
	if n > 0 {
		tasksEvictedTotal.Add(float64(n))
	}
}

func SetQueueDepth(pending, running, done int) {
	queueDepth.WithLabelValues("pending").Set(float64(pending))
	queueDepth.WithLabelValues("running").Set(float64(running))
	queueDepth.WithLabelValues("done").Set(float64(done))
}

func ObserveQuery(driver string, save, success bool, d time.Duration) {
	queryDurationMs.WithLabelValues(norm(driver), strconv.FormatBool(save), strconv.FormatBool(success)).
		Observe(float64(d.Microseconds()) / 1000)
}

func IncLongQuery(event string) {
	longQueriesTotal.WithLabelValues(norm(event)).Inc()
}
