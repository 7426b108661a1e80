package queue

import "github.com/prometheus/client_golang/prometheus"

var TasksEnqueued = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pos_tasks_enqueued_total",
		Help: "Notification tasks enqueued by kind and outcome",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(TasksEnqueued)
}
