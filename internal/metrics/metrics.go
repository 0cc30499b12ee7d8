package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Campaign lifecycle
var (
	CampaignsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cleanfund_campaigns_upserted_total",
		Help: "Total number of campaign rows written by the creation endpoint",
	})

	Deployments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanfund_deployments_total",
			Help: "Crowdfund deployments by outcome",
		},
		[]string{"outcome"},
	)

	AddressResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanfund_address_resolutions_total",
			Help: "How a deployed crowdfund address was resolved (event, enumeration, none)",
		},
		[]string{"source"},
	)
)

// Dispatch bridge
var (
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanfund_dispatches_total",
			Help: "Task dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)

	DispatchedTasks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cleanfund_dispatched_tasks_total",
		Help: "Total number of task entries forwarded to the task API",
	})
)

// Chain access
var (
	ChainCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cleanfund_chain_call_duration_seconds",
			Help:    "Latency of calls against the chain node",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	ChainCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanfund_chain_call_errors_total",
			Help: "Failed calls against the chain node",
		},
		[]string{"op"},
	)
)

// Background jobs
var (
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cleanfund_job_runs_total",
			Help: "Scheduled job executions",
		},
		[]string{"job"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cleanfund_job_duration_seconds",
			Help:    "Scheduled job execution time",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)
)

// ChainTimer 记录一次链上调用的耗时
type ChainTimer struct {
	op    string
	start time.Time
}

// StartChainCall 开始计时
func StartChainCall(op string) ChainTimer {
	return ChainTimer{op: op, start: time.Now()}
}

// Done 结束计时，出错时计入错误数
func (t ChainTimer) Done(err error) {
	ChainCallDuration.WithLabelValues(t.op).Observe(time.Since(t.start).Seconds())
	if err != nil {
		ChainCallErrors.WithLabelValues(t.op).Inc()
	}
}

// ObserveJob 记录一次定时任务执行
func ObserveJob(job string, start time.Time) {
	JobRuns.WithLabelValues(job).Inc()
	JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}
