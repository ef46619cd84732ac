package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommissionsAccrued 新建的佣金计提记录数
	CommissionsAccrued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "commission",
		Name:      "accrued_total",
		Help:      "Number of dealer commission rows created.",
	})

	// PayoutsCreated 按初始状态统计的打款单创建数
	PayoutsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "payout",
		Name:      "created_total",
		Help:      "Number of dealer payouts created, by initial status.",
	}, []string{"status"})

	// DispatchOutcomes 按打款方式与结果统计
	DispatchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "payout",
		Name:      "dispatch_total",
		Help:      "Payout dispatch attempts, by method and outcome.",
	}, []string{"method", "outcome"})

	// WebhookEvents 收到的 Stripe webhook 事件
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Stripe webhook events received, by type.",
	}, []string{"type"})

	// JobRuns 定时任务执行次数
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Subsystem: "task",
		Name:      "runs_total",
		Help:      "Scheduled job executions, by job and result.",
	}, []string{"job", "result"})
)
