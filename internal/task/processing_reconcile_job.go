package task

import (
	"context"

	"github.com/go-co-op/gocron/v2"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/metrics"
	"github.com/isolexIO/chainlink-pos-sub003/internal/scheduler"
)

// ProcessingReconcileJob 处理卡在 processing 的打款单
type ProcessingReconcileJob struct {
	scheduler *scheduler.PayoutScheduler
	cron      string
}

// NewProcessingReconcileJob 创建 processing 对账任务
func NewProcessingReconcileJob(s *scheduler.PayoutScheduler, cron string) *ProcessingReconcileJob {
	return &ProcessingReconcileJob{scheduler: s, cron: cron}
}

// GetName 获取任务名称
func (j *ProcessingReconcileJob) GetName() string {
	return "processing_reconcile"
}

// GetSchedule 获取调度配置
func (j *ProcessingReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

// Execute 执行任务
func (j *ProcessingReconcileJob) Execute() {
	count, errs, err := j.scheduler.ReconcileProcessing(context.Background())
	if err != nil {
		logger.Error("Processing reconcile task failed: %v", err)
		metrics.JobRuns.WithLabelValues(j.GetName(), "error").Inc()
		return
	}

	metrics.JobRuns.WithLabelValues(j.GetName(), "success").Inc()
	if count > 0 || len(errs) > 0 {
		logger.Warn("Processing reconcile task moved %d stuck payouts, errors=%d", count, len(errs))
	}
}
