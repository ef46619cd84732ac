package task

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/metrics"
	"github.com/isolexIO/chainlink-pos-sub003/internal/scheduler"
)

// PayoutScheduleJob 每日打款调度任务
type PayoutScheduleJob struct {
	scheduler *scheduler.PayoutScheduler
	now       func() time.Time
	cron      string
}

// NewPayoutScheduleJob 创建每日打款调度任务
func NewPayoutScheduleJob(s *scheduler.PayoutScheduler, now func() time.Time, cron string) *PayoutScheduleJob {
	if now == nil {
		now = time.Now
	}
	return &PayoutScheduleJob{scheduler: s, now: now, cron: cron}
}

// GetName 获取任务名称
func (j *PayoutScheduleJob) GetName() string {
	return "payout_schedule"
}

// GetSchedule 获取调度配置
func (j *PayoutScheduleJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

// Execute 执行任务
func (j *PayoutScheduleJob) Execute() {
	logger.Info("Starting payout schedule task")

	result, err := j.scheduler.RunDaily(context.Background(), j.now())
	if err != nil {
		logger.Error("Payout schedule task failed: %v", err)
		metrics.JobRuns.WithLabelValues(j.GetName(), "error").Inc()
		return
	}

	metrics.JobRuns.WithLabelValues(j.GetName(), "success").Inc()
	logger.Info("Payout schedule task completed: scheduled=%d processed=%d failed=%d errors=%d",
		result.Scheduled, result.Processed, result.Failed, len(result.Errors))
}
