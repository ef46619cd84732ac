package task

import (
	"context"

	"github.com/go-co-op/gocron/v2"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/isolexIO/chainlink-pos-sub003/internal/metrics"
)

// PayoutAggregationJob 周期打款单聚合任务，已存在的周期会被跳过
type PayoutAggregationJob struct {
	payout *logic.PayoutLogic
	cron   string
}

// NewPayoutAggregationJob 创建打款聚合任务
func NewPayoutAggregationJob(payout *logic.PayoutLogic, cron string) *PayoutAggregationJob {
	return &PayoutAggregationJob{payout: payout, cron: cron}
}

// GetName 获取任务名称
func (j *PayoutAggregationJob) GetName() string {
	return "payout_aggregation"
}

// GetSchedule 获取调度配置
func (j *PayoutAggregationJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

// Execute 执行任务
func (j *PayoutAggregationJob) Execute() {
	logger.Info("Starting payout aggregation task")

	result, err := j.payout.AggregatePayouts(context.Background(), auth.SystemActor(), logic.AggregateRequest{})
	if err != nil {
		logger.Error("Payout aggregation task failed: %v", err)
		metrics.JobRuns.WithLabelValues(j.GetName(), "error").Inc()
		return
	}

	metrics.JobRuns.WithLabelValues(j.GetName(), "success").Inc()
	logger.Info("Payout aggregation task completed: processed=%d created=%d skipped=%d errors=%d",
		result.Processed, result.Created, result.Skipped, len(result.Errors))
}
