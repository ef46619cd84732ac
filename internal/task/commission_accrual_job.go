package task

import (
	"context"

	"github.com/go-co-op/gocron/v2"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/isolexIO/chainlink-pos-sub003/internal/metrics"
)

// CommissionAccrualJob 月度佣金计提任务
type CommissionAccrualJob struct {
	commission *logic.CommissionLogic
	cron       string
}

// NewCommissionAccrualJob 创建佣金计提任务
func NewCommissionAccrualJob(commission *logic.CommissionLogic, cron string) *CommissionAccrualJob {
	return &CommissionAccrualJob{commission: commission, cron: cron}
}

// GetName 获取任务名称
func (j *CommissionAccrualJob) GetName() string {
	return "commission_accrual"
}

// GetSchedule 获取调度配置
func (j *CommissionAccrualJob) GetSchedule() gocron.JobDefinition {
	return gocron.CronJob(j.cron, false)
}

// Execute 执行任务
func (j *CommissionAccrualJob) Execute() {
	logger.Info("Starting commission accrual task")

	result, err := j.commission.AccrueCommissions(context.Background(), auth.SystemActor())
	if err != nil {
		logger.Error("Commission accrual task failed: %v", err)
		metrics.JobRuns.WithLabelValues(j.GetName(), "error").Inc()
		return
	}

	metrics.JobRuns.WithLabelValues(j.GetName(), "success").Inc()
	logger.Info("Commission accrual task completed: processed=%d created=%d total=%s errors=%d",
		result.Processed, result.Created, result.TotalCommissionAmount.StringFixed(2), len(result.Errors))
}
