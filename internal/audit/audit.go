package audit

import (
	"context"
	"errors"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"gorm.io/gorm"
)

// 审计动作
const (
	ActionCommissionAccrued = "commission_accrued"
	ActionPayoutCreated     = "payout_created"
	ActionPayoutOnHold      = "payout_on_hold"
	ActionPayoutScheduled   = "payout_scheduled"
	ActionPayoutProcessing  = "payout_processing"
	ActionPayoutCompleted   = "payout_completed"
	ActionPayoutFailed      = "payout_failed"
	ActionPayoutReview      = "payout_manual_review"
	ActionPayoutCanceled    = "payout_canceled"
	ActionPayoutTriggered   = "payout_manual_trigger"
	ActionPayoutReversed    = "payout_reversed"
	ActionPayoutReconciled  = "payout_reconciled"
)

// SystemActor 定时任务等无人参与的操作者
const SystemActor = "system"

// Entry 一条审计记录
type Entry struct {
	Action     string
	Severity   model.Severity
	ActorId    string
	ActorRole  string
	EntityType string
	EntityId   string
	Message    string
	Metadata   map[string]interface{}
	OccurredAt time.Time
}

// Sink 审计落地
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// GormSink 写入 system_log 表
type GormSink struct {
	db *gorm.DB
}

// NewGormSink 创建数据库审计落地
func NewGormSink(db *gorm.DB) *GormSink {
	return &GormSink{db: db}
}

// Record 写入一条审计日志
func (s *GormSink) Record(ctx context.Context, entry Entry) error {
	row := model.SystemLogModel{
		Action:     entry.Action,
		Severity:   entry.Severity,
		ActorId:    entry.ActorId,
		ActorRole:  entry.ActorRole,
		EntityType: entry.EntityType,
		EntityId:   entry.EntityId,
		Message:    entry.Message,
		Metadata:   entry.Metadata,
	}
	if row.Severity == "" {
		row.Severity = model.SeverityInfo
	}
	if !entry.OccurredAt.IsZero() {
		row.CreatedAt = entry.OccurredAt
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// MultiSink 依次写入多个落地，返回合并后的错误
type MultiSink []Sink

// Record 写入全部落地
func (m MultiSink) Record(ctx context.Context, entry Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Write 记录审计日志，失败只打日志不影响业务流程
func Write(ctx context.Context, sink Sink, entry Entry) {
	if sink == nil {
		return
	}
	if err := sink.Record(ctx, entry); err != nil {
		logger.Error("Failed to write audit entry %s for %s %s: %v",
			entry.Action, entry.EntityType, entry.EntityId, err)
	}
}
