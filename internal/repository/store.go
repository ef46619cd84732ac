package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Store 佣金与打款数据访问层
type Store struct {
	db *gorm.DB
}

// NewStore 创建数据访问层
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB 返回底层连接
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction 在同一个数据库事务中执行 fn
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func notFound(err error, entity, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %s: %w", entity, id, err)
}

// GetDealer 根据 ID 获取经销商
func (s *Store) GetDealer(ctx context.Context, id string) (*model.DealerModel, error) {
	var dealer model.DealerModel
	if err := s.conn(ctx).Where("id = ?", id).First(&dealer).Error; err != nil {
		return nil, notFound(err, "dealer", id)
	}
	return &dealer, nil
}

// ListActiveDealers 获取所有 active 状态的经销商
func (s *Store) ListActiveDealers(ctx context.Context) ([]model.DealerModel, error) {
	var dealers []model.DealerModel
	if err := s.conn(ctx).
		Where("status = ?", model.DealerStatusActive).
		Order("created_at ASC, id ASC").
		Find(&dealers).Error; err != nil {
		return nil, fmt.Errorf("failed to list active dealers: %w", err)
	}
	return dealers, nil
}

// ListDealerMerchants 获取经销商名下的商户，activeOnly 时只返回 active 商户
func (s *Store) ListDealerMerchants(ctx context.Context, dealerId string, activeOnly bool) ([]model.MerchantModel, error) {
	query := s.conn(ctx).Where("dealer_id = ?", dealerId)
	if activeOnly {
		query = query.Where("status = ?", model.MerchantStatusActive)
	}

	var merchants []model.MerchantModel
	if err := query.Order("created_at ASC, id ASC").Find(&merchants).Error; err != nil {
		return nil, fmt.Errorf("failed to list merchants of dealer %s: %w", dealerId, err)
	}
	return merchants, nil
}

// ActiveSubscriptions 按商户分组返回 active 订阅，每组按创建时间倒序
func (s *Store) ActiveSubscriptions(ctx context.Context, merchantIds []string) (map[string][]model.SubscriptionModel, error) {
	result := make(map[string][]model.SubscriptionModel, len(merchantIds))
	if len(merchantIds) == 0 {
		return result, nil
	}

	var subs []model.SubscriptionModel
	if err := s.conn(ctx).
		Where("merchant_id IN ? AND status = ?", merchantIds, model.SubscriptionStatusActive).
		Order("created_at DESC, id DESC").
		Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}

	for _, sub := range subs {
		result[sub.MerchantId] = append(result[sub.MerchantId], sub)
	}
	return result, nil
}

// CommissionExists 是否已有 (dealer, merchant, 周期起点) 的计提记录
func (s *Store) CommissionExists(ctx context.Context, dealerId, merchantId string, periodStart time.Time) (bool, error) {
	var count int64
	if err := s.conn(ctx).Model(&model.DealerCommissionModel{}).
		Where("dealer_id = ? AND merchant_id = ? AND billing_period_start = ?", dealerId, merchantId, periodStart).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check commission: %w", err)
	}
	return count > 0, nil
}

// CreateCommissionIfAbsent 条件创建计提记录，唯一索引冲突时返回 false
func (s *Store) CreateCommissionIfAbsent(ctx context.Context, commission *model.DealerCommissionModel) (bool, error) {
	res := s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(commission)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create commission: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// AddEarned 原子累加经销商已赚佣金
func (s *Store) AddEarned(ctx context.Context, dealerId string, amount decimal.Decimal) error {
	if err := s.conn(ctx).Model(&model.DealerModel{}).
		Where("id = ?", dealerId).
		Update("commission_earned", gorm.Expr("commission_earned + ?", amount)).Error; err != nil {
		return fmt.Errorf("failed to add earned commission for dealer %s: %w", dealerId, err)
	}
	return nil
}

// SetPendingAndNext 聚合后更新待付佣金与下次打款日期
func (s *Store) SetPendingAndNext(ctx context.Context, dealerId string, pending decimal.Decimal, next *time.Time) error {
	if err := s.conn(ctx).Model(&model.DealerModel{}).
		Where("id = ?", dealerId).
		Updates(map[string]interface{}{
			"commission_pending": pending,
			"next_payout_date":   next,
		}).Error; err != nil {
		return fmt.Errorf("failed to update pending commission for dealer %s: %w", dealerId, err)
	}
	return nil
}

// ApplyPayoutTotals 打款成功后累加已付，扣减待付（不低于 0）
func (s *Store) ApplyPayoutTotals(ctx context.Context, dealerId string, amount decimal.Decimal, paidAt time.Time) error {
	if err := s.conn(ctx).Model(&model.DealerModel{}).
		Where("id = ?", dealerId).
		Updates(map[string]interface{}{
			"commission_paid_out": gorm.Expr("commission_paid_out + ?", amount),
			"commission_pending":  gorm.Expr("CASE WHEN commission_pending - ? < 0 THEN 0 ELSE commission_pending - ? END", amount, amount),
			"last_payout_date":    paidAt,
		}).Error; err != nil {
		return fmt.Errorf("failed to apply payout totals for dealer %s: %w", dealerId, err)
	}
	return nil
}

// ReversePayoutTotals 打款被撤回时回滚已付金额
func (s *Store) ReversePayoutTotals(ctx context.Context, dealerId string, amount decimal.Decimal) error {
	if err := s.conn(ctx).Model(&model.DealerModel{}).
		Where("id = ?", dealerId).
		Updates(map[string]interface{}{
			"commission_paid_out": gorm.Expr("CASE WHEN commission_paid_out - ? < 0 THEN 0 ELSE commission_paid_out - ? END", amount, amount),
			"commission_pending":  gorm.Expr("commission_pending + ?", amount),
		}).Error; err != nil {
		return fmt.Errorf("failed to reverse payout totals for dealer %s: %w", dealerId, err)
	}
	return nil
}

// PayoutExists 是否已有同一经销商同一周期的打款单
func (s *Store) PayoutExists(ctx context.Context, dealerId string, start, end time.Time) (bool, error) {
	var count int64
	if err := s.conn(ctx).Model(&model.DealerPayoutModel{}).
		Where("dealer_id = ? AND period_start = ? AND period_end = ?", dealerId, start, end).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check payout: %w", err)
	}
	return count > 0, nil
}

// CreatePayoutIfAbsent 条件创建打款单（不含明细），唯一索引冲突时返回 false
func (s *Store) CreatePayoutIfAbsent(ctx context.Context, payout *model.DealerPayoutModel) (bool, error) {
	res := s.conn(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(payout)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create payout: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CreatePayoutItems 批量写入打款明细
func (s *Store) CreatePayoutItems(ctx context.Context, items []model.DealerPayoutItemModel) error {
	if len(items) == 0 {
		return nil
	}
	if err := s.conn(ctx).Create(&items).Error; err != nil {
		return fmt.Errorf("failed to create payout items: %w", err)
	}
	return nil
}

// MarkCarriedOver 把已并入新打款单的 on_hold 打款单标记为 carried_over，返回实际更新的行数
func (s *Store) MarkCarriedOver(ctx context.Context, ids []string, intoPayoutId string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	note := fmt.Sprintf("carried over into payout %s", intoPayoutId)
	res := s.conn(ctx).Model(&model.DealerPayoutModel{}).
		Where("id IN ? AND status = ?", ids, model.PayoutStatusOnHold).
		Updates(map[string]interface{}{
			"status": model.PayoutStatusCarriedOver,
			"notes":  gorm.Expr("CASE WHEN COALESCE(notes, '') = '' THEN ? ELSE notes || '\n' || ? END", note, note),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to mark payouts carried over: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) GetPayout(ctx context.Context, id string) (*model.DealerPayoutModel, error) {
	var payout model.DealerPayoutModel
	if err := s.conn(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&payout).Error; err != nil {
		return nil, notFound(err, "payout", id)
	}
	return &payout, nil
}

// ListPayoutsByStatus 按状态获取打款单，dealerId 为空时不限经销商
func (s *Store) ListPayoutsByStatus(ctx context.Context, dealerId string, status model.PayoutStatus) ([]model.DealerPayoutModel, error) {
	query := s.conn(ctx).Where("status = ?", status)
	if dealerId != "" {
		query = query.Where("dealer_id = ?", dealerId)
	}

	var payouts []model.DealerPayoutModel
	if err := query.Order("period_end ASC, created_at ASC, id ASC").Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("failed to list %s payouts: %w", status, err)
	}
	return payouts, nil
}

// ListDueScheduled 获取 scheduled_at 已到期的 scheduled 打款单
func (s *Store) ListDueScheduled(ctx context.Context, now time.Time) ([]model.DealerPayoutModel, error) {
	var payouts []model.DealerPayoutModel
	if err := s.conn(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", model.PayoutStatusScheduled, now).
		Order("scheduled_at ASC, id ASC").
		Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("failed to list due payouts: %w", err)
	}
	return payouts, nil
}

// ListRetryable 获取尝试次数未达上限的 failed 打款单
func (s *Store) ListRetryable(ctx context.Context, maxAttempts int) ([]model.DealerPayoutModel, error) {
	var payouts []model.DealerPayoutModel
	if err := s.conn(ctx).
		Where("status = ? AND attempt_count < ?", model.PayoutStatusFailed, maxAttempts).
		Order("updated_at ASC, id ASC").
		Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("failed to list retryable payouts: %w", err)
	}
	return payouts, nil
}

// ListStaleProcessing 获取 updated_at 早于 before 的 processing 打款单
func (s *Store) ListStaleProcessing(ctx context.Context, before time.Time) ([]model.DealerPayoutModel, error) {
	var payouts []model.DealerPayoutModel
	if err := s.conn(ctx).
		Where("status = ? AND updated_at < ?", model.PayoutStatusProcessing, before).
		Order("updated_at ASC, id ASC").
		Find(&payouts).Error; err != nil {
		return nil, fmt.Errorf("failed to list stale processing payouts: %w", err)
	}
	return payouts, nil
}

// UpdatePayoutStatus 仅当当前状态属于 from 时更新，返回是否命中
func (s *Store) UpdatePayoutStatus(ctx context.Context, id string, from []model.PayoutStatus, updates map[string]interface{}) (bool, error) {
	res := s.conn(ctx).Model(&model.DealerPayoutModel{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update payout %s: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListDealerPayouts 分页获取经销商的打款单，status 为空时不过滤
func (s *Store) ListDealerPayouts(ctx context.Context, dealerId string, status model.PayoutStatus, page, pageSize int) ([]model.DealerPayoutModel, int64, error) {
	scoped := func() *gorm.DB {
		query := s.conn(ctx).Model(&model.DealerPayoutModel{}).Where("dealer_id = ?", dealerId)
		if status != "" {
			query = query.Where("status = ?", status)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payouts: %w", err)
	}

	var payouts []model.DealerPayoutModel
	offset := (page - 1) * pageSize
	if err := scoped().
		Order("period_end DESC, created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&payouts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list payouts: %w", err)
	}
	return payouts, total, nil
}
