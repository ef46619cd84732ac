// Package testutil 提供基于内存 sqlite 的测试数据库与数据构造函数
package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/isolexIO/chainlink-pos-sub003/internal/config"
	"github.com/isolexIO/chainlink-pos-sub003/internal/database"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NewDB 创建迁移完成的独立内存数据库
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
	db, err := database.Init(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   "file:" + name + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// Dec 解析金额字符串
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// DealerOption 调整经销商默认值
type DealerOption func(*model.DealerModel)

// WithMinimum 设置打款门槛
func WithMinimum(amount string) DealerOption {
	return func(d *model.DealerModel) { d.PayoutMinimum = Dec(amount) }
}

// WithHoldDays 设置打款等待天数
func WithHoldDays(days int) DealerOption {
	return func(d *model.DealerModel) { d.PayoutHoldDays = days }
}

// WithMethod 设置打款方式
func WithMethod(method model.PayoutMethod) DealerOption {
	return func(d *model.DealerModel) { d.PayoutMethod = method }
}

// WithCadence 设置打款周期
func WithCadence(cadence model.PayoutCadence) DealerOption {
	return func(d *model.DealerModel) { d.PayoutCadence = cadence }
}

// WithoutDestination 清空收款信息
func WithoutDestination() DealerOption {
	return func(d *model.DealerModel) { d.PayoutDestination = nil }
}

// WithStatus 设置经销商状态
func WithStatus(status model.DealerStatus) DealerOption {
	return func(d *model.DealerModel) { d.Status = status }
}

// WithPending 设置待付佣金
func WithPending(amount string) DealerOption {
	return func(d *model.DealerModel) { d.CommissionPending = Dec(amount) }
}

// CreateDealer 创建一个 active、Stripe Connect 打款的经销商
func CreateDealer(t *testing.T, db *gorm.DB, commissionPercent string, opts ...DealerOption) *model.DealerModel {
	t.Helper()

	dealer := &model.DealerModel{
		Name:                "Dealer " + uuid.NewString()[:6],
		Email:               "dealer@example.com",
		Status:              model.DealerStatusActive,
		CommissionPercent:   Dec(commissionPercent),
		PayoutMethod:        model.PayoutMethodStripeConnect,
		PayoutCadence:       model.PayoutCadenceMonthly,
		PayoutDestination:   datatypes.JSONMap{"stripe_account_id": "acct_test"},
		StripeAccountId:     "acct_test",
		SolanaWalletAddress: "",
	}
	for _, opt := range opts {
		opt(dealer)
	}
	require.NoError(t, db.Create(dealer).Error)
	return dealer
}

// CreateMerchant 创建经销商名下的 active 商户及一个 active 订阅
func CreateMerchant(t *testing.T, db *gorm.DB, dealerId, name, price string) (*model.MerchantModel, *model.SubscriptionModel) {
	t.Helper()

	merchant := &model.MerchantModel{
		DealerId:     &dealerId,
		BusinessName: name,
		Status:       model.MerchantStatusActive,
	}
	require.NoError(t, db.Create(merchant).Error)

	sub := CreateSubscription(t, db, merchant.Id, price, model.SubscriptionStatusActive)
	return merchant, sub
}

// CreateSubscription 为商户追加订阅
func CreateSubscription(t *testing.T, db *gorm.DB, merchantId, price string, status model.SubscriptionStatus) *model.SubscriptionModel {
	t.Helper()

	sub := &model.SubscriptionModel{
		MerchantId: merchantId,
		PlanName:   "pro",
		Price:      Dec(price),
		Status:     status,
	}
	require.NoError(t, db.Create(sub).Error)
	return sub
}

// CreatePayout 直接写入一张打款单
func CreatePayout(t *testing.T, db *gorm.DB, dealer *model.DealerModel, status model.PayoutStatus, commission string, periodEnd time.Time) *model.DealerPayoutModel {
	t.Helper()

	payout := &model.DealerPayoutModel{
		DealerId:         dealer.Id,
		PeriodStart:      periodEnd.AddDate(0, -1, 0).UTC(),
		PeriodEnd:        periodEnd.UTC(),
		GrossAmount:      Dec(commission).Mul(decimal.NewFromInt(5)),
		CommissionAmount: Dec(commission),
		PayoutMethod:     dealer.PayoutMethod,
		Status:           status,
	}
	if status == model.PayoutStatusOnHold {
		payout.CarryoverAmount = Dec(commission)
	}
	require.NoError(t, db.Create(payout).Error)
	return payout
}

// ReloadDealer 重新读取经销商
func ReloadDealer(t *testing.T, db *gorm.DB, id string) *model.DealerModel {
	t.Helper()

	var dealer model.DealerModel
	require.NoError(t, db.Where("id = ?", id).First(&dealer).Error)
	return &dealer
}

// ReloadPayout 重新读取打款单
func ReloadPayout(t *testing.T, db *gorm.DB, id string) *model.DealerPayoutModel {
	t.Helper()

	var payout model.DealerPayoutModel
	require.NoError(t, db.Preload("Items").Where("id = ?", id).First(&payout).Error)
	return &payout
}

// AssertAmount 按两位小数比较金额
func AssertAmount(t *testing.T, expected string, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	require.Equal(t, Dec(expected).StringFixed(2), actual.StringFixed(2), msgAndArgs...)
}
