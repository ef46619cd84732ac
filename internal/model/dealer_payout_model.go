package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DealerPayoutModel 经销商周期打款单
type DealerPayoutModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DealerId    string    `json:"dealer_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_payout_period,priority:1;index:idx_payout_dealer_status,priority:1"`
	PeriodStart time.Time `json:"period_start" gorm:"not null;uniqueIndex:idx_payout_period,priority:2"`
	PeriodEnd   time.Time `json:"period_end" gorm:"not null;uniqueIndex:idx_payout_period,priority:3"`

	GrossAmount      decimal.Decimal `json:"gross_amount" gorm:"type:numeric(14,2);not null;default:0"`
	CommissionAmount decimal.Decimal `json:"commission_amount" gorm:"type:numeric(14,2);not null;default:0"` // 含结转
	RootShare        decimal.Decimal `json:"root_share" gorm:"type:numeric(14,2);not null;default:0"`
	Fees             decimal.Decimal `json:"fees" gorm:"type:numeric(14,2);not null;default:0"`
	CarryoverAmount  decimal.Decimal `json:"carryover_amount" gorm:"type:numeric(14,2);not null;default:0"`

	PayoutMethod      PayoutMethod      `json:"payout_method" gorm:"type:varchar(20)"`
	PayoutDestination datatypes.JSONMap `json:"payout_destination"`
	Status            PayoutStatus      `json:"status" gorm:"type:varchar(20);default:'pending';index;index:idx_payout_dealer_status,priority:2"`
	ScheduledAt       *time.Time        `json:"scheduled_at"`
	ProcessedAt       *time.Time        `json:"processed_at"`
	AttemptCount      int               `json:"attempt_count" gorm:"default:0"`
	ErrorMessage      string            `json:"error_message" gorm:"type:text"`
	Notes             string            `json:"notes" gorm:"type:text"`

	Items []DealerPayoutItemModel `json:"items,omitempty" gorm:"foreignKey:PayoutId"`
}

// PayoutStatus 打款状态
type PayoutStatus string

const (
	PayoutStatusPending      PayoutStatus = "pending"
	PayoutStatusOnHold       PayoutStatus = "on_hold"
	PayoutStatusScheduled    PayoutStatus = "scheduled"
	PayoutStatusProcessing   PayoutStatus = "processing" // 调用打款渠道前的瞬时标记
	PayoutStatusCompleted    PayoutStatus = "completed"
	PayoutStatusFailed       PayoutStatus = "failed"
	PayoutStatusManualReview PayoutStatus = "manual_review"
	PayoutStatusCanceled     PayoutStatus = "canceled"
	PayoutStatusCarriedOver  PayoutStatus = "carried_over" // 已并入后续周期的打款单
)

// IsTerminal 是否为终态
func (s PayoutStatus) IsTerminal() bool {
	switch s {
	case PayoutStatusCompleted, PayoutStatusCanceled, PayoutStatusManualReview, PayoutStatusCarriedOver:
		return true
	}
	return false
}

// TableName 自定义表名
func (DealerPayoutModel) TableName() string {
	return "dealer_payout"
}

// DealerPayoutItemModel 打款单的商户明细，创建后不再修改
type DealerPayoutItemModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`

	PayoutId          string          `json:"payout_id" gorm:"type:varchar(36);not null;index"`
	MerchantId        string          `json:"merchant_id" gorm:"type:varchar(36);not null"`
	SubscriptionId    string          `json:"subscription_id" gorm:"type:varchar(36)"`
	Description       string          `json:"description"`
	GrossAmount       decimal.Decimal `json:"gross_amount" gorm:"type:numeric(14,2);not null"`
	CommissionPercent decimal.Decimal `json:"commission_percent" gorm:"type:numeric(5,2);not null"`
	CommissionAmount  decimal.Decimal `json:"commission_amount" gorm:"type:numeric(14,2);not null"`
}

// TableName 自定义表名
func (DealerPayoutItemModel) TableName() string {
	return "dealer_payout_item"
}
