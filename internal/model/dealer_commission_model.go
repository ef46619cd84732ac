package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealerCommissionModel 佣金计提记录，每个 (dealer, merchant, 周期起点) 至多一条
type DealerCommissionModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DealerId           string    `json:"dealer_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_commission_period,priority:1"`
	MerchantId         string    `json:"merchant_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_commission_period,priority:2"`
	SubscriptionId     string    `json:"subscription_id" gorm:"type:varchar(36)"`
	BillingPeriodStart time.Time `json:"billing_period_start" gorm:"not null;uniqueIndex:idx_commission_period,priority:3"`
	BillingPeriodEnd   time.Time `json:"billing_period_end" gorm:"not null"`

	MerchantSubscriptionAmount decimal.Decimal  `json:"merchant_subscription_amount" gorm:"type:numeric(14,2);not null"`
	CommissionPercent          decimal.Decimal  `json:"commission_percent" gorm:"type:numeric(5,2);not null"` // 计提时的快照
	CommissionAmount           decimal.Decimal  `json:"commission_amount" gorm:"type:numeric(14,2);not null"`
	Status                     CommissionStatus `json:"status" gorm:"type:varchar(20);default:'pending'"`
}

// CommissionStatus 佣金状态
type CommissionStatus string

const (
	CommissionStatusPending CommissionStatus = "pending"
	CommissionStatusPaid    CommissionStatus = "paid"
)

// TableName 自定义表名
func (DealerCommissionModel) TableName() string {
	return "dealer_commission"
}
