package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DealerModel 经销商（转售商户的租户）
type DealerModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name   string       `json:"name" gorm:"not null"`
	Email  string       `json:"email"`
	Status DealerStatus `json:"status" gorm:"type:varchar(20);default:'trial';index"`

	// 佣金与打款设置
	CommissionPercent   decimal.Decimal   `json:"commission_percent" gorm:"type:numeric(5,2);not null;default:0"`
	PayoutMethod        PayoutMethod      `json:"payout_method" gorm:"type:varchar(20);default:'manual'"`
	PayoutMinimum       decimal.Decimal   `json:"payout_minimum" gorm:"type:numeric(14,2);not null;default:0"`
	PayoutCadence       PayoutCadence     `json:"payout_cadence" gorm:"type:varchar(20);default:'monthly'"`
	PayoutHoldDays      int               `json:"payout_hold_days" gorm:"default:0"`
	PayoutDestination   datatypes.JSONMap `json:"payout_destination"`
	StripeAccountId     string            `json:"stripe_account_id"`
	SolanaWalletAddress string            `json:"solana_wallet_address"`

	// 累计金额
	CommissionEarned  decimal.Decimal `json:"commission_earned" gorm:"type:numeric(14,2);not null;default:0"`
	CommissionPaidOut decimal.Decimal `json:"commission_paid_out" gorm:"type:numeric(14,2);not null;default:0"`
	CommissionPending decimal.Decimal `json:"commission_pending" gorm:"type:numeric(14,2);not null;default:0"`
	LastPayoutDate    *time.Time      `json:"last_payout_date"`
	NextPayoutDate    *time.Time      `json:"next_payout_date"`
}

// DealerStatus 经销商状态
type DealerStatus string

const (
	DealerStatusTrial     DealerStatus = "trial"
	DealerStatusActive    DealerStatus = "active"
	DealerStatusSuspended DealerStatus = "suspended"
)

// PayoutMethod 打款方式
type PayoutMethod string

const (
	PayoutMethodStripeConnect PayoutMethod = "stripe_connect"
	PayoutMethodSolana        PayoutMethod = "solana"
	PayoutMethodManual        PayoutMethod = "manual"
)

// PayoutCadence 打款周期
type PayoutCadence string

const (
	PayoutCadenceMonthly  PayoutCadence = "monthly"
	PayoutCadenceWeekly   PayoutCadence = "weekly"
	PayoutCadenceBiweekly PayoutCadence = "biweekly"
)

// HasPayoutDestination 是否配置了收款信息
func (d *DealerModel) HasPayoutDestination() bool {
	return len(d.PayoutDestination) > 0
}

// TableName 自定义表名
func (DealerModel) TableName() string {
	return "dealer"
}
