package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// MerchantModel 商户，dealer_id 为空表示平台直营
type MerchantModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DealerId     *string        `json:"dealer_id" gorm:"type:varchar(36);index"`
	BusinessName string         `json:"business_name" gorm:"not null"`
	Status       MerchantStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
}

// MerchantStatus 商户状态
type MerchantStatus string

const (
	MerchantStatusActive    MerchantStatus = "active"
	MerchantStatusSuspended MerchantStatus = "suspended"
	MerchantStatusClosed    MerchantStatus = "closed"
)

// TableName 自定义表名
func (MerchantModel) TableName() string {
	return "merchant"
}

// SubscriptionModel 商户订阅
type SubscriptionModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MerchantId string             `json:"merchant_id" gorm:"type:varchar(36);not null;index"`
	PlanName   string             `json:"plan_name"`
	Price      decimal.Decimal    `json:"price" gorm:"type:numeric(14,2);not null;default:0"`
	Status     SubscriptionStatus `json:"status" gorm:"type:varchar(20);default:'active'"`
}

// SubscriptionStatus 订阅状态
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// TableName 自定义表名
func (SubscriptionModel) TableName() string {
	return "subscription"
}
