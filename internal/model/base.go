package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// newID 为空主键分配 UUID
func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// BeforeCreate 分配主键
func (m *DealerModel) BeforeCreate(*gorm.DB) error {
	newID(&m.Id)
	return nil
}

// BeforeCreate 分配主键
func (m *MerchantModel) BeforeCreate(*gorm.DB) error {
	newID(&m.Id)
	return nil
}

// BeforeCreate 分配主键
func (m *SubscriptionModel) BeforeCreate(*gorm.DB) error {
	newID(&m.Id)
	return nil
}

// BeforeCreate 分配主键
func (m *DealerCommissionModel) BeforeCreate(*gorm.DB) error {
	newID(&m.Id)
	return nil
}

// BeforeCreate 分配主键
func (m *DealerPayoutModel) BeforeCreate(*gorm.DB) error {
	newID(&m.Id)
	return nil
}

// BeforeCreate 分配主键
func (m *DealerPayoutItemModel) BeforeCreate(*gorm.DB) error {
	newID(&m.Id)
	return nil
}

// BeforeCreate 分配主键
func (m *SystemLogModel) BeforeCreate(*gorm.DB) error {
	newID(&m.Id)
	return nil
}

// All 返回需要迁移的全部模型
func All() []interface{} {
	return []interface{}{
		&DealerModel{},
		&MerchantModel{},
		&SubscriptionModel{},
		&DealerCommissionModel{},
		&DealerPayoutModel{},
		&DealerPayoutItemModel{},
		&SystemLogModel{},
	}
}
