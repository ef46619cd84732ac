package model

import (
	"time"

	"gorm.io/datatypes"
)

// SystemLogModel 只追加的审计日志
type SystemLogModel struct {
	Id        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	Action     string            `json:"action" gorm:"type:varchar(64);not null;index"`
	Severity   Severity          `json:"severity" gorm:"type:varchar(16);not null"`
	ActorId    string            `json:"actor_id" gorm:"type:varchar(64)"`
	ActorRole  string            `json:"actor_role" gorm:"type:varchar(32)"`
	EntityType string            `json:"entity_type" gorm:"type:varchar(32)"`
	EntityId   string            `json:"entity_id" gorm:"type:varchar(36);index"`
	Message    string            `json:"message" gorm:"type:text"`
	Metadata   datatypes.JSONMap `json:"metadata"`
}

// Severity 日志严重级别
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// TableName 自定义表名
func (SystemLogModel) TableName() string {
	return "system_log"
}
