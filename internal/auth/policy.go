package auth

import (
	"errors"
	"strings"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// Role 操作者角色
type Role string

const (
	RoleRootAdmin     Role = "root_admin"
	RoleDealerAdmin   Role = "dealer_admin"
	RoleMerchantAdmin Role = "merchant_admin"
	RoleSystem        Role = "system"
)

// Actor 已认证的操作者
type Actor struct {
	UserId   string
	Email    string
	Role     Role
	DealerId string
}

// IsRoot 是否为平台管理员（定时任务视同平台管理员）
func (a Actor) IsRoot() bool {
	return a.Role == RoleRootAdmin || a.Role == RoleSystem
}

// SystemActor 定时任务使用的操作者
func SystemActor() Actor {
	return Actor{UserId: "system", Role: RoleSystem}
}

// Action 受控操作
type Action string

const (
	ActionAccrueCommissions Action = "commissions.accrue"
	ActionAggregatePayouts  Action = "payouts.aggregate"
	ActionPreviewPayout     Action = "payouts.preview"
	ActionDispatchPayout    Action = "payouts.dispatch"
	ActionRunSchedule       Action = "payouts.schedule"
	ActionCancelPayout      Action = "payouts.cancel"
	ActionTriggerPayout     Action = "payouts.trigger"
	ActionViewPayout        Action = "payouts.view"
	ActionBypassMinimum     Action = "payouts.bypass_minimum"
)

// Resource 被操作的资源，DealerId 为空表示平台级操作
type Resource struct {
	DealerId string
}

// Policy 统一的权限判定
type Policy struct {
	dealerActions map[Action]bool
}

// NewPolicy 创建默认策略：平台管理员全部允许，经销商管理员仅限自身经销商的查看、预览、打款、手动触发
func NewPolicy() *Policy {
	return &Policy{
		dealerActions: map[Action]bool{
			ActionPreviewPayout:  true,
			ActionDispatchPayout: true,
			ActionTriggerPayout:  true,
			ActionViewPayout:     true,
		},
	}
}

// Authorize 判定 actor 能否对 resource 执行 action
func (p *Policy) Authorize(actor Actor, action Action, resource Resource) error {
	if strings.TrimSpace(actor.UserId) == "" {
		return ErrUnauthorized
	}
	if actor.IsRoot() {
		return nil
	}
	if actor.Role != RoleDealerAdmin || !p.dealerActions[action] {
		return ErrForbidden
	}
	if actor.DealerId == "" || resource.DealerId == "" || actor.DealerId != resource.DealerId {
		return ErrForbidden
	}
	return nil
}
