package transfer

import (
	"context"

	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
)

// ManualMethod 线下打款，由管理员在系统外完成
type ManualMethod struct{}

// NewManualMethod 创建人工打款方式
func NewManualMethod() *ManualMethod {
	return &ManualMethod{}
}

// Name 实现 Method
func (m *ManualMethod) Name() model.PayoutMethod {
	return model.PayoutMethodManual
}

// Transfer 实现 Method
func (m *ManualMethod) Transfer(context.Context, Request) (*Result, error) {
	return Failure("Manual payout requires admin action"), nil
}
