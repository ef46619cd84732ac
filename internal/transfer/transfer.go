// Package transfer 按打款方式执行资金划转
package transfer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/shopspring/decimal"
)

// Request 一次划转请求
type Request struct {
	PayoutId    string
	DealerId    string
	Amount      decimal.Decimal
	Currency    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Attempt     int

	StripeAccountId     string
	SolanaWalletAddress string
	Destination         map[string]interface{}
}

// Result 划转结果，Success 为 false 时 Error 给出原因
type Result struct {
	Success     bool
	Destination map[string]interface{}
	Fees        decimal.Decimal
	Error       string
}

// Failure 构造失败结果
func Failure(format string, args ...interface{}) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Method 打款方式
//
// 可预期的失败（缺少账户、渠道拒绝）以 Result 返回；只有无法归类的异常才返回 error。
type Method interface {
	Name() model.PayoutMethod
	Transfer(ctx context.Context, req Request) (*Result, error)
}

// Registry 打款方式注册表
type Registry struct {
	mu      sync.RWMutex
	methods map[model.PayoutMethod]Method
}

// NewRegistry 创建注册表并注册给定方式
func NewRegistry(methods ...Method) *Registry {
	r := &Registry{methods: make(map[model.PayoutMethod]Method)}
	for _, m := range methods {
		r.Register(m)
	}
	return r
}

// Register 注册打款方式，同名覆盖
func (r *Registry) Register(m Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[m.Name()] = m
}

// Get 获取打款方式
func (r *Registry) Get(name model.PayoutMethod) (Method, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[name]
	return m, ok
}
