package logic

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/audit"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/lock"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/isolexIO/chainlink-pos-sub003/internal/period"
	"github.com/isolexIO/chainlink-pos-sub003/internal/transfer"
	"github.com/shopspring/decimal"
)

// DefaultMaxAttempts 自动重试上限，达到后转人工审核
const DefaultMaxAttempts = 5

var (
	hundred = decimal.NewFromInt(100)

	// DefaultStripeFeePercent 配置 payout.stripe_fee_percent 的缺省值，0 表示不估算手续费
	DefaultStripeFeePercent = decimal.RequireFromString("0.25")
)

// Options 业务逻辑的协作者与参数
type Options struct {
	Calculator       *period.Calculator
	Locker           lock.DealerLocker
	Audit            audit.Sink
	Policy           *auth.Policy
	Transfers        *transfer.Registry
	Currency         string
	MaxAttempts      int
	StripeFeePercent decimal.Decimal
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Calculator == nil {
		o.Calculator = period.NewCalculator(time.UTC)
	}
	if o.Locker == nil {
		o.Locker = lock.NewLocalLocker()
	}
	if o.Policy == nil {
		o.Policy = auth.NewPolicy()
	}
	if o.Transfers == nil {
		o.Transfers = transfer.NewRegistry(transfer.NewSolanaMethod(), transfer.NewManualMethod())
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func (o Options) now() time.Time {
	return o.Now().UTC()
}

// percentOf 计算 amount * percent / 100，保留两位小数
func percentOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred).Round(2)
}

func statusIn(status model.PayoutStatus, allowed ...model.PayoutStatus) bool {
	for _, s := range allowed {
		if status == s {
			return true
		}
	}
	return false
}

func joinStatuses(statuses []model.PayoutStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}

// appendNote 在备注末尾追加一行
func appendNote(notes, line string) string {
	if notes == "" {
		return line
	}
	return notes + "\n" + line
}

// withDealerLock 在经销商锁内执行 fn
func withDealerLock(ctx context.Context, locker lock.DealerLocker, dealerId string, fn func() error) error {
	unlock, err := locker.Lock(ctx, dealerId)
	if err != nil {
		return fmt.Errorf("dealer %s: %w", dealerId, err)
	}
	defer unlock()
	return fn()
}

func (o Options) record(ctx context.Context, actor auth.Actor, entry audit.Entry) {
	entry.ActorId = actor.UserId
	entry.ActorRole = string(actor.Role)
	if entry.ActorId == "" {
		entry.ActorId = audit.SystemActor
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = o.now()
	}
	audit.Write(ctx, o.Audit, entry)
}

func payoutEntry(action string, severity model.Severity, payout *model.DealerPayoutModel, message string, metadata map[string]interface{}) audit.Entry {
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	metadata["dealer_id"] = payout.DealerId
	metadata["commission_amount"] = payout.CommissionAmount.StringFixed(2)
	metadata["period_start"] = payout.PeriodStart.Format(time.RFC3339)
	metadata["period_end"] = payout.PeriodEnd.Format(time.RFC3339)
	return audit.Entry{
		Action:     action,
		Severity:   severity,
		EntityType: "dealer_payout",
		EntityId:   payout.Id,
		Message:    message,
		Metadata:   metadata,
	}
}
