package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/audit"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/metrics"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/isolexIO/chainlink-pos-sub003/internal/period"
	"github.com/isolexIO/chainlink-pos-sub003/internal/repository"
	"github.com/shopspring/decimal"
)

// CommissionLogic 月度佣金计提
type CommissionLogic struct {
	store *repository.Store
	opts  Options
}

// NewCommissionLogic 创建佣金计提逻辑
func NewCommissionLogic(store *repository.Store, opts Options) *CommissionLogic {
	return &CommissionLogic{store: store, opts: opts.withDefaults()}
}

// AccrualResult 计提批次结果
type AccrualResult struct {
	Processed             int             `json:"processed"`
	Created               int             `json:"created"`
	TotalCommissionAmount decimal.Decimal `json:"total_commission_amount"`
	Errors                []string        `json:"errors"`
}

// AccrueCommissions 为所有 active 经销商计提上一个自然月的佣金
func (l *CommissionLogic) AccrueCommissions(ctx context.Context, actor auth.Actor) (*AccrualResult, error) {
	if err := l.opts.Policy.Authorize(actor, auth.ActionAccrueCommissions, auth.Resource{}); err != nil {
		return nil, err
	}

	dealers, err := l.store.ListActiveDealers(ctx)
	if err != nil {
		return nil, err
	}

	p := l.opts.Calculator.Monthly(l.opts.now()).UTC()
	result := &AccrualResult{TotalCommissionAmount: decimal.Zero, Errors: []string{}}

	for i := range dealers {
		dealer := &dealers[i]
		created, amount, err := l.accrueDealer(ctx, actor, dealer, p)
		result.Processed++
		result.Created += created
		result.TotalCommissionAmount = result.TotalCommissionAmount.Add(amount)
		if err != nil {
			logger.Error("Failed to accrue commissions for dealer %s: %v", dealer.Id, err)
			result.Errors = append(result.Errors, fmt.Sprintf("dealer %s: %v", dealer.Id, err))
		}
	}

	logger.Info("Commission accrual for %s finished: processed=%d created=%d total=%s errors=%d",
		p.Start.Format(time.DateOnly), result.Processed, result.Created,
		result.TotalCommissionAmount.StringFixed(2), len(result.Errors))
	return result, nil
}

// accrueDealer 计提单个经销商，返回新建条数和金额；出错时已完成的部分仍计入
func (l *CommissionLogic) accrueDealer(ctx context.Context, actor auth.Actor, dealer *model.DealerModel, p period.Period) (int, decimal.Decimal, error) {
	created := 0
	total := decimal.Zero

	err := withDealerLock(ctx, l.opts.Locker, dealer.Id, func() error {
		merchants, err := l.store.ListDealerMerchants(ctx, dealer.Id, true)
		if err != nil {
			return err
		}
		subs, err := l.store.ActiveSubscriptions(ctx, merchantIds(merchants))
		if err != nil {
			return err
		}

		for i := range merchants {
			merchant := &merchants[i]
			sub := currentSubscription(merchant, subs[merchant.Id])
			if sub == nil {
				continue
			}

			exists, err := l.store.CommissionExists(ctx, dealer.Id, merchant.Id, p.Start)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			price := sub.Price.Round(2)
			commission := &model.DealerCommissionModel{
				DealerId:                   dealer.Id,
				MerchantId:                 merchant.Id,
				SubscriptionId:             sub.Id,
				BillingPeriodStart:         p.Start,
				BillingPeriodEnd:           p.End,
				MerchantSubscriptionAmount: price,
				CommissionPercent:          dealer.CommissionPercent,
				CommissionAmount:           percentOf(price, dealer.CommissionPercent),
				Status:                     model.CommissionStatusPending,
			}

			inserted := false
			if err := l.store.Transaction(ctx, func(tx *repository.Store) error {
				ok, err := tx.CreateCommissionIfAbsent(ctx, commission)
				if err != nil || !ok {
					return err
				}
				inserted = true
				return tx.AddEarned(ctx, dealer.Id, commission.CommissionAmount)
			}); err != nil {
				return fmt.Errorf("merchant %s: %w", merchant.Id, err)
			}
			if !inserted {
				continue
			}

			created++
			total = total.Add(commission.CommissionAmount)
			metrics.CommissionsAccrued.Inc()
			l.opts.record(ctx, actor, audit.Entry{
				Action:     audit.ActionCommissionAccrued,
				Severity:   model.SeverityInfo,
				EntityType: "dealer_commission",
				EntityId:   commission.Id,
				Message:    fmt.Sprintf("Accrued commission %s for merchant %s", commission.CommissionAmount.StringFixed(2), merchant.BusinessName),
				Metadata: map[string]interface{}{
					"dealer_id":            dealer.Id,
					"merchant_id":          merchant.Id,
					"subscription_id":      sub.Id,
					"billing_period_start": p.Start.Format(time.RFC3339),
					"subscription_amount":  commission.MerchantSubscriptionAmount.StringFixed(2),
					"commission_percent":   commission.CommissionPercent.String(),
					"commission_amount":    commission.CommissionAmount.StringFixed(2),
				},
			})
		}
		return nil
	})

	return created, total, err
}

func merchantIds(merchants []model.MerchantModel) []string {
	ids := make([]string, len(merchants))
	for i, m := range merchants {
		ids[i] = m.Id
	}
	return ids
}

// currentSubscription 取商户当前的 active 订阅；有多个时取最新创建的一个并告警
func currentSubscription(merchant *model.MerchantModel, subs []model.SubscriptionModel) *model.SubscriptionModel {
	if len(subs) == 0 {
		return nil
	}
	if len(subs) > 1 {
		logger.Warn("Merchant %s has %d active subscriptions, using newest %s", merchant.Id, len(subs), subs[0].Id)
	}
	return &subs[0]
}
