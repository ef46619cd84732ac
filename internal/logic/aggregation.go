package logic

import (
	"context"
	"fmt"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/isolexIO/chainlink-pos-sub003/internal/period"
	"github.com/shopspring/decimal"
)

// aggregation 一个经销商一个周期的汇总结果，聚合与预览共用
type aggregation struct {
	Period           period.Period
	Merchants        map[string]string // merchant id -> business name
	GrossAmount      decimal.Decimal
	CommissionAmount decimal.Decimal // 不含结转
	RootShare        decimal.Decimal
	Carryover        decimal.Decimal
	TotalCommission  decimal.Decimal
	MeetsMinimum     bool
	ScheduledFor     *time.Time
	Items            []model.DealerPayoutItemModel
	OnHoldIds        []string
}

// buildAggregation 只读计算，不写库
func (l *PayoutLogic) buildAggregation(ctx context.Context, dealer *model.DealerModel, p period.Period) (*aggregation, error) {
	merchants, err := l.store.ListDealerMerchants(ctx, dealer.Id, false)
	if err != nil {
		return nil, err
	}
	subs, err := l.store.ActiveSubscriptions(ctx, merchantIds(merchants))
	if err != nil {
		return nil, err
	}

	agg := &aggregation{
		Period:      p,
		Merchants:   make(map[string]string, len(merchants)),
		GrossAmount: decimal.Zero,
		Carryover:   decimal.Zero,
	}
	for i := range merchants {
		merchant := &merchants[i]
		sub := currentSubscription(merchant, subs[merchant.Id])
		if sub == nil {
			continue
		}
		price := sub.Price.Round(2)
		agg.GrossAmount = agg.GrossAmount.Add(price)
		agg.Merchants[merchant.Id] = merchant.BusinessName
		agg.Items = append(agg.Items, model.DealerPayoutItemModel{
			MerchantId:        merchant.Id,
			SubscriptionId:    sub.Id,
			Description:       fmt.Sprintf("%s - %s subscription", merchant.BusinessName, sub.PlanName),
			GrossAmount:       price,
			CommissionPercent: dealer.CommissionPercent,
			CommissionAmount:  percentOf(price, dealer.CommissionPercent),
		})
	}

	agg.CommissionAmount = percentOf(agg.GrossAmount, dealer.CommissionPercent)
	agg.RootShare = agg.GrossAmount.Sub(agg.CommissionAmount)

	onHold, err := l.store.ListPayoutsByStatus(ctx, dealer.Id, model.PayoutStatusOnHold)
	if err != nil {
		return nil, err
	}
	for _, held := range onHold {
		agg.Carryover = agg.Carryover.Add(held.CarryoverAmount)
		agg.OnHoldIds = append(agg.OnHoldIds, held.Id)
	}

	agg.TotalCommission = agg.CommissionAmount.Add(agg.Carryover)
	agg.MeetsMinimum = agg.TotalCommission.GreaterThanOrEqual(dealer.PayoutMinimum)
	if agg.MeetsMinimum {
		at := p.End.AddDate(0, 0, dealer.PayoutHoldDays)
		agg.ScheduledFor = &at
	}
	return agg, nil
}

// isEmpty 没有收入也没有结转时不生成打款单
func (a *aggregation) isEmpty() bool {
	return a.GrossAmount.IsZero() && a.Carryover.IsZero()
}

// toPayout 按门槛决定 on_hold 或 scheduled
func (a *aggregation) toPayout(dealer *model.DealerModel) *model.DealerPayoutModel {
	payout := &model.DealerPayoutModel{
		DealerId:         dealer.Id,
		PeriodStart:      a.Period.Start,
		PeriodEnd:        a.Period.End,
		GrossAmount:      a.GrossAmount,
		CommissionAmount: a.TotalCommission,
		RootShare:        a.RootShare,
		Fees:             decimal.Zero,
		CarryoverAmount:  decimal.Zero,
		PayoutMethod:     dealer.PayoutMethod,
	}
	if a.MeetsMinimum {
		payout.Status = model.PayoutStatusScheduled
		payout.ScheduledAt = a.ScheduledFor
	} else {
		payout.Status = model.PayoutStatusOnHold
		payout.CarryoverAmount = a.TotalCommission
		payout.Notes = fmt.Sprintf("Commission %s is below payout minimum %s; carried over to the next period",
			a.TotalCommission.StringFixed(2), dealer.PayoutMinimum.StringFixed(2))
	}
	if !a.Carryover.IsZero() {
		payout.Notes = appendNote(payout.Notes, fmt.Sprintf("Includes carryover %s from %d on-hold payout(s)",
			a.Carryover.StringFixed(2), len(a.OnHoldIds)))
	}
	return payout
}
