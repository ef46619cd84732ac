package logic

import (
	"context"
	"fmt"
	"strings"
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

// PayoutLogic 打款单聚合、预览与人工操作
type PayoutLogic struct {
	store    *repository.Store
	dispatch *DispatchLogic
	opts     Options
}

// NewPayoutLogic 创建打款逻辑
func NewPayoutLogic(store *repository.Store, dispatch *DispatchLogic, opts Options) *PayoutLogic {
	return &PayoutLogic{store: store, dispatch: dispatch, opts: opts.withDefaults()}
}

// AggregateRequest 聚合请求，强制周期需同时给出起止
type AggregateRequest struct {
	DealerId         string
	ForcePeriodStart *time.Time
	ForcePeriodEnd   *time.Time
}

// AggregateResult 聚合批次结果
type AggregateResult struct {
	Processed int                        `json:"processed"`
	Created   int                        `json:"created"`
	Skipped   int                        `json:"skipped"`
	Payouts   []*model.DealerPayoutModel `json:"payouts"`
	Errors    []string                   `json:"errors"`
}

func resolveOverride(start, end *time.Time) (*period.Override, error) {
	if start == nil && end == nil {
		return nil, nil
	}
	if start == nil || end == nil {
		return nil, fmt.Errorf("%w: period start and end must be given together", ErrInvalidInput)
	}
	if !start.Before(*end) {
		return nil, fmt.Errorf("%w: period start must be before period end", ErrInvalidInput)
	}
	return &period.Override{Start: *start, End: *end}, nil
}

// AggregatePayouts 为一个或全部 active 经销商生成周期打款单
func (l *PayoutLogic) AggregatePayouts(ctx context.Context, actor auth.Actor, req AggregateRequest) (*AggregateResult, error) {
	if err := l.opts.Policy.Authorize(actor, auth.ActionAggregatePayouts, auth.Resource{DealerId: req.DealerId}); err != nil {
		return nil, err
	}
	override, err := resolveOverride(req.ForcePeriodStart, req.ForcePeriodEnd)
	if err != nil {
		return nil, err
	}

	var dealers []model.DealerModel
	if req.DealerId != "" {
		dealer, err := l.store.GetDealer(ctx, req.DealerId)
		if err != nil {
			return nil, err
		}
		dealers = []model.DealerModel{*dealer}
	} else {
		dealers, err = l.store.ListActiveDealers(ctx)
		if err != nil {
			return nil, err
		}
	}

	result := &AggregateResult{Payouts: []*model.DealerPayoutModel{}, Errors: []string{}}
	for i := range dealers {
		dealer := &dealers[i]
		result.Processed++

		payout, err := l.AggregateDealer(ctx, actor, dealer.Id, override)
		if err != nil {
			logger.Error("Failed to aggregate payout for dealer %s: %v", dealer.Id, err)
			result.Errors = append(result.Errors, fmt.Sprintf("dealer %s: %v", dealer.Id, err))
			continue
		}
		if payout == nil {
			result.Skipped++
			continue
		}
		result.Created++
		result.Payouts = append(result.Payouts, payout)
	}

	logger.Info("Payout aggregation finished: processed=%d created=%d skipped=%d errors=%d",
		result.Processed, result.Created, result.Skipped, len(result.Errors))
	return result, nil
}

// AggregateDealer 在经销商锁内生成打款单，已存在或无可付金额时返回 nil
func (l *PayoutLogic) AggregateDealer(ctx context.Context, actor auth.Actor, dealerId string, override *period.Override) (*model.DealerPayoutModel, error) {
	var created *model.DealerPayoutModel
	var carried []string

	err := withDealerLock(ctx, l.opts.Locker, dealerId, func() error {
		dealer, err := l.store.GetDealer(ctx, dealerId)
		if err != nil {
			return err
		}

		p := l.opts.Calculator.Compute(dealer.PayoutCadence, l.opts.now(), override).UTC()
		exists, err := l.store.PayoutExists(ctx, dealer.Id, p.Start, p.End)
		if err != nil {
			return err
		}
		if exists {
			logger.Debug("Payout for dealer %s period %s already exists, skipping", dealer.Id, p.Start.Format(time.DateOnly))
			return nil
		}

		agg, err := l.buildAggregation(ctx, dealer, p)
		if err != nil {
			return err
		}
		if agg.isEmpty() {
			logger.Debug("Dealer %s has nothing to pay for period %s", dealer.Id, p.Start.Format(time.DateOnly))
			return nil
		}

		payout := agg.toPayout(dealer)
		items := agg.Items
		err = l.store.Transaction(ctx, func(tx *repository.Store) error {
			ok, err := tx.CreatePayoutIfAbsent(ctx, payout)
			if err != nil || !ok {
				return err
			}
			for i := range items {
				items[i].PayoutId = payout.Id
			}
			if err := tx.CreatePayoutItems(ctx, items); err != nil {
				return err
			}
			marked, err := tx.MarkCarriedOver(ctx, agg.OnHoldIds, payout.Id)
			if err != nil {
				return err
			}
			if marked != int64(len(agg.OnHoldIds)) {
				return fmt.Errorf("%w: %d of %d held payouts left on_hold before carryover",
					ErrInvalidTransition, int64(len(agg.OnHoldIds))-marked, len(agg.OnHoldIds))
			}
			if err := tx.SetPendingAndNext(ctx, dealer.Id, agg.TotalCommission, payout.ScheduledAt); err != nil {
				return err
			}
			payout.Items = items
			created = payout
			carried = agg.OnHoldIds
			return nil
		})
		return err
	})
	if err != nil || created == nil {
		return nil, err
	}

	metrics.PayoutsCreated.WithLabelValues(string(created.Status)).Inc()
	action, severity := audit.ActionPayoutScheduled, model.SeverityInfo
	message := fmt.Sprintf("Payout %s scheduled for %s", created.CommissionAmount.StringFixed(2), formatTime(created.ScheduledAt))
	if created.Status == model.PayoutStatusOnHold {
		action, severity = audit.ActionPayoutOnHold, model.SeverityWarning
		message = created.Notes
	}
	l.opts.record(ctx, actor, payoutEntry(audit.ActionPayoutCreated, model.SeverityInfo, created,
		fmt.Sprintf("Payout created with %d line item(s)", len(created.Items)),
		map[string]interface{}{
			"gross_amount":     created.GrossAmount.StringFixed(2),
			"root_share":       created.RootShare.StringFixed(2),
			"status":           string(created.Status),
			"carried_over_ids": strings.Join(carried, ","),
		}))
	l.opts.record(ctx, actor, payoutEntry(action, severity, created, message, nil))
	return created, nil
}

// PreviewItem 预览明细
type PreviewItem struct {
	MerchantId        string          `json:"merchant_id"`
	BusinessName      string          `json:"business_name"`
	SubscriptionId    string          `json:"subscription_id"`
	Description       string          `json:"description"`
	GrossAmount       decimal.Decimal `json:"gross_amount"`
	CommissionPercent decimal.Decimal `json:"commission_percent"`
	CommissionAmount  decimal.Decimal `json:"commission_amount"`
}

// Preview 只读的打款预估
type Preview struct {
	DealerId         string             `json:"dealer_id"`
	PeriodStart      time.Time          `json:"period_start"`
	PeriodEnd        time.Time          `json:"period_end"`
	GrossAmount      decimal.Decimal    `json:"gross_amount"`
	CommissionAmount decimal.Decimal    `json:"commission_amount"`
	CarryoverApplied decimal.Decimal    `json:"carryover_applied"`
	RootShare        decimal.Decimal    `json:"root_share"`
	EstimatedFees    decimal.Decimal    `json:"estimated_fees"`
	NetPayout        decimal.Decimal    `json:"net_payout"`
	PayoutMinimum    decimal.Decimal    `json:"payout_minimum"`
	MeetsMinimum     bool               `json:"meets_minimum"`
	ScheduledFor     *time.Time         `json:"scheduled_for"`
	PayoutMethod     model.PayoutMethod `json:"payout_method"`
	LineItems        []PreviewItem      `json:"line_items"`
}

// PreviewPayout 按聚合相同的口径计算，但不落库
func (l *PayoutLogic) PreviewPayout(ctx context.Context, actor auth.Actor, dealerId string, start, end *time.Time) (*Preview, error) {
	if dealerId == "" {
		return nil, fmt.Errorf("%w: dealer_id is required", ErrInvalidInput)
	}
	if err := l.opts.Policy.Authorize(actor, auth.ActionPreviewPayout, auth.Resource{DealerId: dealerId}); err != nil {
		return nil, err
	}
	override, err := resolveOverride(start, end)
	if err != nil {
		return nil, err
	}

	dealer, err := l.store.GetDealer(ctx, dealerId)
	if err != nil {
		return nil, err
	}

	p := l.opts.Calculator.Compute(dealer.PayoutCadence, l.opts.now(), override).UTC()
	agg, err := l.buildAggregation(ctx, dealer, p)
	if err != nil {
		return nil, err
	}

	fees := decimal.Zero
	if dealer.PayoutMethod == model.PayoutMethodStripeConnect {
		fees = percentOf(agg.TotalCommission, l.opts.StripeFeePercent)
	}

	preview := &Preview{
		DealerId:         dealer.Id,
		PeriodStart:      p.Start,
		PeriodEnd:        p.End,
		GrossAmount:      agg.GrossAmount,
		CommissionAmount: agg.TotalCommission,
		CarryoverApplied: agg.Carryover,
		RootShare:        agg.RootShare,
		EstimatedFees:    fees,
		NetPayout:        agg.TotalCommission.Sub(fees),
		PayoutMinimum:    dealer.PayoutMinimum,
		MeetsMinimum:     agg.MeetsMinimum,
		ScheduledFor:     agg.ScheduledFor,
		PayoutMethod:     dealer.PayoutMethod,
		LineItems:        make([]PreviewItem, 0, len(agg.Items)),
	}
	for _, item := range agg.Items {
		preview.LineItems = append(preview.LineItems, PreviewItem{
			MerchantId:        item.MerchantId,
			BusinessName:      agg.Merchants[item.MerchantId],
			SubscriptionId:    item.SubscriptionId,
			Description:       item.Description,
			GrossAmount:       item.GrossAmount,
			CommissionPercent: item.CommissionPercent,
			CommissionAmount:  item.CommissionAmount,
		})
	}
	return preview, nil
}

// GetPayout 获取打款单详情
func (l *PayoutLogic) GetPayout(ctx context.Context, actor auth.Actor, payoutId string) (*model.DealerPayoutModel, error) {
	payout, err := l.store.GetPayout(ctx, payoutId)
	if err != nil {
		return nil, err
	}
	if err := l.opts.Policy.Authorize(actor, auth.ActionViewPayout, auth.Resource{DealerId: payout.DealerId}); err != nil {
		return nil, err
	}
	return payout, nil
}

// ListDealerPayouts 分页获取经销商打款单
func (l *PayoutLogic) ListDealerPayouts(ctx context.Context, actor auth.Actor, dealerId string, status model.PayoutStatus, page, pageSize int) ([]model.DealerPayoutModel, int64, error) {
	if err := l.opts.Policy.Authorize(actor, auth.ActionViewPayout, auth.Resource{DealerId: dealerId}); err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return l.store.ListDealerPayouts(ctx, dealerId, status, page, pageSize)
}

var cancelableStatuses = []model.PayoutStatus{
	model.PayoutStatusPending,
	model.PayoutStatusScheduled,
	model.PayoutStatusOnHold,
}

// CancelPayout 取消尚未打款的打款单
func (l *PayoutLogic) CancelPayout(ctx context.Context, actor auth.Actor, payoutId, reason string) (*model.DealerPayoutModel, error) {
	if payoutId == "" {
		return nil, fmt.Errorf("%w: payout_id is required", ErrInvalidInput)
	}
	payout, err := l.store.GetPayout(ctx, payoutId)
	if err != nil {
		return nil, err
	}
	if err := l.opts.Policy.Authorize(actor, auth.ActionCancelPayout, auth.Resource{DealerId: payout.DealerId}); err != nil {
		return nil, err
	}

	now := l.opts.now()
	if reason == "" {
		reason = "no reason given"
	}
	note := fmt.Sprintf("[%s] canceled by %s (%s): %s", now.Format(time.RFC3339), actor.UserId, actor.Role, reason)

	err = withDealerLock(ctx, l.opts.Locker, payout.DealerId, func() error {
		current, err := l.store.GetPayout(ctx, payoutId)
		if err != nil {
			return err
		}
		if !statusIn(current.Status, cancelableStatuses...) {
			return fmt.Errorf("%w: cannot cancel payout in status %s (allowed: %s)",
				ErrInvalidTransition, current.Status, joinStatuses(cancelableStatuses))
		}
		ok, err := l.store.UpdatePayoutStatus(ctx, current.Id, []model.PayoutStatus{current.Status}, map[string]interface{}{
			"status": model.PayoutStatusCanceled,
			"notes":  appendNote(current.Notes, note),
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payout %s changed status concurrently", ErrInvalidTransition, current.Id)
		}
		payout = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	previous := payout.Status
	payout.Status = model.PayoutStatusCanceled
	payout.Notes = appendNote(payout.Notes, note)
	l.opts.record(ctx, actor, payoutEntry(audit.ActionPayoutCanceled, model.SeverityWarning, payout, note,
		map[string]interface{}{"reason": reason, "previous_status": string(previous)}))
	return payout, nil
}

var triggerableStatuses = []model.PayoutStatus{
	model.PayoutStatusPending,
	model.PayoutStatusOnHold,
	model.PayoutStatusFailed,
}

// TriggerPayout 人工触发打款：转为 scheduled 后立即派发
//
// 只有平台管理员可以跳过最低金额校验；无论结果如何都记录审计。
func (l *PayoutLogic) TriggerPayout(ctx context.Context, actor auth.Actor, payoutId string, bypassMinimum bool) (*DispatchResult, error) {
	if payoutId == "" {
		return nil, fmt.Errorf("%w: payout_id is required", ErrInvalidInput)
	}
	payout, err := l.store.GetPayout(ctx, payoutId)
	if err != nil {
		return nil, err
	}
	if err := l.opts.Policy.Authorize(actor, auth.ActionTriggerPayout, auth.Resource{DealerId: payout.DealerId}); err != nil {
		return nil, err
	}

	bypass := bypassMinimum && l.opts.Policy.Authorize(actor, auth.ActionBypassMinimum, auth.Resource{DealerId: payout.DealerId}) == nil
	result, err := l.trigger(ctx, actor, payout, bypass)

	metadata := map[string]interface{}{
		"bypass_requested": bypassMinimum,
		"bypass_applied":   bypass,
		"previous_status":  string(payout.Status),
	}
	severity := model.SeverityInfo
	message := "Manual payout trigger"
	if result != nil {
		metadata["success"] = result.Success
		metadata["status"] = string(result.Status)
		if !result.Success {
			severity = model.SeverityWarning
			metadata["error"] = result.Error
		}
	}
	if err != nil {
		severity = model.SeverityWarning
		message = fmt.Sprintf("Manual payout trigger rejected: %v", err)
		metadata["error"] = err.Error()
	}
	l.opts.record(ctx, actor, payoutEntry(audit.ActionPayoutTriggered, severity, payout, message, metadata))
	return result, err
}

// trigger 在经销商锁内复核状态并转为 scheduled，随后在同一把锁内派发
func (l *PayoutLogic) trigger(ctx context.Context, actor auth.Actor, payout *model.DealerPayoutModel, bypass bool) (*DispatchResult, error) {
	var result *DispatchResult
	err := withDealerLock(ctx, l.opts.Locker, payout.DealerId, func() error {
		current, err := l.store.GetPayout(ctx, payout.Id)
		if err != nil {
			return err
		}
		if !statusIn(current.Status, triggerableStatuses...) {
			return fmt.Errorf("%w: cannot trigger payout in status %s (allowed: %s)",
				ErrInvalidTransition, current.Status, joinStatuses(triggerableStatuses))
		}

		dealer, err := l.store.GetDealer(ctx, current.DealerId)
		if err != nil {
			return err
		}
		if !bypass && current.CommissionAmount.LessThan(dealer.PayoutMinimum) {
			return fmt.Errorf("%w: %s is below minimum %s", ErrBelowMinimum,
				current.CommissionAmount.StringFixed(2), dealer.PayoutMinimum.StringFixed(2))
		}

		ok, err := l.store.UpdatePayoutStatus(ctx, current.Id, []model.PayoutStatus{current.Status}, map[string]interface{}{
			"status":       model.PayoutStatusScheduled,
			"scheduled_at": l.opts.now(),
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payout %s changed status concurrently", ErrInvalidTransition, current.Id)
		}

		result, err = l.dispatch.dispatchLocked(ctx, actor, current.Id)
		return err
	})
	return result, err
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
