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
	"github.com/isolexIO/chainlink-pos-sub003/internal/repository"
	"github.com/isolexIO/chainlink-pos-sub003/internal/transfer"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// DispatchLogic 打款派发及其后续状态流转
type DispatchLogic struct {
	store *repository.Store
	opts  Options
}

// NewDispatchLogic 创建打款派发逻辑
func NewDispatchLogic(store *repository.Store, opts Options) *DispatchLogic {
	return &DispatchLogic{store: store, opts: opts.withDefaults()}
}

// MaxAttempts 自动重试上限
func (l *DispatchLogic) MaxAttempts() int {
	return l.opts.MaxAttempts
}

// DispatchResult 一次派发的结果
type DispatchResult struct {
	PayoutId     string             `json:"payout_id"`
	Success      bool               `json:"success"`
	Amount       decimal.Decimal    `json:"amount"`
	Method       model.PayoutMethod `json:"method"`
	Status       model.PayoutStatus `json:"status"`
	AttemptCount int                `json:"attempt_count"`
	Fees         decimal.Decimal    `json:"fees"`
	Error        string             `json:"error,omitempty"`
}

var dispatchableStatuses = []model.PayoutStatus{
	model.PayoutStatusScheduled,
	model.PayoutStatusFailed,
}

// Dispatch 派发 scheduled 或 failed 状态的打款单
func (l *DispatchLogic) Dispatch(ctx context.Context, actor auth.Actor, payoutId string) (*DispatchResult, error) {
	if payoutId == "" {
		return nil, fmt.Errorf("%w: payout_id is required", ErrInvalidInput)
	}
	payout, err := l.store.GetPayout(ctx, payoutId)
	if err != nil {
		return nil, err
	}
	if err := l.opts.Policy.Authorize(actor, auth.ActionDispatchPayout, auth.Resource{DealerId: payout.DealerId}); err != nil {
		return nil, err
	}
	return l.dispatch(ctx, actor, payoutId)
}

func (l *DispatchLogic) dispatch(ctx context.Context, actor auth.Actor, payoutId string) (*DispatchResult, error) {
	head, err := l.store.GetPayout(ctx, payoutId)
	if err != nil {
		return nil, err
	}

	var result *DispatchResult
	err = withDealerLock(ctx, l.opts.Locker, head.DealerId, func() error {
		var err error
		result, err = l.dispatchLocked(ctx, actor, payoutId)
		return err
	})
	return result, err
}

func (l *DispatchLogic) dispatchLocked(ctx context.Context, actor auth.Actor, payoutId string) (*DispatchResult, error) {
	payout, err := l.store.GetPayout(ctx, payoutId)
	if err != nil {
		return nil, err
	}
	if !statusIn(payout.Status, dispatchableStatuses...) {
		return nil, fmt.Errorf("%w: cannot dispatch payout in status %s (allowed: %s)",
			ErrInvalidTransition, payout.Status, joinStatuses(dispatchableStatuses))
	}

	dealer, err := l.store.GetDealer(ctx, payout.DealerId)
	if err != nil {
		return nil, err
	}

	method := payout.PayoutMethod
	if method == "" {
		method = dealer.PayoutMethod
	}
	log := logger.With(zap.String("dealer_id", dealer.Id), zap.String("payout_id", payout.Id), zap.String("method", string(method)))
	result := &DispatchResult{
		PayoutId:     payout.Id,
		Amount:       payout.CommissionAmount,
		Method:       method,
		AttemptCount: payout.AttemptCount,
		Fees:         decimal.Zero,
	}

	if !dealer.HasPayoutDestination() {
		return l.holdWithoutDestination(ctx, actor, payout, result)
	}

	attempt := payout.AttemptCount + 1
	ok, err := l.store.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{payout.Status}, map[string]interface{}{
		"status":        model.PayoutStatusProcessing,
		"attempt_count": attempt,
		"error_message": "",
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: payout %s changed status concurrently", ErrInvalidTransition, payout.Id)
	}
	payout.AttemptCount = attempt
	result.AttemptCount = attempt
	l.opts.record(ctx, actor, payoutEntry(audit.ActionPayoutProcessing, model.SeverityInfo, payout,
		fmt.Sprintf("Dispatch attempt %d via %s", attempt, method), map[string]interface{}{"attempt": attempt}))

	res, unexpected := l.transfer(ctx, method, transfer.Request{
		PayoutId:            payout.Id,
		DealerId:            dealer.Id,
		Amount:              payout.CommissionAmount,
		Currency:            l.opts.Currency,
		PeriodStart:         payout.PeriodStart,
		PeriodEnd:           payout.PeriodEnd,
		Attempt:             attempt,
		StripeAccountId:     dealer.StripeAccountId,
		SolanaWalletAddress: dealer.SolanaWalletAddress,
		Destination:         dealer.PayoutDestination,
	})

	// 划转已发出，后续落库不随请求取消
	persistCtx := context.WithoutCancel(ctx)
	if res.Success {
		if err := l.complete(persistCtx, actor, payout, res); err != nil {
			log.Error("Transfer succeeded but payout could not be completed: %v", err)
			return nil, err
		}
		log.Info("Payout %s dispatched: %s", payout.Id, payout.CommissionAmount.StringFixed(2))
		metrics.DispatchOutcomes.WithLabelValues(string(method), "success").Inc()
		result.Success = true
		result.Status = model.PayoutStatusCompleted
		result.Fees = res.Fees
		return result, nil
	}

	status, err := l.fail(persistCtx, actor, payout, res.Error)
	if err != nil {
		return nil, err
	}
	log.Warn("Payout %s dispatch attempt %d failed: %s", payout.Id, attempt, res.Error)
	metrics.DispatchOutcomes.WithLabelValues(string(method), string(status)).Inc()
	result.Status = status
	result.Error = res.Error
	if unexpected != nil {
		return result, fmt.Errorf("%w: %v", ErrDispatchFailed, unexpected)
	}
	return result, nil
}

// transfer 调用打款方式，异常也转换为失败结果
func (l *DispatchLogic) transfer(ctx context.Context, method model.PayoutMethod, req transfer.Request) (*transfer.Result, error) {
	m, ok := l.opts.Transfers.Get(method)
	if !ok {
		return transfer.Failure("Unsupported payout method: %s", method), nil
	}
	res, err := m.Transfer(ctx, req)
	if err != nil {
		return transfer.Failure("Unexpected dispatch error: %v", err), err
	}
	if res == nil {
		return transfer.Failure("Payout method %s returned no result", method), nil
	}
	return res, nil
}

func (l *DispatchLogic) holdWithoutDestination(ctx context.Context, actor auth.Actor, payout *model.DealerPayoutModel, result *DispatchResult) (*DispatchResult, error) {
	const msg = "Dealer has no payout destination configured"
	ok, err := l.store.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{payout.Status}, map[string]interface{}{
		"status":           model.PayoutStatusOnHold,
		"carryover_amount": payout.CommissionAmount,
		"error_message":    msg,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: payout %s changed status concurrently", ErrInvalidTransition, payout.Id)
	}

	metrics.DispatchOutcomes.WithLabelValues(string(result.Method), string(model.PayoutStatusOnHold)).Inc()
	l.opts.record(ctx, actor, payoutEntry(audit.ActionPayoutOnHold, model.SeverityWarning, payout, msg, nil))
	result.Status = model.PayoutStatusOnHold
	result.Error = msg
	return result, nil
}

func (l *DispatchLogic) complete(ctx context.Context, actor auth.Actor, payout *model.DealerPayoutModel, res *transfer.Result) error {
	now := l.opts.now()
	err := l.store.Transaction(ctx, func(tx *repository.Store) error {
		ok, err := tx.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{model.PayoutStatusProcessing}, map[string]interface{}{
			"status":             model.PayoutStatusCompleted,
			"processed_at":       now,
			"payout_destination": datatypes.JSONMap(res.Destination),
			"fees":               res.Fees,
			"error_message":      "",
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: payout %s is no longer processing", ErrInvalidTransition, payout.Id)
		}
		return tx.ApplyPayoutTotals(ctx, payout.DealerId, payout.CommissionAmount, now)
	})
	if err != nil {
		return err
	}

	l.opts.record(ctx, actor, payoutEntry(audit.ActionPayoutCompleted, model.SeverityInfo, payout,
		fmt.Sprintf("Payout of %s completed", payout.CommissionAmount.StringFixed(2)),
		map[string]interface{}{"destination": res.Destination, "fees": res.Fees.StringFixed(2), "attempt": payout.AttemptCount}))
	return nil
}

// fail 记录失败，达到重试上限转 manual_review
func (l *DispatchLogic) fail(ctx context.Context, actor auth.Actor, payout *model.DealerPayoutModel, reason string) (model.PayoutStatus, error) {
	status := model.PayoutStatusFailed
	if payout.AttemptCount >= l.opts.MaxAttempts {
		status = model.PayoutStatusManualReview
	}

	ok, err := l.store.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{model.PayoutStatusProcessing}, map[string]interface{}{
		"status":        status,
		"error_message": reason,
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: payout %s is no longer processing", ErrInvalidTransition, payout.Id)
	}

	action, severity := audit.ActionPayoutFailed, model.SeverityWarning
	if status == model.PayoutStatusManualReview {
		action, severity = audit.ActionPayoutReview, model.SeverityError
	}
	l.opts.record(ctx, actor, payoutEntry(action, severity, payout, reason,
		map[string]interface{}{"attempt": payout.AttemptCount, "max_attempts": l.opts.MaxAttempts, "status": string(status)}))
	return status, nil
}

// PromoteOutcome 待处理打款单的晋级结果
type PromoteOutcome int

const (
	PromoteNotDue PromoteOutcome = iota
	PromoteOnHold
	PromoteScheduled
)

// PromotePending 等待期结束后把 pending 打款单转为 on_hold 或 scheduled
func (l *DispatchLogic) PromotePending(ctx context.Context, actor auth.Actor, payoutId string, now time.Time) (PromoteOutcome, error) {
	outcome := PromoteNotDue
	payout, err := l.store.GetPayout(ctx, payoutId)
	if err != nil {
		return outcome, err
	}

	err = withDealerLock(ctx, l.opts.Locker, payout.DealerId, func() error {
		payout, err := l.store.GetPayout(ctx, payoutId)
		if err != nil {
			return err
		}
		if payout.Status != model.PayoutStatusPending {
			return nil
		}
		dealer, err := l.store.GetDealer(ctx, payout.DealerId)
		if err != nil {
			return err
		}

		due := payout.PeriodEnd.AddDate(0, 0, dealer.PayoutHoldDays)
		if due.After(now) {
			return nil
		}

		if payout.CommissionAmount.LessThan(dealer.PayoutMinimum) {
			note := fmt.Sprintf("Commission %s is below payout minimum %s; carried over to the next period",
				payout.CommissionAmount.StringFixed(2), dealer.PayoutMinimum.StringFixed(2))
			ok, err := l.store.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{model.PayoutStatusPending}, map[string]interface{}{
				"status":           model.PayoutStatusOnHold,
				"carryover_amount": payout.CommissionAmount,
				"notes":            appendNote(payout.Notes, note),
			})
			if err != nil || !ok {
				return err
			}
			outcome = PromoteOnHold
			l.opts.record(ctx, actor, payoutEntry(audit.ActionPayoutOnHold, model.SeverityWarning, payout, note, nil))
			return nil
		}

		ok, err := l.store.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{model.PayoutStatusPending}, map[string]interface{}{
			"status":       model.PayoutStatusScheduled,
			"scheduled_at": now.UTC(),
		})
		if err != nil || !ok {
			return err
		}
		outcome = PromoteScheduled
		l.opts.record(ctx, actor, payoutEntry(audit.ActionPayoutScheduled, model.SeverityInfo, payout,
			"Hold period elapsed, payout scheduled", nil))
		return nil
	})
	return outcome, err
}

// ReconcileStale 把超时未结束的 processing 打款单转为 failed 或 manual_review
func (l *DispatchLogic) ReconcileStale(ctx context.Context, actor auth.Actor, timeout time.Duration) (int, []string, error) {
	now := l.opts.now()
	stale, err := l.store.ListStaleProcessing(ctx, now.Add(-timeout))
	if err != nil {
		return 0, nil, err
	}

	reconciled := 0
	errs := []string{}
	for i := range stale {
		payout := &stale[i]
		err := withDealerLock(ctx, l.opts.Locker, payout.DealerId, func() error {
			status := model.PayoutStatusFailed
			if payout.AttemptCount >= l.opts.MaxAttempts {
				status = model.PayoutStatusManualReview
			}
			reason := fmt.Sprintf("Dispatch did not complete within %s", timeout)
			ok, err := l.store.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{model.PayoutStatusProcessing}, map[string]interface{}{
				"status":        status,
				"error_message": reason,
			})
			if err != nil || !ok {
				return err
			}
			reconciled++
			l.opts.record(ctx, actor, payoutEntry(audit.ActionPayoutReconciled, model.SeverityWarning, payout, reason,
				map[string]interface{}{"status": string(status), "attempt": payout.AttemptCount}))
			return nil
		})
		if err != nil {
			logger.Error("Failed to reconcile payout %s: %v", payout.Id, err)
			errs = append(errs, fmt.Sprintf("payout %s: %v", payout.Id, err))
		}
	}
	return reconciled, errs, nil
}
