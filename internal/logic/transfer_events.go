package logic

import (
	"context"
	"fmt"

	"github.com/isolexIO/chainlink-pos-sub003/internal/audit"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/isolexIO/chainlink-pos-sub003/internal/repository"
	"gorm.io/datatypes"
)

// WebhookActor 支付渠道回调使用的操作者
var WebhookActor = auth.Actor{UserId: "stripe_webhook", Role: auth.RoleSystem}

// MarkTransferCompleted 渠道确认转账成功；返回 false 表示已是 completed
func (l *DispatchLogic) MarkTransferCompleted(ctx context.Context, payoutId string, destination map[string]interface{}) (bool, error) {
	changed := false
	err := l.withPayoutLock(ctx, payoutId, func(payout *model.DealerPayoutModel) error {
		if payout.Status == model.PayoutStatusCompleted {
			return nil
		}
		allowed := []model.PayoutStatus{
			model.PayoutStatusProcessing,
			model.PayoutStatusScheduled,
			model.PayoutStatusFailed,
			model.PayoutStatusManualReview,
		}
		if !statusIn(payout.Status, allowed...) {
			return fmt.Errorf("%w: cannot complete payout in status %s", ErrInvalidTransition, payout.Status)
		}

		merged := datatypes.JSONMap{}
		for k, v := range payout.PayoutDestination {
			merged[k] = v
		}
		for k, v := range destination {
			merged[k] = v
		}

		now := l.opts.now()
		err := l.store.Transaction(ctx, func(tx *repository.Store) error {
			ok, err := tx.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{payout.Status}, map[string]interface{}{
				"status":             model.PayoutStatusCompleted,
				"processed_at":       now,
				"payout_destination": merged,
				"error_message":      "",
			})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: payout %s changed status concurrently", ErrInvalidTransition, payout.Id)
			}
			return tx.ApplyPayoutTotals(ctx, payout.DealerId, payout.CommissionAmount, now)
		})
		if err != nil {
			return err
		}

		changed = true
		l.opts.record(ctx, WebhookActor, payoutEntry(audit.ActionPayoutCompleted, model.SeverityInfo, payout,
			"Transfer confirmed by payment processor", map[string]interface{}{"previous_status": string(payout.Status), "destination": destination}))
		return nil
	})
	return changed, err
}

// MarkTransferFailed 渠道通知转账失败
func (l *DispatchLogic) MarkTransferFailed(ctx context.Context, payoutId, reason string) (bool, error) {
	changed := false
	err := l.withPayoutLock(ctx, payoutId, func(payout *model.DealerPayoutModel) error {
		if statusIn(payout.Status, model.PayoutStatusFailed, model.PayoutStatusManualReview, model.PayoutStatusCanceled) {
			return nil
		}
		if !statusIn(payout.Status, model.PayoutStatusProcessing, model.PayoutStatusCompleted) {
			return fmt.Errorf("%w: cannot fail payout in status %s", ErrInvalidTransition, payout.Status)
		}

		status := model.PayoutStatusFailed
		if payout.AttemptCount >= l.opts.MaxAttempts {
			status = model.PayoutStatusManualReview
		}
		err := l.store.Transaction(ctx, func(tx *repository.Store) error {
			ok, err := tx.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{payout.Status}, map[string]interface{}{
				"status":        status,
				"error_message": reason,
			})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: payout %s changed status concurrently", ErrInvalidTransition, payout.Id)
			}
			if payout.Status == model.PayoutStatusCompleted {
				return tx.ReversePayoutTotals(ctx, payout.DealerId, payout.CommissionAmount)
			}
			return nil
		})
		if err != nil {
			return err
		}

		changed = true
		l.opts.record(ctx, WebhookActor, payoutEntry(audit.ActionPayoutFailed, model.SeverityWarning, payout, reason,
			map[string]interface{}{"previous_status": string(payout.Status), "status": string(status)}))
		return nil
	})
	return changed, err
}

// MarkTransferReversed 已完成的转账被撤回，回滚累计金额并转人工审核
func (l *DispatchLogic) MarkTransferReversed(ctx context.Context, payoutId, reason string) (bool, error) {
	changed := false
	err := l.withPayoutLock(ctx, payoutId, func(payout *model.DealerPayoutModel) error {
		if payout.Status == model.PayoutStatusManualReview {
			return nil
		}
		if payout.Status != model.PayoutStatusCompleted {
			return fmt.Errorf("%w: cannot reverse payout in status %s", ErrInvalidTransition, payout.Status)
		}

		note := "Transfer reversed: " + reason
		err := l.store.Transaction(ctx, func(tx *repository.Store) error {
			ok, err := tx.UpdatePayoutStatus(ctx, payout.Id, []model.PayoutStatus{model.PayoutStatusCompleted}, map[string]interface{}{
				"status":        model.PayoutStatusManualReview,
				"error_message": note,
				"notes":         appendNote(payout.Notes, note),
			})
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: payout %s changed status concurrently", ErrInvalidTransition, payout.Id)
			}
			return tx.ReversePayoutTotals(ctx, payout.DealerId, payout.CommissionAmount)
		})
		if err != nil {
			return err
		}

		changed = true
		l.opts.record(ctx, WebhookActor, payoutEntry(audit.ActionPayoutReversed, model.SeverityError, payout, note, nil))
		return nil
	})
	return changed, err
}

// withPayoutLock 在打款单所属经销商的锁内重新读取打款单并执行 fn
func (l *DispatchLogic) withPayoutLock(ctx context.Context, payoutId string, fn func(payout *model.DealerPayoutModel) error) error {
	head, err := l.store.GetPayout(ctx, payoutId)
	if err != nil {
		return err
	}
	return withDealerLock(ctx, l.opts.Locker, head.DealerId, func() error {
		payout, err := l.store.GetPayout(ctx, payoutId)
		if err != nil {
			return err
		}
		if err := fn(payout); err != nil {
			logger.Warn("Transfer event for payout %s not applied: %v", payoutId, err)
			return err
		}
		return nil
	})
}
