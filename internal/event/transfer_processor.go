package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/stripe/stripe-go/v76"
)

// 处理的 Stripe 转账事件
const (
	TransferCreated  = "transfer.created"
	TransferPaid     = "transfer.paid"
	TransferFailed   = "transfer.failed"
	TransferReversed = "transfer.reversed"
)

// TransferProcessor 把转账事件映射到打款单状态
type TransferProcessor struct {
	eventType string
	apply     func(ctx context.Context, payoutId string, event *stripe.Event, tr *stripe.Transfer) (bool, error)
}

// NewTransferProcessors 创建全部转账事件处理器
func NewTransferProcessors(dispatch *logic.DispatchLogic) []*TransferProcessor {
	completed := func(ctx context.Context, payoutId string, event *stripe.Event, tr *stripe.Transfer) (bool, error) {
		return dispatch.MarkTransferCompleted(ctx, payoutId, map[string]interface{}{
			"transfer_id":     tr.ID,
			"stripe_event_id": event.ID,
		})
	}
	return []*TransferProcessor{
		{eventType: TransferCreated, apply: completed},
		{eventType: TransferPaid, apply: completed},
		{eventType: TransferFailed, apply: func(ctx context.Context, payoutId string, _ *stripe.Event, tr *stripe.Transfer) (bool, error) {
			return dispatch.MarkTransferFailed(ctx, payoutId, fmt.Sprintf("Stripe reported transfer %s failed", tr.ID))
		}},
		{eventType: TransferReversed, apply: func(ctx context.Context, payoutId string, _ *stripe.Event, tr *stripe.Transfer) (bool, error) {
			return dispatch.MarkTransferReversed(ctx, payoutId, fmt.Sprintf("Stripe transfer %s was reversed", tr.ID))
		}},
	}
}

// GetEventType 实现 EventProcessor
func (p *TransferProcessor) GetEventType() string {
	return p.eventType
}

// Process 实现 EventProcessor；与打款单无关或状态不符的事件只记录日志
func (p *TransferProcessor) Process(ctx context.Context, event *stripe.Event) error {
	if event.Data == nil {
		return fmt.Errorf("event %s has no data", event.ID)
	}

	var tr stripe.Transfer
	if err := json.Unmarshal(event.Data.Raw, &tr); err != nil {
		return fmt.Errorf("failed to decode transfer in event %s: %w", event.ID, err)
	}

	payoutId := tr.Metadata["payout_id"]
	if payoutId == "" {
		logger.Warn("Transfer %s in event %s carries no payout_id, ignoring", tr.ID, event.ID)
		return nil
	}

	changed, err := p.apply(ctx, payoutId, event, &tr)
	switch {
	case errors.Is(err, logic.ErrNotFound), errors.Is(err, logic.ErrInvalidTransition):
		logger.Warn("Ignoring %s for payout %s: %v", p.eventType, payoutId, err)
		return nil
	case err != nil:
		return err
	}

	logger.Info("Processed %s for payout %s (transfer %s, changed=%t)", p.eventType, payoutId, tr.ID, changed)
	return nil
}
