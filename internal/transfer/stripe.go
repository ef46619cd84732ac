package transfer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeTransfers Stripe Transfers API 中用到的部分，测试中替换为假实现
type StripeTransfers interface {
	New(params *stripe.TransferParams) (*stripe.Transfer, error)
}

// NewStripeClient 使用密钥创建 Stripe Transfers 客户端
func NewStripeClient(secretKey string) StripeTransfers {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return sc.Transfers
}

// StripeMethod 通过 Stripe Connect 转账到经销商的关联账户
type StripeMethod struct {
	transfers StripeTransfers
	currency  string
}

// NewStripeMethod 创建 Stripe Connect 打款方式
func NewStripeMethod(transfers StripeTransfers, currency string) *StripeMethod {
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeMethod{transfers: transfers, currency: strings.ToLower(currency)}
}

// Name 实现 Method
func (m *StripeMethod) Name() model.PayoutMethod {
	return model.PayoutMethodStripeConnect
}

// ToCents 金额转换为整数分
func ToCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Transfer 实现 Method
func (m *StripeMethod) Transfer(ctx context.Context, req Request) (*Result, error) {
	account := req.StripeAccountId
	if account == "" {
		account = cast.ToString(req.Destination["stripe_account_id"])
	}
	if account == "" {
		return Failure("Dealer has no Stripe Connect account configured"), nil
	}

	cents := ToCents(req.Amount)
	if cents <= 0 {
		return Failure("Payout amount must be positive, got %s", req.Amount.StringFixed(2)), nil
	}

	currency := req.Currency
	if currency == "" {
		currency = m.currency
	}

	params := &stripe.TransferParams{
		Amount:        stripe.Int64(cents),
		Currency:      stripe.String(strings.ToLower(currency)),
		Destination:   stripe.String(account),
		TransferGroup: stripe.String("payout_" + req.PayoutId),
		Description: stripe.String(fmt.Sprintf("Dealer commission %s to %s",
			req.PeriodStart.Format(time.DateOnly), req.PeriodEnd.Format(time.DateOnly))),
	}
	params.Context = ctx
	params.AddMetadata("dealer_id", req.DealerId)
	params.AddMetadata("payout_id", req.PayoutId)
	params.AddMetadata("period_start", req.PeriodStart.Format(time.RFC3339))
	params.AddMetadata("period_end", req.PeriodEnd.Format(time.RFC3339))
	// 同一次尝试重放时由 Stripe 去重，新一次尝试使用新的 key
	params.SetIdempotencyKey(fmt.Sprintf("payout-%s-attempt-%d", req.PayoutId, req.Attempt))

	tr, err := m.transfers.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return Failure("Stripe transfer failed: %s", stripeErr.Msg), nil
		}
		return nil, fmt.Errorf("stripe transfer: %w", err)
	}

	return &Result{
		Success: true,
		Fees:    decimal.Zero,
		Destination: map[string]interface{}{
			"method":            string(model.PayoutMethodStripeConnect),
			"stripe_account_id": account,
			"transfer_id":       tr.ID,
			"amount_cents":      cents,
			"currency":          currency,
		},
	}, nil
}
