package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

type fakeTransfers struct {
	params *stripe.TransferParams
	err    error
}

func (f *fakeTransfers) New(params *stripe.TransferParams) (*stripe.Transfer, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.Transfer{ID: "tr_123", Amount: *params.Amount}, nil
}

func stripeRequest(amount string) Request {
	return Request{
		PayoutId:        "p1",
		DealerId:        "d1",
		Amount:          decimal.RequireFromString(amount),
		PeriodStart:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Attempt:         1,
		StripeAccountId: "acct_1",
	}
}

func TestToCents(t *testing.T) {
	assert.Equal(t, int64(1000), ToCents(decimal.RequireFromString("10")))
	assert.Equal(t, int64(1235), ToCents(decimal.RequireFromString("12.345")))
	assert.Equal(t, int64(1), ToCents(decimal.RequireFromString("0.005")))
}

func TestStripeMethodSuccess(t *testing.T) {
	fake := &fakeTransfers{}
	m := NewStripeMethod(fake, "USD")

	res, err := m.Transfer(context.Background(), stripeRequest("10.00"))
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "tr_123", res.Destination["transfer_id"])
	assert.True(t, res.Fees.IsZero())

	require.NotNil(t, fake.params)
	assert.Equal(t, int64(1000), *fake.params.Amount)
	assert.Equal(t, "usd", *fake.params.Currency)
	assert.Equal(t, "acct_1", *fake.params.Destination)
	assert.Equal(t, "d1", fake.params.Metadata["dealer_id"])
	assert.Equal(t, "p1", fake.params.Metadata["payout_id"])
	assert.Equal(t, "2024-01-01T00:00:00Z", fake.params.Metadata["period_start"])
	assert.Equal(t, "2024-02-01T00:00:00Z", fake.params.Metadata["period_end"])
	assert.Equal(t, "payout-p1-attempt-1", *fake.params.IdempotencyKey)
}

func TestStripeMethodFallsBackToDestinationAccount(t *testing.T) {
	fake := &fakeTransfers{}
	req := stripeRequest("5")
	req.StripeAccountId = ""
	req.Destination = map[string]interface{}{"stripe_account_id": "acct_dest"}

	res, err := NewStripeMethod(fake, "").Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "acct_dest", *fake.params.Destination)
}

func TestStripeMethodMissingAccount(t *testing.T) {
	req := stripeRequest("5")
	req.StripeAccountId = ""

	res, err := NewStripeMethod(&fakeTransfers{}, "usd").Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Stripe Connect account")
}

func TestStripeMethodAPIErrorIsStructuredFailure(t *testing.T) {
	fake := &fakeTransfers{err: &stripe.Error{Msg: "insufficient funds", HTTPStatusCode: 400}}

	res, err := NewStripeMethod(fake, "usd").Transfer(context.Background(), stripeRequest("5"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "insufficient funds")
}

func TestStripeMethodUnexpectedError(t *testing.T) {
	fake := &fakeTransfers{err: errors.New("connection reset")}

	res, err := NewStripeMethod(fake, "usd").Transfer(context.Background(), stripeRequest("5"))
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "connection reset")
}

func TestSolanaMethodAlwaysRequiresManualProcessing(t *testing.T) {
	m := NewSolanaMethod()

	// wrapped SOL mint
	valid := "So11111111111111111111111111111111111111112"
	require.True(t, ValidateSolanaAddress(valid))

	res, err := m.Transfer(context.Background(), Request{SolanaWalletAddress: valid})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not yet supported")

	res, err = m.Transfer(context.Background(), Request{SolanaWalletAddress: "not-a-key"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid Solana wallet address")

	res, err = m.Transfer(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestManualMethod(t *testing.T) {
	res, err := NewManualMethod().Transfer(context.Background(), Request{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "requires admin action")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewManualMethod(), NewSolanaMethod())

	m, ok := r.Get(model.PayoutMethodManual)
	require.True(t, ok)
	assert.Equal(t, model.PayoutMethodManual, m.Name())

	_, ok = r.Get(model.PayoutMethodStripeConnect)
	assert.False(t, ok)
}
