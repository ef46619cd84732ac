package router

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/isolexIO/chainlink-pos-sub003/internal/app"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/config"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/isolexIO/chainlink-pos-sub003/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

const webhookSecret = "whsec_router"

var (
	march15 = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	mar1    = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	root    = auth.Actor{UserId: "root-1", Role: auth.RoleRootAdmin}
)

type stubTransfers struct{}

func (stubTransfers) New(params *stripe.TransferParams) (*stripe.Transfer, error) {
	return &stripe.Transfer{ID: "tr_router", Amount: *params.Amount}, nil
}

type server struct {
	t      *testing.T
	db     *gorm.DB
	app    *app.App
	engine *gin.Engine
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	cfg := &config.Config{
		Payout: config.PayoutConfig{MaxAttempts: 5, StripeFeePercent: 0.25, Currency: "usd"},
		Stripe: config.StripeConfig{WebhookSecret: webhookSecret},
		Auth:   config.AuthConfig{JWTSecret: "router-test-secret", Issuer: "chainlink-pos"},
		Task:   config.TaskConfig{PoolSize: 2},
	}
	a, err := app.New(cfg, db,
		app.WithStripeTransfers(stubTransfers{}),
		app.WithNow(func() time.Time { return march15 }),
	)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	return &server{t: t, db: db, app: a, engine: Setup(a)}
}

func (s *server) token(actor auth.Actor) string {
	s.t.Helper()
	token, err := s.app.Tokens.Sign(actor, time.Hour)
	require.NoError(s.t, err)
	return token
}

func (s *server) do(method, path string, actor *auth.Actor, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(*actor))
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func dealerAdmin(dealerId string) *auth.Actor {
	return &auth.Actor{UserId: "dealer-user", Role: auth.RoleDealerAdmin, DealerId: dealerId}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w, _ := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w, _ = s.do(http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newServer(t)

	w, env := s.do(http.MethodPost, "/api/v1/commissions/accrue", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
}

func TestAccrueCommissions(t *testing.T) {
	s := newServer(t)
	dealer := testutil.CreateDealer(t, s.db, "20")
	testutil.CreateMerchant(t, s.db, dealer.Id, "Cafe", "50.00")

	w, _ := s.do(http.MethodPost, "/api/v1/commissions/accrue", dealerAdmin(dealer.Id), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodPost, "/api/v1/commissions/accrue", &root, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)

	var result struct {
		Processed int      `json:"processed"`
		Created   int      `json:"created"`
		Total     string   `json:"total_commission_amount"`
		Errors    []string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, "10", result.Total)
}

func TestAggregateGetAndCancel(t *testing.T) {
	s := newServer(t)
	dealer := testutil.CreateDealer(t, s.db, "20")
	testutil.CreateMerchant(t, s.db, dealer.Id, "Cafe", "50.00")

	w, env := s.do(http.MethodPost, "/api/v1/payouts/aggregate", &root, map[string]interface{}{"dealer_id": dealer.Id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Created int                       `json:"created"`
		Payouts []model.DealerPayoutModel `json:"payouts"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Equal(t, 1, result.Created)
	payoutId := result.Payouts[0].Id
	assert.Equal(t, model.PayoutStatusScheduled, result.Payouts[0].Status)

	w, _ = s.do(http.MethodGet, "/api/v1/payouts/"+payoutId, dealerAdmin(dealer.Id), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/payouts/"+payoutId, dealerAdmin("someone-else"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = s.do(http.MethodGet, "/api/v1/payouts/missing", &root, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = s.do(http.MethodPost, "/api/v1/payouts/cancel", &root, map[string]interface{}{"payout_id": payoutId, "reason": "dealer offboarded"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"status":"canceled"`)

	w, env = s.do(http.MethodPost, "/api/v1/payouts/cancel", &root, map[string]interface{}{"payout_id": payoutId})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Message, "cannot cancel")
}

func TestAggregateRejectsHalfOverride(t *testing.T) {
	s := newServer(t)

	w, _ := s.do(http.MethodPost, "/api/v1/payouts/aggregate", &root, map[string]interface{}{"force_period_start": "2024-01-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(http.MethodPost, "/api/v1/payouts/aggregate", &root, map[string]interface{}{
		"force_period_start": "not a date",
		"force_period_end":   "2024-02-01",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreviewPayout(t *testing.T) {
	s := newServer(t)
	dealer := testutil.CreateDealer(t, s.db, "20", testutil.WithMinimum("20"))
	testutil.CreateMerchant(t, s.db, dealer.Id, "Cafe", "50.00")

	w, env := s.do(http.MethodPost, "/api/v1/payouts/preview", dealerAdmin(dealer.Id), map[string]interface{}{"dealer_id": dealer.Id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Preview struct {
			CommissionAmount string `json:"commission_amount"`
			MeetsMinimum     bool   `json:"meets_minimum"`
		} `json:"preview"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "10", data.Preview.CommissionAmount)
	assert.False(t, data.Preview.MeetsMinimum)

	w, _ = s.do(http.MethodPost, "/api/v1/payouts/preview", dealerAdmin("other"), map[string]interface{}{"dealer_id": dealer.Id})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProcessPayout(t *testing.T) {
	s := newServer(t)
	stripeDealer := testutil.CreateDealer(t, s.db, "20")
	manualDealer := testutil.CreateDealer(t, s.db, "20", testutil.WithMethod(model.PayoutMethodManual))
	ok := testutil.CreatePayout(t, s.db, stripeDealer, model.PayoutStatusScheduled, "10.00", mar1)
	manual := testutil.CreatePayout(t, s.db, manualDealer, model.PayoutStatusScheduled, "10.00", mar1)

	w, env := s.do(http.MethodPost, "/api/v1/payouts/process", dealerAdmin(stripeDealer.Id), map[string]interface{}{"payout_id": ok.Id})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(env.Data), `"status":"completed"`)
	testutil.AssertAmount(t, "10.00", testutil.ReloadDealer(t, s.db, stripeDealer.Id).CommissionPaidOut)

	w, env = s.do(http.MethodPost, "/api/v1/payouts/process", &root, map[string]interface{}{"payout_id": manual.Id})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Manual payout requires admin action", env.Message)
	assert.Equal(t, model.PayoutStatusFailed, testutil.ReloadPayout(t, s.db, manual.Id).Status)

	w, _ = s.do(http.MethodPost, "/api/v1/payouts/process", &root, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerPayoutMinimumGuard(t *testing.T) {
	s := newServer(t)
	dealer := testutil.CreateDealer(t, s.db, "20", testutil.WithMinimum("20"))
	payout := testutil.CreatePayout(t, s.db, dealer, model.PayoutStatusOnHold, "10.00", mar1)

	w, _ := s.do(http.MethodPost, "/api/v1/payouts/trigger", dealerAdmin(dealer.Id), map[string]interface{}{
		"payout_id":      payout.Id,
		"bypass_minimum": "true",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, model.PayoutStatusOnHold, testutil.ReloadPayout(t, s.db, payout.Id).Status)

	w, _ = s.do(http.MethodPost, "/api/v1/payouts/trigger", &root, map[string]interface{}{
		"payout_id":      payout.Id,
		"bypass_minimum": "maybe",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := s.do(http.MethodPost, "/api/v1/payouts/trigger", &root, map[string]interface{}{
		"payout_id":      payout.Id,
		"bypass_minimum": true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, model.PayoutStatusCompleted, testutil.ReloadPayout(t, s.db, payout.Id).Status)
}

func TestRunSchedule(t *testing.T) {
	s := newServer(t)
	dealer := testutil.CreateDealer(t, s.db, "20")
	payout := testutil.CreatePayout(t, s.db, dealer, model.PayoutStatusPending, "10.00", mar1)

	w, _ := s.do(http.MethodPost, "/api/v1/payouts/schedule", dealerAdmin(dealer.Id), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(http.MethodPost, "/api/v1/payouts/schedule", &root, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result struct {
		Scheduled int `json:"scheduled"`
		Processed int `json:"processed"`
		Failed    int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Scheduled)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, model.PayoutStatusCompleted, testutil.ReloadPayout(t, s.db, payout.Id).Status)
}

func TestDealerPayoutsPagination(t *testing.T) {
	s := newServer(t)
	dealer := testutil.CreateDealer(t, s.db, "20")
	for i := 0; i < 3; i++ {
		testutil.CreatePayout(t, s.db, dealer, model.PayoutStatusCompleted, "10.00", mar1.AddDate(0, -i, 0))
	}

	w, env := s.do(http.MethodGet, "/api/v1/dealers/"+dealer.Id+"/payouts?page=1&page_size=2", dealerAdmin(dealer.Id), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var data struct {
		Payouts    []model.DealerPayoutModel `json:"payouts"`
		Pagination struct {
			Total     int64 `json:"total"`
			TotalPage int64 `json:"totalPage"`
		} `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Payouts, 2)
	assert.Equal(t, int64(3), data.Pagination.Total)
	assert.Equal(t, int64(2), data.Pagination.TotalPage)
}

func signedWebhook(t *testing.T, payload []byte) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func TestStripeWebhook(t *testing.T) {
	s := newServer(t)
	dealer := testutil.CreateDealer(t, s.db, "20")
	payout := testutil.CreatePayout(t, s.db, dealer, model.PayoutStatusProcessing, "10.00", mar1)

	payload := []byte(fmt.Sprintf(`{"id":"evt_router","object":"event","type":"transfer.paid","data":{"object":{"id":"tr_9","object":"transfer","metadata":{"payout_id":%q}}}}`, payout.Id))

	bad := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	bad.Header.Set("Stripe-Signature", "t=1,v1=00")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, model.PayoutStatusProcessing, testutil.ReloadPayout(t, s.db, payout.Id).Status)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, signedWebhook(t, payload))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":true}`, w.Body.String())
	assert.Equal(t, model.PayoutStatusCompleted, testutil.ReloadPayout(t, s.db, payout.Id).Status)
}
