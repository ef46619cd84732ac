package logic

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/audit"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/lock"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/isolexIO/chainlink-pos-sub003/internal/repository"
	"github.com/isolexIO/chainlink-pos-sub003/internal/testutil"
	"github.com/isolexIO/chainlink-pos-sub003/internal/transfer"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"gorm.io/gorm"
)

var (
	rootActor = auth.Actor{UserId: "root-1", Role: auth.RoleRootAdmin}
	// 2024-03-15，月度周期为 2024-02-01 ~ 2024-03-01
	march15 = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	feb1    = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mar1    = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

func dealerActor(dealerId string) auth.Actor {
	return auth.Actor{UserId: "dealer-user", Role: auth.RoleDealerAdmin, DealerId: dealerId}
}

type fakeTransfers struct {
	mu     sync.Mutex
	calls  []*stripe.TransferParams
	err    error
	nextID int
}

func (f *fakeTransfers) New(params *stripe.TransferParams) (*stripe.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	return &stripe.Transfer{ID: fmt.Sprintf("tr_%d", f.nextID), Amount: *params.Amount}, nil
}

func (f *fakeTransfers) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	db         *gorm.DB
	locker     *lock.LocalLocker
	store      *repository.Store
	stripe     *fakeTransfers
	clock      *clock
	commission *CommissionLogic
	payout     *PayoutLogic
	dispatch   *DispatchLogic
}

func newFixture(t *testing.T, mutators ...func(*Options)) *fixture {
	t.Helper()

	db := testutil.NewDB(t)
	store := repository.NewStore(db)
	fake := &fakeTransfers{}
	clk := &clock{now: march15}
	locker := lock.NewLocalLocker()

	opts := Options{
		Locker: locker,
		Audit:  audit.NewGormSink(db),
		Transfers: transfer.NewRegistry(
			transfer.NewStripeMethod(fake, "usd"),
			transfer.NewSolanaMethod(),
			transfer.NewManualMethod(),
		),
		Currency:         "usd",
		StripeFeePercent: DefaultStripeFeePercent,
		Now:              clk.Now,
	}
	for _, mutate := range mutators {
		mutate(&opts)
	}
	dispatch := NewDispatchLogic(store, opts)
	return &fixture{
		db:         db,
		locker:     locker,
		store:      store,
		stripe:     fake,
		clock:      clk,
		commission: NewCommissionLogic(store, opts),
		payout:     NewPayoutLogic(store, dispatch, opts),
		dispatch:   dispatch,
	}
}

func (f *fixture) countRows(t *testing.T, m interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := f.db.Model(m)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) auditCount(t *testing.T, action, entityId string) int64 {
	t.Helper()
	return f.countRows(t, &model.SystemLogModel{}, "action = ? AND entity_id = ?", action, entityId)
}
