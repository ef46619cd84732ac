package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/isolexIO/chainlink-pos-sub003/internal/model"
	"github.com/isolexIO/chainlink-pos-sub003/internal/repository"
	"github.com/panjf2000/ants/v2"
)

// DefaultPoolSize 同时处理的经销商数
const DefaultPoolSize = 8

// PayoutScheduler 每日打款调度：晋级 pending、派发到期的 scheduled、重试 failed
type PayoutScheduler struct {
	store             *repository.Store
	dispatch          *logic.DispatchLogic
	poolSize          int
	processingTimeout time.Duration
}

// NewPayoutScheduler 创建打款调度器
func NewPayoutScheduler(store *repository.Store, dispatch *logic.DispatchLogic, poolSize int, processingTimeout time.Duration) *PayoutScheduler {
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}
	if processingTimeout <= 0 {
		processingTimeout = 30 * time.Minute
	}
	return &PayoutScheduler{
		store:             store,
		dispatch:          dispatch,
		poolSize:          poolSize,
		processingTimeout: processingTimeout,
	}
}

// RunResult 一次调度的统计
type RunResult struct {
	Scheduled int      `json:"scheduled"`
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors"`

	mu sync.Mutex
}

func (r *RunResult) add(fn func(r *RunResult)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

type workKind int

const (
	workPending workKind = iota
	workDue
	workRetry
)

type work struct {
	payoutId string
	kind     workKind
}

// RunDaily 执行一次每日调度，单个打款单的错误只记录不中断
func (s *PayoutScheduler) RunDaily(ctx context.Context, now time.Time) (*RunResult, error) {
	now = now.UTC()
	groups, order, err := s.collect(ctx, now)
	if err != nil {
		return nil, err
	}

	result := &RunResult{Errors: []string{}}
	if len(order) == 0 {
		logger.Info("Payout schedule run: nothing to do")
		return result, nil
	}

	size := s.poolSize
	if len(order) < size {
		size = len(order)
	}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p interface{}) {
		logger.Error("Payout schedule worker panicked: %v", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool of %d: %w", size, err)
	}
	defer pool.Release()

	actor := auth.SystemActor()
	var wg sync.WaitGroup
	for _, dealerId := range order {
		items := groups[dealerId]
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			s.runDealer(ctx, actor, now, items, result)
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit payouts of dealer %s: %v", dealerId, err)
			result.add(func(r *RunResult) {
				r.Errors = append(r.Errors, fmt.Sprintf("dealer %s: %v", dealerId, err))
			})
		}
	}
	wg.Wait()

	logger.Info("Payout schedule run finished: dealers=%d scheduled=%d processed=%d failed=%d errors=%d",
		len(order), result.Scheduled, result.Processed, result.Failed, len(result.Errors))
	return result, nil
}

// collect 按经销商分组待处理的打款单，同一经销商内顺序执行
func (s *PayoutScheduler) collect(ctx context.Context, now time.Time) (map[string][]work, []string, error) {
	pending, err := s.store.ListPayoutsByStatus(ctx, "", model.PayoutStatusPending)
	if err != nil {
		return nil, nil, err
	}
	due, err := s.store.ListDueScheduled(ctx, now)
	if err != nil {
		return nil, nil, err
	}
	retry, err := s.store.ListRetryable(ctx, s.dispatch.MaxAttempts())
	if err != nil {
		return nil, nil, err
	}

	groups := make(map[string][]work)
	var order []string
	seen := make(map[string]bool)
	add := func(payouts []model.DealerPayoutModel, kind workKind) {
		for _, p := range payouts {
			if seen[p.Id] {
				continue
			}
			seen[p.Id] = true
			if _, ok := groups[p.DealerId]; !ok {
				order = append(order, p.DealerId)
			}
			groups[p.DealerId] = append(groups[p.DealerId], work{payoutId: p.Id, kind: kind})
		}
	}
	add(pending, workPending)
	add(due, workDue)
	add(retry, workRetry)
	return groups, order, nil
}

func (s *PayoutScheduler) runDealer(ctx context.Context, actor auth.Actor, now time.Time, items []work, result *RunResult) {
	for i, w := range items {
		if err := ctx.Err(); err != nil {
			skipped := items[i:]
			result.add(func(r *RunResult) {
				for _, rest := range skipped {
					r.Errors = append(r.Errors, fmt.Sprintf("payout %s: %v", rest.payoutId, err))
				}
			})
			return
		}
		if w.kind == workPending {
			outcome, err := s.dispatch.PromotePending(ctx, actor, w.payoutId, now)
			if err != nil {
				result.add(func(r *RunResult) {
					r.Errors = append(r.Errors, fmt.Sprintf("payout %s: %v", w.payoutId, err))
				})
				continue
			}
			if outcome != logic.PromoteScheduled {
				continue
			}
			result.add(func(r *RunResult) { r.Scheduled++ })
		}
		s.dispatchOne(ctx, actor, w.payoutId, result)
	}
}

func (s *PayoutScheduler) dispatchOne(ctx context.Context, actor auth.Actor, payoutId string, result *RunResult) {
	res, err := s.dispatch.Dispatch(ctx, actor, payoutId)
	result.add(func(r *RunResult) {
		switch {
		case err != nil:
			r.Failed++
			r.Errors = append(r.Errors, fmt.Sprintf("payout %s: %v", payoutId, err))
		case res.Success:
			r.Processed++
		default:
			r.Failed++
		}
	})
}

// ReconcileProcessing 处理超时未结束的 processing 打款单
func (s *PayoutScheduler) ReconcileProcessing(ctx context.Context) (int, []string, error) {
	return s.dispatch.ReconcileStale(ctx, auth.SystemActor(), s.processingTimeout)
}
