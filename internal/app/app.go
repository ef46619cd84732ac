// Package app 组装服务与命令行工具共用的依赖
package app

import (
	"fmt"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/audit"
	"github.com/isolexIO/chainlink-pos-sub003/internal/auth"
	"github.com/isolexIO/chainlink-pos-sub003/internal/config"
	"github.com/isolexIO/chainlink-pos-sub003/internal/event"
	"github.com/isolexIO/chainlink-pos-sub003/internal/lock"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logic"
	"github.com/isolexIO/chainlink-pos-sub003/internal/period"
	"github.com/isolexIO/chainlink-pos-sub003/internal/repository"
	"github.com/isolexIO/chainlink-pos-sub003/internal/scheduler"
	"github.com/isolexIO/chainlink-pos-sub003/internal/transfer"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// App 已装配好的业务组件
type App struct {
	Config *config.Config
	DB     *gorm.DB
	Store  *repository.Store
	Policy *auth.Policy

	Commission *logic.CommissionLogic
	Payout     *logic.PayoutLogic
	Dispatch   *logic.DispatchLogic
	Scheduler  *scheduler.PayoutScheduler

	// Tokens 为 nil 表示未配置 jwt_secret，API 一律拒绝
	Tokens     *auth.TokenVerifier
	Webhook    *event.Verifier
	Processors *event.ProcessorManager

	Now func() time.Time

	redisClient *redis.Client
	kafkaSink   *audit.KafkaSink
}

// Option 调整装配过程，主要供测试替换外部协作者
type Option func(*buildOptions)

type buildOptions struct {
	stripe transfer.StripeTransfers
	now    func() time.Time
}

// WithStripeTransfers 替换 Stripe 转账客户端
func WithStripeTransfers(t transfer.StripeTransfers) Option {
	return func(o *buildOptions) { o.stripe = t }
}

// WithNow 替换时钟
func WithNow(now func() time.Time) Option {
	return func(o *buildOptions) { o.now = now }
}

// New 按配置装配全部组件
func New(cfg *config.Config, db *gorm.DB, opts ...Option) (*App, error) {
	var bo buildOptions
	for _, opt := range opts {
		opt(&bo)
	}
	if bo.now == nil {
		bo.now = time.Now
	}

	a := &App{
		Config: cfg,
		DB:     db,
		Store:  repository.NewStore(db),
		Policy: auth.NewPolicy(),
		Now:    bo.now,
	}

	locker, err := a.buildLocker()
	if err != nil {
		return nil, err
	}
	sink, err := a.buildAuditSink()
	if err != nil {
		a.Close()
		return nil, err
	}

	registry := transfer.NewRegistry(transfer.NewSolanaMethod(), transfer.NewManualMethod())
	stripeTransfers := bo.stripe
	if stripeTransfers == nil && cfg.Stripe.SecretKey != "" {
		stripeTransfers = transfer.NewStripeClient(cfg.Stripe.SecretKey)
	}
	if stripeTransfers != nil {
		registry.Register(transfer.NewStripeMethod(stripeTransfers, cfg.Payout.Currency))
	} else {
		logger.Warn("Stripe secret key is not configured, stripe_connect payouts will fail")
	}

	options := logic.Options{
		Calculator:       period.NewCalculator(cfg.Payout.Location()),
		Locker:           locker,
		Audit:            sink,
		Policy:           a.Policy,
		Transfers:        registry,
		Currency:         cfg.Payout.Currency,
		MaxAttempts:      cfg.Payout.MaxAttempts,
		StripeFeePercent: decimal.NewFromFloat(cfg.Payout.StripeFeePercent),
		Now:              bo.now,
	}

	a.Dispatch = logic.NewDispatchLogic(a.Store, options)
	a.Commission = logic.NewCommissionLogic(a.Store, options)
	a.Payout = logic.NewPayoutLogic(a.Store, a.Dispatch, options)
	a.Scheduler = scheduler.NewPayoutScheduler(a.Store, a.Dispatch, cfg.Task.PoolSize, cfg.Payout.ProcessingTimeout)
	a.Webhook = event.NewVerifier(cfg.Stripe.WebhookSecret)
	a.Processors = event.NewProcessorManager(a.Dispatch)

	if cfg.Auth.JWTSecret != "" {
		a.Tokens, err = auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		logger.Warn("JWT secret is not configured, API requests will be rejected")
	}

	return a, nil
}

func (a *App) buildLocker() (lock.DealerLocker, error) {
	if a.Config.Redis.URL == "" {
		return lock.NewLocalLocker(), nil
	}
	client, err := lock.Connect(a.Config.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.redisClient = client
	logger.Info("Using redis dealer lock (ttl=%s)", a.Config.Redis.LockTTL)
	return lock.NewRedisLocker(client, a.Config.Redis.LockTTL), nil
}

func (a *App) buildAuditSink() (audit.Sink, error) {
	gormSink := audit.NewGormSink(a.DB)
	if len(a.Config.Audit.KafkaBrokers) == 0 {
		return gormSink, nil
	}
	kafkaSink, err := audit.NewKafkaSink(a.Config.Audit.KafkaBrokers, a.Config.Audit.KafkaTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka audit sink: %w", err)
	}
	a.kafkaSink = kafkaSink
	logger.Info("Audit entries are also published to kafka topic %s", a.Config.Audit.KafkaTopic)
	return audit.MultiSink{gormSink, kafkaSink}, nil
}

// Close 释放外部连接
func (a *App) Close() {
	if a.kafkaSink != nil {
		if err := a.kafkaSink.Close(); err != nil {
			logger.Error("Failed to close kafka audit sink: %v", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			logger.Error("Failed to close redis client: %v", err)
		}
	}
}
