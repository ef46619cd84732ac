package task

import (
	"fmt"
	"os"
	"time"

	gormlock "github.com/go-co-op/gocron-gorm-lock/v2"
	"github.com/go-co-op/gocron/v2"
	"github.com/isolexIO/chainlink-pos-sub003/internal/app"
	"github.com/isolexIO/chainlink-pos-sub003/internal/config"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"gorm.io/gorm"
)

// Job 定时任务
type Job interface {
	GetName() string
	GetSchedule() gocron.JobDefinition
	Execute()
}

// Manager 任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	app       *app.App
	config    config.TaskConfig
}

// NewManager 创建新的任务管理器，多实例部署时通过数据库锁保证每次触发只执行一次
func NewManager(a *app.App) (*Manager, error) {
	cfg := a.Config.Task
	opts := []gocron.SchedulerOption{
		gocron.WithLocation(a.Config.Payout.Location()),
		gocron.WithLogger(newCronLogger(logger.GetDefaultZapLogger())),
	}

	if cfg.DistributedLock {
		locker, err := newGormLocker(a.DB)
		if err != nil {
			return nil, err
		}
		opts = append(opts, gocron.WithDistributedLocker(locker))
	}

	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Manager{
		scheduler: s,
		app:       a,
		config:    cfg,
	}, nil
}

func newGormLocker(db *gorm.DB) (*gormlock.GormLocker, error) {
	if err := db.AutoMigrate(gormlock.CronJobLock{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cron job lock table: %w", err)
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	worker := fmt.Sprintf("%s-%d", host, os.Getpid())

	locker, err := gormlock.NewGormLocker(db, worker, gormlock.WithDefaultJobIdentifier(time.Minute))
	if err != nil {
		return nil, fmt.Errorf("failed to create gorm locker: %w", err)
	}
	return locker, nil
}

// Start 注册并启动全部任务
func Start(a *app.App) (*Manager, error) {
	manager, err := NewManager(a)
	if err != nil {
		return nil, err
	}

	if err := manager.RegisterJobs(); err != nil {
		return nil, err
	}

	manager.scheduler.Start()

	logger.Info("Task manager started successfully with %d jobs", len(manager.scheduler.Jobs()))
	return manager, nil
}

// Jobs 按配置生成任务列表
func (m *Manager) Jobs() []Job {
	jobs := []Job{
		NewCommissionAccrualJob(m.app.Commission, m.config.AccrualCron),
		NewPayoutAggregationJob(m.app.Payout, m.config.AggregationCron),
		NewPayoutScheduleJob(m.app.Scheduler, m.app.Now, m.config.ScheduleCron),
	}
	if m.config.ReconcileEnabled {
		jobs = append(jobs, NewProcessingReconcileJob(m.app.Scheduler, m.config.ReconcileCron))
	}
	return jobs
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() error {
	for _, job := range m.Jobs() {
		if err := m.register(job); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) register(job Job) error {
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register job %s: %w", job.GetName(), err)
	}
	logger.Debug("Registered job %s", job.GetName())
	return nil
}

// Stop 停止任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Task manager stopped")
}
