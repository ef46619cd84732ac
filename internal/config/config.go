package config

import (
	"strings"
	"time"

	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
	Payout   PayoutConfig   `mapstructure:"payout"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Task     TaskConfig     `mapstructure:"task"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
	Debug    bool   `mapstructure:"debug"`
}

// PayoutConfig 打款引擎配置
type PayoutConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	StripeFeePercent  float64       `mapstructure:"stripe_fee_percent"`
	Currency          string        `mapstructure:"currency"`
	Timezone          string        `mapstructure:"timezone"`
	ProcessingTimeout time.Duration `mapstructure:"processing_timeout"`
}

// Location 解析结算周期使用的时区，无效时回退到 UTC
func (p PayoutConfig) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		logger.Warn("Unknown payout timezone %q, falling back to UTC: %v", p.Timezone, err)
		return time.UTC
	}
	return loc
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RedisConfig 经销商锁使用的 Redis，url 为空时使用进程内锁
type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type AuditConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

// TaskConfig 定时任务配置（cron 表达式）
type TaskConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	DistributedLock  bool   `mapstructure:"distributed_lock"`
	PoolSize         int    `mapstructure:"pool_size"`
	AccrualCron      string `mapstructure:"accrual_cron"`
	AggregationCron  string `mapstructure:"aggregation_cron"`
	ScheduleCron     string `mapstructure:"schedule_cron"`
	ReconcileCron    string `mapstructure:"reconcile_cron"`
	ReconcileEnabled bool   `mapstructure:"reconcile_enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // stdout, stderr, file
	File   string `mapstructure:"file"`
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// SetDefaults 注册默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "chainlink_pos")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "chainlink_pos.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("payout.max_attempts", 5)
	v.SetDefault("payout.stripe_fee_percent", 0.25)
	v.SetDefault("payout.currency", "usd")
	v.SetDefault("payout.timezone", "UTC")
	v.SetDefault("payout.processing_timeout", "30m")
	v.SetDefault("auth.issuer", "chainlink-pos")
	v.SetDefault("redis.lock_ttl", "2m")
	v.SetDefault("audit.kafka_topic", "pos.audit")
	v.SetDefault("task.enabled", true)
	v.SetDefault("task.distributed_lock", true)
	v.SetDefault("task.pool_size", 8)
	v.SetDefault("task.accrual_cron", "0 2 1 * *")
	v.SetDefault("task.aggregation_cron", "0 3 * * *")
	v.SetDefault("task.schedule_cron", "0 6 * * *")
	v.SetDefault("task.reconcile_cron", "*/15 * * * *")
	v.SetDefault("task.reconcile_enabled", true)
}

// Load 读取配置文件和 POS_ 前缀的环境变量
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/chainlink-pos")

	SetDefaults(v)

	v.SetEnvPrefix("POS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Could not read config file: %v", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
