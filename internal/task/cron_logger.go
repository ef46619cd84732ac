package task

import (
	"github.com/go-co-op/gocron/v2"
	"github.com/isolexIO/chainlink-pos-sub003/internal/logger"
	"go.uber.org/zap"
)

var _ gocron.Logger = (*cronLogger)(nil)

// cronLogger 把 gocron 的键值日志转发到 zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func newCronLogger(zl *zap.Logger) *cronLogger {
	return &cronLogger{sugar: zl.Named("gocron").WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

func (l *cronLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *cronLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *cronLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *cronLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }
