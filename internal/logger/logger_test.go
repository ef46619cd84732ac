package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	previous := defaultLogger
	defaultLogger = newWithCore(core)
	t.Cleanup(func() { defaultLogger = previous })
	return logs
}

func callerFile(t *testing.T, logs *observer.ObservedLogs) string {
	t.Helper()
	entries := logs.TakeAll()
	require.Len(t, entries, 1)
	require.True(t, entries[0].Caller.Defined)
	return filepath.Base(entries[0].Caller.File)
}

func TestCallerPointsAtCallSite(t *testing.T) {
	logs := observe(t)

	Info("package level %d", 1)
	assert.Equal(t, "logger_test.go", callerFile(t, logs))

	child := With(zap.String("dealer_id", "d-1"))
	child.Info("child %d", 2)
	assert.Equal(t, "logger_test.go", callerFile(t, logs))

	child.With(zap.String("payout_id", "p-1")).Warn("grandchild")
	assert.Equal(t, "logger_test.go", callerFile(t, logs))

	GetDefaultZapLogger().Info("direct zap")
	assert.Equal(t, "logger_test.go", callerFile(t, logs))
}

func TestWithCarriesFields(t *testing.T) {
	logs := observe(t)

	With(zap.String("dealer_id", "d-1")).Error("transfer failed: %s", "declined")

	entries := logs.TakeAll()
	require.Len(t, entries, 1)
	assert.Equal(t, "transfer failed: declined", entries[0].Message)
	assert.Equal(t, "d-1", entries[0].ContextMap()["dealer_id"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLogLevel("warning"))
	assert.Equal(t, INFO, ParseLogLevel("verbose"))
}
