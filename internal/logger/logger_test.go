package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNamedTagsComponent(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Logger
	Logger = zap.New(core)
	defer func() { Logger = prev }()

	Named("reconciler").Info("tick", zap.Int("updated", 2))
	WithRequestID("req-1").Warn("slow")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "reconciler", entries[0].LoggerName)
	assert.Equal(t, int64(2), entries[0].ContextMap()["updated"])
	assert.Equal(t, "req-1", entries[1].ContextMap()["request_id"])
}

func TestPackageLoggerIsSafeBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		Info("before init")
		Named("mqtt").Debug("before init")
	})
}
