package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_FieldsAreRecorded(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core), "pos-service")

	logger.Info("Item added", Fields{"session_id": "s1", "quantity": 2})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "Item added", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "pos-service", ctx["service"])
	assert.Equal(t, "s1", ctx["session_id"])
	assert.EqualValues(t, 2, ctx["quantity"])
}

func TestLogger_WithAndNamed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := FromZap(zap.New(core), "pos-service").Named("cart").With(Fields{"session_id": "s2"})

	logger.Debug("dropped below level")
	logger.Warn("Deposit exceeds total")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "cart", entries[0].LoggerName)
	assert.Equal(t, "s2", entries[0].ContextMap()["session_id"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
		{"dpanic", zapcore.DPanicLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewNop(t *testing.T) {
	logger := NewNop()
	logger.Error("ignored", Fields{"error": "boom"})
	assert.NoError(t, logger.Sync())
}
