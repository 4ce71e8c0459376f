package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(tt.level, "json")
			require.NoError(t, err)
			assert.True(t, l.Core().Enabled(tt.want))
			if tt.want > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.want-1))
			}
		})
	}
}

func TestWrapper_FieldsAndError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	l.With(Fields{"request_id": "abc"}).
		WithError(errors.New("boom")).
		Warn("stage failed", Fields{"stage": "schedule"})

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "stage failed", entries[0].Message)
	assert.Equal(t, "abc", ctx["request_id"])
	assert.Equal(t, "schedule", ctx["stage"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestNopAndTestLogger(t *testing.T) {
	NewNop().Info("dropped", nil)
	NewTestLogger(t).Debug("visible in -v output", Fields{"k": 1})
	Sync(NewNop())
}
