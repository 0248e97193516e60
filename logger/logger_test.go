package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(tt.level, "json")
			assert.True(t, l.Core().Enabled(tt.expected))
			if tt.expected > zapcore.DebugLevel {
				assert.False(t, l.Core().Enabled(tt.expected-1))
			}
		})
	}
}

func TestZapWrapper_FieldsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewZapAdapter(zap.New(core))

	l.WithFields(map[string]interface{}{"chart": "most-tables"}).
		WithError(errors.New("boom")).
		Warn("chart not rendered", map[string]interface{}{"status": 500})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "chart not rendered", entries[0].Message)
		assert.Equal(t, "most-tables", ctx["chart"])
		assert.Equal(t, "boom", ctx["error"])
		assert.EqualValues(t, 500, ctx["status"])
	}
}

func TestNewNoOpLogger(t *testing.T) {
	l := NewNoOpLogger()
	assert.NotPanics(t, func() {
		l.Info("ignored", nil)
		l.WithFields(nil).Error("ignored", map[string]interface{}{"k": "v"})
	})
}
