package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/modelcmp/pkg/config"
)

func decodeLast(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestNewSetsGlobalLevel(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := New(&config.Config{Env: "development", LogLevel: tt.level, LogFormat: "json"})
			require.NotNil(t, l)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLogLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, parseLogLevel("warning"))
	assert.Equal(t, zerolog.FatalLevel, parseLogLevel("fatal"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel("invalid"))
	assert.Equal(t, zerolog.InfoLevel, parseLogLevel(""))
}

func TestLevelsAndFormatting(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")

	l.Debug("debug message")
	assert.Equal(t, "debug", decodeLast(t, &buf)["level"])

	l.Warnf("retry attempt: %d", 3)
	entry := decodeLast(t, &buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "retry attempt: 3", entry["message"])
}

func TestNewWithWriterRespectsLevel(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "error")

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Error("kept")
	assert.Equal(t, "kept", decodeLast(t, &buf)["message"])
}

func TestFieldsAndComponent(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "debug")

	l.Component("comparison").
		WithFields(map[string]interface{}{"symbol": "005930", "models": 4}).
		WithError(errors.New("fit failed")).
		Info("model failed")

	entry := decodeLast(t, &buf)
	assert.Equal(t, "comparison", entry["component"])
	assert.Equal(t, "005930", entry["symbol"])
	assert.Equal(t, float64(4), entry["models"])
	assert.Equal(t, "fit failed", entry["error"])
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.WithField("a", 1).Error("nothing")
	assert.Equal(t, zerolog.Disabled, l.Zerolog().GetLevel())
}
