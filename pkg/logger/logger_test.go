package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(func() {
		Flush()
		restore()
	})
	return logs
}

func TestDedup_CollapsesRepeats(t *testing.T) {
	logs := observe(t)

	Dedup("Cache hit for %s", "123")
	Dedup("Cache hit for %s", "123")
	Dedup("Cache hit for %s", "123")
	Dedup("Cache hit for %s", "456")
	Flush()

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Cache hit for 123", entries[0].Message)
	assert.Equal(t, int64(3), entries[0].ContextMap()["repeated"])
	assert.Equal(t, "Cache hit for 456", entries[1].Message)
	assert.Empty(t, entries[1].Context)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", false)
	assert.Error(t, err)
}
