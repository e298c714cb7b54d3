package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	l, err := New(true, true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = New(false, false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewWithOutput(false, false, "stderr")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestTruncateForLog(t *testing.T) {
	assert.Equal(t, "", TruncateForLog("abc", 0))
	assert.Equal(t, "abc", TruncateForLog("  abc  ", 5))
	assert.Equal(t, "ab...", TruncateForLog("abcdef", 2))
	assert.Equal(t, "你好...", TruncateForLog("你好世界", 2))
}

func TestStringFields(t *testing.T) {
	fields := StringFields("a", "1", "", "2", "b", "  ", "c")
	require.Len(t, fields, 1)
	assert.Equal(t, "a", fields[0].Key)
}

func TestWithCommonFieldsAndJob(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := WithJob(WithCommonFields(zap.New(core), "gemini", "gemini-2.5-flash"), "job-1", "bob")
	l.Info("hello")

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "gemini", ctx[FieldProvider])
	assert.Equal(t, "gemini-2.5-flash", ctx[FieldModel])
	assert.Equal(t, "job-1", ctx[FieldJobID])
	assert.Equal(t, "bob", ctx[FieldUsername])
}

func TestWithFields_NilLogger(t *testing.T) {
	assert.NotNil(t, WithFields(nil))
	assert.NotNil(t, WithCommonFields(nil, "", ""))
}
