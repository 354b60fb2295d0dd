package logger

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/saiset-co/sai-social-bot/types"
)

func newObservedLogger() (types.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewZapWrapper(zap.New(core)), logs
}

func TestErrorWithErrStackExtractsCauseAndStack(t *testing.T) {
	log, logs := newObservedLogger()

	err := errors.Wrap(errors.New("root cause"), "outer")
	log.ErrorWithErrStack("Operation failed", err, zap.String("account", "bot"))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "Operation failed", entries[0].Message)

	fields := entries[0].ContextMap()
	require.Equal(t, "root cause", fields["error"])
	require.Equal(t, "bot", fields["account"])
	require.Contains(t, fields, "stack")
	require.NotEmpty(t, fields["stack"])
}

func TestErrorWithErrStackNilError(t *testing.T) {
	log, logs := newObservedLogger()

	log.ErrorWithErrStack("Operation failed", nil, zap.Int("attempt", 2))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "Operation failed", entries[0].Message)

	fields := entries[0].ContextMap()
	require.NotContains(t, fields, "error")
	require.Equal(t, int64(2), fields["attempt"])
}
