package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newObservedLogger(level logger.LogLevel, slow time.Duration) (*QueryLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewQueryLogger(zap.New(core), level, slow, true), logs
}

func stmt(s string, rows int64) func() (string, int64) {
	return func() (string, int64) { return s, rows }
}

func TestTraceTagsSpan(t *testing.T) {
	l, logs := newObservedLogger(logger.Warn, time.Millisecond)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.Trace(ctx, time.Now().Add(-time.Second), stmt("SELECT 1", 1), nil)

	entries := logs.FilterMessage("slow query").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, sc.TraceID().String(), fields["trace_id"])
	require.Equal(t, sc.SpanID().String(), fields["span_id"])
	require.Equal(t, "SELECT 1", fields["sql"])
}

func TestTraceLevels(t *testing.T) {
	ctx := context.Background()

	l, logs := newObservedLogger(logger.Warn, 0)
	l.Trace(ctx, time.Now(), stmt("INSERT", 0), gorm.ErrDuplicatedKey)
	l.Trace(ctx, time.Now(), stmt("SELECT", 0), logger.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), stmt("UPDATE", 0), errors.New("boom"))
	l.Trace(ctx, time.Now(), stmt("SELECT 2", 1), nil)

	require.Equal(t, 1, logs.FilterMessage("unique key hit").FilterLevelExact(zapcore.WarnLevel).Len())
	require.Equal(t, 1, logs.FilterMessage("query failed").FilterLevelExact(zapcore.ErrorLevel).Len())
	require.Equal(t, 2, logs.Len())

	silent := l.LogMode(logger.Silent)
	silent.Trace(ctx, time.Now(), stmt("UPDATE", 0), errors.New("boom"))
	require.Equal(t, 2, logs.Len())

	verbose, vlogs := newObservedLogger(logger.Info, 0)
	verbose.Trace(ctx, time.Now(), stmt("SELECT 3", 1), nil)
	require.Equal(t, 1, vlogs.FilterMessage("query").Len())
}
