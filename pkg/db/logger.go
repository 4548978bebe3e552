package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// QueryLogger routes gorm logs to zap, tagged with the caller's trace.
type QueryLogger struct {
	zap           *zap.Logger
	level         logger.LogLevel
	slowThreshold time.Duration
	logSQL        bool
}

func NewQueryLogger(z *zap.Logger, level logger.LogLevel, slowThreshold time.Duration, logSQL bool) *QueryLogger {
	return &QueryLogger{
		zap:           z.Named("gorm"),
		level:         level,
		slowThreshold: slowThreshold,
		logSQL:        logSQL,
	}
}

func (l *QueryLogger) with(ctx context.Context) *zap.Logger {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return l.zap
	}
	return l.zap.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

func (l *QueryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Info {
		l.with(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Warn {
		l.with(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= logger.Error {
		l.with(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	fields := []zap.Field{
		zap.String("file", utils.FileWithLineNum()),
		zap.String("sql", sql),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
	}

	switch {
	case err != nil && errors.Is(err, gorm.ErrDuplicatedKey):
		// unique keys guard idempotency; callers decide what a hit means
		if l.level >= logger.Warn {
			l.with(ctx).Warn("unique key hit", append(fields, zap.Error(err))...)
		}
	case err != nil && !errors.Is(err, logger.ErrRecordNotFound):
		if l.level >= logger.Error {
			l.with(ctx).Error("query failed", append(fields, zap.Error(err))...)
		}
	case l.slowThreshold > 0 && elapsed > l.slowThreshold:
		if l.level >= logger.Warn {
			l.with(ctx).Warn("slow query", append(fields, zap.Duration("threshold", l.slowThreshold))...)
		}
	case l.level >= logger.Info && l.logSQL:
		l.with(ctx).Debug("query", fields...)
	}
}
