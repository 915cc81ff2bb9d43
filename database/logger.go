package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/hvacform/logger"
)

func parseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// queryLogger routes GORM output through the service logger with the
// request id of the query's context. Below Info, bound parameters are
// left out of logged SQL: submissions carry names and phone numbers.
type queryLogger struct {
	log           *logger.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

var (
	_ gormlogger.Interface = (*queryLogger)(nil)
	_ gorm.ParamsFilter    = (*queryLogger)(nil)
)

func newQueryLogger(log *logger.Logger, slowThreshold time.Duration, level gormlogger.LogLevel) *queryLogger {
	return &queryLogger{log: log.WithComponent("gorm"), level: level, slowThreshold: slowThreshold}
}

func (l *queryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &queryLogger{log: l.log, level: level, slowThreshold: l.slowThreshold}
}

func (l *queryLogger) ctxLog(ctx context.Context) *logger.Logger {
	if ctx == nil {
		return l.log
	}
	return l.log.WithContext(ctx)
}

func (l *queryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.ctxLog(ctx).Info(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.ctxLog(ctx).Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *queryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.ctxLog(ctx).Error(fmt.Sprintf(msg, data...))
	}
}

// ParamsFilter drops bound values from logged SQL unless queries are
// logged at Info.
func (l *queryLogger) ParamsFilter(_ context.Context, sql string, params ...interface{}) (string, []interface{}) {
	if l.level >= gormlogger.Info {
		return sql, params
	}
	return sql, nil
}

func (l *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold
	if !(err != nil && l.level >= gormlogger.Error) && !(slow && l.level >= gormlogger.Warn) && l.level < gormlogger.Info {
		return
	}

	sql, rows := fc()
	fields := map[string]interface{}{"sql": sql, "duration_ms": elapsed.Milliseconds(), "rows": rows}
	log := l.ctxLog(ctx)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		log.WithError(err).Error("query failed", fields)
	case slow:
		log.Warn("slow query", fields)
	default:
		log.Debug("query", fields)
	}
}
