package sqlstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"
)

const slowThreshold = 500 * time.Millisecond

// GormLogger 把 gorm 日志转到 kratos
type GormLogger struct {
	logger *log.Helper
	level  glogger.LogLevel
}

func NewGormLogger(logger log.Logger) *GormLogger {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &GormLogger{
		logger: log.NewHelper(log.With(logger, "module", "sqlstore")),
		level:  glogger.Warn,
	}
}

func (l *GormLogger) LogMode(level glogger.LogLevel) glogger.Interface {
	nl := *l
	nl.level = level
	return &nl
}

func (l *GormLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= glogger.Info {
		l.logger.WithContext(ctx).Infof(msg, args...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= glogger.Warn {
		l.logger.WithContext(ctx).Warnf(msg, args...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if l.level >= glogger.Error {
		l.logger.WithContext(ctx).Errorf(msg, args...)
	}
}

func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= glogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= glogger.Error:
		sql, rows := fc()
		l.logger.WithContext(ctx).Errorw("msg", "sql error", "err", err, "sql", sql, "rows", rows, "elapsed", elapsed)
	case elapsed > slowThreshold && l.level >= glogger.Warn:
		sql, rows := fc()
		l.logger.WithContext(ctx).Warnw("msg", "slow sql", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= glogger.Info:
		sql, rows := fc()
		l.logger.WithContext(ctx).Debugw("sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
