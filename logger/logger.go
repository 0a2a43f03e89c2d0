// Package logger 构建进程日志：stdout，可选 lumberjack 滚动文件，可选 redis 列表。
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/go-gotop/subscribe/conf"
	"github.com/go-gotop/subscribe/feed"
)

var ErrNoRedisClient = errors.New("redis log handler enabled without redis client")

type LogEntry struct {
	Service   string `json:"service"`
	Level     string `json:"level"`
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
}

type MultiLogger struct {
	loggers []log.Logger
}

func NewMultiLogger(loggers ...log.Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
	}
}

// Log 写入全部 logger，返回第一个错误
func (m *MultiLogger) Log(level log.Level, keyvals ...interface{}) error {
	var first error
	for _, logger := range m.loggers {
		if err := logger.Log(level, keyvals...); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RedisHandler 把日志写进 redis 列表，只保留最近 cap 条
type RedisHandler struct {
	client      redis.UniversalClient
	key         string
	cap         int64
	serviceName string // 日志json格式中的服务名 用做检索
	timeout     time.Duration
}

func NewRedisHandler(client redis.UniversalClient, serviceName, key string, capacity int64) *RedisHandler {
	return &RedisHandler{
		client:      client,
		key:         key,
		cap:         capacity,
		serviceName: serviceName,
		timeout:     time.Second,
	}
}

func (h *RedisHandler) Log(level log.Level, keyvals ...interface{}) error {
	var b strings.Builder
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 < len(keyvals) {
			fmt.Fprintf(&b, "%v=%v ", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(&b, "%v=MISSING_VALUE ", keyvals[i]) // 处理键没有值的情况
		}
	}
	entry := &LogEntry{
		Service:   h.serviceName,
		Level:     levelToString(level),
		Timestamp: time.Now().UnixNano(),
		Message:   strings.TrimSpace(b.String()),
	}
	data, err := feed.Json.Marshal(entry)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	pipe := h.client.Pipeline()
	pipe.LPush(ctx, h.key, data)
	if h.cap > 0 {
		pipe.LTrim(ctx, h.key, 0, h.cap-1)
	}
	// redis 不可用时不影响 stdout 日志
	if _, err := pipe.Exec(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "redis log handler: %v\n", err)
	}
	return nil
}

// NewLogger rdb 为 nil 或未开启 redis 时只写 stdout / 文件。
// 返回的 cleanup 关闭滚动文件。
func NewLogger(c conf.Log, service string, rdb redis.UniversalClient) (log.Logger, func(), error) {
	var (
		w       io.Writer = os.Stdout
		cleanup           = func() {}
	)
	if c.File != "" {
		lj := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, lj)
		cleanup = func() { _ = lj.Close() }
	}

	loggers := []log.Logger{log.NewStdLogger(w)}
	if c.Redis {
		if rdb == nil {
			cleanup()
			return nil, nil, ErrNoRedisClient
		}
		loggers = append(loggers, NewRedisHandler(rdb, service, c.RedisKey, c.RedisCap))
	}

	var logger log.Logger = NewMultiLogger(loggers...)
	logger = log.With(logger,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service", service,
	)
	logger = log.NewFilter(logger, log.FilterLevel(log.ParseLevel(c.Level)))
	return logger, cleanup, nil
}

// WithTask 子任务日志带上任务名
func WithTask(logger log.Logger, task string) log.Logger {
	return log.With(logger, "task", task)
}

// levelToString 将日志级别转换为字符串
func levelToString(level log.Level) string {
	switch level {
	case log.LevelDebug:
		return "DEBUG"
	case log.LevelInfo:
		return "INFO"
	case log.LevelWarn:
		return "WARN"
	case log.LevelError:
		return "ERROR"
	case log.LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}
