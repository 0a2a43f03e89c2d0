// Package redislimiter 多进程共用的建连限流，redis 固定窗口计数。
package redislimiter

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/go-gotop/subscribe/limiter"
)

const (
	keyPrefix    = "limiter:ws"
	redisTimeout = time.Second
	waitStep     = 50 * time.Millisecond
)

type window struct {
	period time.Duration
	times  int64
}

type Option func(*RedisLimiter)

func WithLogger(logger log.Logger) Option {
	return func(l *RedisLimiter) {
		l.logger = log.NewHelper(log.With(logger, "module", "redislimiter"))
	}
}

// NewRedisLimiter id 区分限流对象，为空时取 HOST_IP，再退回主机名
func NewRedisLimiter(rdb redis.UniversalClient, id string, limits []limiter.Option, opts ...Option) (*RedisLimiter, error) {
	o := &limiter.Options{
		PeriodLimitArray: []limiter.PeriodLimit{
			{WsConnectPeriod: "1s", WsConnectTimes: 3},
		},
	}
	for _, opt := range limits {
		opt(o)
	}
	if id == "" {
		id = hostID()
	}

	l := &RedisLimiter{
		rdb:    rdb,
		id:     id,
		logger: log.NewHelper(log.DefaultLogger),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	for _, p := range o.PeriodLimitArray {
		if p.WsConnectTimes <= 0 {
			continue
		}
		d, err := limiter.ParsePeriod(p.WsConnectPeriod)
		if err != nil {
			return nil, err
		}
		l.windows = append(l.windows, window{period: d, times: p.WsConnectTimes})
	}
	return l, nil
}

func hostID() string {
	if ip := os.Getenv("HOST_IP"); ip != "" {
		return ip
	}
	name, _ := os.Hostname()
	return name
}

// RedisLimiter redis 不可用时放行
type RedisLimiter struct {
	rdb     redis.UniversalClient
	id      string
	windows []window
	logger  *log.Helper
	now     func() time.Time
}

var _ limiter.Limiter = (*RedisLimiter)(nil)

func (l *RedisLimiter) key(w window, at time.Time) string {
	slot := at.UnixMilli() / w.period.Milliseconds()
	return fmt.Sprintf("%s:%s:%d:%d", keyPrefix, l.id, w.period.Milliseconds(), slot)
}

func (l *RedisLimiter) WsAllow() bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	now := l.now()
	for _, w := range l.windows {
		key := l.key(w, now)
		pipe := l.rdb.TxPipeline()
		incr := pipe.Incr(ctx, key)
		pipe.PExpire(ctx, key, w.period)
		if _, err := pipe.Exec(ctx); err != nil {
			l.logger.Warnf("redis limiter %s: %v", key, err)
			return true
		}
		if incr.Val() > w.times {
			return false
		}
	}
	return true
}

func (l *RedisLimiter) WsWait(ctx context.Context) error {
	ticker := time.NewTicker(waitStep)
	defer ticker.Stop()
	for {
		if l.WsAllow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
