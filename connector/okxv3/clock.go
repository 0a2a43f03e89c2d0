package okxv3

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// TimeSource 交易所服务器时间
type TimeSource interface {
	ServerTime(ctx context.Context) (time.Time, error)
}

// ServerClock 登录时间戳优先取服务器时间，失败时退回本地时间
type ServerClock struct {
	src    TimeSource
	now    func() time.Time
	logger *log.Helper
}

func NewServerClock(src TimeSource, logger log.Logger) *ServerClock {
	if logger == nil {
		logger = log.DefaultLogger
	}
	return &ServerClock{
		src:    src,
		now:    time.Now,
		logger: log.NewHelper(log.With(logger, "module", "okxv3")),
	}
}

func (c *ServerClock) Now(ctx context.Context) time.Time {
	if c.src == nil {
		return c.now()
	}
	t, err := c.src.ServerTime(ctx)
	if err != nil {
		c.logger.Warnf("server time unavailable, use local time: %v", err)
		return c.now()
	}
	return t
}

// Timestamp 秒，保留毫秒，例如 1538054050.975
func Timestamp(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixMilli())/1000, 'f', 3, 64)
}
