package redislimiter

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-gotop/subscribe/limiter"
)

func unreachable(t *testing.T) redis.UniversalClient {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestKeyWindow(t *testing.T) {
	l, err := NewRedisLimiter(unreachable(t), "10.0.0.1", []limiter.Option{
		limiter.WithPeriodLimitArray([]limiter.PeriodLimit{
			{WsConnectPeriod: "1s", WsConnectTimes: 3},
			{WsConnectPeriod: "1m", WsConnectTimes: 100},
		}),
	})
	require.NoError(t, err)
	require.Len(t, l.windows, 2)

	at := time.UnixMilli(1623225600500)
	assert.Equal(t, "limiter:ws:10.0.0.1:1000:1623225600", l.key(l.windows[0], at))
	assert.Equal(t, "limiter:ws:10.0.0.1:60000:27053760", l.key(l.windows[1], at))
	// 同一窗口内 key 不变
	assert.Equal(t, l.key(l.windows[0], at), l.key(l.windows[0], at.Add(400*time.Millisecond)))
}

func TestRedisDownAllows(t *testing.T) {
	l, err := NewRedisLimiter(unreachable(t), "", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, l.id)
	assert.True(t, l.WsAllow())
	assert.NoError(t, l.WsWait(context.Background()))
}

func TestInvalidPeriod(t *testing.T) {
	_, err := NewRedisLimiter(unreachable(t), "x", []limiter.Option{
		limiter.WithPeriodLimitArray([]limiter.PeriodLimit{{WsConnectPeriod: "1d", WsConnectTimes: 1}}),
	})
	assert.Error(t, err)
}
