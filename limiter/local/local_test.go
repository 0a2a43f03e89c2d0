package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-gotop/subscribe/limiter"
)

func TestWsAllow(t *testing.T) {
	l, err := NewLocalLimiter(limiter.WithPeriodLimitArray([]limiter.PeriodLimit{
		{WsConnectPeriod: "1h", WsConnectTimes: 2},
	}))
	require.NoError(t, err)

	assert.True(t, l.WsAllow())
	assert.True(t, l.WsAllow())
	assert.False(t, l.WsAllow())
}

func TestWsWaitCanceled(t *testing.T) {
	l, err := NewLocalLimiter(limiter.WithPeriodLimitArray([]limiter.PeriodLimit{
		{WsConnectPeriod: "1h", WsConnectTimes: 1},
	}))
	require.NoError(t, err)
	require.NoError(t, l.WsWait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.WsWait(ctx))
}

func TestParsePeriod(t *testing.T) {
	d, err := limiter.ParsePeriod("500ms")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)

	_, err = limiter.ParsePeriod("3d")
	assert.Error(t, err)

	_, err = NewLocalLimiter(limiter.WithPeriodLimitArray([]limiter.PeriodLimit{{WsConnectPeriod: "x", WsConnectTimes: 1}}))
	assert.Error(t, err)
}
