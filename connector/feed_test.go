package connector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-gotop/subscribe/expiry"
	"github.com/go-gotop/subscribe/websocket"
)

func TestFeedPoll(t *testing.T) {
	currencies := &fakeCurrencies{currencies: []string{"BTC", "ETH"}}
	now := time.Date(2021, 6, 9, 0, 0, 0, 0, time.UTC)
	var gotDates expiry.Dates
	build := func(cur []string, dates expiry.Dates) []Request {
		gotDates = dates
		return reqs(cur...)
	}
	f := NewFeed("publicchannel_test", testProtocol{}, currencies, build, nil,
		WithNow(func() time.Time { return now }))
	ctx := context.Background()

	assert.True(t, f.Poll(ctx))
	assert.Equal(t, []string{"BTC", "ETH"}, keys(f.Session().Active()))
	assert.Equal(t, "210611", gotDates.ThisWeek)

	// 没有变化
	assert.False(t, f.Poll(ctx))

	currencies.mux.Lock()
	currencies.currencies = []string{"ETH", "LTC"}
	currencies.mux.Unlock()
	assert.True(t, f.Poll(ctx))
	assert.Equal(t, []string{"ETH", "LTC"}, keys(f.Session().Active()))

	// 查询失败保持原订阅
	currencies.fail(errStore)
	assert.False(t, f.Poll(ctx))
	assert.Equal(t, []string{"ETH", "LTC"}, keys(f.Session().Active()))
	assert.Equal(t, "publicchannel_test", f.Name())
}

// endpointPanicProtocol 建连时 panic
type endpointPanicProtocol struct {
	testProtocol
}

func (endpointPanicProtocol) Endpoint() string {
	panic("endpoint not configured")
}

func TestFeedRunSessionPanic(t *testing.T) {
	currencies := &fakeCurrencies{currencies: []string{"BTC"}}
	f := NewFeed("publicchannel_test", endpointPanicProtocol{}, currencies, currencyRequests, nil,
		WithPollInterval(time.Hour),
		WithConnFactory(func() websocket.WebSocketConn { return newFakeConn() }))

	done := make(chan error, 1)
	go func() { done <- f.Run(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrSessionPanic)
		assert.Contains(t, err.Error(), "endpoint not configured")
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not exit on session panic")
	}
	assert.Equal(t, Disconnected, f.Session().State())
}
