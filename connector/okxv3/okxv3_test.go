package okxv3

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/expiry"
	"github.com/go-gotop/subscribe/store"
)

type fixedTime struct {
	t   time.Time
	err error
}

func (f fixedTime) ServerTime(context.Context) (time.Time, error) {
	return f.t, f.err
}

func deflate(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	p := NewPublic()
	out, err := p.Decode(deflate(t, `{"event":"login","success":true}`))
	require.NoError(t, err)
	assert.Equal(t, `{"event":"login","success":true}`, string(out))

	_, err = p.Decode([]byte{0xff, 0xff, 0xff})
	assert.ErrorIs(t, err, ErrInflate)
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, "1538054050.975", Timestamp(time.UnixMilli(1538054050975)))
	assert.Equal(t, "1538054050.000", Timestamp(time.Unix(1538054050, 0)))
}

func TestSign(t *testing.T) {
	assert.Equal(t, "DgKNU9uKoPJG46YwbcAFln7Tc3z9O96ErLmt10USdMM=", Sign("secret", "1538054050.975"))
}

func TestLoginUsesServerTime(t *testing.T) {
	clock := NewServerClock(fixedTime{t: time.UnixMilli(1538054050975)}, nil)
	p := NewPrivate(WithClock(clock))
	payload, err := p.Login(context.Background(), store.AccountCredentials{
		AccessKey: "key", SecretKey: "secret", Passphrase: "pass",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"login","args":["key","pass","1538054050.975","DgKNU9uKoPJG46YwbcAFln7Tc3z9O96ErLmt10USdMM="]}`, string(payload))
}

func TestServerClockFallback(t *testing.T) {
	local := time.Date(2021, 6, 9, 0, 0, 0, 0, time.UTC)
	clock := NewServerClock(fixedTime{err: errors.New("timeout")}, nil)
	clock.now = func() time.Time { return local }
	assert.Equal(t, local, clock.Now(context.Background()))

	noSource := NewServerClock(nil, nil)
	noSource.now = func() time.Time { return local }
	assert.Equal(t, local, noSource.Now(context.Background()))
}

func TestClassify(t *testing.T) {
	p := NewPrivate()
	cases := []struct {
		msg  string
		kind connector.FrameKind
	}{
		{`pong`, connector.FrameIgnore},
		{`{"event":"login","success":true}`, connector.FrameLoginOK},
		{`{"event":"login","success":false}`, connector.FrameError},
		{`{"event":"error","message":"Invalid sign","errorCode":30013}`, connector.FrameError},
		{`{"event":"subscribe","channel":"futures/ticker:BTC-USD-210625"}`, connector.FrameIgnore},
		{`{"table":"futures/ticker","data":[{"last":"1"}]}`, connector.FrameData},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, p.Classify([]byte(c.msg)).Kind, c.msg)
	}
	f := p.Classify([]byte(`{"event":"error","message":"Invalid sign","errorCode":30013}`))
	assert.ErrorIs(t, f.Err, ErrExchange)
	assert.Contains(t, f.Err.Error(), "30013")
}

func TestRequests(t *testing.T) {
	d := expiry.Dates{ThisWeek: "210611", NextWeek: "210618"}

	pub := PublicRequests([]string{"btc"}, d)
	require.Len(t, pub, 2)
	assert.JSONEq(t, `{"op":"subscribe","args":["futures/ticker:BTC-USD-210611","futures/ticker:BTC-USD-210618"]}`, string(pub[0].Payload))
	assert.Equal(t, "spot/ticker:BTC-USDT", pub[1].Key)

	priv := PrivateRequests([]string{"USD", "eth"}, d)
	require.Len(t, priv, 2)
	assert.Equal(t, "futures/position:ETH-USD-210611,futures/position:ETH-USD-210618", priv[0].Key)
	assert.JSONEq(t, `{"op":"subscribe","args":["futures/account:ETH"]}`, string(priv[1].Payload))
}

func TestUnsubscribe(t *testing.T) {
	req := PublicRequests([]string{"BTC"}, expiry.Dates{})[0]
	un := NewPublic().Unsubscribe(req)
	assert.Equal(t, req.Key, un.Key)
	j, err := simplejson.NewJson(un.Payload)
	require.NoError(t, err)
	assert.Equal(t, "unsubscribe", j.Get("op").MustString())
	assert.Equal(t, []interface{}{"spot/ticker:BTC-USDT"}, j.Get("args").MustArray())
}
