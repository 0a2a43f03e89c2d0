package huobi

import (
	"bytes"
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/expiry"
	"github.com/go-gotop/subscribe/store"
)

func gz(t *testing.T, s string) []byte {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecode(t *testing.T) {
	p := NewFutures()
	out, err := p.Decode(gz(t, `{"ping":1623866484812}`))
	require.NoError(t, err)
	assert.Equal(t, `{"ping":1623866484812}`, string(out))

	_, err = p.Decode([]byte("plain"))
	assert.ErrorIs(t, err, ErrGunzip)
}

func TestSign(t *testing.T) {
	params := url.Values{}
	params.Set("Timestamp", "2021-06-09T08:00:00")
	params.Set("SignatureVersion", "2")
	params.Set("SignatureMethod", "HmacSHA256")
	params.Set("AccessKeyId", "key")

	sign, err := Sign("secret", NotificationURL, params)
	require.NoError(t, err)
	assert.Equal(t, "nTXUjVBAAFS+dRi2ihsCczhAM8Cyalj+YPLmxWZLu44=", sign)
}

func TestLogin(t *testing.T) {
	now := time.Date(2021, 6, 9, 16, 0, 0, 0, time.FixedZone("CST", 8*3600))
	p := NewPrivate(WithNow(func() time.Time { return now }))
	payload, err := p.Login(context.Background(), store.AccountCredentials{AccessKey: "key", SecretKey: "secret"})
	require.NoError(t, err)

	j, err := simplejson.NewJson(payload)
	require.NoError(t, err)
	assert.Equal(t, "auth", j.Get("op").MustString())
	assert.Equal(t, "api", j.Get("type").MustString())
	assert.Equal(t, "key", j.Get("AccessKeyId").MustString())
	assert.Equal(t, "HmacSHA256", j.Get("SignatureMethod").MustString())
	assert.Equal(t, "2", j.Get("SignatureVersion").MustString())
	assert.Equal(t, "2021-06-09T08:00:00", j.Get("Timestamp").MustString())
	assert.Equal(t, "nTXUjVBAAFS+dRi2ihsCczhAM8Cyalj+YPLmxWZLu44=", j.Get("Signature").MustString())

	_, err = NewSpot().Login(context.Background(), store.AccountCredentials{})
	assert.ErrorIs(t, err, ErrPublicChannel)
}

func TestClassifyHeartbeat(t *testing.T) {
	p := NewFutures()
	f := p.Classify([]byte(`{"ping":1623866484812}`))
	assert.Equal(t, connector.FramePing, f.Kind)
	assert.JSONEq(t, `{"pong":1623866484812}`, string(f.Reply))

	f = NewPrivate().Classify([]byte(`{"op":"ping","ts":"1623862208024"}`))
	assert.Equal(t, connector.FramePing, f.Kind)
	assert.JSONEq(t, `{"op":"pong","ts":"1623862208024"}`, string(f.Reply))
}

func TestClassify(t *testing.T) {
	p := NewPrivate()
	cases := []struct {
		msg  string
		kind connector.FrameKind
	}{
		{`{"op":"auth","type":"api","err-code":0,"ts":1623860122090,"data":{"user-id":"13733006"}}`, connector.FrameLoginOK},
		{`{"op":"auth","type":"api","err-code":2002,"err-msg":"invalid.auth.state"}`, connector.FrameError},
		{`{"op":"sub","cid":"x","topic":"positions.btc","err-code":0}`, connector.FrameIgnore},
		{`{"op":"sub","cid":"x","topic":"positions.btc","err-code":4001,"err-msg":"invalid topic"}`, connector.FrameError},
		{`{"op":"notify","topic":"positions.btc","data":[]}`, connector.FrameData},
		{`{"ch":"market.BTC210625.detail","ts":1,"tick":{"close":1}}`, connector.FrameData},
		{`{"id":"","subbed":"market.btcusdt.detail","status":"ok"}`, connector.FrameIgnore},
		{`{"status":"error","err-code":"bad-request","err-msg":"invalid topic"}`, connector.FrameError},
		{`not json`, connector.FrameIgnore},
	}
	for _, c := range cases {
		f := p.Classify([]byte(c.msg))
		assert.Equal(t, c.kind, f.Kind, c.msg)
		if c.kind == connector.FrameError {
			assert.ErrorIs(t, f.Err, ErrExchange)
		}
	}
}

func TestHeartbeat(t *testing.T) {
	token, interval := NewFutures().Heartbeat()
	assert.Nil(t, token)
	assert.Zero(t, interval)
}

func TestRequests(t *testing.T) {
	d := expiry.Dates{ThisWeek: "210611", Quarter: "210625"}

	fut := FuturesRequests([]string{"btc"}, d)
	require.Len(t, fut, 2)
	assert.Equal(t, "market.BTC210611.detail", fut[0].Key)
	assert.JSONEq(t, `{"sub":"market.BTC210625.detail","id":""}`, string(fut[1].Payload))

	spot := SpotRequests([]string{"BTC"}, d)
	require.Len(t, spot, 1)
	assert.JSONEq(t, `{"sub":"market.btcusdt.detail","id":""}`, string(spot[0].Payload))

	priv := PrivateRequests([]string{"usd", "BTC"}, d)
	require.Len(t, priv, 2)
	assert.Equal(t, "positions.btc", priv[0].Key)
	assert.Equal(t, "accounts.btc", priv[1].Key)

	// cid 不同但 Key 相同，不会被视为变化
	again := PrivateRequests([]string{"BTC"}, d)
	assert.NotEqual(t, string(priv[0].Payload), string(again[0].Payload))
	added, removed := connector.Diff(priv, again)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}

func TestUnsubscribe(t *testing.T) {
	market := SpotRequests([]string{"BTC"}, expiry.Dates{})[0]
	un := NewSpot().Unsubscribe(market)
	assert.JSONEq(t, `{"unsub":"market.btcusdt.detail","id":""}`, string(un.Payload))

	private := PrivateRequests([]string{"BTC"}, expiry.Dates{})[0]
	un = NewPrivate().Unsubscribe(private)
	j, err := simplejson.NewJson(un.Payload)
	require.NoError(t, err)
	assert.Equal(t, "unsub", j.Get("op").MustString())
	assert.Equal(t, "positions.btc", j.Get("topic").MustString())
	assert.NotEmpty(t, j.Get("cid").MustString())
	assert.Equal(t, private.Key, un.Key)
}
