// Package okxv5 OKX v5 websocket 协议：tickers 公有频道，positions / account 私有频道。
package okxv5

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bitly/go-simplejson"

	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/feed"
	"github.com/go-gotop/subscribe/store"
)

const (
	PublicURL    = "wss://ws.okx.com:8443/ws/v5/public"
	PrivateURL   = "wss://ws.okx.com:8443/ws/v5/private"
	SimulatedArg = "?brokerId=9999"

	verifyPath        = "/users/self/verify"
	heartbeatInterval = 25 * time.Second
)

var (
	ErrExchange      = errors.New("okx v5 error")
	ErrPublicChannel = errors.New("public channel does not login")
)

var pingToken = []byte("ping")

type Option func(*options)

type options struct {
	endpoint  string
	simulated bool
	now       func() time.Time
}

// WithEndpoint 覆盖默认地址
func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithSimulated 使用模拟盘地址
func WithSimulated(simulated bool) Option {
	return func(o *options) {
		o.simulated = simulated
	}
}

func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

type Protocol struct {
	private  bool
	endpoint string
	now      func() time.Time
}

var _ connector.Protocol = (*Protocol)(nil)

func newProtocol(private bool, defaultURL string, opts []Option) *Protocol {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	endpoint := o.endpoint
	if endpoint == "" {
		endpoint = defaultURL
		if o.simulated {
			endpoint += SimulatedArg
		}
	}
	return &Protocol{private: private, endpoint: endpoint, now: o.now}
}

func NewPublic(opts ...Option) *Protocol {
	return newProtocol(false, PublicURL, opts)
}

func NewPrivate(opts ...Option) *Protocol {
	return newProtocol(true, PrivateURL, opts)
}

func (p *Protocol) Name() string {
	if p.private {
		return "okx-v5-private"
	}
	return "okx-v5-public"
}

func (p *Protocol) Endpoint() string {
	return p.endpoint
}

// Decode v5 推送为明文
func (p *Protocol) Decode(frame []byte) ([]byte, error) {
	return frame, nil
}

// Sign base64(HmacSHA256(secret, timestamp + "GET" + "/users/self/verify"))
func Sign(secretKey, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(timestamp + "GET" + verifyPath))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type loginArg struct {
	APIKey     string `json:"apiKey"`
	Passphrase string `json:"passphrase"`
	Timestamp  string `json:"timestamp"`
	Sign       string `json:"sign"`
}

type loginRequest struct {
	Op   string     `json:"op"`
	Args []loginArg `json:"args"`
}

func (p *Protocol) Login(_ context.Context, cred store.AccountCredentials) ([]byte, error) {
	if !p.private {
		return nil, ErrPublicChannel
	}
	ts := strconv.FormatInt(p.now().Unix(), 10)
	return feed.Json.Marshal(loginRequest{
		Op: "login",
		Args: []loginArg{{
			APIKey:     cred.AccessKey,
			Passphrase: cred.Passphrase,
			Timestamp:  ts,
			Sign:       Sign(cred.SecretKey, ts),
		}},
	})
}

func (p *Protocol) Classify(msg []byte) connector.Frame {
	if string(msg) == "pong" {
		return connector.Frame{Kind: connector.FrameIgnore}
	}
	j, err := simplejson.NewJson(msg)
	if err != nil {
		return connector.Frame{Kind: connector.FrameIgnore}
	}
	switch event := j.Get("event").MustString(); event {
	case "login":
		if code(j) == "0" {
			return connector.Frame{Kind: connector.FrameLoginOK}
		}
		return errorFrame(j)
	case "error":
		return errorFrame(j)
	case "":
	default:
		// subscribe / unsubscribe 回执
		return connector.Frame{Kind: connector.FrameIgnore}
	}
	if _, ok := j.CheckGet("data"); ok {
		return connector.Frame{Kind: connector.FrameData}
	}
	return connector.Frame{Kind: connector.FrameIgnore}
}

// code 可能是字符串也可能是数字
func code(j *simplejson.Json) string {
	c := j.Get("code")
	if s, err := c.String(); err == nil {
		return s
	}
	if n, err := c.Int64(); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

func errorFrame(j *simplejson.Json) connector.Frame {
	return connector.Frame{
		Kind: connector.FrameError,
		Err:  fmt.Errorf("%w: code=%s msg=%s", ErrExchange, code(j), j.Get("msg").MustString()),
	}
}

func (p *Protocol) Heartbeat() ([]byte, time.Duration) {
	return pingToken, heartbeatInterval
}

// Unsubscribe 同样的 args，op 改为 unsubscribe
func (p *Protocol) Unsubscribe(req connector.Request) connector.Request {
	return connector.Request{Key: req.Key, Payload: replaceOp(req.Payload, "unsubscribe")}
}

func replaceOp(payload []byte, op string) []byte {
	var r request
	if err := feed.Json.Unmarshal(payload, &r); err != nil {
		return payload
	}
	r.Op = op
	out, err := feed.Json.Marshal(r)
	if err != nil {
		return payload
	}
	return out
}
