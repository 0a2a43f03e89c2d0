// Package okxv3 OKX v3 websocket 协议，所有推送都经过 raw deflate 压缩。
package okxv3

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/klauspost/compress/flate"

	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/feed"
	"github.com/go-gotop/subscribe/store"
)

const (
	URL = "wss://real.okex.com:8443/ws/v3"

	verifyPath        = "/users/self/verify"
	heartbeatInterval = 25 * time.Second
)

var (
	ErrExchange      = errors.New("okx v3 error")
	ErrPublicChannel = errors.New("public channel does not login")
	ErrInflate       = errors.New("inflate frame")
)

var pingToken = []byte("ping")

type Option func(*options)

type options struct {
	endpoint string
	clock    *ServerClock
}

func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

// WithClock 设置登录时间戳的来源
func WithClock(clock *ServerClock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

type Protocol struct {
	private  bool
	endpoint string
	clock    *ServerClock
}

var _ connector.Protocol = (*Protocol)(nil)

func newProtocol(private bool, opts []Option) *Protocol {
	o := &options{endpoint: URL}
	for _, opt := range opts {
		opt(o)
	}
	if o.clock == nil {
		o.clock = NewServerClock(nil, nil)
	}
	return &Protocol{private: private, endpoint: o.endpoint, clock: o.clock}
}

func NewPublic(opts ...Option) *Protocol {
	return newProtocol(false, opts)
}

func NewPrivate(opts ...Option) *Protocol {
	return newProtocol(true, opts)
}

func (p *Protocol) Name() string {
	if p.private {
		return "okx-v3-private"
	}
	return "okx-v3-public"
}

func (p *Protocol) Endpoint() string {
	return p.endpoint
}

func (p *Protocol) Decode(frame []byte) ([]byte, error) {
	reader := flate.NewReader(bytes.NewReader(frame))
	defer reader.Close()
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInflate, err)
	}
	return out, nil
}

// Sign 与 v5 相同的签名串，时间戳带小数
func Sign(secretKey, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(timestamp + "GET" + verifyPath))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

type request struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

func (p *Protocol) Login(ctx context.Context, cred store.AccountCredentials) ([]byte, error) {
	if !p.private {
		return nil, ErrPublicChannel
	}
	ts := Timestamp(p.clock.Now(ctx))
	return feed.Json.Marshal(request{
		Op:   "login",
		Args: []string{cred.AccessKey, cred.Passphrase, ts, Sign(cred.SecretKey, ts)},
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
	switch j.Get("event").MustString() {
	case "login":
		if j.Get("success").MustBool() {
			return connector.Frame{Kind: connector.FrameLoginOK}
		}
		return errorFrame(j)
	case "error":
		return errorFrame(j)
	case "":
		if _, ok := j.CheckGet("table"); ok {
			return connector.Frame{Kind: connector.FrameData}
		}
	}
	return connector.Frame{Kind: connector.FrameIgnore}
}

func errorFrame(j *simplejson.Json) connector.Frame {
	return connector.Frame{
		Kind: connector.FrameError,
		Err:  fmt.Errorf("%w: code=%d msg=%s", ErrExchange, j.Get("errorCode").MustInt64(), j.Get("message").MustString()),
	}
}

func (p *Protocol) Heartbeat() ([]byte, time.Duration) {
	return pingToken, heartbeatInterval
}

func (p *Protocol) Unsubscribe(req connector.Request) connector.Request {
	var r request
	if err := feed.Json.Unmarshal(req.Payload, &r); err != nil {
		return req
	}
	r.Op = "unsubscribe"
	payload, err := feed.Json.Marshal(r)
	if err != nil {
		return req
	}
	return connector.Request{Key: req.Key, Payload: payload}
}
