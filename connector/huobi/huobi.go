// Package huobi 火币 websocket 协议：合约/现货行情与合约订单推送（positions / accounts）。
//
// 推送均为 gzip 压缩，心跳由服务端发起。
package huobi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/klauspost/compress/gzip"

	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/feed"
	"github.com/go-gotop/subscribe/store"
)

const (
	FuturesURL      = "wss://api.hbdm.com/ws"
	SpotURL         = "wss://api-aws.huobi.pro/ws"
	NotificationURL = "wss://api.hbdm.com/notification"

	timestampLayout = "2006-01-02T15:04:05"
)

var (
	ErrExchange      = errors.New("huobi error")
	ErrPublicChannel = errors.New("public channel does not login")
	ErrGunzip        = errors.New("gunzip frame")
)

type Option func(*options)

type options struct {
	endpoint string
	now      func() time.Time
}

func WithEndpoint(endpoint string) Option {
	return func(o *options) {
		o.endpoint = endpoint
	}
}

func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

type Protocol struct {
	name     string
	private  bool
	endpoint string
	now      func() time.Time
}

var _ connector.Protocol = (*Protocol)(nil)

func newProtocol(name string, private bool, defaultURL string, opts []Option) *Protocol {
	o := &options{endpoint: defaultURL, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &Protocol{name: name, private: private, endpoint: o.endpoint, now: o.now}
}

// NewFutures 合约行情
func NewFutures(opts ...Option) *Protocol {
	return newProtocol("huobi-futures", false, FuturesURL, opts)
}

// NewSpot 现货行情
func NewSpot(opts ...Option) *Protocol {
	return newProtocol("huobi-spot", false, SpotURL, opts)
}

// NewPrivate 合约订单推送
func NewPrivate(opts ...Option) *Protocol {
	return newProtocol("huobi-private", true, NotificationURL, opts)
}

func (p *Protocol) Name() string {
	return p.name
}

func (p *Protocol) Endpoint() string {
	return p.endpoint
}

func (p *Protocol) Decode(frame []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGunzip, err)
	}
	defer reader.Close()
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGunzip, err)
	}
	return out, nil
}

// Sign base64(HmacSHA256(secret, "GET\nhost\npath\n" + 按 key 排序的 urlencode 参数))
func Sign(secretKey, endpoint string, params url.Values) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	payload := strings.Join([]string{
		"GET",
		strings.ToLower(u.Hostname()),
		strings.ToLower(u.Path),
		params.Encode(),
	}, "\n")
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

type authRequest struct {
	Op               string `json:"op"`
	Type             string `json:"type"`
	AccessKeyID      string `json:"AccessKeyId"`
	SignatureMethod  string `json:"SignatureMethod"`
	SignatureVersion string `json:"SignatureVersion"`
	Timestamp        string `json:"Timestamp"`
	Signature        string `json:"Signature"`
}

func (p *Protocol) Login(_ context.Context, cred store.AccountCredentials) ([]byte, error) {
	if !p.private {
		return nil, ErrPublicChannel
	}
	req := authRequest{
		Op:               "auth",
		Type:             "api",
		AccessKeyID:      cred.AccessKey,
		SignatureMethod:  "HmacSHA256",
		SignatureVersion: "2",
		Timestamp:        p.now().UTC().Format(timestampLayout),
	}
	params := url.Values{}
	params.Set("AccessKeyId", req.AccessKeyID)
	params.Set("SignatureMethod", req.SignatureMethod)
	params.Set("SignatureVersion", req.SignatureVersion)
	params.Set("Timestamp", req.Timestamp)

	sign, err := Sign(cred.SecretKey, p.endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	req.Signature = sign
	return feed.Json.Marshal(req)
}

func (p *Protocol) Classify(msg []byte) connector.Frame {
	j, err := simplejson.NewJson(msg)
	if err != nil {
		return connector.Frame{Kind: connector.FrameIgnore}
	}

	// 行情心跳 {"ping": 1623866484812}
	if ping, ok := j.CheckGet("ping"); ok {
		reply, _ := feed.Json.Marshal(map[string]interface{}{"pong": ping.Interface()})
		return connector.Frame{Kind: connector.FramePing, Reply: reply}
	}

	switch op := j.Get("op").MustString(); op {
	case "ping":
		// 订单推送心跳 {"op":"ping","ts":"1623862208024"}
		reply, _ := feed.Json.Marshal(struct {
			Op string      `json:"op"`
			Ts interface{} `json:"ts"`
		}{Op: "pong", Ts: j.Get("ts").Interface()})
		return connector.Frame{Kind: connector.FramePing, Reply: reply}
	case "auth":
		if errCode(j) == "0" {
			return connector.Frame{Kind: connector.FrameLoginOK}
		}
		return errorFrame(j)
	case "sub", "unsub":
		if c := errCode(j); c != "0" && c != "" {
			return errorFrame(j)
		}
		return connector.Frame{Kind: connector.FrameIgnore}
	case "notify":
		return connector.Frame{Kind: connector.FrameData}
	case "close", "error":
		return errorFrame(j)
	}

	if j.Get("status").MustString() == "error" {
		return errorFrame(j)
	}
	if _, ok := j.CheckGet("ch"); ok {
		if _, ok := j.CheckGet("tick"); ok {
			return connector.Frame{Kind: connector.FrameData}
		}
	}
	return connector.Frame{Kind: connector.FrameIgnore}
}

// errCode err-code 在订单推送里是数字，在行情里是字符串
func errCode(j *simplejson.Json) string {
	c, ok := j.CheckGet("err-code")
	if !ok {
		return ""
	}
	if s, err := c.String(); err == nil {
		return s
	}
	if n, err := c.Int64(); err == nil {
		return fmt.Sprintf("%d", n)
	}
	return ""
}

func errorFrame(j *simplejson.Json) connector.Frame {
	return connector.Frame{
		Kind: connector.FrameError,
		Err:  fmt.Errorf("%w: code=%s msg=%s", ErrExchange, errCode(j), j.Get("err-msg").MustString()),
	}
}

// Heartbeat 火币由服务端发 ping
func (p *Protocol) Heartbeat() ([]byte, time.Duration) {
	return nil, 0
}
