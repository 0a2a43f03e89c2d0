// Package normalize 把各交易所的原始推送转换成 feed 中的标准消息。
//
// 字段缺失时数值按 0、字符串按空串处理；只转发全仓数据。
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bitly/go-simplejson"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/shopspring/decimal"

	"github.com/go-gotop/subscribe/expiry"
	"github.com/go-gotop/subscribe/feed"
)

var ErrMalformedMessage = errors.New("malformed message")

const dataTypeTrade = "trade"

// Func 原始消息 -> 标准消息
type Func func(raw []byte, accountID string) ([]feed.Message, error)

// Clock 单调不减的毫秒时钟，用于 recv_time
type Clock struct {
	last atomic.Int64
	now  func() time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Now() int64 {
	t := c.now().UnixMilli()
	for {
		last := c.last.Load()
		if t <= last {
			return last
		}
		if c.last.CompareAndSwap(last, t) {
			return t
		}
	}
}

type Option func(*Normalizer)

// WithNow 设置时间源，影响 recv_time 与火币合约日期的换算
func WithNow(now func() time.Time) Option {
	return func(n *Normalizer) {
		n.now = now
	}
}

func WithLogger(logger log.Logger) Option {
	return func(n *Normalizer) {
		n.logger = log.NewHelper(log.With(logger, "module", "normalize"))
	}
}

type Normalizer struct {
	now    func() time.Time
	clock  *Clock
	logger *log.Helper
}

func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		now:    time.Now,
		logger: log.NewHelper(log.With(log.DefaultLogger, "module", "normalize")),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.clock = NewClock(n.now)
	return n
}

func (n *Normalizer) stamp(msgs []feed.Message) []feed.Message {
	for _, m := range msgs {
		m.Stamp(n.clock.Now())
	}
	return msgs
}

func parse(raw []byte) (*simplejson.Json, error) {
	j, err := simplejson.NewJson(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return j, nil
}

// Direction long/buy -> 1，short/sell -> -1，其它不转发
func Direction(side string) (int, bool) {
	switch strings.ToLower(side) {
	case "long", "buy":
		return feed.DirectionLong, true
	case "short", "sell":
		return feed.DirectionShort, true
	}
	return 0, false
}

// Millis 把 ISO-8601 时间转换成毫秒时间戳，数值型时间戳原样返回
func Millis(j *simplejson.Json) int64 {
	switch v := j.Interface().(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return int64(f)
		}
	case float64:
		return int64(v)
	case int64:
		return v
	case string:
		return parseMillis(v)
	}
	return 0
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseMillis(s string) int64 {
	if s == "" {
		return 0
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func num(j *simplejson.Json) decimal.Decimal {
	switch v := j.Interface().(type) {
	case json.Number:
		if d, err := decimal.NewFromString(v.String()); err == nil {
			return d
		}
	case string:
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	}
	return decimal.Zero
}

func text(j *simplejson.Json) string {
	switch v := j.Interface().(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

// each 遍历数组字段
func each(j *simplejson.Json, fn func(item *simplejson.Json)) {
	arr, err := j.Array()
	if err != nil {
		return
	}
	for i := range arr {
		fn(j.GetIndex(i))
	}
}

func (n *Normalizer) dates() expiry.Dates {
	return expiry.At(n.now())
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
