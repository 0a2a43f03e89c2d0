// Package redispub 通过 redis PUBLISH 发布，端口映射为频道名
package redispub

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/go-gotop/subscribe/publisher"
)

const publishTimeout = 3 * time.Second

type Option func(*options)

type options struct {
	prefix string
}

// WithPrefix 频道名前缀，默认 feed:
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func NewBinder(rdb redis.UniversalClient, opts ...Option) *Binder {
	o := &options{prefix: "feed:"}
	for _, opt := range opts {
		opt(o)
	}
	return &Binder{rdb: rdb, opts: o}
}

type Binder struct {
	rdb  redis.UniversalClient
	opts *options
}

var _ publisher.Binder = (*Binder)(nil)

func (b *Binder) Bind(port int) (publisher.Endpoint, error) {
	return &Endpoint{rdb: b.rdb, channel: Channel(b.opts.prefix, port)}, nil
}

func Channel(prefix string, port int) string {
	return fmt.Sprintf("%s%d", prefix, port)
}

type Endpoint struct {
	rdb     redis.UniversalClient
	channel string
}

func (e *Endpoint) Send(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return e.rdb.Publish(ctx, e.channel, data).Err()
}

// Close redis 客户端由调用方管理
func (e *Endpoint) Close() error {
	return nil
}
