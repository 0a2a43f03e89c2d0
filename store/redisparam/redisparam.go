// Package redisparam 从 redis 读取系统参数（SYSTEM_PARAM，JSON 文本）
package redisparam

import (
	"context"
	"fmt"

	"github.com/bitly/go-simplejson"
	"github.com/redis/go-redis/v9"

	"github.com/go-gotop/subscribe/store"
)

const (
	DefaultKey          = "SYSTEM_PARAM"
	maintenanceEmailKey = "maintenance_email"
)

type Option func(*options)

type options struct {
	key string
}

func WithKey(key string) Option {
	return func(o *options) {
		o.key = key
	}
}

func New(rdb redis.UniversalClient, opts ...Option) *ParamStore {
	o := &options{key: DefaultKey}
	for _, opt := range opts {
		opt(o)
	}
	return &ParamStore{rdb: rdb, opts: o}
}

type ParamStore struct {
	rdb  redis.UniversalClient
	opts *options
}

var _ store.ParamStore = (*ParamStore)(nil)

// MaintenanceEmails key 不存在时返回空列表
func (p *ParamStore) MaintenanceEmails(ctx context.Context) ([]string, error) {
	raw, err := p.rdb.Get(ctx, p.opts.key).Bytes()
	if err == redis.Nil {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p.opts.key, err)
	}
	j, err := simplejson.NewJson(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", p.opts.key, err)
	}
	return store.ParseEmails(j.Get(maintenanceEmailKey).MustString()), nil
}
