// Package publisher 把标准消息按端口发布出去。每个端口第一次发布时才创建发送端，之后复用。
package publisher

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/subscribe/feed"
)

var ErrClosed = errors.New("publisher closed")

// Endpoint 一个端口对应的发送端，尽力投递，不确认不重试
type Endpoint interface {
	Send(data []byte) error
	Close() error
}

// Binder 为端口创建发送端
type Binder interface {
	Bind(port int) (Endpoint, error)
}

type Option func(*options)

type options struct {
	logger *log.Helper
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.NewHelper(log.With(logger, "module", "publisher"))
	}
}

func New(binder Binder, opts ...Option) *Publisher {
	o := &options{
		logger: log.NewHelper(log.DefaultLogger),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Publisher{
		opts:      o,
		binder:    binder,
		endpoints: make(map[int]Endpoint),
	}
}

type Publisher struct {
	opts      *options
	binder    Binder
	mux       sync.Mutex
	endpoints map[int]Endpoint
	closed    bool
}

// Publish 序列化并发送，绑定失败时下次调用重试绑定
func (p *Publisher) Publish(port int, msg feed.Message) error {
	data, err := feed.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Kind(), err)
	}
	ep, err := p.endpoint(port)
	if err != nil {
		return err
	}
	return ep.Send(data)
}

func (p *Publisher) endpoint(port int) (Endpoint, error) {
	p.mux.Lock()
	defer p.mux.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if ep, ok := p.endpoints[port]; ok {
		return ep, nil
	}
	ep, err := p.binder.Bind(port)
	if err != nil {
		return nil, fmt.Errorf("bind port %d: %w", port, err)
	}
	p.endpoints[port] = ep
	p.opts.logger.Infof("publisher bind port %d", port)
	return ep, nil
}

// Ports 已绑定的端口数
func (p *Publisher) Ports() int {
	p.mux.Lock()
	defer p.mux.Unlock()
	return len(p.endpoints)
}

func (p *Publisher) Close() error {
	p.mux.Lock()
	defer p.mux.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for port, ep := range p.endpoints {
		if err := ep.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close port %d: %w", port, err))
		}
	}
	p.endpoints = nil
	return errors.Join(errs...)
}
