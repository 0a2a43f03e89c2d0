package connector

import (
	"context"
	"time"

	"github.com/go-gotop/subscribe/expiry"
	"github.com/go-gotop/subscribe/store"
)

// RequestBuilder 由币种列表和合约日期生成期望的订阅集合
type RequestBuilder func(currencies []string, dates expiry.Dates) []Request

// Feed 公有频道：单连接，定期按币种列表做增量订阅
type Feed struct {
	name       string
	session    *Session
	currencies store.CurrencyStore
	build      RequestBuilder
	opts       *options
}

func NewFeed(name string, proto Protocol, currencies store.CurrencyStore, build RequestBuilder, handler Handler, opts ...Option) *Feed {
	return &Feed{
		name:       name,
		session:    NewSession(name, proto, nil, handler, opts...),
		currencies: currencies,
		build:      build,
		opts:       applyOptions(opts),
	}
}

func (f *Feed) Name() string {
	return f.name
}

func (f *Feed) Session() *Session {
	return f.session
}

// Run 阻塞到 ctx 结束，会话 panic 时返回 ErrSessionPanic
func (f *Feed) Run(ctx context.Context) error {
	f.Poll(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runRecover(ctx, f.session.Run)
	}()

	ticker := time.NewTicker(f.opts.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-done
			return ctx.Err()
		case err := <-done:
			// 会话只在 panic 时提前退出
			return err
		case <-ticker.C:
			f.Poll(ctx)
		}
	}
}

// Poll 重新计算期望订阅，返回是否有变化；币种查询失败时保持现有订阅
func (f *Feed) Poll(ctx context.Context) bool {
	currencies, err := f.currencies.ListTradableCurrencies(ctx)
	if err != nil {
		f.opts.logger.Errorf("feed %s list currencies: %v", f.name, err)
		return false
	}
	desired := f.build(currencies, expiry.At(f.opts.now()))
	added, removed := f.session.Update(desired)
	if len(added) == 0 && len(removed) == 0 {
		return false
	}
	f.opts.logger.Infof("feed %s subscriptions changed, added %d removed %d", f.name, len(added), len(removed))
	return true
}
