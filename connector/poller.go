package connector

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gotop/subscribe/expiry"
	"github.com/go-gotop/subscribe/store"
)

// AccountPoller 私有频道：定期对账，每个账户一个独立会话
type AccountPoller struct {
	name       string
	exchange   string
	mode       string
	proto      Protocol
	creds      store.CredentialStore
	currencies store.CurrencyStore
	build      RequestBuilder
	handler    Handler
	registry   *Registry
	desired    []Request // 最近一次成功计算的订阅集合
	sessOpts   []Option
	opts       *options
}

func NewAccountPoller(name string, proto Protocol, exchange, mode string, creds store.CredentialStore, currencies store.CurrencyStore, build RequestBuilder, handler Handler, opts ...Option) *AccountPoller {
	return &AccountPoller{
		name:       name,
		exchange:   exchange,
		mode:       mode,
		proto:      proto,
		creds:      creds,
		currencies: currencies,
		build:      build,
		handler:    handler,
		registry:   NewRegistry(opts...),
		sessOpts:   opts,
		opts:       applyOptions(opts),
	}
}

func (p *AccountPoller) Name() string {
	return p.name
}

func (p *AccountPoller) Registry() *Registry {
	return p.registry
}

// Run 阻塞到 ctx 结束，退出时关闭全部账户会话。
// 任一账户会话 panic 时返回该错误，由 supervisor 重启整个任务。
func (p *AccountPoller) Run(ctx context.Context) error {
	defer p.registry.Shutdown()

	ticker := time.NewTicker(p.opts.pollInterval)
	defer ticker.Stop()
	for {
		if _, _, err := p.Reconcile(ctx); err != nil {
			p.opts.logger.Errorf("poller %s reconcile: %v", p.name, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-p.registry.Faults():
			return err
		case <-ticker.C:
		}
	}
}

// Reconcile 对比账户集合：新增的开会话，删除的关会话，未变的不动。
// 账户查询失败时本轮不做任何改动。
func (p *AccountPoller) Reconcile(ctx context.Context) (opened, closed []string, err error) {
	accounts, err := p.creds.ListAccounts(ctx, p.exchange, p.mode)
	if err != nil {
		return nil, nil, fmt.Errorf("list accounts: %w", err)
	}

	if currencies, err := p.currencies.ListTradableCurrencies(ctx); err != nil {
		p.opts.logger.Errorf("poller %s list currencies: %v", p.name, err)
	} else {
		p.desired = p.build(currencies, expiry.At(p.opts.now()))
	}

	want := make(map[string]store.AccountCredentials, len(accounts))
	for _, a := range accounts {
		want[a.AccountID] = a
	}

	for _, id := range p.registry.IDs() {
		if _, ok := want[id]; ok {
			continue
		}
		if err := p.registry.Close(id); err == nil {
			closed = append(closed, id)
			p.opts.logger.Infof("poller %s close account %s", p.name, id)
		}
	}

	// 已有会话只更新订阅
	p.registry.Each(func(_ string, s AccountSession) {
		s.Update(p.desired)
	})

	for _, a := range accounts {
		if _, ok := p.registry.Get(a.AccountID); ok {
			continue
		}
		s := p.opts.newSession(p.name, p.proto, a, p.handler, p.sessOpts)
		s.Update(p.desired)
		if err := p.registry.Open(ctx, a.AccountID, s); err != nil {
			p.opts.logger.Errorf("poller %s open account %s: %v", p.name, a.AccountID, err)
			continue
		}
		opened = append(opened, a.AccountID)
		p.opts.logger.Infof("poller %s open account %s", p.name, a.AccountID)
	}
	return opened, closed, nil
}
