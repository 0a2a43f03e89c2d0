// Package app 把配置、存储、协议和发布端组装成可运行的订阅任务。
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/subscribe/conf"
	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/connector/huobi"
	"github.com/go-gotop/subscribe/connector/okxv3"
	"github.com/go-gotop/subscribe/connector/okxv5"
	"github.com/go-gotop/subscribe/feed"
	"github.com/go-gotop/subscribe/limiter"
	"github.com/go-gotop/subscribe/logger"
	"github.com/go-gotop/subscribe/metrics"
	"github.com/go-gotop/subscribe/normalize"
	"github.com/go-gotop/subscribe/store"
	"github.com/go-gotop/subscribe/supervisor"
)

const (
	TaskSpotHB      = "publicchannel_spot_hb"
	TaskFuturesHB   = "publicchannel_futures_hb"
	TaskPrivateHB   = "privatechannel_hb"
	TaskPrivateOkV3 = "privatechannel_ok_v3"
	TaskPublicOkV3  = "publicchannel_ok_v3"
	TaskPublicOkV5  = "publicchannel_ok_v5"
	TaskPrivateOkV5 = "privatechannel_ok_v5"
)

var ErrUnknownTask = errors.New("unknown task")

// TaskNames 全部可运行的任务
func TaskNames() []string {
	return []string{
		TaskSpotHB,
		TaskFuturesHB,
		TaskPrivateHB,
		TaskPrivateOkV3,
		TaskPublicOkV3,
		TaskPublicOkV5,
		TaskPrivateOkV5,
	}
}

// Runner 一个订阅任务，Run 阻塞到 ctx 结束
type Runner interface {
	Name() string
	Run(ctx context.Context) error
}

// Deps 构建任务需要的外部依赖
type Deps struct {
	Conf        conf.Bootstrap
	Credentials store.CredentialStore
	Currencies  store.CurrencyStore
	Publisher   Publisher
	// Limiter 为 nil 时不限制建连
	Limiter limiter.Limiter
	// TimeSource OKX v3 服务器时间，为 nil 时用本地时间
	TimeSource okxv3.TimeSource
	Logger     log.Logger
	// Metrics 为 nil 时不计数
	Metrics *metrics.Metrics
	// Now 为 nil 时使用 time.Now
	Now func() time.Time
}

func (d Deps) logger() log.Logger {
	if d.Logger == nil {
		return log.DefaultLogger
	}
	return d.Logger
}

func (d Deps) connectorOptions(task string) []connector.Option {
	t := d.Conf.Timing
	opts := []connector.Option{
		connector.WithLogger(logger.WithTask(d.logger(), task)),
		connector.WithAuthTimeout(t.AuthTimeout.Std()),
		connector.WithSendInterval(t.SendInterval.Std()),
		connector.WithIdleTimeout(t.IdleTimeout.Std()),
		connector.WithPollInterval(t.Poll.Std()),
		connector.WithBackoff(t.BackoffInitial.Std(), t.BackoffMax.Std()),
		connector.WithMaxConn(t.MaxAccounts),
	}
	if d.Limiter != nil {
		opts = append(opts, connector.WithConnLimiter(d.Limiter))
	}
	if d.Now != nil {
		opts = append(opts, connector.WithNow(d.Now))
	}
	return opts
}

func (d Deps) normalizer(task string) *normalize.Normalizer {
	opts := []normalize.Option{normalize.WithLogger(logger.WithTask(d.logger(), task))}
	if d.Now != nil {
		opts = append(opts, normalize.WithNow(d.Now))
	}
	return normalize.New(opts...)
}

func (d Deps) handler(task string, norm normalize.Func, ports Ports) connector.Handler {
	return NewHandler(task, norm, ports, d.Publisher, d.Metrics, logger.WithTask(d.logger(), task))
}

func (d Deps) huobiOptions(endpoint string) []huobi.Option {
	var opts []huobi.Option
	if endpoint != "" {
		opts = append(opts, huobi.WithEndpoint(endpoint))
	}
	if d.Now != nil {
		opts = append(opts, huobi.WithNow(d.Now))
	}
	return opts
}

func (d Deps) okxV5Options(endpoint string, simulated bool) []okxv5.Option {
	var opts []okxv5.Option
	if endpoint != "" {
		if simulated {
			endpoint += okxv5.SimulatedArg
		}
		opts = append(opts, okxv5.WithEndpoint(endpoint))
	} else {
		opts = append(opts, okxv5.WithSimulated(simulated))
	}
	if d.Now != nil {
		opts = append(opts, okxv5.WithNow(d.Now))
	}
	return opts
}

func (d Deps) okxV3Options() []okxv3.Option {
	opts := []okxv3.Option{
		okxv3.WithClock(okxv3.NewServerClock(d.TimeSource, d.logger())),
	}
	if d.Conf.Okx.V3URL != "" {
		opts = append(opts, okxv3.WithEndpoint(d.Conf.Okx.V3URL))
	}
	return opts
}

// BuildTask 每次调用都创建新的会话状态，重启后从头订阅
func BuildTask(name string, d Deps) (Runner, error) {
	var (
		p    = d.Conf.Ports
		norm = d.normalizer(name)
		opts = d.connectorOptions(name)
	)
	switch name {
	case TaskSpotHB:
		return connector.NewFeed(name,
			huobi.NewSpot(d.huobiOptions(d.Conf.Huobi.SpotURL)...),
			d.Currencies, huobi.SpotRequests,
			d.handler(name, norm.Huobi, Ports{feed.KindQuotation: p.HuobiSpotQuotation}),
			opts...), nil
	case TaskFuturesHB:
		return connector.NewFeed(name,
			huobi.NewFutures(d.huobiOptions(d.Conf.Huobi.FuturesURL)...),
			d.Currencies, huobi.FuturesRequests,
			d.handler(name, norm.Huobi, Ports{feed.KindQuotation: p.HuobiFuturesQuotation}),
			opts...), nil
	case TaskPrivateHB:
		return connector.NewAccountPoller(name,
			huobi.NewPrivate(d.huobiOptions(d.Conf.Huobi.NotificationURL)...),
			feed.ExchangeHuobi, store.ModeAny,
			d.Credentials, d.Currencies, huobi.PrivateRequests,
			d.handler(name, norm.Huobi, Ports{feed.KindPosition: p.HuobiPosition, feed.KindAsset: p.HuobiAsset}),
			opts...), nil
	case TaskPublicOkV3:
		return connector.NewFeed(name,
			okxv3.NewPublic(d.okxV3Options()...),
			d.Currencies, okxv3.PublicRequests,
			d.handler(name, norm.OkxV3, Ports{feed.KindQuotation: p.OkxV3Quotation}),
			opts...), nil
	case TaskPrivateOkV3:
		return connector.NewAccountPoller(name,
			okxv3.NewPrivate(d.okxV3Options()...),
			feed.ExchangeOkx, store.ModeClassic,
			d.Credentials, d.Currencies, okxv3.PrivateRequests,
			d.handler(name, norm.OkxV3, Ports{feed.KindPosition: p.OkxV3Position, feed.KindAsset: p.OkxV3Asset}),
			opts...), nil
	case TaskPublicOkV5:
		return connector.NewFeed(name,
			okxv5.NewPublic(d.okxV5Options(d.Conf.Okx.V5PublicURL, false)...),
			d.Currencies, okxv5.PublicRequests,
			d.handler(name, norm.OkxV5, Ports{feed.KindQuotation: p.OkxV5Quotation}),
			opts...), nil
	case TaskPrivateOkV5:
		return connector.NewAccountPoller(name,
			okxv5.NewPrivate(d.okxV5Options(d.Conf.Okx.V5PrivateURL, d.Conf.Okx.Simulated)...),
			feed.ExchangeOkx, store.ModeUnified,
			d.Credentials, d.Currencies, okxv5.PrivateRequests,
			d.handler(name, norm.OkxV5, Ports{feed.KindPosition: p.OkxV5Position, feed.KindAsset: p.OkxV5Asset}),
			opts...), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
}

// Tasks 按配置的任务列表生成 supervisor 任务
func Tasks(d Deps) ([]supervisor.Task, error) {
	tasks := make([]supervisor.Task, 0, len(d.Conf.Tasks))
	for _, name := range d.Conf.Tasks {
		if _, err := BuildTask(name, d); err != nil {
			return nil, err
		}
		name := name
		tasks = append(tasks, supervisor.Task{
			Name: name,
			Run: func(ctx context.Context) error {
				r, err := BuildTask(name, d)
				if err != nil {
					return err
				}
				return r.Run(ctx)
			},
		})
	}
	return tasks, nil
}
