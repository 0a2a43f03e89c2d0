package supervisor

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/subscribe/alert"
	"github.com/go-gotop/subscribe/store"
)

type Option func(*options)

type options struct {
	logger      *log.Helper
	environment string
	cooldown    time.Duration
	alert       alert.Sender
	params      store.ParamStore
	after       func(time.Duration) <-chan time.Time
}

func defaultOptions() *options {
	return &options{
		logger:   log.NewHelper(log.DefaultLogger),
		cooldown: 60 * time.Second,
		alert:    alert.NewLogSender(log.DefaultLogger),
		after:    time.After,
	}
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.NewHelper(log.With(logger, "module", "supervisor"))
	}
}

// WithEnvironment 告警邮件中的环境名称
func WithEnvironment(env string) Option {
	return func(o *options) {
		o.environment = env
	}
}

// WithCooldown 再次中断时的重启间隔
func WithCooldown(d time.Duration) Option {
	return func(o *options) {
		o.cooldown = d
	}
}

func WithAlert(sender alert.Sender) Option {
	return func(o *options) {
		o.alert = sender
	}
}

// WithParamStore 运维邮箱来源
func WithParamStore(params store.ParamStore) Option {
	return func(o *options) {
		o.params = params
	}
}

func withAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(o *options) {
		o.after = after
	}
}
