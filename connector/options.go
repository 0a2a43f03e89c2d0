package connector

import (
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/subscribe/limiter"
	"github.com/go-gotop/subscribe/store"
	"github.com/go-gotop/subscribe/websocket"
	"github.com/go-gotop/subscribe/websocket/gorilla"
)

type Option func(*options)

type options struct {
	logger         *log.Helper
	authTimeout    time.Duration   // 登录确认超时
	sendInterval   time.Duration   // 订阅报文发送间隔
	idleTimeout    time.Duration   // 超过该时间没有收到任何帧则重连，0 表示不检查
	pollInterval   time.Duration   // 币种 / 账户轮询周期
	backoffInitial time.Duration   // 重连退避
	backoffMax     time.Duration
	maxConn        int             // 私有频道最大账户会话数
	connLimiter    limiter.Limiter // 建连限流器
	newConn        func() websocket.WebSocketConn
	newSession     func(name string, proto Protocol, cred store.AccountCredentials, handler Handler, opts []Option) AccountSession
	now            func() time.Time
}

func defaultOptions() *options {
	return &options{
		logger:         log.NewHelper(log.DefaultLogger),
		authTimeout:    60 * time.Second,
		sendInterval:   50 * time.Millisecond,
		idleTimeout:    90 * time.Second,
		pollInterval:   60 * time.Second,
		backoffInitial: time.Second,
		backoffMax:     30 * time.Second,
		maxConn:        100,
		newConn: func() websocket.WebSocketConn {
			return gorilla.NewGorillaWebSocketConn()
		},
		newSession: func(name string, proto Protocol, cred store.AccountCredentials, handler Handler, opts []Option) AccountSession {
			return NewSession(name+":"+cred.AccountID, proto, &cred, handler, opts...)
		},
		now: time.Now,
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.NewHelper(log.With(logger, "module", "connector"))
	}
}

func WithAuthTimeout(d time.Duration) Option {
	return func(o *options) {
		o.authTimeout = d
	}
}

func WithSendInterval(d time.Duration) Option {
	return func(o *options) {
		o.sendInterval = d
	}
}

func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = d
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

func WithBackoff(initial, max time.Duration) Option {
	return func(o *options) {
		o.backoffInitial = initial
		o.backoffMax = max
	}
}

func WithMaxConn(maxConn int) Option {
	return func(o *options) {
		o.maxConn = maxConn
	}
}

func WithConnLimiter(connLimiter limiter.Limiter) Option {
	return func(o *options) {
		o.connLimiter = connLimiter
	}
}

// WithConnFactory 替换底层连接，测试时注入 mock
func WithConnFactory(fn func() websocket.WebSocketConn) Option {
	return func(o *options) {
		o.newConn = fn
	}
}

// WithSessionFactory 替换账户会话的创建方式
func WithSessionFactory(fn func(name string, proto Protocol, cred store.AccountCredentials, handler Handler, opts []Option) AccountSession) Option {
	return func(o *options) {
		o.newSession = fn
	}
}

func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}
