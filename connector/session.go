package connector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	gwebsocket "github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/go-gotop/subscribe/store"
	"github.com/go-gotop/subscribe/websocket"
	"github.com/go-gotop/subscribe/websocket/gorilla"
)

var (
	ErrTransport        = errors.New("transport failure")
	ErrAuthTimeout      = errors.New("authentication timeout")
	ErrAuthRejected     = errors.New("authentication rejected")
	ErrSessionClosed    = errors.New("session closed by remote")
	ErrHeartbeatTimeout = errors.New("heartbeat timeout")
	ErrSessionPanic     = errors.New("session panic")
)

const tracerName = "github.com/go-gotop/subscribe/connector"

type State int32

const (
	Disconnected State = iota
	Connecting
	Authenticating
	Authenticated
	Active
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Authenticating:
		return "AUTHENTICATING"
	case Authenticated:
		return "AUTHENTICATED"
	case Active:
		return "ACTIVE"
	}
	return "UNKNOWN"
}

// Handler 处理业务数据帧，在读协程中调用
type Handler func(raw []byte, accountID string)

// Session 维护一条逻辑订阅，断线后自动重连并重发全部订阅
type Session struct {
	id      string
	proto   Protocol
	cred    *store.AccountCredentials // 公有频道为 nil
	subs    *Subscriptions
	handler Handler
	opts    *options
	state   atomic.Int32
	dials   atomic.Int64
}

func NewSession(id string, proto Protocol, cred *store.AccountCredentials, handler Handler, opts ...Option) *Session {
	o := applyOptions(opts)
	return &Session{
		id:      id,
		proto:   proto,
		cred:    cred,
		subs:    NewSubscriptions(proto.Unsubscribe),
		handler: handler,
		opts:    o,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Dials 累计建连次数
func (s *Session) Dials() int64 {
	return s.dials.Load()
}

func (s *Session) accountID() string {
	if s.cred == nil {
		return ""
	}
	return s.cred.AccountID
}

// Update 更新期望的订阅集合，增量部分由发送循环发出
func (s *Session) Update(desired []Request) (added, removed []Request) {
	return s.subs.Update(desired)
}

func (s *Session) Active() []Request {
	return s.subs.Active()
}

// Run 持续运行直到 ctx 结束
func (s *Session) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.backoffInitial
	b.MaxInterval = s.opts.backoffMax
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		active, err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if active {
			// 曾经正常订阅过，重新计算退避
			b.Reset()
		}
		wait := b.NextBackOff()
		s.opts.logger.Warnf("session %s disconnected: %v, reconnect in %s", s.id, err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// runRecover panic 转为 ErrSessionPanic 返回，由所在任务退出后整体重启
func runRecover(ctx context.Context, run func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSessionPanic, r)
		}
	}()
	return run(ctx)
}

// conn 单次连接的状态，断开即丢弃
type conn struct {
	ws       websocket.Websocket
	authed   chan struct{}
	authOnce sync.Once
	errs     chan error
	lastRecv atomic.Int64
}

func (c *conn) fail(err error) {
	select {
	case c.errs <- err:
	default:
	}
}

func (s *Session) runOnce(ctx context.Context) (bool, error) {
	defer s.setState(Disconnected)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if s.opts.connLimiter != nil {
		if err := s.opts.connLimiter.WsWait(ctx); err != nil {
			return false, err
		}
	}

	s.setState(Connecting)
	s.dials.Add(1)

	hctx, span := otel.Tracer(tracerName).Start(ctx, "connector.handshake",
		trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("protocol", s.proto.Name()),
		attribute.String("session", s.id),
	)

	c := &conn{
		ws:     gorilla.NewGorillaWebsocket(s.opts.newConn(), nil),
		authed: make(chan struct{}),
		errs:   make(chan error, 1),
	}
	c.lastRecv.Store(s.opts.now().UnixNano())
	err := c.ws.Connect(hctx, &websocket.WebsocketRequest{
		Endpoint:       s.proto.Endpoint(),
		ID:             s.id,
		MessageHandler: s.messageHandler(c),
		ErrorHandler: func(id string, err error) {
			c.fail(fmt.Errorf("%w: %v", ErrTransport, err))
		},
	})
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrTransport, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return false, err
	}
	defer c.ws.Disconnect()

	if s.cred != nil {
		s.setState(Authenticating)
		if err := s.authenticate(hctx, c); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return false, err
		}
	}
	s.setState(Authenticated)
	span.End()

	s.subs.Reset()
	s.setState(Active)
	s.opts.logger.Infof("session %s active", s.id)
	return true, s.serve(ctx, c)
}

func (s *Session) authenticate(ctx context.Context, c *conn) error {
	payload, err := s.proto.Login(ctx, *s.cred)
	if err != nil {
		return fmt.Errorf("build login: %w", err)
	}
	if err := c.ws.WriteMessage(gwebsocket.TextMessage, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	timer := time.NewTimer(s.opts.authTimeout)
	defer timer.Stop()
	select {
	case <-c.authed:
		return nil
	case err := <-c.errs:
		return err
	case <-c.ws.Done():
		return ErrSessionClosed
	case <-timer.C:
		return ErrAuthTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) messageHandler(c *conn) func([]byte) {
	return func(frame []byte) {
		defer func() {
			if r := recover(); r != nil {
				s.opts.logger.Errorf("session %s handle message panic: %v", s.id, r)
			}
		}()
		c.lastRecv.Store(s.opts.now().UnixNano())

		msg, err := s.proto.Decode(frame)
		if err != nil {
			s.opts.logger.Debugf("session %s decode frame: %v", s.id, err)
			return
		}
		f := s.proto.Classify(msg)
		switch f.Kind {
		case FrameIgnore:
		case FramePing:
			if err := c.ws.WriteMessage(gwebsocket.TextMessage, f.Reply); err != nil {
				c.fail(fmt.Errorf("%w: %v", ErrTransport, err))
			}
		case FrameLoginOK:
			c.authOnce.Do(func() {
				close(c.authed)
			})
		case FrameError:
			if s.State() == Authenticating {
				c.fail(fmt.Errorf("%w: %v", ErrAuthRejected, f.Err))
				return
			}
			s.opts.logger.Warnf("session %s exchange error: %v", s.id, f.Err)
		case FrameData:
			if s.handler != nil {
				s.handler(msg, s.accountID())
			}
		}
	}
}

func (s *Session) serve(ctx context.Context, c *conn) error {
	pacer := rate.NewLimiter(rate.Every(s.opts.sendInterval), 1)

	var heartbeat <-chan time.Time
	token, interval := s.proto.Heartbeat()
	if interval > 0 {
		t := time.NewTicker(interval)
		defer t.Stop()
		heartbeat = t.C
	}

	var idle <-chan time.Time
	if s.opts.idleTimeout > 0 {
		t := time.NewTicker(s.opts.idleTimeout / 3)
		defer t.Stop()
		idle = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.errs:
			return err
		case <-c.ws.Done():
			return ErrSessionClosed
		case <-heartbeat:
			if err := c.ws.WriteMessage(gwebsocket.TextMessage, token); err != nil {
				return fmt.Errorf("%w: %v", ErrTransport, err)
			}
		case <-idle:
			last := time.Unix(0, c.lastRecv.Load())
			if s.opts.now().Sub(last) > s.opts.idleTimeout {
				return ErrHeartbeatTimeout
			}
		case <-s.subs.Notify():
			if err := s.flush(ctx, c, pacer); err != nil {
				return err
			}
		}
	}
}

// flush 按入队顺序发送，相邻两条间隔 sendInterval
func (s *Session) flush(ctx context.Context, c *conn, pacer *rate.Limiter) error {
	for _, req := range s.subs.Drain() {
		if err := pacer.Wait(ctx); err != nil {
			return err
		}
		if err := c.ws.WriteMessage(gwebsocket.TextMessage, req.Payload); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		s.opts.logger.Debugf("session %s sent %s", s.id, req.Key)
	}
	return nil
}
