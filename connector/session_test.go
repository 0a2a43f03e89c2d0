package connector

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/go-gotop/subscribe/store"
	"github.com/go-gotop/subscribe/websocket"
	mock_websocket "github.com/go-gotop/subscribe/websocket/mock"
)

var errConnClosed = errors.New("connection closed")

// testProtocol 文本协议：login-ok / ping / err 为控制帧，其余为数据
type testProtocol struct{}

func (testProtocol) Name() string     { return "test" }
func (testProtocol) Endpoint() string { return "ws://test" }

func (testProtocol) Decode(frame []byte) ([]byte, error) {
	if string(frame) == "garbage" {
		return nil, errors.New("bad frame")
	}
	return frame, nil
}

func (testProtocol) Login(_ context.Context, cred store.AccountCredentials) ([]byte, error) {
	return []byte("login:" + cred.AccountID), nil
}

func (testProtocol) Classify(msg []byte) Frame {
	switch {
	case string(msg) == "login-ok":
		return Frame{Kind: FrameLoginOK}
	case string(msg) == "ping":
		return Frame{Kind: FramePing, Reply: []byte("pong")}
	case strings.HasPrefix(string(msg), "err"):
		return Frame{Kind: FrameError, Err: errors.New(string(msg))}
	case string(msg) == "ack":
		return Frame{Kind: FrameIgnore}
	}
	return Frame{Kind: FrameData}
}

func (testProtocol) Heartbeat() ([]byte, time.Duration) { return nil, 0 }

func (testProtocol) Unsubscribe(r Request) Request { return unsubFor(r) }

// heartbeatProtocol 按固定间隔主动发送 "hb"
type heartbeatProtocol struct {
	testProtocol
	interval time.Duration
}

func (p heartbeatProtocol) Heartbeat() ([]byte, time.Duration) { return []byte("hb"), p.interval }

// fakeConn 由测试驱动的连接
type fakeConn struct {
	reads     chan []byte
	writes    chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		reads:  make(chan []byte, 16),
		writes: make(chan string, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Dial(context.Context, string, http.Header) error { return nil }

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-f.reads:
		if !ok {
			return 0, nil, errConnClosed
		}
		return 1, msg, nil
	case <-f.closed:
		return 0, nil, errConnClosed
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errConnClosed
	default:
	}
	f.writes <- string(data)
	return nil
}

func (f *fakeConn) SetPingHandler(func(string) error) {}
func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// drop 模拟远端断开
func (f *fakeConn) drop() {
	close(f.reads)
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(sessionTestSuite))
}

type sessionTestSuite struct {
	suite.Suite
	conns chan *fakeConn
	data  chan string
	cred  store.AccountCredentials
}

func (s *sessionTestSuite) SetupTest() {
	s.conns = make(chan *fakeConn, 4)
	s.data = make(chan string, 16)
	s.cred = store.AccountCredentials{AccountID: "acc-1", AccessKey: "k", SecretKey: "s"}
}

func (s *sessionTestSuite) options() []Option {
	return []Option{
		WithSendInterval(time.Millisecond),
		WithIdleTimeout(0),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
		WithConnFactory(func() websocket.WebSocketConn {
			c := newFakeConn()
			s.conns <- c
			return c
		}),
	}
}

func (s *sessionTestSuite) handler(raw []byte, accountID string) {
	s.data <- accountID + "|" + string(raw)
}

func (s *sessionTestSuite) nextConn() *fakeConn {
	select {
	case c := <-s.conns:
		return c
	case <-time.After(2 * time.Second):
		s.FailNow("no connection dialed")
	}
	return nil
}

func (s *sessionTestSuite) expectWrite(c *fakeConn, want string) {
	select {
	case got := <-c.writes:
		s.Equal(want, got)
	case <-time.After(2 * time.Second):
		s.FailNow("write not received", want)
	}
}

func (s *sessionTestSuite) expectNoWrite(c *fakeConn) {
	select {
	case got := <-c.writes:
		s.Fail("unexpected write", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func (s *sessionTestSuite) waitState(sess *Session, want State) {
	s.Eventually(func() bool { return sess.State() == want }, 2*time.Second, 5*time.Millisecond)
}

func (s *sessionTestSuite) TestPrivateHappyPath() {
	sess := NewSession("private", testProtocol{}, &s.cred, s.handler, s.options()...)
	sess.Update(reqs("a", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	c := s.nextConn()
	s.expectWrite(c, "login:acc-1")
	// 登录确认之前不发订阅
	s.expectNoWrite(c)
	s.Equal(Authenticating, sess.State())

	c.reads <- []byte("login-ok")
	s.expectWrite(c, "sub:a")
	s.expectWrite(c, "sub:b")
	s.waitState(sess, Active)

	c.reads <- []byte("ping")
	s.expectWrite(c, "pong")

	c.reads <- []byte("ack")
	c.reads <- []byte("garbage")
	c.reads <- []byte("tick")
	select {
	case got := <-s.data:
		s.Equal("acc-1|tick", got)
	case <-time.After(2 * time.Second):
		s.FailNow("data not delivered")
	}

	// 运行中更新：先订阅新增再退订移除
	sess.Update(reqs("b", "c"))
	s.expectWrite(c, "sub:c")
	s.expectWrite(c, "unsub:a")

	cancel()
	s.ErrorIs(<-done, context.Canceled)
	s.Equal(Disconnected, sess.State())
}

func (s *sessionTestSuite) TestReconnectResubscribesAll() {
	sess := NewSession("public", testProtocol{}, nil, s.handler, s.options()...)
	sess.Update(reqs("a", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	first := s.nextConn()
	s.expectWrite(first, "sub:a")
	s.expectWrite(first, "sub:b")
	s.waitState(sess, Active)

	first.drop()

	second := s.nextConn()
	s.expectWrite(second, "sub:a")
	s.expectWrite(second, "sub:b")
	s.waitState(sess, Active)
	s.Equal(int64(2), sess.Dials())

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}

func (s *sessionTestSuite) TestLoginRejected() {
	sess := NewSession("private", testProtocol{}, &s.cred, s.handler, s.options()...)
	sess.Update(reqs("a"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	c := s.nextConn()
	s.expectWrite(c, "login:acc-1")
	c.reads <- []byte("err: invalid sign")
	s.expectNoWrite(c)

	// 登录失败后重连并重新登录
	next := s.nextConn()
	s.expectWrite(next, "login:acc-1")

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}

func (s *sessionTestSuite) TestAuthTimeout() {
	ctrl := gomock.NewController(s.T())
	defer ctrl.Finish()
	mws := mock_websocket.NewMockWebSocketConn(ctrl)

	closed := make(chan struct{})
	mws.EXPECT().Dial(gomock.Any(), "ws://test", gomock.Any()).Return(nil)
	mws.EXPECT().ReadMessage().DoAndReturn(func() (int, []byte, error) {
		<-closed
		return 0, nil, errConnClosed
	}).AnyTimes()
	// 只发送登录报文，没有任何订阅
	mws.EXPECT().WriteMessage(gomock.Any(), []byte("login:acc-1")).Return(nil).Times(1)
	mws.EXPECT().Close().DoAndReturn(func() error {
		close(closed)
		return nil
	})

	sess := NewSession("private", testProtocol{}, &s.cred, s.handler,
		WithAuthTimeout(30*time.Millisecond),
		WithConnFactory(func() websocket.WebSocketConn { return mws }),
	)
	sess.Update(reqs("a", "b"))

	active, err := sess.runOnce(context.Background())
	s.False(active)
	s.ErrorIs(err, ErrAuthTimeout)
	s.Equal(Disconnected, sess.State())
	// 订阅保留，等待下一次连接重发
	s.Equal([]string{"a", "b"}, keys(sess.Active()))
}

func (s *sessionTestSuite) TestDialFailure() {
	ctrl := gomock.NewController(s.T())
	defer ctrl.Finish()
	mws := mock_websocket.NewMockWebSocketConn(ctrl)
	mws.EXPECT().Dial(gomock.Any(), gomock.Any(), gomock.Any()).Return(errConnClosed)

	sess := NewSession("public", testProtocol{}, nil, s.handler,
		WithConnFactory(func() websocket.WebSocketConn { return mws }),
	)
	active, err := sess.runOnce(context.Background())
	s.False(active)
	s.ErrorIs(err, ErrTransport)
	s.Equal(Disconnected, sess.State())
}

func (s *sessionTestSuite) TestHeartbeatSent() {
	sess := NewSession("public", heartbeatProtocol{interval: 10 * time.Millisecond}, nil, s.handler, s.options()...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	c := s.nextConn()
	s.waitState(sess, Active)
	for i := 0; i < 3; i++ {
		s.expectWrite(c, "hb")
	}

	cancel()
	s.ErrorIs(<-done, context.Canceled)
	s.Equal(int64(1), sess.Dials())
}

func (s *sessionTestSuite) TestIdleTimeout() {
	opts := append(s.options(), WithIdleTimeout(60*time.Millisecond))
	sess := NewSession("public", testProtocol{}, nil, s.handler, opts...)
	sess.Update(reqs("a"))

	type result struct {
		active bool
		err    error
	}
	done := make(chan result, 1)
	start := time.Now()
	go func() {
		active, err := sess.runOnce(context.Background())
		done <- result{active, err}
	}()

	c := s.nextConn()
	s.expectWrite(c, "sub:a")
	// 持续收到数据时不触发
	for i := 0; i < 8; i++ {
		c.reads <- []byte("tick")
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case r := <-done:
		s.True(r.active)
		s.ErrorIs(r.err, ErrHeartbeatTimeout)
		s.GreaterOrEqual(time.Since(start), 80*time.Millisecond)
	case <-time.After(2 * time.Second):
		s.FailNow("idle session not closed")
	}
	s.Equal(Disconnected, sess.State())
}

func (s *sessionTestSuite) TestIdleReconnectResubscribes() {
	opts := append(s.options(), WithIdleTimeout(30*time.Millisecond))
	sess := NewSession("public", testProtocol{}, nil, s.handler, opts...)
	sess.Update(reqs("a", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	first := s.nextConn()
	s.expectWrite(first, "sub:a")
	s.expectWrite(first, "sub:b")

	// 第一条连接一直没有数据，超时后重连并重发订阅
	second := s.nextConn()
	s.expectWrite(second, "sub:a")
	s.expectWrite(second, "sub:b")
	s.GreaterOrEqual(sess.Dials(), int64(2))

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}
