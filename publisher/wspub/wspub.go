// Package wspub 每个端口起一个 websocket 广播服务，下游连上后接收之后发布的全部消息。
package wspub

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	gwebsocket "github.com/gorilla/websocket"

	"github.com/go-gotop/subscribe/publisher"
)

const writeWait = 5 * time.Second

var ErrEndpointClosed = errors.New("endpoint closed")

type Option func(*options)

type options struct {
	logger    *log.Helper
	host      string
	path      string
	clientBuf int
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.NewHelper(log.With(logger, "module", "wspub"))
	}
}

// WithHost 监听地址，默认所有网卡
func WithHost(host string) Option {
	return func(o *options) {
		o.host = host
	}
}

func WithPath(path string) Option {
	return func(o *options) {
		o.path = path
	}
}

// WithClientBuffer 每个下游的发送缓冲，满了就断开该下游
func WithClientBuffer(n int) Option {
	return func(o *options) {
		o.clientBuf = n
	}
}

func NewBinder(opts ...Option) *Binder {
	o := &options{
		logger:    log.NewHelper(log.DefaultLogger),
		path:      "/",
		clientBuf: 256,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Binder{opts: o}
}

type Binder struct {
	opts *options
}

var _ publisher.Binder = (*Binder)(nil)

func (b *Binder) Bind(port int) (publisher.Endpoint, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(b.opts.host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}
	e := &Endpoint{
		opts:    b.opts,
		ln:      ln,
		clients: make(map[*client]struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(b.opts.path, e.serveWs)
	e.srv = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := e.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.opts.logger.Errorf("wspub serve %s: %v", ln.Addr(), err)
		}
	}()
	return e, nil
}

type client struct {
	conn *gwebsocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

type Endpoint struct {
	opts     *options
	ln       net.Listener
	srv      *http.Server
	upgrader gwebsocket.Upgrader
	mux      sync.RWMutex
	clients  map[*client]struct{}
	closed   bool
}

// Addr 实际监听地址
func (e *Endpoint) Addr() net.Addr {
	return e.ln.Addr()
}

func (e *Endpoint) Clients() int {
	e.mux.RLock()
	defer e.mux.RUnlock()
	return len(e.clients)
}

func (e *Endpoint) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.opts.logger.Warnf("wspub upgrade: %v", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, e.opts.clientBuf)}

	e.mux.Lock()
	if e.closed {
		e.mux.Unlock()
		conn.Close()
		return
	}
	e.clients[c] = struct{}{}
	e.mux.Unlock()

	go e.writeLoop(c)
	// 下游只读，读循环用于感知断开
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			e.remove(c)
			return
		}
	}
}

func (e *Endpoint) writeLoop(c *client) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(gwebsocket.TextMessage, data); err != nil {
			e.remove(c)
			return
		}
	}
}

func (e *Endpoint) remove(c *client) {
	e.mux.Lock()
	delete(e.clients, c)
	e.mux.Unlock()
	c.close()
}

// Send 广播给当前所有下游，不阻塞
func (e *Endpoint) Send(data []byte) error {
	e.mux.RLock()
	if e.closed {
		e.mux.RUnlock()
		return ErrEndpointClosed
	}
	var slow []*client
	for c := range e.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	e.mux.RUnlock()

	for _, c := range slow {
		e.opts.logger.Warnf("wspub drop slow client %s", c.conn.RemoteAddr())
		e.remove(c)
	}
	return nil
}

func (e *Endpoint) Close() error {
	e.mux.Lock()
	if e.closed {
		e.mux.Unlock()
		return nil
	}
	e.closed = true
	clients := make([]*client, 0, len(e.clients))
	for c := range e.clients {
		clients = append(clients, c)
	}
	e.clients = map[*client]struct{}{}
	e.mux.Unlock()

	for _, c := range clients {
		c.close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	return e.srv.Shutdown(ctx)
}
