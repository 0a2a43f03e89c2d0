package gorilla

import (
	"context"
	"net/http"
	"sync"
	"time"

	gwebsocket "github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	readLimit        = 655350
)

func NewGorillaWebSocketConn() *GorillaWebSocketConn {
	return &GorillaWebSocketConn{}
}

// GorillaWebSocketConn gorilla 连接只允许一个写者，写操作加锁
type GorillaWebSocketConn struct {
	conn *gwebsocket.Conn
	wmu  sync.Mutex
}

func (g *GorillaWebSocketConn) Dial(ctx context.Context, endpoint string, requestHeader http.Header) error {
	dialer := gwebsocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, endpoint, requestHeader)
	if err != nil {
		return err
	}
	conn.SetReadLimit(readLimit)
	g.conn = conn
	return nil
}

func (g *GorillaWebSocketConn) ReadMessage() (int, []byte, error) {
	return g.conn.ReadMessage()
}

func (g *GorillaWebSocketConn) WriteMessage(messageType int, data []byte) error {
	g.wmu.Lock()
	defer g.wmu.Unlock()
	return g.conn.WriteMessage(messageType, data)
}

func (g *GorillaWebSocketConn) SetPingHandler(h func(appData string) error) {
	g.conn.SetPingHandler(h)
}

func (g *GorillaWebSocketConn) SetPongHandler(h func(appData string) error) {
	g.conn.SetPongHandler(h)
}

func (g *GorillaWebSocketConn) Close() error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}
