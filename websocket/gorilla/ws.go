package gorilla

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gotop/subscribe/websocket"
)

var ErrNotConnected = errors.New("websocket not connected")

func NewGorillaWebsocket(conn websocket.WebSocketConn, config *websocket.WebsocketConfig) *GorillaWebsocket {
	if config == nil {
		config = &websocket.WebsocketConfig{}
	}
	return &GorillaWebsocket{
		conn:    conn,
		config:  config,
		closeCh: make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// GorillaWebsocket 是 Websocket 接口的实现，一个实例只对应一次连接
type GorillaWebsocket struct {
	messageCount atomic.Uint64
	isConnected  atomic.Bool
	conn         websocket.WebSocketConn
	config       *websocket.WebsocketConfig
	req          *websocket.WebsocketRequest
	closeCh      chan struct{}
	doneCh       chan struct{}
	closeOnce    sync.Once
	doneOnce     sync.Once
	connectTime  time.Time
}

func (w *GorillaWebsocket) Connect(ctx context.Context, req *websocket.WebsocketRequest) error {
	if err := w.conn.Dial(ctx, req.Endpoint, nil); err != nil {
		w.markDone()
		return err
	}
	w.configure()
	w.req = req
	w.connectTime = time.Now()
	w.messageCount.Store(0)
	w.isConnected.Store(true)
	if req.ConnectedHandler != nil {
		req.ConnectedHandler(req.ID, w.conn)
	}
	go w.readMessages(req)
	return nil
}

func (w *GorillaWebsocket) configure() {
	if w.config.PingHandler != nil {
		w.conn.SetPingHandler(w.config.PingHandler)
	}
	if w.config.PongHandler != nil {
		w.conn.SetPongHandler(w.config.PongHandler)
	}
}

func (w *GorillaWebsocket) markDone() {
	w.doneOnce.Do(func() {
		close(w.doneCh)
	})
}

func (w *GorillaWebsocket) readMessages(req *websocket.WebsocketRequest) {
	defer w.markDone() // 确保此方法退出时标记doneCh为已完成
	for {
		select {
		case <-w.closeCh: // 如果收到关闭信号，则立即退出循环
			return
		default:
			_, message, err := w.conn.ReadMessage()
			if err != nil {
				w.isConnected.Store(false)
				select {
				case <-w.closeCh: // 主动关闭导致的错误不上报
				default:
					if req.ErrorHandler != nil {
						req.ErrorHandler(req.ID, err)
					}
				}
				return
			}
			w.messageCount.Add(1)
			if req.MessageHandler != nil {
				req.MessageHandler(message)
			}
		}
	}
}

func (w *GorillaWebsocket) ID() string {
	if w.req == nil {
		return ""
	}
	return w.req.ID
}

func (w *GorillaWebsocket) Disconnect() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closeCh) // 通知读协程退出
		w.isConnected.Store(false)
		if w.conn != nil {
			err = w.conn.Close() // 关闭WebSocket连接，ReadMessage 随之返回
		}
	})
	if w.req == nil {
		// 从未连接成功，没有读协程
		w.markDone()
	}
	<-w.doneCh // 确保读协程已经结束
	return err
}

func (w *GorillaWebsocket) Done() <-chan struct{} {
	return w.doneCh
}

func (w *GorillaWebsocket) IsConnected() bool {
	return w.isConnected.Load()
}

func (w *GorillaWebsocket) WriteMessage(messageType int, data []byte) error {
	if !w.isConnected.Load() {
		return ErrNotConnected
	}
	return w.conn.WriteMessage(messageType, data)
}

func (w *GorillaWebsocket) GetCurrentRate() int {
	elapsed := time.Since(w.connectTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	rate := float64(w.messageCount.Load()) / elapsed
	return int(rate) // 返回每秒消息数
}

func (w *GorillaWebsocket) ConnectionDuration() time.Duration {
	return time.Since(w.connectTime)
}
