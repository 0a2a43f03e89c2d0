package websocket

import (
	"context"
	"net/http"
	"time"
)

//go:generate mockgen -destination=mock/websocket.go -package=mock_websocket . WebSocketConn
type WebSocketConn interface {
	Dial(ctx context.Context, endpoint string, requestHeader http.Header) error
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// WebsocketConfig 结构体定义了WebSocket实例的配置选项
type WebsocketConfig struct {
	PingHandler func(appData string) error
	PongHandler func(appData string) error
}

type WebsocketRequest struct {
	// Endpoint 是Websocket服务器的地址
	Endpoint string

	// ID 是Websocket连接的唯一标识符
	ID string

	// MessageHandler 是Websocket消息处理函数，在读协程中调用
	MessageHandler func([]byte)

	// ErrorHandler 读消息出错时调用，之后读协程退出
	ErrorHandler func(id string, err error)

	// ConnectedHandler 连接建立后、读协程启动前调用
	ConnectedHandler func(id string, conn WebSocketConn)
}

// Websocket 接口定义了基本的连接管理操作
type Websocket interface {
	// Connect 方法用于建立Websocket连接
	Connect(ctx context.Context, req *WebsocketRequest) error

	// Disconnect 方法用于关闭Websocket连接，等待读协程退出
	Disconnect() error

	// WriteMessage 并发安全
	WriteMessage(messageType int, data []byte) error

	// IsConnected 方法用于检查Websocket连接是否处于活跃状态
	IsConnected() bool

	// Done 读协程退出后关闭
	Done() <-chan struct{}

	// GetCurrentRate 每秒收到的消息数
	GetCurrentRate() int

	// ConnectionDuration 当前连接的持续时间
	ConnectionDuration() time.Duration
}
