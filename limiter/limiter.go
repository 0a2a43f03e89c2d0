package limiter

import "context"

type Limiter interface {
	// WsAllow 是否允许立即新建连接
	WsAllow() bool
	// WsWait 阻塞到允许新建连接或 ctx 结束
	WsWait(ctx context.Context) error
}
