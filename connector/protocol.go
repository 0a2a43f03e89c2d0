package connector

import (
	"context"
	"time"

	"github.com/go-gotop/subscribe/store"
)

// Request 一条订阅请求。Key 用于比较差异，Payload 是实际发送的报文
type Request struct {
	Key     string
	Payload []byte
}

type FrameKind int

const (
	// FrameData 业务数据，交给 normalize
	FrameData FrameKind = iota
	// FrameIgnore pong、订阅回执等
	FrameIgnore
	// FramePing 需要回复 Frame.Reply
	FramePing
	FrameLoginOK
	// FrameError 交易所返回的错误，登录阶段收到视为登录失败
	FrameError
)

type Frame struct {
	Kind  FrameKind
	Reply []byte
	Err   error
}

// Protocol 每个交易所/版本的协议差异：解帧、签名登录、心跳、退订
type Protocol interface {
	Name() string
	Endpoint() string
	// Decode 解压原始帧
	Decode(frame []byte) ([]byte, error)
	// Login 生成登录报文
	Login(ctx context.Context, cred store.AccountCredentials) ([]byte, error)
	Classify(msg []byte) Frame
	// Heartbeat 主动心跳报文和间隔，interval 为 0 表示只被动回复
	Heartbeat() (token []byte, interval time.Duration)
	// Unsubscribe 由订阅请求生成退订请求
	Unsubscribe(req Request) Request
}
