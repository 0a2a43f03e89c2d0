package app

import (
	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/feed"
	"github.com/go-gotop/subscribe/metrics"
	"github.com/go-gotop/subscribe/normalize"
)

const (
	dropMalformed = "malformed"
	dropNoPort    = "no_port"
)

// Publisher 按端口发布标准消息
type Publisher interface {
	Publish(port int, msg feed.Message) error
}

// Ports 消息类型 -> 发布端口
type Ports map[feed.Kind]int

// NewHandler 标准化后按消息类型发布到对应端口。
// 无法解析的消息和未配置端口的类型直接丢弃。
// m 可以为 nil。
func NewHandler(task string, norm normalize.Func, ports Ports, pub Publisher, m *metrics.Metrics, logger log.Logger) connector.Handler {
	h := log.NewHelper(log.With(logger, "module", "handler"))
	return func(raw []byte, accountID string) {
		msgs, err := norm(raw, accountID)
		if err != nil {
			m.Dropped(task, dropMalformed)
			h.Warnf("drop message: %v", err)
			return
		}
		for _, msg := range msgs {
			port, ok := ports[msg.Kind()]
			if !ok {
				m.Dropped(task, dropNoPort)
				h.Debugf("no port for %s", msg.Kind())
				continue
			}
			if err := pub.Publish(port, msg); err != nil {
				m.PublishFailed(task, msg.Kind())
				h.Errorf("publish %s to port %d: %v", msg.Kind(), port, err)
				continue
			}
			m.Published(task, msg.Kind())
		}
	}
}
