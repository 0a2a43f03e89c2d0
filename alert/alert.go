package alert

import (
	"strings"

	"github.com/go-kratos/kratos/v2/log"
)

// Sender 运维告警，调用方吞掉错误
type Sender interface {
	Send(content string, recipients []string, title string) error
}

// NewLogSender 只写日志，未配置邮件时使用
func NewLogSender(logger log.Logger) *LogSender {
	return &LogSender{logger: log.NewHelper(log.With(logger, "module", "alert"))}
}

type LogSender struct {
	logger *log.Helper
}

func (l *LogSender) Send(content string, recipients []string, title string) error {
	l.logger.Warnw("title", title, "content", content, "recipients", strings.Join(recipients, ";"))
	return nil
}
