package kafkapub

import "github.com/go-kratos/kratos/v2/log"

// Logger kafka.Writer 普通日志
type Logger struct {
	logger *log.Helper
}

func (l *Logger) Printf(msg string, args ...interface{}) {
	l.logger.Debugf(msg, args...)
}

// ErrorLogger kafka.Writer 错误日志
type ErrorLogger struct {
	logger *log.Helper
}

func (l *ErrorLogger) Printf(msg string, args ...interface{}) {
	l.logger.Errorf(msg, args...)
}
