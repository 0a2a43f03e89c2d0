// Package kafkapub 发布到 kafka，端口映射为 topic
package kafkapub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	kafkaGo "github.com/segmentio/kafka-go"

	"github.com/go-gotop/subscribe/publisher"
)

var ErrNoBrokers = errors.New("kafka brokers not configured")

const writeTimeout = 3 * time.Second

type Option func(*options)

type options struct {
	logger      *log.Helper
	topicPrefix string
	batchSize   int
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.NewHelper(log.With(logger, "module", "kafkapub"))
	}
}

// WithTopicPrefix topic 前缀，默认 feed.
func WithTopicPrefix(prefix string) Option {
	return func(o *options) {
		o.topicPrefix = prefix
	}
}

func WithBatchSize(n int) Option {
	return func(o *options) {
		o.batchSize = n
	}
}

func NewBinder(brokers []string, opts ...Option) (*Binder, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	o := &options{
		logger:      log.NewHelper(log.DefaultLogger),
		topicPrefix: "feed.",
		batchSize:   1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Binder{brokers: brokers, opts: o}, nil
}

type Binder struct {
	brokers []string
	opts    *options
}

var _ publisher.Binder = (*Binder)(nil)

func Topic(prefix string, port int) string {
	return fmt.Sprintf("%s%d", prefix, port)
}

func (b *Binder) Bind(port int) (publisher.Endpoint, error) {
	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(b.brokers...),
		Topic:                  Topic(b.opts.topicPrefix, port),
		Balancer:               &kafkaGo.LeastBytes{},
		BatchSize:              b.opts.batchSize,
		Async:                  true, // 不等待确认
		AllowAutoTopicCreation: true,
		Logger:                 &Logger{logger: b.opts.logger},
		ErrorLogger:            &ErrorLogger{logger: b.opts.logger},
	}
	return &Endpoint{writer: w}, nil
}

type Endpoint struct {
	writer *kafkaGo.Writer
}

func (e *Endpoint) Send(data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return e.writer.WriteMessages(ctx, kafkaGo.Message{Value: data})
}

func (e *Endpoint) Close() error {
	return e.writer.Close()
}
