package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/go-gotop/subscribe/alert"
	"github.com/go-gotop/subscribe/alert/smtp"
	"github.com/go-gotop/subscribe/conf"
	"github.com/go-gotop/subscribe/limiter"
	"github.com/go-gotop/subscribe/limiter/local"
	"github.com/go-gotop/subscribe/limiter/redislimiter"
	"github.com/go-gotop/subscribe/metrics"
	"github.com/go-gotop/subscribe/publisher"
	"github.com/go-gotop/subscribe/publisher/kafkapub"
	"github.com/go-gotop/subscribe/publisher/redispub"
	"github.com/go-gotop/subscribe/publisher/wspub"
	"github.com/go-gotop/subscribe/requests/okhttp"
	"github.com/go-gotop/subscribe/store"
	"github.com/go-gotop/subscribe/store/redisparam"
	"github.com/go-gotop/subscribe/store/secret"
	"github.com/go-gotop/subscribe/store/sqlstore"
	"github.com/go-gotop/subscribe/supervisor"
)

const (
	PublisherWs    = "ws"
	PublisherRedis = "redis"
	PublisherKafka = "kafka"

	LimiterLocal = "local"
	LimiterRedis = "redis"
)

var (
	ErrUnknownPublisher = errors.New("unknown publisher kind")
	ErrUnknownLimiter   = errors.New("unknown connect limiter")
	ErrNoRedisClient    = errors.New("redis client required")
)

// NewRedis 日志、系统参数和 redis 发布端共用
func NewRedis(c conf.Redis) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
}

// App 进程级资源，由 cleanup 统一释放
type App struct {
	conf      conf.Bootstrap
	logger    log.Logger
	publisher *publisher.Publisher
	alert     alert.Sender
	params    store.ParamStore
	metrics   *metrics.Metrics
	deps      Deps
}

func New(bc conf.Bootstrap, logger log.Logger, rdb redis.UniversalClient) (*App, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}
	h := log.NewHelper(log.With(logger, "module", "app"))

	db, err := sqlstore.Open(bc.Database.Driver, bc.Database.DSN, logger)
	if err != nil {
		return fail(fmt.Errorf("open database: %w", err))
	}
	closers = append(closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if bc.Database.Migrate {
		if err := sqlstore.Migrate(db); err != nil {
			return fail(fmt.Errorf("migrate: %w", err))
		}
	}
	storeOpts := []sqlstore.Option{sqlstore.WithLogger(logger)}
	if bc.Database.EncryptionKey != "" {
		box, err := secret.NewBox(bc.Database.EncryptionKey)
		if err != nil {
			return fail(err)
		}
		storeOpts = append(storeOpts, sqlstore.WithSecretBox(box))
	}
	accounts := sqlstore.New(db, storeOpts...)

	binder, err := newBinder(bc.Publisher, rdb, logger)
	if err != nil {
		return fail(err)
	}
	pub := publisher.New(binder, publisher.WithLogger(logger))
	closers = append(closers, func() {
		if err := pub.Close(); err != nil {
			h.Errorf("close publisher: %v", err)
		}
	})

	connLimiter, err := newLimiter(bc.Timing, rdb, logger)
	if err != nil {
		return fail(fmt.Errorf("connect limiter: %w", err))
	}

	rest, err := okhttp.NewClient(okhttp.BaseURL(bc.Okx.V3RestURL))
	if err != nil {
		return fail(fmt.Errorf("okx rest client: %w", err))
	}

	sender, err := newAlert(bc.SMTP, logger)
	if err != nil {
		return fail(err)
	}

	m := metrics.New()
	a := &App{
		conf:      bc,
		logger:    logger,
		publisher: pub,
		alert:     sender,
		params:    redisparam.New(rdb, redisparam.WithKey(bc.Redis.ParamKey)),
		metrics:   m,
		deps: Deps{
			Conf:        bc,
			Credentials: accounts,
			Currencies:  accounts,
			Publisher:   pub,
			Limiter:     connLimiter,
			TimeSource:  rest,
			Logger:      logger,
			Metrics:     m,
		},
	}
	return a, cleanup, nil
}

func newBinder(c conf.Publisher, rdb redis.UniversalClient, logger log.Logger) (publisher.Binder, error) {
	switch c.Kind {
	case PublisherWs:
		return wspub.NewBinder(
			wspub.WithLogger(logger),
			wspub.WithHost(c.Host),
			wspub.WithPath(c.Path),
			wspub.WithClientBuffer(c.ClientBuffer),
		), nil
	case PublisherRedis:
		if rdb == nil {
			return nil, ErrNoRedisClient
		}
		opts := []redispub.Option{}
		if c.RedisPrefix != "" {
			opts = append(opts, redispub.WithPrefix(c.RedisPrefix))
		}
		return redispub.NewBinder(rdb, opts...), nil
	case PublisherKafka:
		opts := []kafkapub.Option{kafkapub.WithLogger(logger)}
		if c.KafkaTopicPrefix != "" {
			opts = append(opts, kafkapub.WithTopicPrefix(c.KafkaTopicPrefix))
		}
		b, err := kafkapub.NewBinder(c.KafkaBrokers, opts...)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPublisher, c.Kind)
}

func newLimiter(t conf.Timing, rdb redis.UniversalClient, logger log.Logger) (limiter.Limiter, error) {
	limits := []limiter.Option{limiter.WithPeriodLimitArray([]limiter.PeriodLimit{
		{WsConnectPeriod: t.ConnectPeriod, WsConnectTimes: int64(t.ConnectTimes)},
	})}
	switch t.ConnectLimiter {
	case LimiterLocal:
		return local.NewLocalLimiter(limits...)
	case LimiterRedis:
		if rdb == nil {
			return nil, ErrNoRedisClient
		}
		return redislimiter.NewRedisLimiter(rdb, "", limits, redislimiter.WithLogger(logger))
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownLimiter, t.ConnectLimiter)
}

// newAlert 未配置 smtp host 时只写日志
func newAlert(c conf.SMTP, logger log.Logger) (alert.Sender, error) {
	if c.Host == "" {
		return alert.NewLogSender(logger), nil
	}
	s, err := smtp.NewSender(
		smtp.WithHost(c.Host),
		smtp.WithPort(c.Port),
		smtp.WithUsername(c.Username),
		smtp.WithPassword(c.Password),
		smtp.WithFrom(c.From),
	)
	if err != nil {
		return nil, fmt.Errorf("smtp sender: %w", err)
	}
	return s, nil
}

func (a *App) Deps() Deps {
	return a.deps
}

func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Run 只运行一个任务，子进程模式下使用
func (a *App) Run(ctx context.Context, task string) error {
	r, err := BuildTask(task, a.deps)
	if err != nil {
		return err
	}
	return r.Run(ctx)
}

func (a *App) Supervisor(launcher supervisor.Launcher) (*supervisor.Supervisor, error) {
	tasks, err := Tasks(a.deps)
	if err != nil {
		return nil, err
	}
	return supervisor.New(tasks, launcher,
		supervisor.WithLogger(a.logger),
		supervisor.WithEnvironment(a.conf.Environment),
		supervisor.WithCooldown(a.conf.Timing.RestartCooldown.Std()),
		supervisor.WithAlert(a.alert),
		supervisor.WithParamStore(a.params),
	)
}
