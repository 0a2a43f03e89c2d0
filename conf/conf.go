// Package conf 进程配置：yaml 文件 + 环境变量（FEED_ 前缀，用于 ${VAR:default} 占位）。
package conf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/joho/godotenv"
)

const EnvPrefix = "FEED_"

var (
	ErrNoTasks         = errors.New("no task enabled")
	ErrInvalidDuration = errors.New("invalid duration")
)

// Duration 配置中写作 "60s"，也接受纳秒整数
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(n)
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	if len(data) >= 2 && data[0] == '"' {
		return d.UnmarshalText(data[1 : len(data)-1])
	}
	return d.UnmarshalText(data)
}

type Log struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	// Redis 为 true 时同时写入 redis 列表
	Redis    bool   `json:"redis"`
	RedisKey string `json:"redis_key"`
	RedisCap int64  `json:"redis_cap"`
}

type Okx struct {
	Simulated    bool   `json:"simulated"`
	V5PublicURL  string `json:"v5_public_url"`
	V5PrivateURL string `json:"v5_private_url"`
	V3URL        string `json:"v3_url"`
	V3RestURL    string `json:"v3_rest_url"`
}

type Huobi struct {
	FuturesURL      string `json:"futures_url"`
	SpotURL         string `json:"spot_url"`
	NotificationURL string `json:"notification_url"`
}

// Ports 每类消息的发布端口
type Ports struct {
	OkxV3Quotation        int `json:"okx_v3_quotation"`
	OkxV3Position         int `json:"okx_v3_position"`
	OkxV3Asset            int `json:"okx_v3_asset"`
	OkxV5Quotation        int `json:"okx_v5_quotation"`
	OkxV5Position         int `json:"okx_v5_position"`
	OkxV5Asset            int `json:"okx_v5_asset"`
	HuobiFuturesQuotation int `json:"huobi_futures_quotation"`
	HuobiSpotQuotation    int `json:"huobi_spot_quotation"`
	HuobiPosition         int `json:"huobi_position"`
	HuobiAsset            int `json:"huobi_asset"`
}

type Timing struct {
	Poll            Duration `json:"poll"`
	AuthTimeout     Duration `json:"auth_timeout"`
	IdleTimeout     Duration `json:"idle_timeout"`
	SendInterval    Duration `json:"send_interval"`
	RestartCooldown Duration `json:"restart_cooldown"`
	BackoffInitial  Duration `json:"backoff_initial"`
	BackoffMax      Duration `json:"backoff_max"`
	// 建连限流，例如 "1s" 内 3 次；ConnectLimiter local / redis，redis 时多进程共用
	ConnectPeriod  string `json:"connect_period"`
	ConnectTimes   int    `json:"connect_times"`
	ConnectLimiter string `json:"connect_limiter"`
	MaxAccounts    int    `json:"max_accounts"`
}

type Publisher struct {
	// Kind ws / redis / kafka
	Kind             string   `json:"kind"`
	Host             string   `json:"host"`
	Path             string   `json:"path"`
	ClientBuffer     int      `json:"client_buffer"`
	RedisPrefix      string   `json:"redis_prefix"`
	KafkaBrokers     []string `json:"kafka_brokers"`
	KafkaTopicPrefix string   `json:"kafka_topic_prefix"`
}

type Database struct {
	Driver  string `json:"driver"`
	DSN     string `json:"dsn"`
	Migrate bool   `json:"migrate"`

	// EncryptionKey 32 字节，非空时 secret_key / pass_phrase 按密文读取
	EncryptionKey string `json:"encryption_key"`
}

type Redis struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	ParamKey string `json:"param_key"`
}

type SMTP struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

type Trace struct {
	// Exporter 为空不开启；stdout / otlpgrpc / otlphttp / zipkin
	Exporter    string  `json:"exporter"`
	Endpoint    string  `json:"endpoint"`
	Insecure    bool    `json:"insecure"`
	SampleRatio float64 `json:"sample_ratio"`
}

type Metrics struct {
	// Addr 为空不开启，例如 :9100
	Addr string `json:"addr"`
}

// Bootstrap 扫描一次后按值传递
type Bootstrap struct {
	ServiceName string    `json:"service_name"`
	// Environment 告警邮件中的环境名称
	Environment string    `json:"environment"`
	Log         Log       `json:"log"`
	Okx         Okx       `json:"okx"`
	Huobi       Huobi     `json:"huobi"`
	Ports       Ports     `json:"ports"`
	Timing      Timing    `json:"timing"`
	Publisher   Publisher `json:"publisher"`
	Database    Database  `json:"database"`
	Redis       Redis     `json:"redis"`
	SMTP        SMTP      `json:"smtp"`
	Trace       Trace     `json:"trace"`
	Metrics     Metrics   `json:"metrics"`
	Tasks       []string  `json:"tasks"`
}

func orString(v *string, def string) {
	if *v == "" {
		*v = def
	}
}

func orInt(v *int, def int) {
	if *v == 0 {
		*v = def
	}
}

func orDuration(v *Duration, def time.Duration) {
	if *v == 0 {
		*v = Duration(def)
	}
}

// Default 补齐未配置的字段
func (b Bootstrap) Default() Bootstrap {
	orString(&b.ServiceName, "subscribe")
	orString(&b.Environment, "dev")
	orString(&b.Log.Level, "info")
	orInt(&b.Log.MaxSizeMB, 100)
	orInt(&b.Log.MaxBackups, 7)
	orInt(&b.Log.MaxAgeDays, 10)
	orString(&b.Log.RedisKey, "log:"+b.ServiceName)
	if b.Log.RedisCap == 0 {
		b.Log.RedisCap = 10000
	}

	orString(&b.Okx.V3RestURL, "https://www.okex.com")

	p := &b.Ports
	orInt(&p.OkxV3Quotation, 1111)
	orInt(&p.OkxV3Position, 1112)
	orInt(&p.OkxV3Asset, 1113)
	orInt(&p.OkxV5Quotation, 1114)
	orInt(&p.OkxV5Position, 1115)
	orInt(&p.OkxV5Asset, 1116)
	orInt(&p.HuobiFuturesQuotation, 1117)
	orInt(&p.HuobiPosition, 1118)
	orInt(&p.HuobiAsset, 1119)
	orInt(&p.HuobiSpotQuotation, 1122)

	t := &b.Timing
	orDuration(&t.Poll, 60*time.Second)
	orDuration(&t.AuthTimeout, 60*time.Second)
	orDuration(&t.IdleTimeout, 90*time.Second)
	orDuration(&t.SendInterval, 50*time.Millisecond)
	orDuration(&t.RestartCooldown, 60*time.Second)
	orDuration(&t.BackoffInitial, time.Second)
	orDuration(&t.BackoffMax, 30*time.Second)
	orString(&t.ConnectPeriod, "1s")
	orInt(&t.ConnectTimes, 3)
	orString(&t.ConnectLimiter, "local")
	orInt(&t.MaxAccounts, 100)

	orString(&b.Publisher.Kind, "ws")
	orString(&b.Publisher.Host, "0.0.0.0")
	orString(&b.Publisher.Path, "/")
	orInt(&b.Publisher.ClientBuffer, 256)

	orString(&b.Database.Driver, "postgres")
	orString(&b.Redis.ParamKey, "SYSTEM_PARAM")
	orInt(&b.SMTP.Port, 25)
	if b.Trace.SampleRatio == 0 {
		b.Trace.SampleRatio = 1
	}

	if b.Tasks == nil {
		b.Tasks = DefaultTasks()
	}
	return b
}

// DefaultTasks publicchannel_ok_v3 默认不启用
func DefaultTasks() []string {
	return []string{
		"publicchannel_spot_hb",
		"publicchannel_futures_hb",
		"privatechannel_hb",
		"privatechannel_ok_v3",
		"publicchannel_ok_v5",
		"privatechannel_ok_v5",
	}
}

func (b Bootstrap) Validate() error {
	if len(b.Tasks) == 0 {
		return ErrNoTasks
	}
	return nil
}

// Load 先加载 .env（不存在时忽略），再读取配置文件
func Load(path string) (Bootstrap, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Bootstrap{}, fmt.Errorf("load .env: %w", err)
	}

	c := config.New(
		config.WithSource(
			env.NewSource(EnvPrefix),
			file.NewSource(path),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		return Bootstrap{}, fmt.Errorf("load config %s: %w", path, err)
	}
	var bc Bootstrap
	if err := c.Scan(&bc); err != nil {
		return Bootstrap{}, fmt.Errorf("scan config: %w", err)
	}
	bc = bc.Default()
	if err := bc.Validate(); err != nil {
		return Bootstrap{}, err
	}
	return bc, nil
}
