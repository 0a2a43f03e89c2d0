// Package sqlstore 基于 gorm 的账户与币种读取
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/go-gotop/subscribe/store"
	"github.com/go-gotop/subscribe/store/secret"
)

var ErrUnknownDriver = errors.New("unknown database driver")

const (
	statusEnabled  = 1
	notDeleted     = 0
	currencyField  = "currency"
	DriverMysql    = "mysql"
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
)

func newDialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case DriverMysql:
		return mysql.Open(dsn), nil
	case DriverPostgres:
		return postgres.Open(dsn), nil
	case DriverSqlite:
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
}

// Open 按驱动名打开数据库，日志走 kratos。
// mysql 的 dsn 例如 user:pass@tcp(127.0.0.1:3306)/strategy?charset=utf8mb4&parseTime=True
func Open(driver, dsn string, logger log.Logger) (*gorm.DB, error) {
	dialector, err := newDialector(driver, dsn)
	if err != nil {
		return nil, err
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logger),
	})
}

// Migrate 建表，只在测试和本地环境使用
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&AccountManager{}, &SysDictType{}, &SysDictData{})
}

type Option func(*options)

type options struct {
	logger *log.Helper
	box    *secret.Box
}

func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.NewHelper(log.With(logger, "module", "sqlstore"))
	}
}

// WithSecretBox secret_key、pass_phrase 加密存储时用于解密
func WithSecretBox(box *secret.Box) Option {
	return func(o *options) {
		o.box = box
	}
}

func New(db *gorm.DB, opts ...Option) *Store {
	o := &options{logger: log.NewHelper(log.DefaultLogger)}
	for _, opt := range opts {
		opt(o)
	}
	return &Store{db: db, opts: o}
}

type Store struct {
	db   *gorm.DB
	opts *options
}

var (
	_ store.CredentialStore = (*Store)(nil)
	_ store.CurrencyStore   = (*Store)(nil)
)

func (s *Store) ListAccounts(ctx context.Context, exchange, mode string) ([]store.AccountCredentials, error) {
	q := s.db.WithContext(ctx).
		Where("exchange = ? AND status = ? AND is_delete = ?", exchange, statusEnabled, notDeleted)
	switch mode {
	case store.ModeAny:
	case store.ModeClassic:
		q = q.Where("(account_type <> ? OR account_type IS NULL)", store.ModeUnified)
	default:
		q = q.Where("account_type = ?", mode)
	}

	var rows []AccountManager
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]store.AccountCredentials, 0, len(rows))
	for _, r := range rows {
		cred, err := s.credentials(r)
		if err != nil {
			// 单个账户解密失败不影响其它账户
			s.opts.logger.Errorf("account %s: %v", r.AccountID, err)
			continue
		}
		out = append(out, cred)
	}
	return out, nil
}

func (s *Store) credentials(r AccountManager) (store.AccountCredentials, error) {
	cred := store.AccountCredentials{
		AccountID:  r.AccountID,
		AccessKey:  r.AccessKey,
		SecretKey:  r.SecretKey,
		Passphrase: r.PassPhrase,
	}
	if s.opts.box == nil {
		return cred, nil
	}
	var err error
	if cred.SecretKey, err = s.opts.box.Decrypt(r.SecretKey); err != nil {
		return cred, fmt.Errorf("secret key: %w", err)
	}
	if r.PassPhrase != "" {
		if cred.Passphrase, err = s.opts.box.Decrypt(r.PassPhrase); err != nil {
			return cred, fmt.Errorf("passphrase: %w", err)
		}
	}
	return cred, nil
}

func (s *Store) ListTradableCurrencies(ctx context.Context) ([]string, error) {
	db := s.db.WithContext(ctx)
	typeIDs := db.Model(&SysDictType{}).Select("id").Where("field_code = ?", currencyField)

	var out []string
	err := db.Model(&SysDictData{}).
		Where("type_id IN (?)", typeIDs).
		Order("id").
		Pluck("show_text", &out).Error
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	return out, nil
}
