package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/go-gotop/subscribe/store"
	"github.com/go-gotop/subscribe/store/secret"
)

func TestSqlStore(t *testing.T) {
	suite.Run(t, new(sqlStoreSuite))
}

type sqlStoreSuite struct {
	suite.Suite
	db    *gorm.DB
	store *Store
}

func (s *sqlStoreSuite) SetupTest() {
	// 每个用例独立的内存库
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(s.T().Name(), "/", "_"))
	db, err := Open(DriverSqlite, dsn, log.DefaultLogger)
	s.Require().NoError(err)
	s.Require().NoError(Migrate(db))

	s.Require().NoError(db.Create(&[]AccountManager{
		{AccountID: "ok-v5", AccessKey: "k1", SecretKey: "s1", PassPhrase: "p1", AccountType: store.ModeUnified, Exchange: "OK", Status: 1},
		{AccountID: "ok-v3", AccessKey: "k2", SecretKey: "s2", PassPhrase: "p2", AccountType: "", Exchange: "OK", Status: 1},
		{AccountID: "ok-off", Exchange: "OK", Status: 0},
		{AccountID: "ok-del", Exchange: "OK", Status: 1, IsDelete: 1},
		{AccountID: "hb-1", AccessKey: "k3", SecretKey: "s3", Exchange: "HB", Status: 1},
	}).Error)

	s.Require().NoError(db.Create(&[]SysDictType{{ID: 1, FieldCode: "currency"}, {ID: 2, FieldCode: "other"}}).Error)
	s.Require().NoError(db.Create(&[]SysDictData{
		{TypeID: 1, ShowText: "BTC"},
		{TypeID: 2, ShowText: "NOPE"},
		{TypeID: 1, ShowText: "ETH"},
	}).Error)

	s.db = db
	s.store = New(db)
}

func (s *sqlStoreSuite) TestListAccountsByMode() {
	ctx := context.Background()

	all, err := s.store.ListAccounts(ctx, "OK", store.ModeAny)
	s.Require().NoError(err)
	s.Assert().Len(all, 2)

	unified, err := s.store.ListAccounts(ctx, "OK", store.ModeUnified)
	s.Require().NoError(err)
	s.Require().Len(unified, 1)
	s.Assert().Equal(store.AccountCredentials{AccountID: "ok-v5", AccessKey: "k1", SecretKey: "s1", Passphrase: "p1"}, unified[0])

	classic, err := s.store.ListAccounts(ctx, "OK", store.ModeClassic)
	s.Require().NoError(err)
	s.Require().Len(classic, 1)
	s.Assert().Equal("ok-v3", classic[0].AccountID)

	hb, err := s.store.ListAccounts(ctx, "HB", store.ModeAny)
	s.Require().NoError(err)
	s.Assert().Len(hb, 1)
}

func (s *sqlStoreSuite) TestListTradableCurrencies() {
	cur, err := s.store.ListTradableCurrencies(context.Background())
	s.Require().NoError(err)
	s.Assert().Equal([]string{"BTC", "ETH"}, cur)
}

func (s *sqlStoreSuite) TestUnknownDriver() {
	_, err := Open("oracle", "", nil)
	s.Assert().ErrorIs(err, ErrUnknownDriver)
}

func (s *sqlStoreSuite) TestDialector() {
	for driver, name := range map[string]string{
		DriverMysql:    "mysql",
		DriverPostgres: "postgres",
		DriverSqlite:   "sqlite",
	} {
		d, err := newDialector(driver, "")
		s.Require().NoError(err)
		s.Assert().Equal(name, d.Name())
	}
}

func (s *sqlStoreSuite) TestEncryptedSecrets() {
	box, err := secret.NewBox("a9YQA9qo5OgMbBSy8K1ZfQjMLPTdAURd")
	s.Require().NoError(err)
	sk, err := box.Encrypt("hb-secret")
	s.Require().NoError(err)
	s.Require().NoError(s.db.Create(&AccountManager{
		AccountID: "hb-enc", AccessKey: "k4", SecretKey: sk, Exchange: "HB", Status: 1,
	}).Error)

	st := New(s.db, WithSecretBox(box), WithLogger(log.DefaultLogger))
	hb, err := st.ListAccounts(context.Background(), "HB", store.ModeAny)
	s.Require().NoError(err)
	// hb-1 是明文，解密失败被跳过
	s.Require().Len(hb, 1)
	s.Assert().Equal(store.AccountCredentials{AccountID: "hb-enc", AccessKey: "k4", SecretKey: "hb-secret"}, hb[0])
}
