package feed

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
)

// Json 与标准库兼容的编码器
var Json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	ExchangeHuobi = "HB"
	ExchangeOkx   = "OK"

	ExchangeIDHuobi = 1001
	ExchangeIDOkx   = 1002
)

const (
	DirectionLong  = 1
	DirectionShort = -1
)

type Kind string

const (
	KindQuotation Kind = "QUOTATION"
	KindPosition  Kind = "POSITION"
	KindAsset     Kind = "ASSET"
)

// Message 是标准化后的消息，Quotation / Position / Asset 之一
type Message interface {
	Kind() Kind
	// Stamp 在标准化时写入接收时间
	Stamp(recvTime int64)
	GetExchangeID() int
	GetRecvTime() int64
}

// Source 消息来源，一个交易所 + 协议版本
type Source struct {
	Exchange    string
	ExchangeID  int
	AccountType string // v3 / v5，火币为空
}

var (
	SourceHuobi = Source{Exchange: ExchangeHuobi, ExchangeID: ExchangeIDHuobi}
	SourceOkxV3 = Source{Exchange: ExchangeOkx, ExchangeID: ExchangeIDOkx, AccountType: "v3"}
	SourceOkxV5 = Source{Exchange: ExchangeOkx, ExchangeID: ExchangeIDOkx, AccountType: "v5"}
)

// Quotation 行情
type Quotation struct {
	InstrumentID string          `json:"instrument_id"` // BTC-USDT / BTC-USD-210625
	Price        decimal.Decimal `json:"price"`         // 最新成交价
	Volume       decimal.Decimal `json:"volume"`        // 最新成交量
	Exchange     string          `json:"exchange"`
	ExchangeID   int             `json:"exchange_id"`
	AccountType  string          `json:"account_type,omitempty"`
	DataType     string          `json:"data_type"`
	UpdateTime   int64           `json:"update_time"` // 交易所时间，毫秒
	RecvTime     int64           `json:"recv_time"`   // 本地接收时间，毫秒
}

func (q *Quotation) Kind() Kind           { return KindQuotation }
func (q *Quotation) Stamp(recvTime int64) { q.RecvTime = recvTime }
func (q *Quotation) GetExchangeID() int   { return q.ExchangeID }
func (q *Quotation) GetRecvTime() int64   { return q.RecvTime }

// Position 持仓
type Position struct {
	InstrumentID     string          `json:"instrument_id"`
	AccountID        string          `json:"account_id"`
	ContractSize     decimal.Decimal `json:"contract_size"`     // 持仓张数
	OpenPrice        decimal.Decimal `json:"open_price"`        // 开仓均价
	UnrealizedProfit decimal.Decimal `json:"unrealized_profit"` // 未实现盈亏
	Direction        int             `json:"direction"`         // 1 多 -1 空
	Exchange         string          `json:"exchange"`
	ExchangeID       int             `json:"exchange_id"`
	AccountType      string          `json:"account_type,omitempty"`
	UpdateTime       int64           `json:"update_time"`
	RecvTime         int64           `json:"recv_time"`
}

func (p *Position) Kind() Kind           { return KindPosition }
func (p *Position) Stamp(recvTime int64) { p.RecvTime = recvTime }
func (p *Position) GetExchangeID() int   { return p.ExchangeID }
func (p *Position) GetRecvTime() int64   { return p.RecvTime }

// Asset 资产
type Asset struct {
	AccountID        string           `json:"account_id"`
	AssetSymbol      string           `json:"asset_symbol"`
	Total            decimal.Decimal  `json:"total"`     // 权益
	Available        decimal.Decimal  `json:"available"` // 可用
	Frozen           decimal.Decimal  `json:"frozen"`    // 冻结 / 占用保证金
	MarginPosition   *decimal.Decimal `json:"margin_position,omitempty"`
	UnrealizedProfit *decimal.Decimal `json:"unrealized_profit,omitempty"`
	Exchange         string           `json:"exchange"`
	ExchangeID       int              `json:"exchange_id"`
	AccountType      string           `json:"account_type,omitempty"`
	UpdateTime       int64            `json:"update_time"`
	RecvTime         int64            `json:"recv_time"`
}

func (a *Asset) Kind() Kind           { return KindAsset }
func (a *Asset) Stamp(recvTime int64) { a.RecvTime = recvTime }
func (a *Asset) GetExchangeID() int   { return a.ExchangeID }
func (a *Asset) GetRecvTime() int64   { return a.RecvTime }

// Encode 序列化为 JSON 文本
func Encode(msg Message) ([]byte, error) {
	return Json.Marshal(msg)
}
