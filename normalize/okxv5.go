package normalize

import (
	"github.com/bitly/go-simplejson"

	"github.com/go-gotop/subscribe/feed"
)

// OkxV5 按 arg.channel 分发：tickers / positions / account
func (n *Normalizer) OkxV5(raw []byte, accountID string) ([]feed.Message, error) {
	j, err := parse(raw)
	if err != nil {
		return nil, err
	}
	data := j.Get("data")
	var out []feed.Message
	switch j.Get("arg").Get("channel").MustString() {
	case "tickers":
		out = okxV5Tickers(data)
	case "positions":
		out = okxV5Positions(data, accountID)
	case "account":
		out = okxV5Account(data, accountID)
	}
	return n.stamp(out), nil
}

func okxV5Tickers(data *simplejson.Json) []feed.Message {
	var out []feed.Message
	each(data, func(d *simplejson.Json) {
		out = append(out, &feed.Quotation{
			InstrumentID: text(d.Get("instId")),
			Price:        num(d.Get("last")),
			Volume:       num(d.Get("lastSz")),
			Exchange:     feed.SourceOkxV5.Exchange,
			ExchangeID:   feed.SourceOkxV5.ExchangeID,
			AccountType:  feed.SourceOkxV5.AccountType,
			DataType:     dataTypeTrade,
			UpdateTime:   Millis(d.Get("ts")),
		})
	})
	return out
}

func okxV5Positions(data *simplejson.Json, accountID string) []feed.Message {
	var out []feed.Message
	each(data, func(d *simplejson.Json) {
		// 只推全仓
		if text(d.Get("mgnMode")) != "cross" {
			return
		}
		direction, ok := Direction(text(d.Get("posSide")))
		if !ok {
			return
		}
		out = append(out, &feed.Position{
			InstrumentID:     text(d.Get("instId")),
			AccountID:        accountID,
			ContractSize:     num(d.Get("pos")).Abs(),
			OpenPrice:        num(d.Get("avgPx")),
			UnrealizedProfit: num(d.Get("upl")),
			Direction:        direction,
			Exchange:         feed.SourceOkxV5.Exchange,
			ExchangeID:       feed.SourceOkxV5.ExchangeID,
			AccountType:      feed.SourceOkxV5.AccountType,
			UpdateTime:       Millis(d.Get("pTime")),
		})
	})
	return out
}

func okxV5Account(data *simplejson.Json, accountID string) []feed.Message {
	var out []feed.Message
	each(data, func(d *simplejson.Json) {
		each(d.Get("details"), func(detail *simplejson.Json) {
			out = append(out, &feed.Asset{
				AccountID:   accountID,
				AssetSymbol: text(detail.Get("ccy")),
				Total:       num(detail.Get("eq")),
				Available:   num(detail.Get("availEq")),
				Frozen:      num(detail.Get("frozenBal")),
				Exchange:    feed.SourceOkxV5.Exchange,
				ExchangeID:  feed.SourceOkxV5.ExchangeID,
				AccountType: feed.SourceOkxV5.AccountType,
				UpdateTime:  Millis(detail.Get("uTime")),
			})
		})
	})
	return out
}
