package normalize

import (
	"regexp"
	"sort"

	"github.com/bitly/go-simplejson"

	"github.com/go-gotop/subscribe/feed"
)

var v3TickerTable = regexp.MustCompile(`^(futures|spot|swap)/ticker$`)

// OkxV3 按 table 分发：*/ticker / futures/position / futures/account
func (n *Normalizer) OkxV3(raw []byte, accountID string) ([]feed.Message, error) {
	j, err := parse(raw)
	if err != nil {
		return nil, err
	}
	table := j.Get("table").MustString()
	data := j.Get("data")
	var out []feed.Message
	switch {
	case v3TickerTable.MatchString(table):
		out = okxV3Tickers(data)
	case table == "futures/position":
		out = okxV3Positions(data, accountID)
	case table == "futures/account":
		out = okxV3Account(data, accountID)
	}
	return n.stamp(out), nil
}

func okxV3Tickers(data *simplejson.Json) []feed.Message {
	var out []feed.Message
	each(data, func(d *simplejson.Json) {
		out = append(out, &feed.Quotation{
			InstrumentID: text(d.Get("instrument_id")),
			Price:        num(d.Get("last")),
			Volume:       num(d.Get("last_qty")),
			Exchange:     feed.SourceOkxV3.Exchange,
			ExchangeID:   feed.SourceOkxV3.ExchangeID,
			AccountType:  feed.SourceOkxV3.AccountType,
			DataType:     dataTypeTrade,
			UpdateTime:   Millis(d.Get("timestamp")),
		})
	})
	return out
}

// 每条全仓持仓拆成多、空两条，开仓均价分别取 long_avg_cost / short_avg_cost
func okxV3Positions(data *simplejson.Json, accountID string) []feed.Message {
	var out []feed.Message
	each(data, func(d *simplejson.Json) {
		if text(d.Get("margin_mode")) != "crossed" {
			return
		}
		instrumentID := text(d.Get("instrument_id"))
		updateTime := Millis(d.Get("updated_at"))
		legs := []struct {
			direction      int
			qty, cost, pnl string
		}{
			{feed.DirectionLong, "long_qty", "long_avg_cost", "long_unrealised_pnl"},
			{feed.DirectionShort, "short_qty", "short_avg_cost", "short_unrealised_pnl"},
		}
		for _, leg := range legs {
			out = append(out, &feed.Position{
				InstrumentID:     instrumentID,
				AccountID:        accountID,
				ContractSize:     num(d.Get(leg.qty)).Abs(),
				OpenPrice:        num(d.Get(leg.cost)),
				UnrealizedProfit: num(d.Get(leg.pnl)),
				Direction:        leg.direction,
				Exchange:         feed.SourceOkxV3.Exchange,
				ExchangeID:       feed.SourceOkxV3.ExchangeID,
				AccountType:      feed.SourceOkxV3.AccountType,
				UpdateTime:       updateTime,
			})
		}
	})
	return out
}

// data 每项是 币种 -> 账户信息
func okxV3Account(data *simplejson.Json, accountID string) []feed.Message {
	var out []feed.Message
	each(data, func(d *simplejson.Json) {
		m, err := d.Map()
		if err != nil {
			return
		}
		currencies := make([]string, 0, len(m))
		for c := range m {
			currencies = append(currencies, c)
		}
		sort.Strings(currencies)
		for _, c := range currencies {
			acc := d.Get(c)
			if text(acc.Get("margin_mode")) != "crossed" {
				continue
			}
			out = append(out, &feed.Asset{
				AccountID:   accountID,
				AssetSymbol: c,
				Total:       num(acc.Get("equity")),
				Available:   num(acc.Get("available")),
				Frozen:      num(acc.Get("margin")),
				Exchange:    feed.SourceOkxV3.Exchange,
				ExchangeID:  feed.SourceOkxV3.ExchangeID,
				AccountType: feed.SourceOkxV3.AccountType,
				UpdateTime:  Millis(acc.Get("timestamp")),
			})
		}
	})
	return out
}
