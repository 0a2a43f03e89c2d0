package normalize

import (
	"strings"

	"github.com/bitly/go-simplejson"

	"github.com/go-gotop/subscribe/feed"
)

// Huobi 行情按 ch 分发（market.*.detail），私有推送按 topic 分发（positions.* / accounts.*）
func (n *Normalizer) Huobi(raw []byte, accountID string) ([]feed.Message, error) {
	j, err := parse(raw)
	if err != nil {
		return nil, err
	}
	var out []feed.Message
	if ch := j.Get("ch").MustString(); ch != "" {
		if q := huobiQuotation(ch, j); q != nil {
			out = append(out, q)
		}
		return n.stamp(out), nil
	}

	topic := j.Get("topic").MustString()
	ts := Millis(j.Get("ts"))
	switch {
	case strings.HasPrefix(topic, "positions"):
		out = n.huobiPositions(j.Get("data"), accountID, ts)
	case strings.HasPrefix(topic, "accounts"):
		out = huobiAccounts(j.Get("data"), accountID, ts)
	}
	return n.stamp(out), nil
}

// HuobiInstrument market.btcusdt.detail -> BTC-USDT，market.BTC210625.detail -> BTC-USD-210625
func HuobiInstrument(ch string) (string, bool) {
	parts := strings.Split(strings.ToLower(ch), ".")
	if len(parts) != 3 || parts[0] != "market" || parts[2] != "detail" {
		return "", false
	}
	sym := parts[1]
	if strings.HasSuffix(sym, "usdt") {
		cur := strings.TrimSuffix(sym, "usdt")
		if cur == "" {
			return "", false
		}
		return strings.ToUpper(cur) + "-USDT", true
	}
	if len(sym) <= 6 {
		return "", false
	}
	date := sym[len(sym)-6:]
	return strings.ToUpper(sym[:len(sym)-6]) + "-USD-" + date, true
}

func huobiQuotation(ch string, j *simplejson.Json) feed.Message {
	tick, ok := j.CheckGet("tick")
	if !ok {
		return nil
	}
	instrumentID, ok := HuobiInstrument(ch)
	if !ok {
		return nil
	}
	return &feed.Quotation{
		InstrumentID: instrumentID,
		Price:        num(tick.Get("close")),
		Volume:       num(tick.Get("amount")),
		Exchange:     feed.SourceHuobi.Exchange,
		ExchangeID:   feed.SourceHuobi.ExchangeID,
		DataType:     dataTypeTrade,
		UpdateTime:   Millis(j.Get("ts")),
	}
}

// 火币记录带 margin_mode 且不是全仓时丢弃
func huobiCross(d *simplejson.Json) bool {
	mode, ok := d.CheckGet("margin_mode")
	if !ok {
		return true
	}
	return text(mode) == "cross"
}

func (n *Normalizer) huobiPositions(data *simplejson.Json, accountID string, ts int64) []feed.Message {
	dates := n.dates()
	var out []feed.Message
	each(data, func(d *simplejson.Json) {
		if !huobiCross(d) {
			return
		}
		direction, ok := Direction(text(d.Get("direction")))
		if !ok {
			return
		}
		cur := strings.ToUpper(text(d.Get("symbol")))
		contractType := text(d.Get("contract_type"))
		date := dates.ContractDate(contractType)
		if date == "" {
			n.logger.Warnf("drop huobi position %s: unknown contract_type %q", cur, contractType)
			return
		}
		out = append(out, &feed.Position{
			InstrumentID:     cur + "-USD-" + date,
			AccountID:        accountID,
			ContractSize:     num(d.Get("volume")).Abs(),
			OpenPrice:        num(d.Get("cost_open")),
			UnrealizedProfit: num(d.Get("profit_unreal")),
			Direction:        direction,
			Exchange:         feed.SourceHuobi.Exchange,
			ExchangeID:       feed.SourceHuobi.ExchangeID,
			UpdateTime:       ts,
		})
	})
	return out
}

func huobiAccounts(data *simplejson.Json, accountID string, ts int64) []feed.Message {
	var out []feed.Message
	each(data, func(d *simplejson.Json) {
		if !huobiCross(d) {
			return
		}
		out = append(out, &feed.Asset{
			AccountID:        accountID,
			AssetSymbol:      strings.ToUpper(text(d.Get("symbol"))),
			Total:            num(d.Get("margin_balance")),
			Available:        num(d.Get("margin_available")),
			Frozen:           num(d.Get("margin_frozen")),
			MarginPosition:   decimalPtr(num(d.Get("margin_position"))),
			UnrealizedProfit: decimalPtr(num(d.Get("profit_unreal"))),
			Exchange:         feed.SourceHuobi.Exchange,
			ExchangeID:       feed.SourceHuobi.ExchangeID,
			UpdateTime:       ts,
		})
	})
	return out
}
