package okxv5

import (
	"strings"

	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/expiry"
	"github.com/go-gotop/subscribe/feed"
)

type arg struct {
	Channel  string `json:"channel"`
	InstType string `json:"instType,omitempty"`
	Uly      string `json:"uly,omitempty"`
	InstID   string `json:"instId,omitempty"`
	Ccy      string `json:"ccy,omitempty"`
}

type request struct {
	Op   string `json:"op"`
	Args []arg  `json:"args"`
}

func subscribe(key string, args ...arg) connector.Request {
	payload, _ := feed.Json.Marshal(request{Op: "subscribe", Args: args})
	return connector.Request{Key: key, Payload: payload}
}

// PublicRequests 每个币种：现货 CUR-USDT + 每个交割日的 CUR-USD-yymmdd，一个 instId 一条请求
func PublicRequests(currencies []string, dates expiry.Dates) []connector.Request {
	var out []connector.Request
	for _, c := range currencies {
		cur := strings.ToUpper(c)
		instIDs := []string{cur + "-USDT"}
		for _, d := range dates.List() {
			instIDs = append(instIDs, cur+"-USD-"+d)
		}
		for _, id := range instIDs {
			out = append(out, subscribe("tickers:"+id, arg{Channel: "tickers", InstID: id}))
		}
	}
	return out
}

// PrivateRequests 每个币种：一条 positions（全部交割日）和一条 account
func PrivateRequests(currencies []string, dates expiry.Dates) []connector.Request {
	var out []connector.Request
	for _, c := range currencies {
		cur := strings.ToUpper(c)
		uly := cur + "-USD"

		var args []arg
		instIDs := make([]string, 0, 4)
		for _, d := range dates.List() {
			id := uly + "-" + d
			instIDs = append(instIDs, id)
			args = append(args, arg{Channel: "positions", InstType: "FUTURES", Uly: uly, InstID: id})
		}
		if len(args) > 0 {
			out = append(out, subscribe("positions:"+strings.Join(instIDs, ","), args...))
		}
		out = append(out, subscribe("account:"+cur, arg{Channel: "account", Ccy: cur}))
	}
	return out
}
