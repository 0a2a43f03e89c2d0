package okxv3

import (
	"strings"

	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/expiry"
	"github.com/go-gotop/subscribe/feed"
)

const skipCurrency = "USD"

func subscribe(args ...string) connector.Request {
	payload, _ := feed.Json.Marshal(request{Op: "subscribe", Args: args})
	return connector.Request{Key: strings.Join(args, ","), Payload: payload}
}

func channels(prefix, cur string, dates expiry.Dates) []string {
	var args []string
	for _, d := range dates.List() {
		args = append(args, prefix+cur+"-USD-"+d)
	}
	return args
}

// PublicRequests 每个币种：一条合约 ticker（全部交割日）和一条现货 ticker
func PublicRequests(currencies []string, dates expiry.Dates) []connector.Request {
	var out []connector.Request
	for _, c := range currencies {
		cur := strings.ToUpper(c)
		if args := channels("futures/ticker:", cur, dates); len(args) > 0 {
			out = append(out, subscribe(args...))
		}
		out = append(out, subscribe("spot/ticker:"+cur+"-USDT"))
	}
	return out
}

// PrivateRequests 每个币种：一条合约持仓（全部交割日）和一条合约账户，跳过 USD
func PrivateRequests(currencies []string, dates expiry.Dates) []connector.Request {
	var out []connector.Request
	for _, c := range currencies {
		cur := strings.ToUpper(c)
		if cur == skipCurrency {
			continue
		}
		if args := channels("futures/position:", cur, dates); len(args) > 0 {
			out = append(out, subscribe(args...))
		}
		out = append(out, subscribe("futures/account:"+cur))
	}
	return out
}
