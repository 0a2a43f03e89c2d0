package huobi

import (
	"strings"

	"github.com/google/uuid"

	"github.com/go-gotop/subscribe/connector"
	"github.com/go-gotop/subscribe/expiry"
	"github.com/go-gotop/subscribe/feed"
)

const skipCurrency = "USD"

type marketRequest struct {
	Sub   string `json:"sub,omitempty"`
	Unsub string `json:"unsub,omitempty"`
	ID    string `json:"id"`
}

type notifyRequest struct {
	Op    string `json:"op"`
	Cid   string `json:"cid"`
	Topic string `json:"topic"`
}

func market(topic string) connector.Request {
	payload, _ := feed.Json.Marshal(marketRequest{Sub: topic})
	return connector.Request{Key: topic, Payload: payload}
}

// notify 的 cid 每次生成，不参与 Key
func notify(topic string) connector.Request {
	payload, _ := feed.Json.Marshal(notifyRequest{Op: "sub", Cid: uuid.NewString(), Topic: topic})
	return connector.Request{Key: topic, Payload: payload}
}

// FuturesRequests market.BTC210625.detail
func FuturesRequests(currencies []string, dates expiry.Dates) []connector.Request {
	var out []connector.Request
	for _, c := range currencies {
		cur := strings.ToUpper(c)
		for _, d := range dates.List() {
			out = append(out, market("market."+cur+d+".detail"))
		}
	}
	return out
}

// SpotRequests market.btcusdt.detail
func SpotRequests(currencies []string, _ expiry.Dates) []connector.Request {
	var out []connector.Request
	for _, c := range currencies {
		out = append(out, market("market."+strings.ToLower(c)+"usdt.detail"))
	}
	return out
}

// PrivateRequests positions.btc 和 accounts.btc，跳过 USD
func PrivateRequests(currencies []string, _ expiry.Dates) []connector.Request {
	var out []connector.Request
	for _, c := range currencies {
		if strings.ToUpper(c) == skipCurrency {
			continue
		}
		cur := strings.ToLower(c)
		out = append(out, notify("positions."+cur), notify("accounts."+cur))
	}
	return out
}

// Unsubscribe 行情 {"unsub":topic,"id":id}，订单推送 {"op":"unsub","cid":uuid,"topic":topic}
func (p *Protocol) Unsubscribe(req connector.Request) connector.Request {
	if p.private {
		var r notifyRequest
		if err := feed.Json.Unmarshal(req.Payload, &r); err != nil {
			return req
		}
		payload, _ := feed.Json.Marshal(notifyRequest{Op: "unsub", Cid: uuid.NewString(), Topic: r.Topic})
		return connector.Request{Key: req.Key, Payload: payload}
	}
	var r marketRequest
	if err := feed.Json.Unmarshal(req.Payload, &r); err != nil {
		return req
	}
	payload, _ := feed.Json.Marshal(marketRequest{Unsub: r.Sub, ID: r.ID})
	return connector.Request{Key: req.Key, Payload: payload}
}
