// Package local 进程内的连接限流器
package local

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/go-gotop/subscribe/limiter"
)

// NewLocalLimiter 默认 1 秒最多 3 次建连
func NewLocalLimiter(opts ...limiter.Option) (*LocalLimiter, error) {
	o := &limiter.Options{
		PeriodLimitArray: []limiter.PeriodLimit{
			{WsConnectPeriod: "1s", WsConnectTimes: 3},
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	l := &LocalLimiter{}
	for _, p := range o.PeriodLimitArray {
		if p.WsConnectTimes <= 0 {
			continue
		}
		d, err := limiter.ParsePeriod(p.WsConnectPeriod)
		if err != nil {
			return nil, err
		}
		every := rate.Every(d / time.Duration(p.WsConnectTimes))
		l.ws = append(l.ws, rate.NewLimiter(every, int(p.WsConnectTimes)))
	}
	return l, nil
}

// LocalLimiter 多个窗口同时满足才放行
type LocalLimiter struct {
	ws []*rate.Limiter
}

func (l *LocalLimiter) WsAllow() bool {
	now := time.Now()
	reservations := make([]*rate.Reservation, 0, len(l.ws))
	for _, r := range l.ws {
		res := r.ReserveN(now, 1)
		if !res.OK() || res.DelayFrom(now) > 0 {
			res.CancelAt(now)
			for _, prev := range reservations {
				prev.CancelAt(now)
			}
			return false
		}
		reservations = append(reservations, res)
	}
	return true
}

func (l *LocalLimiter) WsWait(ctx context.Context) error {
	for _, r := range l.ws {
		if err := r.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
