package connector

import (
	"sync"
)

// Diff 纯函数：added = desired - prev，removed = prev - desired，均按 Key 比较并保持原顺序
func Diff(prev, desired []Request) (added, removed []Request) {
	prevKeys := make(map[string]struct{}, len(prev))
	for _, r := range prev {
		prevKeys[r.Key] = struct{}{}
	}
	desiredKeys := make(map[string]struct{}, len(desired))
	for _, r := range desired {
		if _, dup := desiredKeys[r.Key]; dup {
			continue
		}
		desiredKeys[r.Key] = struct{}{}
		if _, ok := prevKeys[r.Key]; !ok {
			added = append(added, r)
		}
	}
	for _, r := range prev {
		if _, ok := desiredKeys[r.Key]; !ok {
			removed = append(removed, r)
		}
	}
	return added, removed
}

func dedup(reqs []Request) []Request {
	seen := make(map[string]struct{}, len(reqs))
	out := make([]Request, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := seen[r.Key]; ok {
			continue
		}
		seen[r.Key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Subscriptions 一个会话的订阅状态：active 为当前应订阅的集合，pending 为待发送队列
type Subscriptions struct {
	mux     sync.Mutex
	active  []Request
	pending []Request
	unsub   func(Request) Request
	notify  chan struct{}
}

func NewSubscriptions(unsub func(Request) Request) *Subscriptions {
	return &Subscriptions{
		unsub:  unsub,
		notify: make(chan struct{}, 1),
	}
}

// Update 与当前 active 比较，新增的排队订阅；移出 active 之后再排队退订
func (s *Subscriptions) Update(desired []Request) (added, removed []Request) {
	s.mux.Lock()
	defer s.mux.Unlock()

	added, removed = Diff(s.active, desired)
	if len(added) == 0 && len(removed) == 0 {
		return nil, nil
	}
	s.active = dedup(desired)
	s.pending = append(s.pending, added...)
	for _, r := range removed {
		s.pending = append(s.pending, s.unsub(r))
	}
	s.signal()
	return added, removed
}

// Reset 新连接建立后重发全部 active，旧连接上的退订不再需要
func (s *Subscriptions) Reset() {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.pending = append(make([]Request, 0, len(s.active)), s.active...)
	s.signal()
}

// Drain 取出全部待发送请求
func (s *Subscriptions) Drain() []Request {
	s.mux.Lock()
	defer s.mux.Unlock()

	out := s.pending
	s.pending = nil
	return out
}

func (s *Subscriptions) Active() []Request {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append([]Request(nil), s.active...)
}

func (s *Subscriptions) Notify() <-chan struct{} {
	return s.notify
}

func (s *Subscriptions) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
