package connector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrMaxConnReached  = errors.New("max connection reached")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExists   = errors.New("session already exists")
)

// AccountSession 一个账户独立的会话
type AccountSession interface {
	ID() string
	Run(ctx context.Context) error
	Update(desired []Request) (added, removed []Request)
}

type registryEntry struct {
	session AccountSession
	cancel  context.CancelFunc
	done    chan struct{}
}

// Registry 账户 -> 会话，只由轮询协程写
type Registry struct {
	mux      sync.Mutex
	maxConn  int
	sessions map[string]*registryEntry
	faults   chan error
	opts     *options
}

func NewRegistry(opts ...Option) *Registry {
	o := applyOptions(opts)
	return &Registry{
		maxConn:  o.maxConn,
		sessions: make(map[string]*registryEntry),
		faults:   make(chan error, 1),
		opts:     o,
	}
}

// Open 在独立的协程里运行会话，ctx 结束或 Close 时退出
func (r *Registry) Open(ctx context.Context, accountID string, s AccountSession) error {
	r.mux.Lock()
	defer r.mux.Unlock()

	if _, ok := r.sessions[accountID]; ok {
		return ErrSessionExists
	}
	if len(r.sessions) >= r.maxConn {
		return ErrMaxConnReached
	}

	sctx, cancel := context.WithCancel(ctx)
	e := &registryEntry{session: s, cancel: cancel, done: make(chan struct{})}
	r.sessions[accountID] = e
	go func() {
		defer close(e.done)
		err := runRecover(sctx, s.Run)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		r.opts.logger.Errorf("account session %s exit: %v", s.ID(), err)
		if errors.Is(err, ErrSessionPanic) {
			select {
			case r.faults <- fmt.Errorf("account %s: %w", accountID, err):
			default:
			}
		}
	}()
	return nil
}

// Faults 会话 panic 时收到错误，只保留第一个
func (r *Registry) Faults() <-chan error {
	return r.faults
}

// Close 取消该账户的会话并等待退出，其它账户不受影响
func (r *Registry) Close(accountID string) error {
	r.mux.Lock()
	e, ok := r.sessions[accountID]
	if ok {
		delete(r.sessions, accountID)
	}
	r.mux.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	e.cancel()
	<-e.done
	return nil
}

func (r *Registry) Get(accountID string) (AccountSession, bool) {
	r.mux.Lock()
	defer r.mux.Unlock()
	e, ok := r.sessions[accountID]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// IDs 有序的账户列表
func (r *Registry) IDs() []string {
	r.mux.Lock()
	defer r.mux.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) Each(fn func(accountID string, s AccountSession)) {
	r.mux.Lock()
	snapshot := make(map[string]AccountSession, len(r.sessions))
	for id, e := range r.sessions {
		snapshot[id] = e.session
	}
	r.mux.Unlock()

	for id, s := range snapshot {
		fn(id, s)
	}
}

func (r *Registry) Shutdown() {
	for _, id := range r.IDs() {
		_ = r.Close(id)
	}
}
