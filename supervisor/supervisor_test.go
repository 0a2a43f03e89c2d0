package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var errBoom = errors.New("boom")

// fakeWorker 收到 exit 或 ctx 结束时退出
type fakeWorker struct {
	pid  int
	ctx  context.Context
	exit chan error
}

func (w *fakeWorker) PID() int { return w.pid }

func (w *fakeWorker) Wait() error {
	select {
	case err := <-w.exit:
		return err
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

type fakeLauncher struct {
	mux      sync.Mutex
	pid      int
	launched chan *fakeWorker
}

func (l *fakeLauncher) Launch(ctx context.Context, task Task) (Worker, error) {
	l.mux.Lock()
	l.pid++
	w := &fakeWorker{pid: l.pid, ctx: ctx, exit: make(chan error, 1)}
	l.mux.Unlock()
	l.launched <- w
	return w, nil
}

type sentAlert struct {
	content    string
	recipients []string
	title      string
}

type fakeAlert struct {
	sent chan sentAlert
	err  error
}

func (a *fakeAlert) Send(content string, recipients []string, title string) error {
	a.sent <- sentAlert{content: content, recipients: recipients, title: title}
	return a.err
}

type fakeParams struct {
	emails []string
	err    error
}

func (p *fakeParams) MaintenanceEmails(context.Context) ([]string, error) {
	return p.emails, p.err
}

func TestSupervisorSuite(t *testing.T) {
	suite.Run(t, new(supervisorTestSuite))
}

type supervisorTestSuite struct {
	suite.Suite
	launcher *fakeLauncher
	alert    *fakeAlert
	waits    chan time.Duration
	release  chan time.Time
}

func (s *supervisorTestSuite) SetupTest() {
	s.launcher = &fakeLauncher{launched: make(chan *fakeWorker, 8)}
	s.alert = &fakeAlert{sent: make(chan sentAlert, 8)}
	s.waits = make(chan time.Duration, 4)
	s.release = make(chan time.Time)
}

func (s *supervisorTestSuite) after(d time.Duration) <-chan time.Time {
	s.waits <- d
	return s.release
}

func (s *supervisorTestSuite) newSupervisor(opts ...Option) *Supervisor {
	opts = append([]Option{
		WithEnvironment("prod"),
		WithAlert(s.alert),
		withAfter(s.after),
	}, opts...)
	sup, err := New([]Task{{Name: "publicchannel_ok_v5"}}, s.launcher, opts...)
	s.Require().NoError(err)
	return sup
}

func (s *supervisorTestSuite) nextWorker() *fakeWorker {
	select {
	case w := <-s.launcher.launched:
		return w
	case <-time.After(2 * time.Second):
		s.FailNow("worker not launched")
	}
	return nil
}

func (s *supervisorTestSuite) nextAlert() sentAlert {
	select {
	case a := <-s.alert.sent:
		return a
	case <-time.After(2 * time.Second):
		s.FailNow("alert not sent")
	}
	return sentAlert{}
}

func (s *supervisorTestSuite) TestCooldownOnlyOnRepeatFailure() {
	sup := s.newSupervisor(WithParamStore(&fakeParams{emails: []string{"a@x.com", "b@x.com"}}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	w1 := s.nextWorker()
	w1.exit <- errBoom

	// 第一次中断立即重启
	interrupt := s.nextAlert()
	s.Equal(interruptTitle, interrupt.title)
	s.Equal("环境名称: prod, 进程名称: publicchannel_ok_v5, 进程pid: 1挂了, 请检查...", interrupt.content)
	s.Equal([]string{"a@x.com", "b@x.com"}, interrupt.recipients)
	w2 := s.nextWorker()
	recovered := s.nextAlert()
	s.Equal(recoverTitle, recovered.title)
	// 恢复邮件沿用中断时的 pid
	s.Equal("环境名称: prod, 进程名称: publicchannel_ok_v5, 进程pid: 1重启成功", recovered.content)
	s.Equal(2, w2.PID())
	s.Empty(s.waits)

	// 再次中断先等待冷却
	w2.exit <- nil
	select {
	case d := <-s.waits:
		s.Equal(60*time.Second, d)
	case <-time.After(2 * time.Second):
		s.FailNow("cooldown not applied")
	}
	select {
	case <-s.launcher.launched:
		s.Fail("relaunched before cooldown")
	case <-time.After(50 * time.Millisecond):
	}
	s.release <- time.Now()
	s.nextAlert()
	s.nextWorker()
	s.nextAlert()
	s.Equal(2, sup.Restarts("publicchannel_ok_v5"))

	cancel()
	s.ErrorIs(<-done, context.Canceled)
}

func (s *supervisorTestSuite) TestNotifyFailureDoesNotBlockRestart() {
	s.alert.err = errors.New("smtp down")
	sup := s.newSupervisor(WithParamStore(&fakeParams{err: errors.New("redis down")}))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sup.Run(ctx) }()

	w1 := s.nextWorker()
	w1.exit <- errBoom

	a := s.nextAlert()
	s.Empty(a.recipients)
	s.NotNil(s.nextWorker())
	s.nextAlert()
}

func (s *supervisorTestSuite) TestCancelStopsWithoutRestart() {
	sup := s.newSupervisor()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	s.nextWorker()
	cancel()
	s.ErrorIs(<-done, context.Canceled)
	s.Empty(s.alert.sent)
	s.Empty(s.launcher.launched)
}

func TestNewRejectsDuplicateTask(t *testing.T) {
	_, err := New([]Task{{Name: "a"}, {Name: "a"}}, NewGoroutineLauncher())
	assert.ErrorIs(t, err, ErrDuplicateTask)
}

func TestGoroutineLauncher(t *testing.T) {
	l := NewGoroutineLauncher()

	w, err := l.Launch(context.Background(), Task{Name: "panic", Run: func(context.Context) error {
		panic("bad frame")
	}})
	require.NoError(t, err)
	assert.ErrorIs(t, w.Wait(), ErrWorkerPanic)
	assert.Equal(t, 1, w.PID())

	w, err = l.Launch(context.Background(), Task{Name: "ok", Run: func(context.Context) error {
		return errBoom
	}})
	require.NoError(t, err)
	assert.ErrorIs(t, w.Wait(), errBoom)
	assert.Equal(t, 2, w.PID())

	_, err = l.Launch(context.Background(), Task{Name: "empty"})
	assert.Error(t, err)
}

func TestProcessLauncher(t *testing.T) {
	l, err := NewProcessLauncher("/bin/sh", "-c", "exit 0")
	require.NoError(t, err)
	w, err := l.Launch(context.Background(), Task{Name: "x"})
	require.NoError(t, err)
	assert.NotZero(t, w.PID())
	assert.NoError(t, w.Wait())
}
