// Package supervisor 保证每个订阅任务常驻：任务退出即重启，并邮件通知运维。
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/go-gotop/subscribe/supervisor"

	interruptTitle = "订阅进程服务中断提醒"
	recoverTitle   = "订阅进程服务恢复提醒"

	paramTimeout = 5 * time.Second
	// 启动失败后的重试间隔
	launchRetry = time.Second
)

var ErrDuplicateTask = errors.New("duplicate task")

func InterruptContent(env, task string, pid int) string {
	return fmt.Sprintf("环境名称: %s, 进程名称: %s, 进程pid: %d挂了, 请检查...", env, task, pid)
}

func RecoverContent(env, task string, pid int) string {
	return fmt.Sprintf("环境名称: %s, 进程名称: %s, 进程pid: %d重启成功", env, task, pid)
}

// taskState 进程生命周期内一直存在，restart 一旦置位不再复位
type taskState struct {
	task     Task
	restart  bool
	restarts int
}

type Supervisor struct {
	mux      sync.Mutex
	tasks    []*taskState
	launcher Launcher
	opts     *options
}

func New(tasks []Task, launcher Launcher, opts ...Option) (*Supervisor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	seen := make(map[string]struct{}, len(tasks))
	states := make([]*taskState, 0, len(tasks))
	for _, t := range tasks {
		if _, ok := seen[t.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTask, t.Name)
		}
		seen[t.Name] = struct{}{}
		states = append(states, &taskState{task: t})
	}
	return &Supervisor{tasks: states, launcher: launcher, opts: o}, nil
}

// Restarts 任务累计重启次数
func (s *Supervisor) Restarts(name string) int {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, st := range s.tasks {
		if st.task.Name == name {
			return st.restarts
		}
	}
	return 0
}

// Run 启动全部任务，阻塞到 ctx 结束
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, st := range s.tasks {
		wg.Add(1)
		go func(st *taskState) {
			defer wg.Done()
			s.watch(ctx, st)
		}(st)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Supervisor) watch(ctx context.Context, st *taskState) {
	name := st.task.Name
	w, err := s.launch(ctx, st.task)
	if err != nil {
		return
	}
	s.opts.logger.Infof("task %s started, pid %d", name, w.PID())

	for {
		err := w.Wait()
		if ctx.Err() != nil {
			return
		}
		pid := w.PID()
		s.opts.logger.Errorf("task %s exited, pid %d: %v", name, pid, err)

		if s.markRestart(st) {
			// 再次中断，等待冷却后再重启
			s.opts.logger.Warnf("task %s restart in %s", name, s.opts.cooldown)
			select {
			case <-ctx.Done():
				return
			case <-s.opts.after(s.opts.cooldown):
			}
		}

		s.notify(ctx, InterruptContent(s.opts.environment, name, pid), interruptTitle)

		next, err := s.relaunch(ctx, st, pid, err)
		if err != nil {
			return
		}
		w = next
		// 恢复邮件与中断邮件使用同一个 pid
		s.notify(ctx, RecoverContent(s.opts.environment, name, pid), recoverTitle)
	}
}

// markRestart 置位重启标记，返回置位前的值
func (s *Supervisor) markRestart(st *taskState) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	prev := st.restart
	st.restart = true
	return prev
}

func (s *Supervisor) relaunch(ctx context.Context, st *taskState, pid int, cause error) (Worker, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "supervisor.restart",
		trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("task", st.task.Name),
		attribute.Int("pid", pid),
	)
	if cause != nil {
		span.RecordError(cause)
	}

	w, err := s.launch(ctx, st.task)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	s.mux.Lock()
	st.restarts++
	s.mux.Unlock()
	span.SetAttributes(attribute.Int("new_pid", w.PID()))
	s.opts.logger.Infof("task %s restarted, pid %d", st.task.Name, w.PID())
	return w, nil
}

// launch 启动失败时按 launchRetry 重试，直到 ctx 结束
func (s *Supervisor) launch(ctx context.Context, task Task) (Worker, error) {
	for {
		w, err := s.launcher.Launch(ctx, task)
		if err == nil {
			return w, nil
		}
		s.opts.logger.Errorf("launch task %s: %v", task.Name, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.opts.after(launchRetry):
		}
	}
}

// notify 告警失败只记日志，不影响重启
func (s *Supervisor) notify(ctx context.Context, content, title string) {
	recipients := s.recipients(ctx)
	if err := s.opts.alert.Send(content, recipients, title); err != nil {
		s.opts.logger.Errorf("send alert %q: %v", title, err)
	}
}

func (s *Supervisor) recipients(ctx context.Context) []string {
	if s.opts.params == nil {
		return []string{}
	}
	ctx, cancel := context.WithTimeout(ctx, paramTimeout)
	defer cancel()
	emails, err := s.opts.params.MaintenanceEmails(ctx)
	if err != nil {
		s.opts.logger.Warnf("load maintenance emails: %v", err)
		return []string{}
	}
	return emails
}
