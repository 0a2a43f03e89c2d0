package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
)

var ErrWorkerPanic = errors.New("worker panic")

// Task 一个常驻的订阅任务
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Worker 一次启动的任务实例
type Worker interface {
	PID() int
	// Wait 阻塞到任务退出
	Wait() error
}

type Launcher interface {
	Launch(ctx context.Context, task Task) (Worker, error)
}

type goroutineWorker struct {
	pid  int
	done chan struct{}
	err  error
}

func (w *goroutineWorker) PID() int {
	return w.pid
}

func (w *goroutineWorker) Wait() error {
	<-w.done
	return w.err
}

// GoroutineLauncher 在当前进程内用协程运行任务，panic 转为 ErrWorkerPanic。
// pid 为自增编号。
type GoroutineLauncher struct {
	seq atomic.Int64
}

func NewGoroutineLauncher() *GoroutineLauncher {
	return &GoroutineLauncher{}
}

func (l *GoroutineLauncher) Launch(ctx context.Context, task Task) (Worker, error) {
	if task.Run == nil {
		return nil, fmt.Errorf("task %s has no entry", task.Name)
	}
	w := &goroutineWorker{
		pid:  int(l.seq.Add(1)),
		done: make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		defer func() {
			if r := recover(); r != nil {
				w.err = fmt.Errorf("%w: %v", ErrWorkerPanic, r)
			}
		}()
		w.err = task.Run(ctx)
	}()
	return w, nil
}

type processWorker struct {
	cmd *exec.Cmd
}

func (w *processWorker) PID() int {
	return w.cmd.Process.Pid
}

func (w *processWorker) Wait() error {
	return w.cmd.Wait()
}

// ProcessLauncher 以子进程运行任务：<executable> <args...> -task <name>
type ProcessLauncher struct {
	executable string
	args       []string
}

// NewProcessLauncher executable 为空时使用当前可执行文件
func NewProcessLauncher(executable string, args ...string) (*ProcessLauncher, error) {
	if executable == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		executable = exe
	}
	return &ProcessLauncher{executable: executable, args: args}, nil
}

func (l *ProcessLauncher) Launch(ctx context.Context, task Task) (Worker, error) {
	args := append(append([]string(nil), l.args...), "-task", task.Name)
	cmd := exec.CommandContext(ctx, l.executable, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", task.Name, err)
	}
	return &processWorker{cmd: cmd}, nil
}
