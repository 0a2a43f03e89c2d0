package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/go-gotop/subscribe/app"
	"github.com/go-gotop/subscribe/conf"
	"github.com/go-gotop/subscribe/logger"
	"github.com/go-gotop/subscribe/supervisor"
	"github.com/go-gotop/subscribe/tracing"
)

const (
	modeGoroutine = "goroutine"
	modeProcess   = "process"
)

var (
	flagconf string
	flagtask string
	flagmode string
	// 子进程由父进程传入 false，避免端口冲突
	flagmetrics bool
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagtask, "task", "", "run a single task, eg: -task publicchannel_ok_v5")
	flag.StringVar(&flagmode, "mode", modeGoroutine, "worker mode: goroutine / process")
	flag.BoolVar(&flagmetrics, "metrics", true, "serve prometheus metrics when metrics.addr is set")
}

func main() {
	flag.Parse()
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "feedd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	bc, err := conf.Load(flagconf)
	if err != nil {
		return err
	}

	rdb := app.NewRedis(bc.Redis)
	defer rdb.Close()

	base, closeLog, err := logger.NewLogger(bc.Log, bc.ServiceName, rdb)
	if err != nil {
		return err
	}
	defer closeLog()
	l := base
	if flagtask != "" {
		l = logger.WithTask(base, flagtask)
	}
	h := log.NewHelper(log.With(l, "module", "main"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, shutdownTrace, err := tracing.NewTracerProvider(ctx, bc.Trace, bc.ServiceName)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTrace(sctx); err != nil {
			h.Errorf("shutdown tracer: %v", err)
		}
	}()

	a, cleanup, err := app.New(bc, l, rdb)
	if err != nil {
		return err
	}
	defer cleanup()

	if bc.Metrics.Addr != "" && flagmetrics {
		stopMetrics := serveMetrics(bc.Metrics.Addr, a.Metrics().Handler(), h)
		defer stopMetrics()
	}

	if flagtask != "" {
		h.Infof("run task %s", flagtask)
		return a.Run(ctx, flagtask)
	}

	launcher, err := newLauncher()
	if err != nil {
		return err
	}
	s, err := a.Supervisor(launcher)
	if err != nil {
		return err
	}
	h.Infof("supervisor start, mode %s, tasks %v", flagmode, bc.Tasks)
	return s.Run(ctx)
}

func newLauncher() (supervisor.Launcher, error) {
	switch flagmode {
	case modeGoroutine:
		return supervisor.NewGoroutineLauncher(), nil
	case modeProcess:
		// 子进程沿用同一份配置，由 -task 指定任务
		return supervisor.NewProcessLauncher("", "-conf", flagconf, "-metrics=false")
	}
	return nil, fmt.Errorf("unknown mode %q", flagmode)
}

func serveMetrics(addr string, handler http.Handler, h *log.Helper) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.Errorf("metrics server: %v", err)
		}
	}()
	h.Infof("metrics listen on %s", addr)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
