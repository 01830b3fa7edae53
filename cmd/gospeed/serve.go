package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/Kevin-Rudy/gospeed/pkg/backend"
	"github.com/Kevin-Rudy/gospeed/pkg/simulator"
	"github.com/Kevin-Rudy/gospeed/pkg/timeutil"
)

// runServe 启动开发用遥测API服务，直到收到中断信号
func runServe(c *cli.Context) error {
	config := backend.DefaultConfig()
	config.Token = c.String("token")
	config.FeedInterval = c.Duration("feed-interval")
	config.PingInterval = c.Duration("ping-interval")
	if err := config.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("配置验证失败: %v", err), 1)
	}

	logger, closeLog, err := newLogger(appModeDev, c.String("log-file"), true)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeLog()

	store, err := backend.OpenStore(c.String("db"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("无法打开数据库: %v", err), 1)
	}
	defer store.Close()

	hub := backend.NewHub()
	defer hub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clock := timeutil.RealClock{}
	server, err := backend.NewServer(config, store, hub,
		backend.WithClock(clock),
		backend.WithLogger(logger),
		backend.WithMetrics(backend.NewMetrics(reg)),
		backend.WithGatherer(reg),
	)
	if err != nil {
		return cli.Exit(fmt.Sprintf("无法创建服务: %v", err), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 模拟数据注入
	feeder := backend.NewFeeder(server, simulator.NewGenerator(nil, clock), clock, logger)
	feederDone := make(chan struct{})
	go func() {
		defer close(feederDone)
		feeder.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              c.String("listen"),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	logger.Printf("遥测API服务监听 %s，数据库 %s", srv.Addr, c.String("db"))

	select {
	case err := <-serveErr:
		stop()
		<-feederDone
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return cli.Exit(fmt.Sprintf("服务运行出错: %v", err), 1)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Printf("正在关闭服务...")
	// 实时连接在 BaseContext 取消后自行结束
	shutdownServer(srv, logger)
	<-feederDone
	return nil
}
