package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/Kevin-Rudy/gospeed/pkg/acquisition"
	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/transport"
	"github.com/Kevin-Rudy/gospeed/pkg/tui"
)

// runApp 主要应用逻辑处理函数
func runApp(c *cli.Context) error {
	if c.NArg() > 0 {
		return cli.Exit(fmt.Sprintf("错误: 未知参数 %v\n使用方法: gospeed [选项] 或 gospeed serve", c.Args().Slice()), 1)
	}

	// 构建配置
	appConfig, err := buildConfigFromCLI(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("配置错误: %v", err), 1)
	}

	// 验证配置
	if err := validateConfig(appConfig); err != nil {
		return cli.Exit(fmt.Sprintf("配置验证失败: %v", err), 1)
	}

	headless := appConfig.Headless || !tui.IsTerminal(os.Stdout.Fd())

	logger, closeLog, err := newLogger(appConfig.AppMode, appConfig.LogFile, headless)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer closeLog()

	// 指标注册表
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	controller, err := newController(appConfig, logger, reg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("无法创建采集控制器: %v", err), 1)
	}

	if appConfig.MetricsAddr != "" {
		srv := startMetricsServer(appConfig.MetricsAddr, reg, logger)
		defer shutdownServer(srv, logger)
	}

	if headless {
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		params := appConfig.Settings.Params(appConfig.Mode)
		return runHeadless(ctx, controller, params, appConfig.Settings, c.App.Writer)
	}

	// 显示运行配置
	printRunningConfig(appConfig)
	fmt.Println("\n正在启动TUI界面...")

	// 显示使用说明
	printUsageInstructions()

	// 界面占用终端，包级日志也写入日志文件
	log.SetOutput(logger.Writer())

	// 创建并启动TUI实例，这会阻塞直到用户退出
	tuiInstance := tui.NewTUI(controller, appConfig.Mode, appConfig.Settings, appConfig.TUIConfig)
	if err := tuiInstance.Run(); err != nil {
		return cli.Exit(fmt.Sprintf("TUI运行出错: %v", err), 1)
	}

	fmt.Println("\n程序已退出")
	return nil
}

// newController 按数据来源模式组装采集控制器
func newController(config *AppConfig, logger *log.Logger, reg prometheus.Registerer) (*acquisition.Controller, error) {
	opts := []acquisition.Option{
		acquisition.WithLogger(logger),
		acquisition.WithMetrics(acquisition.NewMetrics(reg)),
	}

	if config.Mode == core.ModeLive {
		client, err := transport.NewClient(config.Transport, logger, transport.NewMetrics(reg))
		if err != nil {
			return nil, err
		}
		opts = append(opts, acquisition.WithFetcher(client), acquisition.WithStreamer(client))
	}

	return acquisition.New(config.Acquisition, opts...)
}

// startMetricsServer 在后台提供 /metrics
func startMetricsServer(addr string, gatherer prometheus.Gatherer, logger *log.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("WARN 指标服务退出: %v", err)
		}
	}()
	logger.Printf("指标服务监听 %s", addr)
	return srv
}

// shutdownServer 在限定时间内关闭HTTP服务
func shutdownServer(srv *http.Server, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Printf("WARN 关闭HTTP服务失败: %v", err)
	}
}
