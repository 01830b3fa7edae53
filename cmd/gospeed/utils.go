package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// 程序信息常量
const (
	AppName    = "gospeed"
	AppVersion = "0.1.0"
	AppDesc    = "赛道测速传感器实时看板"
)

// 运行模式名称
const (
	appModeSimulation = "simulation"
	appModeDev        = "dev"
	appModeProd       = "prod"
)

// newLogger 按运行模式创建日志，返回的关闭函数总是非空
// 界面占用终端时只写日志文件；prod 模式没有日志文件时丢弃日志
func newLogger(appMode, path string, headless bool) (*log.Logger, func(), error) {
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, func() {}, fmt.Errorf("无法打开日志文件 %s: %w", path, err)
		}
		return log.New(f, "", log.LstdFlags|log.Lmicroseconds), func() { f.Close() }, nil
	}

	var out io.Writer = io.Discard
	if headless && appMode != appModeProd {
		out = os.Stderr
	}
	return log.New(out, "", log.LstdFlags), func() {}, nil
}

// printRunningConfig 打印运行配置信息
func printRunningConfig(config *AppConfig) {
	fmt.Printf("运行模式: %s\n", config.AppMode)
	if config.Mode == core.ModeLive {
		fmt.Printf("API地址: %s\n", config.Transport.BaseURL)
		fmt.Printf("同源中继: %v\n", config.Transport.UseProxy)
	}
	fmt.Printf("日期范围: %s\n", config.Settings.DateRangeMode)
	fmt.Printf("轮询间隔: %v\n", config.Settings.Interval())
	fmt.Printf("窗口大小: %d\n", config.Settings.MaxDataPoints)
	if config.SettingsPath != "" {
		fmt.Printf("设置文件: %s\n", config.SettingsPath)
	}
}

// printVersion 显示详细版本信息
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s v%s\n", AppName, AppVersion)
	fmt.Fprintf(w, "描述: %s\n", AppDesc)
	fmt.Fprintf(w, "系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(w, "运行时: %s\n", runtime.Version())
}

// printUsageInstructions 显示TUI操作说明
func printUsageInstructions() {
	fmt.Println("操作说明:")
	fmt.Println("  ↑/↓ 方向键  - 选择传感器")
	fmt.Println("  在边界继续按方向键 - 切换到车道总览")
	fmt.Println("  r / t / c   - 实时 / 今天 / 自定义范围")
	fmt.Println("  l           - 切换车道过滤")
	fmt.Println("  a           - 开关告警阈值")
	fmt.Println("  R           - 失败后重试")
	fmt.Println("  q 或 Ctrl+C - 退出程序")
	fmt.Println("========================================")
}
