package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Kevin-Rudy/gospeed/pkg/acquisition"
	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/settings"
	"github.com/Kevin-Rudy/gospeed/pkg/transport"
	"github.com/Kevin-Rudy/gospeed/pkg/tui"
)

// AppConfig 应用层配置聚合
type AppConfig struct {
	AppMode      string // simulation, dev, prod
	Mode         core.Mode
	Transport    *transport.Config // 仅实时模式使用
	Acquisition  *acquisition.Config
	TUIConfig    *tui.Config
	Settings     *settings.Settings
	SettingsPath string
	LogFile      string
	MetricsAddr  string
	Headless     bool
}

// parseAppMode 将运行模式映射为数据来源模式
func parseAppMode(appMode string) (core.Mode, error) {
	switch strings.ToLower(appMode) {
	case appModeSimulation:
		return core.ModeSimulation, nil
	case appModeDev, appModeProd:
		return core.ModeLive, nil
	default:
		return 0, fmt.Errorf("未知的运行模式 %q，可选 simulation, dev, prod", appMode)
	}
}

// buildConfigFromCLI 从命令行参数构建配置，命令行显式指定的值覆盖设置文件
func buildConfigFromCLI(c *cli.Context) (*AppConfig, error) {
	appMode := strings.ToLower(c.String("mode"))
	mode, err := parseAppMode(appMode)
	if err != nil {
		return nil, err
	}

	// 看板设置
	settingsPath := c.String("settings")
	prefs := settings.Default()
	if settingsPath != "" {
		if prefs, err = settings.Load(settingsPath); err != nil {
			return nil, err
		}
	}
	if c.IsSet("interval") {
		prefs.UpdateInterval = int(c.Duration("interval") / time.Millisecond)
	}
	if c.IsSet("max-points") {
		prefs.MaxDataPoints = c.Int("max-points")
	}
	if c.IsSet("range") {
		if prefs.DateRangeMode, err = core.ParseDateRangeMode(c.String("range")); err != nil {
			return nil, err
		}
	}
	if c.IsSet("from") {
		start, err := parseBound("from", c.String("from"))
		if err != nil {
			return nil, err
		}
		prefs.CustomStartDate = &start
	}
	if c.IsSet("to") {
		end, err := parseBound("to", c.String("to"))
		if err != nil {
			return nil, err
		}
		prefs.CustomEndDate = &end
	}

	// 采集控制器配置
	acqConfig := acquisition.DefaultConfig()
	if c.IsSet("flush-delay") {
		acqConfig.FlushDelay = c.Duration("flush-delay")
	}
	if c.IsSet("reconnect-delay") {
		acqConfig.ReconnectDelay = c.Duration("reconnect-delay")
	}

	// 构建 TUI 配置
	tuiOpts := []tui.Option{
		tui.WithModeLabel(strings.ToUpper(appMode)),
		tui.WithSettingsPath(settingsPath),
	}
	if c.IsSet("refresh-rate") {
		tuiOpts = append(tuiOpts, tui.WithRefreshInterval(c.Duration("refresh-rate")))
	}

	config := &AppConfig{
		AppMode:      appMode,
		Mode:         mode,
		Acquisition:  acqConfig,
		TUIConfig:    tui.NewConfigWithOptions(tuiOpts...),
		Settings:     prefs,
		SettingsPath: settingsPath,
		LogFile:      c.String("log-file"),
		MetricsAddr:  c.String("metrics-addr"),
		Headless:     c.Bool("headless"),
	}

	// 实时模式才需要连接配置
	if mode == core.ModeLive {
		opts := []transport.Option{
			transport.WithToken(c.String("token")),
			transport.WithProxy(c.Bool("use-proxy")),
			transport.WithInsecureTLS(c.Bool("insecure")),
		}
		if c.IsSet("api-url") {
			opts = append(opts, transport.WithBaseURL(c.String("api-url")))
		}
		if config.Transport, err = transport.NewConfigWithOptions(opts...); err != nil {
			return nil, fmt.Errorf("连接配置错误: %w", err)
		}
	}

	return config, nil
}

// parseBound 解析自定义范围的起止时间
func parseBound(name, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s 不是有效的RFC3339时间: %w", name, err)
	}
	return t, nil
}

// validateConfig 验证配置的合理性
func validateConfig(config *AppConfig) error {
	if err := config.Settings.Validate(); err != nil {
		return fmt.Errorf("看板设置错误: %v", err)
	}

	if err := config.Settings.Params(config.Mode).Validate(); err != nil {
		return fmt.Errorf("采集参数错误: %v", err)
	}

	if err := config.Acquisition.Validate(); err != nil {
		return fmt.Errorf("采集配置错误: %v", err)
	}

	// 验证 TUI 配置
	if err := config.TUIConfig.Validate(); err != nil {
		return fmt.Errorf("tui配置错误: %v", err)
	}

	return nil
}
