package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

// createCliApp 创建CLI应用实例
func createCliApp() *cli.App {
	app := &cli.App{
		Name:    AppName,
		Version: AppVersion,
		Usage:   AppDesc,
		Flags:   createCliFlags(),
		Action:  runApp,
		Before: func(c *cli.Context) error {
			// 显示启动信息
			fmt.Fprintf(c.App.ErrWriter, "正在启动 %s v%s...\n", AppName, AppVersion)
			return nil
		},
	}

	// 添加子命令
	app.Commands = createCommands()

	return app
}

// createCliFlags 创建看板参数定义
func createCliFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Value:   appModeSimulation,
			EnvVars: []string{"GOSPEED_APP_MODE"},
			Usage:   "运行模式: simulation（本地模拟）, dev, prod（连接遥测API）",
		},
		&cli.StringFlag{
			Name:    "api-url",
			EnvVars: []string{"GOSPEED_API_URL"},
			Usage:   "遥测API地址 (例如: https://192.168.1.100:3000)",
		},
		&cli.StringFlag{
			Name:    "token",
			EnvVars: []string{"GOSPEED_API_TOKEN"},
			Usage:   "遥测API的Bearer令牌",
		},
		&cli.BoolFlag{
			Name:  "use-proxy",
			Usage: "通过同源中继路径访问API",
		},
		&cli.BoolFlag{
			Name:    "insecure",
			EnvVars: []string{"GOSPEED_TLS_INSECURE"},
			Usage:   "接受自签名证书，仅用于开发环境",
		},
		&cli.StringFlag{
			Name:    "settings",
			Aliases: []string{"s"},
			Usage:   "看板设置文件 (YAML)，界面中的修改会写回该文件",
		},
		&cli.DurationFlag{
			Name:    "interval",
			Aliases: []string{"n"},
			Value:   3 * time.Second,
			Usage:   "轮询间隔，覆盖设置文件 (例如: 1s, 500ms)",
		},
		&cli.IntFlag{
			Name:    "max-points",
			Aliases: []string{"b"},
			Value:   120,
			Usage:   "窗口保留的最大数据条数，覆盖设置文件",
		},
		&cli.StringFlag{
			Name:    "range",
			Aliases: []string{"r"},
			Value:   "realtime",
			Usage:   "日期范围: realtime, today, custom，覆盖设置文件",
		},
		&cli.StringFlag{
			Name:  "from",
			Usage: "自定义范围开始时间 (RFC3339)",
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "自定义范围结束时间 (RFC3339)",
		},
		&cli.DurationFlag{
			Name:  "flush-delay",
			Value: 100 * time.Millisecond,
			Usage: "实时数据合并写入的防抖间隔",
		},
		&cli.DurationFlag{
			Name:  "reconnect-delay",
			Value: 0,
			Usage: "实时连接中断后自动重连的等待时间，0表示不自动重连",
		},
		&cli.DurationFlag{
			Name:  "refresh-rate",
			Value: 200 * time.Millisecond,
			Usage: "UI刷新频率 (例如: 100ms, 500ms)",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "日志文件路径",
		},
		&cli.StringFlag{
			Name:  "metrics-addr",
			Usage: "Prometheus指标监听地址 (例如: :9090)，为空时不启用",
		},
		&cli.BoolFlag{
			Name:  "headless",
			Usage: "不启动终端界面，按行输出汇总；输出不是终端时自动启用",
		},
	}
}

// createCommands 创建子命令
func createCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "serve",
			Usage:  "启动开发用遥测API服务（SQLite存储，带模拟数据注入）",
			Action: runServe,
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "listen",
					Value: ":3000",
					Usage: "监听地址",
				},
				&cli.StringFlag{
					Name:  "db",
					Value: "gospeed.db",
					Usage: "SQLite数据库文件",
				},
				&cli.StringFlag{
					Name:    "token",
					EnvVars: []string{"GOSPEED_API_TOKEN"},
					Usage:   "要求客户端携带的Bearer令牌，为空时不校验",
				},
				&cli.DurationFlag{
					Name:  "feed-interval",
					Value: 3 * time.Second,
					Usage: "模拟数据注入间隔，0表示不注入",
				},
				&cli.DurationFlag{
					Name:  "ping-interval",
					Value: 15 * time.Second,
					Usage: "实时连接保活间隔",
				},
				&cli.StringFlag{
					Name:  "log-file",
					Usage: "日志文件路径，为空时输出到标准错误",
				},
			},
		},
		{
			Name:    "version",
			Aliases: []string{"v"},
			Usage:   "显示详细版本信息",
			Action: func(c *cli.Context) error {
				printVersion(c.App.Writer)
				return nil
			},
		},
	}
}
