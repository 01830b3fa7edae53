package backend

import (
	"context"
	"io"
	"log"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/simulator"
	"github.com/Kevin-Rudy/gospeed/pkg/timeutil"
)

// Feeder 按固定间隔生成模拟数据并写入服务
type Feeder struct {
	server *Server
	gen    *simulator.Generator
	clock  timeutil.Clock
	logger *log.Logger
}

// NewFeeder 创建数据注入器，gen、clock、logger 可为空
func NewFeeder(server *Server, gen *simulator.Generator, clock timeutil.Clock, logger *log.Logger) *Feeder {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if gen == nil {
		gen = simulator.NewGenerator(nil, clock)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Feeder{server: server, gen: gen, clock: clock, logger: logger}
}

// Run 持续注入直到 ctx 取消，注入间隔为0时立即返回
func (f *Feeder) Run(ctx context.Context) {
	interval := f.server.config.FeedInterval
	if interval <= 0 {
		return
	}

	ticker := f.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			f.feedOnce(ctx)
		}
	}
}

// feedOnce 生成并写入一条记录
func (f *Feeder) feedOnce(ctx context.Context) {
	r := f.gen.Generate(0)
	n := core.NewReading{Sensor: r.Sensor, Speed: r.Speed, Lane: r.Lane}
	if _, err := f.server.Ingest(ctx, n, "feeder"); err != nil && ctx.Err() == nil {
		f.logger.Printf("WARN 注入模拟数据失败: %v", err)
	}
}
