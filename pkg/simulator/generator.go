// Package simulator 提供不依赖后端的合成测速数据
// Generator 负责生成单条记录和历史语料，Source 按固定间隔推送实时记录
package simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/timeutil"
)

// Sensors 模拟赛道上的固定传感器目录
var Sensors = []string{
	"Sector 1 Entry",
	"Sector 1 Exit",
	"Sector 2 Entry",
	"Sector 2 Exit",
	"Sector 3 Entry",
	"Sector 3 Exit",
	"Finish Line",
	"Pit Entry",
}

const (
	baseSpeedMin   = 150.0 // 基础速度下限
	baseSpeedSpan  = 150.0 // 基础速度范围
	variationSpan  = 40.0  // 扰动范围，以0为中心
	clampSpeedMin  = 80.0
	clampSpeedMax  = 350.0
	speedPrecision = 10.0 // 保留一位小数
)

// Generator 合成测速记录生成器，可并发使用
type Generator struct {
	mu    sync.Mutex
	rng   *rand.Rand
	clock timeutil.Clock
}

// NewGenerator 创建生成器，rng 为空时使用基于当前时间的随机源
func NewGenerator(rng *rand.Rand, clock timeutil.Clock) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Generator{rng: rng, clock: clock}
}

// Generate 生成一条编号为nextID、时间为当前时刻的记录
func (g *Generator) Generate(nextID int64) core.Reading {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.generateAt(nextID, g.clock.Now())
}

// History 生成截止到当前时刻的历史语料，编号从1开始，按时间从旧到新排列
func (g *Generator) History(count int, spacing time.Duration) []core.Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	readings := make([]core.Reading, 0, count)
	for i := 0; i < count; i++ {
		ts := now.Add(-time.Duration(count-i) * spacing)
		readings = append(readings, g.generateAt(int64(i+1), ts))
	}
	return readings
}

// Now 返回生成器使用的时钟时间
func (g *Generator) Now() time.Time {
	return g.clock.Now()
}

// generateAt 调用方需持有锁
func (g *Generator) generateAt(id int64, ts time.Time) core.Reading {
	base := baseSpeedMin + g.rng.Float64()*baseSpeedSpan
	variation := (g.rng.Float64() - 0.5) * variationSpan
	speed := math.Max(clampSpeedMin, math.Min(clampSpeedMax, base+variation))

	lane := core.LaneRight
	if g.rng.Float64() > 0.5 {
		lane = core.LaneLeft
	}

	return core.Reading{
		ID:        id,
		Sensor:    Sensors[g.rng.Intn(len(Sensors))],
		Speed:     math.Round(speed*speedPrecision) / speedPrecision,
		Lane:      lane,
		Timestamp: ts,
	}
}
