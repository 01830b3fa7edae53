package simulator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/timeutil"
)

var testStart = time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC)

// newTestGenerator 返回固定种子和模拟时钟的生成器
func newTestGenerator() (*Generator, *timeutil.MockClock) {
	clock := timeutil.NewMockClock(testStart)
	return NewGenerator(rand.New(rand.NewSource(42)), clock), clock
}

// TestGenerateBounds 测试生成记录的取值范围
func TestGenerateBounds(t *testing.T) {
	gen, _ := newTestGenerator()

	catalog := make(map[string]bool, len(Sensors))
	for _, s := range Sensors {
		catalog[s] = true
	}

	lanes := map[core.Lane]int{}
	for i := 0; i < 2000; i++ {
		r := gen.Generate(int64(i + 1))

		if r.Speed < 80 || r.Speed > 350 {
			t.Fatalf("Speed %.1f out of [80, 350]", r.Speed)
		}
		if math.Abs(r.Speed*10-math.Round(r.Speed*10)) > 1e-6 {
			t.Fatalf("Speed %v not rounded to one decimal", r.Speed)
		}
		if !catalog[r.Sensor] {
			t.Fatalf("Unknown sensor %q", r.Sensor)
		}
		if r.ID != int64(i+1) {
			t.Fatalf("Expected id %d, got %d", i+1, r.ID)
		}
		if !r.Timestamp.Equal(testStart) {
			t.Fatalf("Expected timestamp from clock, got %v", r.Timestamp)
		}
		lanes[r.Lane]++
	}

	if lanes[core.LaneLeft] == 0 || lanes[core.LaneRight] == 0 {
		t.Errorf("Expected both lanes to appear, got %v", lanes)
	}
}

// TestGenerateDeterministic 测试相同种子生成相同序列
func TestGenerateDeterministic(t *testing.T) {
	a, _ := newTestGenerator()
	b, _ := newTestGenerator()

	for i := 0; i < 50; i++ {
		ra, rb := a.Generate(1), b.Generate(1)
		if ra != rb {
			t.Fatalf("Sequences diverged at %d: %+v vs %+v", i, ra, rb)
		}
	}
}

// TestHistory 测试历史语料的编号和时间间隔
func TestHistory(t *testing.T) {
	gen, _ := newTestGenerator()
	history := gen.History(120, time.Minute)

	if len(history) != 120 {
		t.Fatalf("Expected 120 readings, got %d", len(history))
	}

	if history[0].ID != 1 || history[119].ID != 120 {
		t.Errorf("Expected ids 1..120, got %d..%d", history[0].ID, history[119].ID)
	}

	if want := testStart.Add(-120 * time.Minute); !history[0].Timestamp.Equal(want) {
		t.Errorf("Expected first timestamp %v, got %v", want, history[0].Timestamp)
	}

	if want := testStart.Add(-time.Minute); !history[119].Timestamp.Equal(want) {
		t.Errorf("Expected last timestamp %v, got %v", want, history[119].Timestamp)
	}

	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Sub(history[i-1].Timestamp) != time.Minute {
			t.Fatalf("Unexpected spacing at %d", i)
		}
	}
}

// TestConfigValidate 测试配置校验
func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}

	cases := []Option{WithInterval(0), WithFirstID(0), WithBufferSize(0)}
	for i, opt := range cases {
		config := DefaultConfig()
		opt(config)
		if config.Validate() == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

// receive 在超时内读取一个事件
func receive(t *testing.T, s *Source) core.StreamEvent {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("Events channel closed unexpectedly")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for event")
	}
	return core.StreamEvent{}
}

// TestSourceEmitsReadings 测试数据源先打开再逐次推送
func TestSourceEmitsReadings(t *testing.T) {
	gen, clock := newTestGenerator()
	source, err := NewSourceWithOptions(gen, clock, WithInterval(time.Second), WithFirstID(121))
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	defer source.Close()

	if ev := receive(t, source); ev.Kind != core.EventOpen {
		t.Fatalf("Expected EventOpen first, got %v", ev.Kind)
	}

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		ev := receive(t, source)
		if ev.Kind != core.EventReading {
			t.Fatalf("Expected EventReading, got %v", ev.Kind)
		}
		if ev.Reading.ID != int64(121+i) {
			t.Errorf("Expected id %d, got %d", 121+i, ev.Reading.ID)
		}
		if !ev.Reading.Timestamp.Equal(clock.Now()) {
			t.Errorf("Expected timestamp %v, got %v", clock.Now(), ev.Reading.Timestamp)
		}
	}
}

// TestSourceCloseIdempotent 测试重复关闭
func TestSourceCloseIdempotent(t *testing.T) {
	gen, clock := newTestGenerator()
	source, err := NewSource(gen, clock, nil)
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	source.Close()
	source.Close()

	// 打开事件仍在缓冲区中，读完后通道应关闭
	for range source.Events() {
	}

	clock.Advance(time.Hour)
}

// TestNewSourceRequiresGenerator 测试缺少生成器时报错
func TestNewSourceRequiresGenerator(t *testing.T) {
	if _, err := NewSource(nil, nil, nil); err == nil {
		t.Error("Expected error without generator")
	}
}
