// Package timeutil 可替换的时钟抽象
// 采集控制器和模拟数据源通过 Clock 获取时间与定时器，测试中用 MockClock 手动推进
package timeutil

import (
	"sync"
	"time"
)

// Clock 时间操作的抽象
type Clock interface {
	// Now 返回当前时间
	Now() time.Time

	// NewTimer 创建一个在d之后触发一次的定时器
	NewTimer(d time.Duration) Timer

	// NewTicker 创建一个周期为d的打点器
	NewTicker(d time.Duration) Ticker
}

// Timer 单次定时器
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Ticker 周期打点器
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// RealClock 基于标准库 time 包的时钟
type RealClock struct{}

// Now 返回系统当前时间
func (RealClock) Now() time.Time { return time.Now() }

// NewTimer 创建系统定时器
func (RealClock) NewTimer(d time.Duration) Timer {
	return &realTimer{timer: time.NewTimer(d)}
}

// NewTicker 创建系统打点器
func (RealClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{ticker: time.NewTicker(d)}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) C() <-chan time.Time { return t.timer.C }
func (t *realTimer) Stop() bool          { return t.timer.Stop() }

type realTicker struct {
	ticker *time.Ticker
}

func (t *realTicker) C() <-chan time.Time { return t.ticker.C }
func (t *realTicker) Stop()               { t.ticker.Stop() }

// MockClock 手动控制的时钟，只有调用 Advance 时才会触发定时器
type MockClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*MockTimer
	tickers []*MockTicker
}

// NewMockClock 创建一个停在t的时钟
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now 返回模拟的当前时间
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set 直接设置当前时间，不触发定时器
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance 推进时间并触发所有到期的定时器和打点器
// 每个打点器在一次推进中最多触发一次
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	// 已失效的定时器不再保留
	live := c.timers[:0]
	for _, t := range c.timers {
		if t.active() {
			live = append(live, t)
		}
	}
	c.timers = live
	timers := append([]*MockTimer(nil), c.timers...)
	tickers := append([]*MockTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range timers {
		t.checkAndFire(now)
	}
	for _, t := range tickers {
		t.checkAndFire(now)
	}
}

// PendingTimers 返回尚未触发且未停止的定时器数量
func (c *MockClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if t.active() {
			n++
		}
	}
	return n
}

// NewTimer 创建模拟定时器
func (c *MockClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &MockTimer{
		ch:       make(chan time.Time, 1),
		deadline: c.now.Add(d),
	}
	c.timers = append(c.timers, t)
	return t
}

// NewTicker 创建模拟打点器
func (c *MockClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &MockTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		nextTick: c.now.Add(d),
	}
	c.tickers = append(c.tickers, t)
	return t
}

// MockTimer 模拟定时器
type MockTimer struct {
	mu       sync.Mutex
	ch       chan time.Time
	deadline time.Time
	stopped  bool
	fired    bool
}

// C 返回触发通道
func (t *MockTimer) C() <-chan time.Time { return t.ch }

// Stop 阻止定时器触发，返回定时器此前是否仍有效
func (t *MockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (t *MockTimer) active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped && !t.fired
}

func (t *MockTimer) checkAndFire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || t.fired || now.Before(t.deadline) {
		return
	}
	t.fired = true
	select {
	case t.ch <- now:
	default:
	}
}

// MockTicker 模拟打点器
type MockTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	interval time.Duration
	nextTick time.Time
	stopped  bool
}

// C 返回打点通道
func (t *MockTicker) C() <-chan time.Time { return t.ch }

// Stop 停止打点
func (t *MockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
}

// Trigger 立即发送一次打点，不影响下一次到期时间
func (t *MockTicker) Trigger(now time.Time) {
	select {
	case t.ch <- now:
	default:
	}
}

func (t *MockTicker) checkAndFire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || now.Before(t.nextTick) {
		return
	}
	select {
	case t.ch <- now:
	default:
	}
	t.nextTick = now.Add(t.interval)
}
