// Package acquisition 实现了测速数据的采集控制器
// 控制器是"当前已知哪些数据"的唯一权威：它建立并维护实时数据源，合并批量查询结果，
// 处理日期范围模式切换，合并高频更新，限制窗口长度，并在参数变化时拆除过期连接。
// 所有状态只在一个事件循环协程中修改，其他协程只发送带采集周期编号的事件。
package acquisition

import (
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/simulator"
	"github.com/Kevin-Rudy/gospeed/pkg/timeutil"
)

// ErrStopped 控制器关闭后调用 Start 或 Retry
var ErrStopped = errors.New("采集控制器已关闭")

// commandKind 外部请求类型
type commandKind int

const (
	cmdStart commandKind = iota
	cmdRetry
)

type command struct {
	kind   commandKind
	params core.Params
}

// eventKind 异步完成事件类型
type eventKind int

const (
	evFetch  eventKind = iota // 批量请求完成
	evStream                  // 实时连接事件
)

// event 异步完成事件，gen 与 conn 用于识别过期事件
type event struct {
	kind     eventKind
	gen      uint64
	conn     uint64
	readings []core.Reading
	err      error
	stream   core.StreamEvent
}

// Option 控制器依赖注入选项
type Option func(*Controller)

// WithFetcher 设置批量数据来源
func WithFetcher(f core.BatchFetcher) Option {
	return func(c *Controller) {
		c.fetcher = f
	}
}

// WithStreamer 设置实时连接来源
func WithStreamer(s core.StreamOpener) Option {
	return func(c *Controller) {
		c.streamer = s
	}
}

// WithGenerator 设置模拟数据生成器
func WithGenerator(g *simulator.Generator) Option {
	return func(c *Controller) {
		c.gen = g
	}
}

// WithClock 设置时钟
func WithClock(clock timeutil.Clock) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// WithLogger 设置日志输出
func WithLogger(logger *log.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics 设置指标
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// Controller 采集控制器
type Controller struct {
	config   *Config
	fetcher  core.BatchFetcher
	streamer core.StreamOpener
	gen      *simulator.Generator
	clock    timeutil.Clock
	logger   *log.Logger
	metrics  *Metrics

	corpus []core.Reading // 模拟模式的历史语料，构造时生成

	commands chan command
	events   chan event
	stopChan chan struct{}
	doneChan chan struct{}
	runOnce  sync.Once
	stopOnce sync.Once

	// 以下字段只在事件循环中访问
	params    core.Params
	hasParams bool
	epoch     *epoch
	window    *core.Window
	pending   []core.Reading
	state     State
	connected bool
	failure   core.FailureKind
	lastErr   string

	flushTimer     timeutil.Timer
	flushC         <-chan time.Time
	flushGen       uint64
	reconnectTimer timeutil.Timer
	reconnectC     <-chan time.Time
	reconnectGen   uint64

	// 对外发布的快照
	snapshotMu sync.RWMutex
	snapshot   ViewModel
	updates    chan ViewModel
}

// New 创建采集控制器，cfg 为空时使用默认配置
func New(cfg *Config, opts ...Option) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Controller{
		config:   cfg,
		commands: make(chan command),
		events:   make(chan event, cfg.EventBuffer),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
		window:   core.NewWindow(1),
		updates:  make(chan ViewModel, 1),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.clock == nil {
		c.clock = timeutil.RealClock{}
	}
	if c.gen == nil {
		c.gen = simulator.NewGenerator(nil, c.clock)
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard, "", 0)
	}

	c.corpus = c.gen.History(cfg.SimulationSeed, cfg.SimulationSpacing)
	c.snapshot = ViewModel{State: StateIdle, UpdatedAt: c.clock.Now()}

	return c, nil
}

// Start 以给定参数开始新的采集周期，参数与当前周期相同时不做任何事
// 只有参数不合法或缺少实时模式所需的依赖时返回错误
func (c *Controller) Start(params core.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	if params.Mode == core.ModeLive && (c.fetcher == nil || c.streamer == nil) {
		return errors.New("实时模式需要配置批量数据来源和实时连接来源")
	}
	return c.post(command{kind: cmdStart, params: params})
}

// Retry 以当前参数重新开始采集周期，用于失败后的手动恢复
func (c *Controller) Retry() error {
	return c.post(command{kind: cmdRetry})
}

// post 启动事件循环并投递请求
func (c *Controller) post(cmd command) error {
	select {
	case <-c.stopChan:
		return ErrStopped
	default:
	}

	c.runOnce.Do(func() {
		go c.run()
	})

	select {
	case c.commands <- cmd:
		return nil
	case <-c.stopChan:
		return ErrStopped
	}
}

// Stop 关闭当前连接、清除定时器并等待事件循环退出，可重复调用
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})

	// 从未启动过的控制器直接完成关闭
	c.runOnce.Do(func() {
		c.teardown()
		close(c.doneChan)
	})

	<-c.doneChan
}

// Snapshot 返回最新的视图模型
func (c *Controller) Snapshot() ViewModel {
	c.snapshotMu.RLock()
	defer c.snapshotMu.RUnlock()
	return c.snapshot
}

// Updates 返回视图模型更新通道，只保留最新一次更新，关闭后通道被关闭
func (c *Controller) Updates() <-chan ViewModel {
	return c.updates
}

// run 事件循环
func (c *Controller) run() {
	defer close(c.doneChan)

	for {
		select {
		case <-c.stopChan:
			c.teardown()
			return
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-c.flushC:
			c.onFlushTimer()
		case <-c.reconnectC:
			c.onReconnectTimer()
		}
	}
}

// handleCommand 处理外部请求
func (c *Controller) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdStart:
		if c.hasParams && c.params.Equal(cmd.params) {
			return
		}
		c.beginEpoch(cmd.params)
	case cmdRetry:
		if !c.hasParams {
			return
		}
		c.beginEpoch(c.params)
	}
}

// handleEvent 处理异步完成事件，过期事件直接丢弃
func (c *Controller) handleEvent(ev event) {
	if c.epoch == nil || ev.gen != c.epoch.gen {
		c.metrics.stale()
		return
	}

	switch ev.kind {
	case evFetch:
		c.onFetchResult(ev.readings, ev.err)
	case evStream:
		if ev.conn != c.epoch.conn {
			c.metrics.stale()
			return
		}
		c.onStreamEvent(ev.stream)
	}
}

// applyIncoming 将实时记录放入待合并缓冲区，首条记录启动防抖定时器
func (c *Controller) applyIncoming(reading core.Reading) {
	c.pending = append(c.pending, reading)
	if c.flushTimer == nil {
		c.flushTimer = c.clock.NewTimer(c.config.FlushDelay)
		c.flushC = c.flushTimer.C()
		c.flushGen = c.epoch.gen
	}
}

// onFlushTimer 防抖定时器触发
func (c *Controller) onFlushTimer() {
	gen := c.flushGen
	c.flushTimer, c.flushC = nil, nil
	if c.epoch == nil || gen != c.epoch.gen {
		c.metrics.stale()
		return
	}
	c.flush()
}

// flush 一次性交换缓冲区并写入窗口
func (c *Controller) flush() {
	batch := c.pending
	c.pending = nil
	if len(batch) == 0 {
		return
	}

	c.window.Append(batch...)
	c.metrics.readingsApplied("stream", len(batch))
	c.metrics.flushed()
	c.publish()
}

// cancelFlush 停止防抖定时器并丢弃待合并数据
func (c *Controller) cancelFlush() {
	if c.flushTimer != nil {
		c.flushTimer.Stop()
	}
	c.flushTimer, c.flushC = nil, nil
	c.pending = nil
}

// cancelReconnect 停止重连定时器
func (c *Controller) cancelReconnect() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	c.reconnectTimer, c.reconnectC = nil, nil
}

// teardown 结束当前周期并发布最终状态
func (c *Controller) teardown() {
	c.endEpoch()
	c.state = StateStopped
	c.connected = false
	c.publish()
	close(c.updates)
}

// publish 生成视图模型快照并通知订阅者
func (c *Controller) publish() {
	now := c.clock.Now()
	raw := c.window.Readings()

	vm := ViewModel{
		Readings:         raw,
		ConnectionStatus: c.connected,
		IsLoading:        c.state == StateLoading,
		State:            c.state,
		Failure:          c.failure,
		LastError:        c.lastErr,
		WindowSize:       len(raw),
		UpdatedAt:        now,
	}
	if c.hasParams {
		vm.Mode = c.params.Mode
		vm.DateRange = c.params.DateRange
		vm.Readings = core.FilterByRange(raw, c.params.DateRange, c.params.CustomStart, c.params.CustomEnd, now)
	}
	if c.epoch != nil {
		vm.Epoch = c.epoch.gen
	}

	c.snapshotMu.Lock()
	c.snapshot = vm
	c.snapshotMu.Unlock()

	c.metrics.observe(vm.WindowSize, vm.ConnectionStatus)

	// 只保留最新的一次更新
	select {
	case c.updates <- vm:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- vm:
		default:
		}
	}
}
