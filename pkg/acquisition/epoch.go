// Package acquisition 采集周期管理
package acquisition

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/simulator"
)

// epoch 一组参数对应的采集周期
type epoch struct {
	gen    uint64    // 单调递增的周期编号
	id     uuid.UUID // 日志中标识周期
	params core.Params
	ctx    context.Context
	cancel context.CancelFunc
	stream core.Stream // 当前实时连接，可为空
	conn   uint64      // 周期内的连接序号，重连时递增
}

// tag 返回日志前缀
func (e *epoch) tag() string {
	return e.id.String()[:8]
}

// beginEpoch 结束当前周期并按参数开始新的周期
func (c *Controller) beginEpoch(params core.Params) {
	var gen uint64 = 1
	if c.epoch != nil {
		gen = c.epoch.gen + 1
	}
	c.endEpoch()

	ctx, cancel := context.WithCancel(context.Background())
	c.epoch = &epoch{
		gen:    gen,
		id:     uuid.New(),
		params: params,
		ctx:    ctx,
		cancel: cancel,
	}
	c.params = params
	c.hasParams = true

	c.window.Reset(params.MaxDataPoints)
	c.connected = false
	c.failure = core.FailureNone
	c.lastErr = ""

	c.metrics.epochStarted(params.Mode.String())
	c.logger.Printf("采集周期 %d [%s] 开始: mode=%s range=%s max=%d",
		gen, c.epoch.tag(), params.Mode, params.DateRange, params.MaxDataPoints)

	if params.DateRange == core.RangeCustom && !params.HasCustomBounds() {
		c.state = StateAwaitingInput
		c.publish()
		return
	}

	c.state = StateLoading
	switch params.Mode {
	case core.ModeSimulation:
		c.beginSimulation(params)
	case core.ModeLive:
		c.beginLive(params)
	}
}

// endEpoch 取消当前周期：触发取消信号、关闭连接、清除定时器
func (c *Controller) endEpoch() {
	if c.epoch == nil {
		return
	}
	c.epoch.cancel()
	c.closeStream()
	c.cancelFlush()
	c.cancelReconnect()
}

// closeStream 关闭当前实时连接
func (c *Controller) closeStream() {
	if c.epoch == nil || c.epoch.stream == nil {
		return
	}
	c.epoch.stream.Close()
	c.epoch.stream = nil
}

// beginSimulation 用历史语料填充窗口，实时模式再启动模拟数据源
func (c *Controller) beginSimulation(params core.Params) {
	if params.DateRange != core.RangeRealtime {
		seed := core.FilterByRange(c.corpus, params.DateRange, params.CustomStart, params.CustomEnd, c.clock.Now())
		c.window.Append(seed...)
		c.metrics.readingsApplied("batch", len(seed))
		c.state = StateStatic
		c.connected = true
		c.publish()
		return
	}

	seed := c.corpus
	if len(seed) > params.MaxDataPoints {
		seed = seed[len(seed)-params.MaxDataPoints:]
	}
	c.window.Append(seed...)
	c.metrics.readingsApplied("batch", len(seed))

	firstID := int64(len(c.corpus)) + 1
	source, err := simulator.NewSourceWithOptions(c.gen, c.clock,
		simulator.WithInterval(params.PollInterval),
		simulator.WithFirstID(firstID),
		simulator.WithBufferSize(c.config.EventBuffer),
	)
	if err != nil {
		c.failStream(err)
		return
	}

	c.attachStream(source)
	c.publish()
}

// beginLive 发起批量请求，实时模式在请求成功后打开连接
func (c *Controller) beginLive(params core.Params) {
	var q core.Query
	switch params.DateRange {
	case core.RangeRealtime:
		q = core.RecentQuery(params.MaxDataPoints)
	case core.RangeToday:
		q = core.TodayQuery(c.config.TodayLimit)
	case core.RangeCustom:
		q = core.RangeQuery(*params.CustomStart, *params.CustomEnd)
	}

	c.publish()

	ep := c.epoch
	go func() {
		readings, err := c.fetcher.FetchBatch(ep.ctx, q)
		select {
		case c.events <- event{kind: evFetch, gen: ep.gen, readings: readings, err: err}:
		case <-ep.ctx.Done():
			c.metrics.stale()
		}
	}()
}

// onFetchResult 处理当前周期的批量请求结果
func (c *Controller) onFetchResult(readings []core.Reading, err error) {
	if c.state != StateLoading {
		c.metrics.stale()
		return
	}

	if err != nil {
		if core.IsCanceled(err) {
			return
		}
		kind := core.ClassifyFailure(err)
		c.metrics.fetchFailed(kind.String())
		c.logger.Printf("WARN 采集周期 %d [%s] 批量请求失败 (%s): %v", c.epoch.gen, c.epoch.tag(), kind, err)

		c.window.Reset(c.params.MaxDataPoints)
		c.state = StateDisconnected
		c.connected = false
		c.failure = kind
		c.lastErr = err.Error()
		c.publish()
		return
	}

	sorted := make([]core.Reading, len(readings))
	copy(sorted, readings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	c.window.Append(sorted...)
	c.metrics.readingsApplied("batch", len(sorted))

	if c.params.DateRange != core.RangeRealtime {
		c.state = StateStatic
		c.connected = true
		c.publish()
		return
	}

	c.attachStream(c.streamer.OpenStream(c.epoch.ctx))
	c.publish()
}

// attachStream 记录新的实时连接并转发其事件
func (c *Controller) attachStream(stream core.Stream) {
	ep := c.epoch
	ep.conn++
	ep.stream = stream
	c.state = StateStreaming
	c.connected = false

	go c.forward(ep.ctx, ep.gen, ep.conn, stream)
}

// forward 为连接事件加上周期编号后送入事件循环
func (c *Controller) forward(ctx context.Context, gen, conn uint64, stream core.Stream) {
	for {
		select {
		case sev, ok := <-stream.Events():
			if !ok {
				return
			}
			select {
			case c.events <- event{kind: evStream, gen: gen, conn: conn, stream: sev}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// onStreamEvent 处理当前连接的事件
func (c *Controller) onStreamEvent(sev core.StreamEvent) {
	switch sev.Kind {
	case core.EventOpen:
		c.state = StateStreaming
		c.connected = true
		c.failure = core.FailureNone
		c.lastErr = ""
		c.logger.Printf("采集周期 %d [%s] 实时连接已建立", c.epoch.gen, c.epoch.tag())
		c.publish()
	case core.EventReading:
		c.applyIncoming(sev.Reading)
	case core.EventError:
		if core.IsCanceled(sev.Err) {
			return
		}
		c.failStream(sev.Err)
	}
}

// failStream 连接失败：保留窗口数据，标记断开，按配置安排重连
func (c *Controller) failStream(err error) {
	c.logger.Printf("WARN 采集周期 %d [%s] 实时连接中断: %v", c.epoch.gen, c.epoch.tag(), err)

	// 已收到但尚未合并的数据仍然写入窗口
	if c.flushTimer != nil {
		c.flushTimer.Stop()
		c.flushTimer, c.flushC = nil, nil
		c.flush()
	}
	c.closeStream()

	c.state = StateDisconnected
	c.connected = false
	c.failure = core.FailureStream
	c.lastErr = err.Error()

	if c.config.ReconnectDelay > 0 {
		c.reconnectTimer = c.clock.NewTimer(c.config.ReconnectDelay)
		c.reconnectC = c.reconnectTimer.C()
		c.reconnectGen = c.epoch.gen
	}
	c.publish()
}

// onReconnectTimer 在同一周期内重新打开实时连接
func (c *Controller) onReconnectTimer() {
	gen := c.reconnectGen
	c.reconnectTimer, c.reconnectC = nil, nil
	if c.epoch == nil || gen != c.epoch.gen || c.state != StateDisconnected {
		c.metrics.stale()
		return
	}

	c.logger.Printf("采集周期 %d [%s] 尝试重新连接", c.epoch.gen, c.epoch.tag())
	switch c.params.Mode {
	case core.ModeLive:
		c.attachStream(c.streamer.OpenStream(c.epoch.ctx))
	case core.ModeSimulation:
		source, err := simulator.NewSourceWithOptions(c.gen, c.clock,
			simulator.WithInterval(c.params.PollInterval),
			simulator.WithFirstID(c.nextSimulatedID()),
			simulator.WithBufferSize(c.config.EventBuffer),
		)
		if err != nil {
			c.failStream(err)
			return
		}
		c.attachStream(source)
	}
	c.publish()
}

// nextSimulatedID 返回窗口中最大编号之后的编号
func (c *Controller) nextSimulatedID() int64 {
	next := int64(len(c.corpus)) + 1
	for _, r := range c.window.Readings() {
		if r.ID >= next {
			next = r.ID + 1
		}
	}
	return next
}
