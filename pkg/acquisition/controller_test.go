package acquisition

import (
	"bytes"
	"context"
	"errors"
	"log"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/simulator"
	"github.com/Kevin-Rudy/gospeed/pkg/timeutil"
)

var testNow = time.Date(2025, 12, 5, 12, 0, 0, 0, time.Local)

// fetchReply 测试中手动给出的批量请求结果
type fetchReply struct {
	readings []core.Reading
	err      error
}

type fetchCall struct {
	query core.Query
	reply chan fetchReply
}

// fakeFetcher 每次请求都阻塞，直到测试给出结果
type fakeFetcher struct {
	calls chan fetchCall
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(chan fetchCall, 16)}
}

func (f *fakeFetcher) FetchBatch(ctx context.Context, q core.Query) ([]core.Reading, error) {
	call := fetchCall{query: q, reply: make(chan fetchReply, 1)}
	f.calls <- call
	r := <-call.reply
	return r.readings, r.err
}

func (f *fakeFetcher) next(t *testing.T) fetchCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(time.Second):
		t.Fatal("expected a batch fetch")
	}
	return fetchCall{}
}

func (f *fakeFetcher) expectNone(t *testing.T) {
	t.Helper()
	select {
	case call := <-f.calls:
		t.Fatalf("unexpected fetch %+v", call.query)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeStream 由测试推送事件的连接
type fakeStream struct {
	events chan core.StreamEvent
	closed chan struct{}
	once   sync.Once
}

func (s *fakeStream) Events() <-chan core.StreamEvent { return s.events }

func (s *fakeStream) Close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.events)
	})
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

// fakeStreamer 记录每次打开的连接
type fakeStreamer struct {
	opened chan *fakeStream
}

func newFakeStreamer() *fakeStreamer {
	return &fakeStreamer{opened: make(chan *fakeStream, 8)}
}

func (f *fakeStreamer) OpenStream(ctx context.Context) core.Stream {
	s := &fakeStream{events: make(chan core.StreamEvent, 16), closed: make(chan struct{})}
	f.opened <- s
	return s
}

func (f *fakeStreamer) next(t *testing.T) *fakeStream {
	t.Helper()
	select {
	case s := <-f.opened:
		return s
	case <-time.After(time.Second):
		t.Fatal("expected a stream to be opened")
	}
	return nil
}

// testHarness 直接驱动控制器处理函数，不启动事件循环
type testHarness struct {
	c        *Controller
	clock    *timeutil.MockClock
	fetcher  *fakeFetcher
	streamer *fakeStreamer
	logs     *bytes.Buffer
}

// newControllerForTest 创建使用模拟时钟和假数据源的控制器
func newControllerForTest(t *testing.T, mutate func(*Config)) *testHarness {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}

	h := &testHarness{
		clock:    timeutil.NewMockClock(testNow),
		fetcher:  newFakeFetcher(),
		streamer: newFakeStreamer(),
		logs:     &bytes.Buffer{},
	}

	c, err := New(cfg,
		WithClock(h.clock),
		WithGenerator(simulator.NewGenerator(rand.New(rand.NewSource(7)), h.clock)),
		WithFetcher(h.fetcher),
		WithStreamer(h.streamer),
		WithLogger(log.New(h.logs, "", 0)),
		WithMetrics(NewMetrics(prometheus.NewRegistry())),
	)
	require.NoError(t, err)
	h.c = c
	t.Cleanup(c.Stop)
	return h
}

// start 直接处理一次启动请求
func (h *testHarness) start(p core.Params) {
	h.c.handleCommand(command{kind: cmdStart, params: p})
}

// pump 处理下一个异步事件
func (h *testHarness) pump(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-h.c.events:
		h.c.handleEvent(ev)
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for controller event")
	}
	return event{}
}

// flush 推进防抖间隔并处理定时器
func (h *testHarness) flush(t *testing.T) {
	t.Helper()
	h.clock.Advance(h.c.config.FlushDelay)
	select {
	case <-h.c.flushC:
		h.c.onFlushTimer()
	case <-time.After(time.Second):
		t.Fatal("flush timer did not fire")
	}
}

// drain 处理所有已到达的事件
func (h *testHarness) drain() {
	for {
		select {
		case ev := <-h.c.events:
			h.c.handleEvent(ev)
		default:
			return
		}
	}
}

func realtimeParams(mode core.Mode, interval time.Duration, max int) core.Params {
	return core.Params{Mode: mode, DateRange: core.RangeRealtime, PollInterval: interval, MaxDataPoints: max}
}

func ids(readings []core.Reading) []int64 {
	out := make([]int64, len(readings))
	for i, r := range readings {
		out[i] = r.ID
	}
	return out
}

func idRange(from, to int64) []int64 {
	var out []int64
	for id := from; id <= to; id++ {
		out = append(out, id)
	}
	return out
}

func reading(id int64, ts time.Time) core.Reading {
	return core.Reading{ID: id, Sensor: "Finish Line", Speed: 250, Lane: core.LaneLeft, Timestamp: ts}
}

func TestSimulationRealtimeScenario(t *testing.T) {
	h := newControllerForTest(t, func(c *Config) { c.SimulationSeed = 0 })
	h.start(realtimeParams(core.ModeSimulation, time.Second, 120))

	vm := h.c.Snapshot()
	assert.Equal(t, StateStreaming, vm.State)
	assert.Empty(t, vm.Readings)

	ev := h.pump(t)
	require.Equal(t, core.EventOpen, ev.stream.Kind)
	assert.True(t, h.c.Snapshot().ConnectionStatus)

	h.clock.Advance(time.Second)
	for i := int64(1); i <= 130; i++ {
		ev := h.pump(t)
		require.Equal(t, core.EventReading, ev.stream.Kind)
		require.Equal(t, i, ev.stream.Reading.ID)

		h.flush(t)
		if i == 1 {
			assert.Len(t, h.c.Snapshot().Readings, 1, "one reading after the first interval")
		}
		h.clock.Advance(time.Second - h.c.config.FlushDelay)
	}

	vm = h.c.Snapshot()
	require.Len(t, vm.Readings, 120)
	if diff := cmp.Diff(idRange(11, 130), ids(vm.Readings)); diff != "" {
		t.Errorf("window ids mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 130.0, testutil.ToFloat64(h.c.metrics.flushes))
}

func TestSimulationRealtimeSeedsFromCorpus(t *testing.T) {
	h := newControllerForTest(t, nil)
	h.start(realtimeParams(core.ModeSimulation, time.Second, 50))

	vm := h.c.Snapshot()
	require.Len(t, vm.Readings, 50)
	assert.Equal(t, idRange(71, 120), ids(vm.Readings))

	h.pump(t) // EventOpen
	h.clock.Advance(time.Second)
	ev := h.pump(t)
	assert.Equal(t, int64(121), ev.stream.Reading.ID, "realtime ids continue after the corpus")
}

func TestSimulationCustomRangeStatic(t *testing.T) {
	h := newControllerForTest(t, nil)

	start := testNow.Add(-60 * time.Minute)
	end := testNow.Add(-30 * time.Minute)
	h.start(core.Params{
		Mode: core.ModeSimulation, DateRange: core.RangeCustom,
		CustomStart: &start, CustomEnd: &end,
		PollInterval: time.Second, MaxDataPoints: 500,
	})

	vm := h.c.Snapshot()
	assert.Equal(t, StateStatic, vm.State)
	assert.True(t, vm.ConnectionStatus)
	require.Len(t, vm.Readings, 31)
	for _, r := range vm.Readings {
		assert.False(t, r.Timestamp.Before(start) || r.Timestamp.After(end))
	}

	h.clock.Advance(time.Minute)
	select {
	case ev := <-h.c.events:
		t.Fatalf("static epoch received %+v", ev)
	default:
	}
}

func TestSimulationTodayStatic(t *testing.T) {
	h := newControllerForTest(t, nil)
	h.start(core.Params{Mode: core.ModeSimulation, DateRange: core.RangeToday, PollInterval: time.Second, MaxDataPoints: 1000})

	vm := h.c.Snapshot()
	assert.Equal(t, StateStatic, vm.State)
	assert.Len(t, vm.Readings, 120, "corpus between 10:00 and 11:59 is all today")
}

func TestCustomRangeAwaitingInput(t *testing.T) {
	h := newControllerForTest(t, nil)

	end := testNow
	params := core.Params{Mode: core.ModeLive, DateRange: core.RangeCustom, CustomEnd: &end, PollInterval: time.Second, MaxDataPoints: 100}
	h.start(params)

	vm := h.c.Snapshot()
	assert.Equal(t, StateAwaitingInput, vm.State)
	assert.False(t, vm.IsLoading)
	assert.False(t, vm.ConnectionStatus)
	h.fetcher.expectNone(t)

	start := testNow.Add(-time.Hour)
	params.CustomStart = &start
	h.start(params)
	assert.True(t, h.c.Snapshot().IsLoading)

	call := h.fetcher.next(t)
	assert.Equal(t, core.QueryRange, call.query.Kind)
	assert.True(t, call.query.Start.Equal(start))
	assert.True(t, call.query.End.Equal(end))
	h.fetcher.expectNone(t)

	call.reply <- fetchReply{readings: []core.Reading{
		reading(2, testNow.Add(-10*time.Minute)),
		reading(1, testNow.Add(-20*time.Minute)),
	}}
	h.pump(t)

	vm = h.c.Snapshot()
	assert.Equal(t, StateStatic, vm.State)
	assert.True(t, vm.ConnectionStatus)
	assert.Equal(t, []int64{1, 2}, ids(vm.Readings), "batch sorted by timestamp")

	select {
	case <-h.streamer.opened:
		t.Fatal("custom range must not open a stream")
	default:
	}
}

func TestEpochExclusivity_LateStaleResult(t *testing.T) {
	h := newControllerForTest(t, nil)

	h.start(core.Params{Mode: core.ModeLive, DateRange: core.RangeToday, PollInterval: time.Second, MaxDataPoints: 100})
	callA := h.fetcher.next(t)

	start, end := testNow.Add(-time.Hour), testNow
	h.start(core.Params{Mode: core.ModeLive, DateRange: core.RangeCustom, CustomStart: &start, CustomEnd: &end, PollInterval: time.Second, MaxDataPoints: 100})
	callB := h.fetcher.next(t)

	callB.reply <- fetchReply{readings: []core.Reading{reading(100, testNow.Add(-time.Minute))}}
	h.pump(t)
	require.Equal(t, []int64{100}, ids(h.c.Snapshot().Readings))

	callA.reply <- fetchReply{readings: []core.Reading{reading(1, testNow), reading(2, testNow)}}
	require.Eventually(t, func() bool {
		h.drain()
		return testutil.ToFloat64(h.c.metrics.staleDiscarded) >= 1
	}, time.Second, 5*time.Millisecond)

	vm := h.c.Snapshot()
	assert.Equal(t, uint64(2), vm.Epoch)
	assert.Equal(t, []int64{100}, ids(vm.Readings))
	assert.NotContains(t, h.logs.String(), "WARN", "stale completions are not warnings")
}

func TestEpochExclusivity_EarlyStaleResult(t *testing.T) {
	h := newControllerForTest(t, nil)

	h.start(core.Params{Mode: core.ModeLive, DateRange: core.RangeToday, PollInterval: time.Second, MaxDataPoints: 100})
	callA := h.fetcher.next(t)

	h.start(core.Params{Mode: core.ModeLive, DateRange: core.RangeToday, PollInterval: time.Second, MaxDataPoints: 50})
	callB := h.fetcher.next(t)

	callA.reply <- fetchReply{readings: []core.Reading{reading(1, testNow)}}
	require.Eventually(t, func() bool {
		h.drain()
		return testutil.ToFloat64(h.c.metrics.staleDiscarded) >= 1
	}, time.Second, 5*time.Millisecond)

	vm := h.c.Snapshot()
	assert.Equal(t, StateLoading, vm.State)
	assert.Empty(t, vm.Readings)

	callB.reply <- fetchReply{readings: []core.Reading{reading(7, testNow)}}
	h.pump(t)
	assert.Equal(t, []int64{7}, ids(h.c.Snapshot().Readings))
}

func TestFetchFailureSurfacesKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind core.FailureKind
	}{
		{"network", &core.FetchError{Op: "recent", Status: 500, Err: errors.New("boom")}, core.FailureNetwork},
		{"validation", &core.FetchError{Op: "recent", Status: 200, Err: &core.ValidationError{Field: "lane", Reason: "bad"}}, core.FailureValidation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newControllerForTest(t, nil)
			h.start(realtimeParams(core.ModeLive, time.Second, 100))

			call := h.fetcher.next(t)
			assert.Equal(t, core.QueryRecent, call.query.Kind)
			assert.Equal(t, 100, call.query.Limit)

			call.reply <- fetchReply{err: tc.err}
			h.pump(t)

			vm := h.c.Snapshot()
			assert.Equal(t, StateDisconnected, vm.State)
			assert.False(t, vm.ConnectionStatus)
			assert.False(t, vm.IsLoading)
			assert.Empty(t, vm.Readings)
			assert.Equal(t, tc.kind, vm.Failure)
			assert.NotEmpty(t, vm.LastError)
			assert.Equal(t, 1.0, testutil.ToFloat64(h.c.metrics.fetchFailures.WithLabelValues(tc.kind.String())))

			select {
			case <-h.streamer.opened:
				t.Fatal("failed seed must not open a stream")
			default:
			}
			h.fetcher.expectNone(t)
		})
	}
}

func TestLiveRealtimeStreamLifecycle(t *testing.T) {
	h := newControllerForTest(t, nil)
	h.start(realtimeParams(core.ModeLive, time.Second, 5))

	call := h.fetcher.next(t)
	call.reply <- fetchReply{readings: []core.Reading{
		reading(3, testNow.Add(-1*time.Minute)),
		reading(1, testNow.Add(-3*time.Minute)),
		reading(2, testNow.Add(-2*time.Minute)),
	}}
	h.pump(t)
	assert.Equal(t, []int64{1, 2, 3}, ids(h.c.Snapshot().Readings))

	stream := h.streamer.next(t)
	vm := h.c.Snapshot()
	assert.Equal(t, StateStreaming, vm.State)
	assert.False(t, vm.ConnectionStatus, "not connected until the stream opens")

	stream.events <- core.StreamEvent{Kind: core.EventOpen}
	h.pump(t)
	assert.True(t, h.c.Snapshot().ConnectionStatus)

	for id := int64(4); id <= 6; id++ {
		stream.events <- core.StreamEvent{Kind: core.EventReading, Reading: reading(id, testNow)}
		h.pump(t)
	}
	assert.Len(t, h.c.Snapshot().Readings, 3, "readings wait for the debounce flush")

	h.flush(t)
	assert.Equal(t, []int64{2, 3, 4, 5, 6}, ids(h.c.Snapshot().Readings))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.c.metrics.flushes))

	stream.events <- core.StreamEvent{Kind: core.EventError, Err: &core.StreamError{Err: errors.New("reset by peer")}}
	h.pump(t)

	vm = h.c.Snapshot()
	assert.Equal(t, StateDisconnected, vm.State)
	assert.False(t, vm.ConnectionStatus)
	assert.Equal(t, core.FailureStream, vm.Failure)
	assert.Equal(t, []int64{2, 3, 4, 5, 6}, ids(vm.Readings), "window survives a stream error")
	assert.True(t, stream.isClosed())
	assert.Nil(t, h.c.reconnectC, "reconnect disabled by default")
	assert.Equal(t, 1, strings.Count(h.logs.String(), "WARN"))
}

func TestStreamErrorFlushesPending(t *testing.T) {
	h := newControllerForTest(t, nil)
	h.start(realtimeParams(core.ModeLive, time.Second, 10))

	h.fetcher.next(t).reply <- fetchReply{}
	h.pump(t)
	stream := h.streamer.next(t)

	stream.events <- core.StreamEvent{Kind: core.EventOpen}
	stream.events <- core.StreamEvent{Kind: core.EventReading, Reading: reading(1, testNow)}
	stream.events <- core.StreamEvent{Kind: core.EventError, Err: &core.StreamError{Err: errors.New("eof")}}
	h.pump(t)
	h.pump(t)
	h.pump(t)

	assert.Equal(t, []int64{1}, ids(h.c.Snapshot().Readings))
	assert.Nil(t, h.c.flushC)
}

func TestReconnectAfterDelay(t *testing.T) {
	h := newControllerForTest(t, func(c *Config) { c.ReconnectDelay = 5 * time.Second })
	h.start(realtimeParams(core.ModeLive, time.Second, 10))

	h.fetcher.next(t).reply <- fetchReply{}
	h.pump(t)
	first := h.streamer.next(t)

	first.events <- core.StreamEvent{Kind: core.EventError, Err: &core.StreamError{Status: 502, Err: errors.New("bad gateway")}}
	h.pump(t)
	require.NotNil(t, h.c.reconnectC)

	h.clock.Advance(5 * time.Second)
	select {
	case <-h.c.reconnectC:
		h.c.onReconnectTimer()
	case <-time.After(time.Second):
		t.Fatal("reconnect timer did not fire")
	}

	second := h.streamer.next(t)
	assert.Equal(t, StateStreaming, h.c.Snapshot().State)
	h.fetcher.expectNone(t)

	second.events <- core.StreamEvent{Kind: core.EventOpen}
	h.pump(t)
	vm := h.c.Snapshot()
	assert.True(t, vm.ConnectionStatus)
	assert.Equal(t, core.FailureNone, vm.Failure)
	assert.Equal(t, uint64(1), vm.Epoch, "reconnect stays in the same epoch")
}

func TestParamChangeClosesStream(t *testing.T) {
	h := newControllerForTest(t, nil)
	h.start(realtimeParams(core.ModeLive, time.Second, 10))

	h.fetcher.next(t).reply <- fetchReply{readings: []core.Reading{reading(1, testNow)}}
	h.pump(t)
	stream := h.streamer.next(t)

	stream.events <- core.StreamEvent{Kind: core.EventReading, Reading: reading(2, testNow)}
	h.pump(t)
	require.NotNil(t, h.c.flushC)

	h.start(realtimeParams(core.ModeSimulation, time.Second, 10))
	assert.True(t, stream.isClosed())
	assert.Len(t, h.c.pending, 0, "pending readings of the old epoch are dropped")

	vm := h.c.Snapshot()
	assert.Equal(t, core.ModeSimulation, vm.Mode)
	assert.Equal(t, idRange(111, 120), ids(vm.Readings))
}

func TestStaleEventsDiscarded(t *testing.T) {
	h := newControllerForTest(t, nil)
	h.start(realtimeParams(core.ModeSimulation, time.Second, 10))
	before := h.c.Snapshot().Readings

	h.c.handleEvent(event{kind: evStream, gen: 0, stream: core.StreamEvent{Kind: core.EventReading, Reading: reading(999, testNow)}})
	h.c.handleEvent(event{kind: evFetch, gen: 0, readings: []core.Reading{reading(998, testNow)}})
	h.c.handleEvent(event{kind: evStream, gen: 1, conn: 42, stream: core.StreamEvent{Kind: core.EventError, Err: errors.New("old")}})

	assert.Equal(t, 3.0, testutil.ToFloat64(h.c.metrics.staleDiscarded))
	assert.Equal(t, ids(before), ids(h.c.Snapshot().Readings))
	assert.Nil(t, h.c.flushC)
	assert.Equal(t, StateStreaming, h.c.Snapshot().State)
}

func TestEqualParamsKeepEpoch(t *testing.T) {
	h := newControllerForTest(t, nil)
	p := realtimeParams(core.ModeSimulation, time.Second, 10)

	h.start(p)
	h.start(p)
	assert.Equal(t, uint64(1), h.c.Snapshot().Epoch)

	h.c.handleCommand(command{kind: cmdRetry})
	assert.Equal(t, uint64(2), h.c.Snapshot().Epoch)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.c.metrics.epochs.WithLabelValues("simulation")))
}

func TestStartValidation(t *testing.T) {
	c, err := New(nil, WithClock(timeutil.NewMockClock(testNow)))
	require.NoError(t, err)
	defer c.Stop()

	assert.Error(t, c.Start(core.Params{Mode: core.ModeSimulation, PollInterval: 0, MaxDataPoints: 10}))
	assert.Error(t, c.Start(realtimeParams(core.ModeLive, time.Second, 10)), "live mode needs a fetcher and a streamer")

	_, err = New(&Config{})
	assert.Error(t, err)
}

func TestStopIdempotent(t *testing.T) {
	c, err := New(nil, WithMetrics(NewMetrics(prometheus.NewRegistry())))
	require.NoError(t, err)

	require.NoError(t, c.Start(realtimeParams(core.ModeSimulation, 10*time.Millisecond, 20)))
	require.Eventually(t, func() bool {
		return c.Snapshot().ConnectionStatus
	}, time.Second, 5*time.Millisecond)

	c.Stop()
	c.Stop()

	vm := c.Snapshot()
	assert.Equal(t, StateStopped, vm.State)
	assert.False(t, vm.ConnectionStatus)
	assert.ErrorIs(t, c.Start(realtimeParams(core.ModeSimulation, time.Second, 20)), ErrStopped)
	assert.ErrorIs(t, c.Retry(), ErrStopped)

	// 更新通道在关闭后被关闭
	for range c.Updates() {
	}
}

func TestStopWithoutStart(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	c.Stop()
	c.Stop()
	assert.Equal(t, StateStopped, c.Snapshot().State)
}

func TestTimerBackedRun(t *testing.T) {
	c, err := New(&Config{
		FlushDelay:        5 * time.Millisecond,
		TodayLimit:        10,
		SimulationSeed:    3,
		SimulationSpacing: time.Second,
		EventBuffer:       8,
	})
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, c.Start(realtimeParams(core.ModeSimulation, 10*time.Millisecond, 6)))
	require.Eventually(t, func() bool {
		return c.Snapshot().WindowSize == 6
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case vm := <-c.Updates():
		assert.Equal(t, core.ModeSimulation, vm.Mode)
	case <-time.After(time.Second):
		t.Fatal("no view model update published")
	}
}
