// Package tui 提供测速看板的终端用户界面
// 从采集控制器接收视图模型，按看板设置过滤后渲染汇总、传感器表格和速度曲线
package tui

import (
	"sync"
	"time"

	"github.com/rivo/tview"

	"github.com/Kevin-Rudy/gospeed/pkg/acquisition"
	"github.com/Kevin-Rudy/gospeed/pkg/analytics"
	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/settings"
)

// Feed 看板的数据来源，*acquisition.Controller 实现了该接口
type Feed interface {
	Start(params core.Params) error
	Retry() error
	Stop()
	Updates() <-chan acquisition.ViewModel
}

// TUI 主界面结构
type TUI struct {
	app       *tview.Application
	rowFlexes []*tview.Flex
	header    *tview.TextView
	summary   *tview.TextView
	chart     *tview.TextView
	insights  *tview.TextView
	footer    *tview.TextView
	flex      *tview.Flex
	feed      Feed

	// 配置信息
	tuiConfig *Config
	mode      core.Mode
	prefs     *settings.Settings

	// 以下字段受 mu 保护
	mu          sync.RWMutex
	vm          acquisition.ViewModel
	filtered    []core.Reading
	sensorStats []*core.Stats
	stats       analytics.Summary
	lanes       []analytics.LaneStats
	histogram   []analytics.Bin
	hourly      []analytics.HourPoint
	periods     []analytics.PeriodStats
	heatmap     analytics.Heatmap
	topSensors  []*core.Stats
	averages    []*core.Stats // 全部传感器，不受表格行数限制
	alertCount  int
	records     analytics.RecordTracker
	recordUntil time.Time
	epoch       uint64
	status      string // 最近一次操作的提示

	// 界面状态
	selectedRow int
	identifiers []string

	// 控制
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once

	// 测试模式标志
	testMode bool
}

// NewTUI 创建新的TUI实例
func NewTUI(feed Feed, mode core.Mode, prefs *settings.Settings, tuiConfig *Config) *TUI {
	tui := newTUI(feed, mode, prefs, tuiConfig)
	tui.app = tview.NewApplication()
	tui.header = tview.NewTextView()
	tui.summary = tview.NewTextView()
	tui.chart = tview.NewTextView()
	tui.insights = tview.NewTextView()
	tui.footer = tview.NewTextView()

	tui.setupUI()
	tui.setupKeyBindings()

	return tui
}

// NewTUIForTest 创建用于测试的TUI实例（不初始化图形组件）
func NewTUIForTest(feed Feed, mode core.Mode, prefs *settings.Settings, tuiConfig *Config) *TUI {
	tui := newTUI(feed, mode, prefs, tuiConfig)
	tui.testMode = true
	return tui
}

func newTUI(feed Feed, mode core.Mode, prefs *settings.Settings, tuiConfig *Config) *TUI {
	if tuiConfig == nil {
		tuiConfig = DefaultConfig()
	}
	if prefs == nil {
		prefs = settings.Default()
	}
	return &TUI{
		feed:        feed,
		mode:        mode,
		prefs:       prefs,
		tuiConfig:   tuiConfig,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
		selectedRow: -1, // 默认全选状态
	}
}

// Run 启动采集并运行界面，直到用户退出
func (t *TUI) Run() error {
	t.mu.RLock()
	params := t.prefs.Params(t.mode)
	t.mu.RUnlock()

	if err := t.feed.Start(params); err != nil {
		return err
	}

	// 启动数据处理goroutine
	go t.processData()

	// 运行应用
	err := t.app.Run()

	// 确保清理工作完成
	t.Stop()
	<-t.doneChan

	return err
}

// Stop 停止TUI界面，可重复调用
func (t *TUI) Stop() {
	t.stopOnce.Do(func() {
		// 先发送停止信号，让processData退出
		close(t.stopChan)

		// 停止数据源
		t.feed.Stop()

		// 停止应用
		if t.app != nil {
			t.app.Stop()
		}
	})
}

// processData 处理来自采集控制器的视图模型，按固定间隔刷新界面
func (t *TUI) processData() {
	defer close(t.doneChan)

	updates := t.feed.Updates()
	uiTicker := time.NewTicker(t.tuiConfig.RefreshInterval)
	defer uiTicker.Stop()

	for {
		select {
		case vm, ok := <-updates:
			if !ok {
				return
			}
			t.handleDataUpdate(vm)

		case <-uiTicker.C:
			t.handleUIRefresh()

		case <-t.stopChan:
			return
		}
	}
}

// handleDataUpdate 处理视图模型更新
func (t *TUI) handleDataUpdate(vm acquisition.ViewModel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vm = vm
	t.recompute(time.Now())
}

// handleUIRefresh 处理UI刷新
func (t *TUI) handleUIRefresh() {
	if !t.testMode && t.app != nil {
		t.safeUIUpdate(func() {
			t.rebuildUI()
			t.updateChart()
		})
	}
}
