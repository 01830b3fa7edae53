// Package tui 交互控制模块
package tui

import (
	"log"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/settings"
)

// 导航事件频率控制 - 包级私有变量
var (
	navigationEventCounter   int                      // 事件计数器
	navigationEventThreshold = 5                      // 5次事件后休息
	navigationRestDuration   = 100 * time.Millisecond // 休息时长
	isNavigationResting      bool                     // 是否在休息状态
	lastNavigationEventTime  time.Time                // 最后一次事件时间
)

// shouldHandleNavigationEvent 判断是否应该处理导航事件
func shouldHandleNavigationEvent() bool {
	now := time.Now()

	// 如果正在休息中，检查是否休息够了
	if isNavigationResting {
		if now.Sub(lastNavigationEventTime) >= navigationRestDuration {
			isNavigationResting = false
			navigationEventCounter = 0
			return true
		}
		return false
	}

	return true
}

// recordNavigationEvent 记录导航事件
func recordNavigationEvent() {
	navigationEventCounter++
	lastNavigationEventTime = time.Now()

	if navigationEventCounter >= navigationEventThreshold {
		isNavigationResting = true
	}
}

// setupKeyBindings 设置键盘绑定
func (t *TUI) setupKeyBindings() {
	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.handleKey(event) {
			return nil
		}
		return event
	})
}

// handleKey 处理一次按键，返回是否已消费该事件
func (t *TUI) handleKey(event *tcell.EventKey) bool {
	switch event.Key() {
	case tcell.KeyCtrlC:
		t.Stop()
		return true
	case tcell.KeyUp:
		if shouldHandleNavigationEvent() {
			t.navigateUp()
			recordNavigationEvent()
		}
		return true
	case tcell.KeyDown:
		if shouldHandleNavigationEvent() {
			t.navigateDown()
			recordNavigationEvent()
		}
		return true
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			t.Stop()
		case 'r':
			t.setDateRange(core.RangeRealtime)
		case 't':
			t.setDateRange(core.RangeToday)
		case 'c':
			t.setDateRange(core.RangeCustom)
		case 'l':
			t.updatePrefs(false, func(p *settings.Settings) string {
				p.CycleLanes()
				return "车道: " + p.LaneLabel()
			})
		case 'a':
			t.updatePrefs(false, func(p *settings.Settings) string {
				p.EnableAlerts = !p.EnableAlerts
				if p.EnableAlerts {
					return "告警已开启"
				}
				return "告警已关闭"
			})
		case 'R':
			t.retry()
		default:
			return false
		}
		return true
	}
	return false
}

// setDateRange 切换日期范围并开始新的采集周期
// 自定义范围只在设置文件提供了起止时间时可用
func (t *TUI) setDateRange(mode core.DateRangeMode) {
	t.mu.RLock()
	missing := mode == core.RangeCustom && !t.prefs.HasCustomBounds()
	t.mu.RUnlock()
	if missing {
		t.setStatus("自定义范围缺少起止时间，请在设置文件中填写")
		return
	}

	t.updatePrefs(true, func(p *settings.Settings) string {
		p.DateRangeMode = mode
		return "范围: " + mode.String()
	})
}

// updatePrefs 修改看板设置并重新计算，restart 为真时以新参数重新开始采集
func (t *TUI) updatePrefs(restart bool, mutate func(p *settings.Settings) string) {
	t.mu.Lock()
	t.status = mutate(t.prefs)
	params := t.prefs.Params(t.mode)

	var saveErr error
	if path := t.tuiConfig.SettingsPath; path != "" {
		saveErr = t.prefs.Save(path)
	}
	t.recompute(time.Now())
	t.mu.Unlock()

	if saveErr != nil {
		log.Printf("WARN 保存设置失败: %v", saveErr)
	}

	if !restart {
		return
	}
	// 控制器可能同步推送视图模型，不能持锁调用
	if err := t.feed.Start(params); err != nil {
		t.setStatus("无法开始采集: " + err.Error())
	}
}

// retry 重新开始当前采集周期
func (t *TUI) retry() {
	if err := t.feed.Retry(); err != nil {
		t.setStatus("重试失败: " + err.Error())
		return
	}
	t.setStatus("正在重试...")
}

// setStatus 设置标题栏的提示信息
func (t *TUI) setStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = status
}

// navigateUp 向上导航
func (t *TUI) navigateUp() {
	t.mu.Lock()
	if len(t.identifiers) == 0 {
		t.mu.Unlock()
		return
	}

	if t.selectedRow == -1 {
		// 从全选状态按上键，选择最后一个条目
		t.selectedRow = len(t.identifiers) - 1
	} else if t.selectedRow > 0 {
		t.selectedRow--
	} else {
		// 在第一个条目时按上键，返回全选状态
		t.selectedRow = -1
	}
	t.mu.Unlock()

	t.refreshSelection()
}

// navigateDown 向下导航
func (t *TUI) navigateDown() {
	t.mu.Lock()
	if len(t.identifiers) == 0 {
		t.mu.Unlock()
		return
	}

	if t.selectedRow == -1 {
		// 从全选状态按下键，选择第一个条目
		t.selectedRow = 0
	} else if t.selectedRow < len(t.identifiers)-1 {
		t.selectedRow++
	} else {
		// 在最后一个条目时按下键，返回全选状态
		t.selectedRow = -1
	}
	t.mu.Unlock()

	t.refreshSelection()
}

// refreshSelection 选择变化后刷新表格和图表
func (t *TUI) refreshSelection() {
	if t.testMode {
		return
	}
	t.mu.RLock()
	t.updateSelection()
	t.mu.RUnlock()
	t.updateChart()
}

// updateSelection 更新行选择状态，调用方持有读锁
func (t *TUI) updateSelection() {
	if t.testMode || len(t.rowFlexes) == 0 {
		return
	}

	for i, rowFlex := range t.rowFlexes {
		color := tcell.ColorDefault
		if i > 0 && t.selectedRow == i-1 { // -1 因为表头行占用了索引0
			color = tcell.ColorDarkCyan
		}
		for j := 0; j < rowFlex.GetItemCount(); j++ {
			if textView, ok := rowFlex.GetItem(j).(*tview.TextView); ok {
				textView.SetBackgroundColor(color)
			}
		}
	}
}
