// Package tui 布局管理模块
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Kevin-Rudy/gospeed/pkg/acquisition"
	"github.com/Kevin-Rudy/gospeed/pkg/analytics"
	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// sensorColumns 传感器表格的数据列
var sensorColumns = []string{"数量", "平均", "最高", "最低", "标准差"}

// setupUI 设置用户界面布局
func (t *TUI) setupUI() {
	for _, view := range []*tview.TextView{t.header, t.summary, t.insights, t.footer} {
		view.SetDynamicColors(true)
		view.SetWordWrap(false)
	}
	t.header.SetText(fmt.Sprintf("[green]GoSpeed %s[white] - [yellow]正在连接数据源...[white]", t.tuiConfig.ModeLabel))

	// 设置图表属性
	t.chart.SetWordWrap(false)
	t.chart.SetDynamicColors(true)
	t.chart.SetText("[yellow]正在初始化，等待数据...[white]")

	// 创建主垂直布局
	t.flex = tview.NewFlex()
	t.flex.SetDirection(tview.FlexRow)
	t.flex.AddItem(t.header, 1, 0, false)
	t.flex.AddItem(t.summary, 1, 0, false)
	t.flex.AddItem(t.chart, 0, 1, false)
	t.flex.AddItem(t.footer, 1, 0, false)

	t.app.SetRoot(t.flex, true)
}

// rebuildUI 重建UI布局
func (t *TUI) rebuildUI() {
	if t.testMode {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	now := time.Now()
	t.header.SetText(t.headerText())
	t.summary.SetText(t.summaryText(now))
	t.footer.SetText(t.footerText())

	// 清空主布局
	t.flex.Clear()
	t.flex.AddItem(t.header, 1, 0, false)
	t.flex.AddItem(t.summary, 1, 0, false)
	t.rowFlexes = make([]*tview.Flex, 0, len(t.sensorStats)+1) // +1 为表头行

	if len(t.sensorStats) > 0 && t.prefs.ShowSensorStats {
		headerFlex := t.createHeaderRow()
		t.flex.AddItem(headerFlex, 1, 0, false)
		t.rowFlexes = append(t.rowFlexes, headerFlex)

		for _, stats := range t.sensorStats {
			rowFlex := t.createDataRow(stats)
			t.flex.AddItem(rowFlex, 1, 0, false)
			t.rowFlexes = append(t.rowFlexes, rowFlex)
		}
	}

	if lines := t.insightLines(); len(lines) > 0 {
		t.insights.SetText(strings.Join(lines, "\n"))
		t.flex.AddItem(t.insights, len(lines), 0, false)
	}

	// 图表占据所有剩余空间
	t.flex.AddItem(t.chart, 0, 1, false)
	t.flex.AddItem(t.footer, 1, 0, false)

	t.updateSelection()
}

// headerText 标题栏：运行模式、状态、连接、范围和过滤条件，调用方持有读锁
func (t *TUI) headerText() string {
	vm := t.vm

	conn := "[red]● 离线[white]"
	if vm.ConnectionStatus {
		conn = "[green]● 在线[white]"
	}

	state := vm.State.String()
	if vm.IsLoading {
		state = "loading"
	}

	alerts := "off"
	if t.prefs.EnableAlerts {
		alerts = fmt.Sprintf("%.0f-%.0f", t.prefs.SpeedThresholdMin, t.prefs.SpeedThresholdMax)
	}

	parts := []string{
		fmt.Sprintf("[green]GoSpeed %s[white]", t.tuiConfig.ModeLabel),
		conn,
		fmt.Sprintf("状态 [yellow]%s[white]", state),
		fmt.Sprintf("#%d", vm.Epoch),
		fmt.Sprintf("范围 [cyan]%s[white]", vm.DateRange),
		fmt.Sprintf("车道 %s", t.prefs.LaneLabel()),
		fmt.Sprintf("告警 %s", alerts),
	}

	switch {
	case vm.State == acquisition.StateAwaitingInput:
		parts = append(parts, "[yellow]请先设置自定义起止时间[white]")
	case vm.LastError != "":
		parts = append(parts, fmt.Sprintf("[red]%s: %s[white] [gray](R 重试)[white]", vm.Failure, vm.LastError))
	case t.status != "":
		parts = append(parts, "[gray]"+t.status+"[white]")
	}

	return strings.Join(parts, " | ")
}

// summaryText 汇总行，调用方持有读锁
func (t *TUI) summaryText(now time.Time) string {
	if t.stats.Total == 0 {
		return "[gray]当前过滤条件下没有数据[white]"
	}

	text := fmt.Sprintf("平均 [green]%s[white]  最高 [red]%s[white]  最低 [blue]%s[white]  共 %d 条 (窗口 %d)",
		formatSpeed(t.stats.Avg), formatSpeed(t.stats.Max), formatSpeed(t.stats.Min), t.stats.Total, t.vm.WindowSize)
	if t.prefs.ShowSpeedRecords && t.isNewRecord(now) {
		text += "  [yellow::b]★ 新纪录[-:-:-]"
	}
	return text
}

// footerText 底栏：车道分布、速度分布和告警，调用方持有读锁
func (t *TUI) footerText() string {
	var parts []string

	if t.prefs.ShowLaneDistribution {
		for _, ls := range t.lanes {
			parts = append(parts, fmt.Sprintf("%s%s[white] %d/%s", laneColor(ls.Lane), ls.Lane, ls.Count, formatSpeed(ls.Avg)))
		}
	}

	if t.prefs.ShowSpeedDistribution && len(t.histogram) > 0 {
		parts = append(parts, "分布 [cyan]"+renderSparkline(t.histogram)+"[white]")
	}

	if t.prefs.EnableAlerts {
		color := "[green]"
		if t.alertCount > 0 {
			color = "[red]"
		}
		parts = append(parts, fmt.Sprintf("%s告警 %d[white]", color, t.alertCount))
	}

	parts = append(parts, "[gray]↑↓ 选择  r/t/c 范围  l 车道  a 告警  R 重试  q 退出[white]")
	return strings.Join(parts, " | ")
}

// hourlyTrendPoints 小时趋势最多显示的小时数
const hourlyTrendPoints = 6

// insightLines 按面板开关生成分析面板的各行，调用方持有读锁
func (t *TUI) insightLines() []string {
	if t.stats.Total == 0 {
		return nil
	}

	var lines []string

	if t.prefs.ShowHourlyTrend && len(t.hourly) > 0 {
		points := t.hourly
		if len(points) > hourlyTrendPoints {
			points = points[len(points)-hourlyTrendPoints:]
		}
		parts := make([]string, 0, len(points))
		for _, p := range points {
			parts = append(parts, fmt.Sprintf("%s %d/%s", p.Hour.Format("15:04"), p.Count, formatSpeed(p.Avg)))
		}
		lines = append(lines, "[yellow]小时趋势[white] "+strings.Join(parts, "  "))
	}

	if t.prefs.ShowAverageSpeedBySensor && len(t.averages) > 0 {
		parts := make([]string, 0, len(t.averages))
		for _, s := range t.averages {
			parts = append(parts, fmt.Sprintf("%s%s[white] %s", t.getTargetColor(s.Identifier), s.Identifier, formatSpeed(s.Mean())))
		}
		lines = append(lines, "[yellow]平均速度[white] "+strings.Join(parts, "  "))
	}

	if t.prefs.ShowTopSensors && len(t.topSensors) > 0 {
		parts := make([]string, 0, len(t.topSensors))
		for i, s := range t.topSensors {
			parts = append(parts, fmt.Sprintf("%d.%s(%d)", i+1, s.Identifier, s.Count))
		}
		lines = append(lines, "[yellow]最活跃[white] "+strings.Join(parts, "  "))
	}

	if t.prefs.ShowTimePeriodAnalysis && len(t.periods) > 0 {
		parts := make([]string, 0, len(t.periods))
		for _, p := range t.periods {
			if p.Count == 0 {
				parts = append(parts, fmt.Sprintf("[gray]%s -[white]", p.Period))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s %d/%s", p.Period, p.Count, formatSpeed(p.Avg)))
		}
		lines = append(lines, "[yellow]时段[white] "+strings.Join(parts, "  "))
	}

	if t.prefs.ShowActivityHeatmap && len(t.heatmap.Sensors) > 0 {
		lines = append(lines, heatmapLines(t.heatmap, t.tuiConfig.MaxSensorRows)...)
	}

	return lines
}

// heatmapLines 活跃度热力图：首行为小时刻度，之后每个传感器一行
func heatmapLines(h analytics.Heatmap, maxRows int) []string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[yellow]%-16s[white]", "活跃度"))
	for _, hour := range h.Hours {
		sb.WriteString(fmt.Sprintf("%02d ", hour))
	}
	lines := []string{strings.TrimRight(sb.String(), " ")}

	for i, name := range h.Sensors {
		if i >= maxRows {
			break
		}
		sb.Reset()
		sb.WriteString(fmt.Sprintf("%-16s", truncate(name, 16)))
		for _, n := range h.Counts[i] {
			sb.WriteString(heatCell(n, h.Max))
			sb.WriteByte(' ')
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))
	}
	return lines
}

// heatCell 按次数相对最大值选择两个字符宽的色块
func heatCell(n, max int) string {
	if n <= 0 || max <= 0 {
		return "··"
	}
	idx := int(math.Ceil(float64(n)/float64(max)*float64(len(sparkBlocks)))) - 1
	if idx < 0 {
		idx = 0
	}
	block := string(sparkBlocks[idx])
	return block + block
}

// truncate 按字符截断名称
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// createHeaderRow 创建表头行
func (t *TUI) createHeaderRow() *tview.Flex {
	headerFlex := tview.NewFlex()
	headerFlex.SetDirection(tview.FlexColumn)

	// 添加表头的传感器列
	sensorHeaderText := tview.NewTextView()
	sensorHeaderText.SetText(fmt.Sprintf("[yellow]%-20s[white]", "传感器"))
	sensorHeaderText.SetDynamicColors(true)
	sensorHeaderText.SetTextAlign(tview.AlignLeft)
	headerFlex.AddItem(sensorHeaderText, 0, 2, false) // 给传感器列更多空间

	// 添加表头的数据列
	for _, header := range sensorColumns {
		headerText := tview.NewTextView()
		headerText.SetText(fmt.Sprintf("[yellow]%8s[white]", header))
		headerText.SetDynamicColors(true)
		headerText.SetTextAlign(tview.AlignCenter)
		headerFlex.AddItem(headerText, 0, 1, false)
	}

	return headerFlex
}

// createDataRow 创建数据行
func (t *TUI) createDataRow(stats *core.Stats) *tview.Flex {
	rowFlex := tview.NewFlex()
	rowFlex.SetDirection(tview.FlexColumn)

	// 传感器颜色与图表一致
	color := t.getTargetColor(stats.Identifier)

	sensorText := tview.NewTextView()
	sensorText.SetText(fmt.Sprintf("%s%-20s[white]", color, stats.Identifier))
	sensorText.SetDynamicColors(true)
	sensorText.SetTextAlign(tview.AlignLeft)
	rowFlex.AddItem(sensorText, 0, 2, false)

	for _, value := range sensorRow(stats) {
		dataText := tview.NewTextView()
		dataText.SetText(fmt.Sprintf("%8s", value))
		dataText.SetTextAlign(tview.AlignCenter)
		dataText.SetTextColor(tcell.ColorWhite)
		rowFlex.AddItem(dataText, 0, 1, false)
	}

	return rowFlex
}

// sensorRow 按 sensorColumns 的顺序格式化一行统计
func sensorRow(stats *core.Stats) []string {
	return []string{
		fmt.Sprintf("%d", stats.Count),
		formatSpeed(stats.Mean()),
		formatSpeed(stats.MaxSpeed),
		formatSpeed(stats.MinSpeed),
		formatSpeed(stats.StdDev()),
	}
}

// updateChart 更新图表显示
func (t *TUI) updateChart() {
	if t.testMode || t.chart == nil {
		return
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.prefs.ShowSpeedChart {
		t.chart.SetText("")
		return
	}

	if len(t.filtered) == 0 {
		t.chart.SetText("没有数据")
		return
	}

	// 获取图表视图的实际可绘制尺寸
	_, _, width, height := t.chart.GetInnerRect()

	// 确保有合理的最小尺寸
	if width < 20 {
		width = 80
	}
	if height < 10 {
		height = 15
	}

	t.chart.SetText(t.chartText(width, height))
}

// chartText 选择要绘制的曲线，调用方持有读锁
func (t *TUI) chartText(width, height int) string {
	if t.selectedRow >= 0 && t.selectedRow < len(t.identifiers) {
		// 单选状态：显示选中传感器的曲线
		return t.drawSensorChart(t.identifiers[t.selectedRow], width, height)
	}
	// 全选状态：每个车道一条曲线
	return t.drawLaneChart(width, height)
}

// safeUIUpdate 安全地执行UI更新操作
func (t *TUI) safeUIUpdate(updateFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			// 如果应用已经停止，忽略panic
		}
	}()
	t.app.QueueUpdateDraw(updateFunc)
}
