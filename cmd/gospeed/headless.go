package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Kevin-Rudy/gospeed/pkg/acquisition"
	"github.com/Kevin-Rudy/gospeed/pkg/analytics"
	"github.com/Kevin-Rudy/gospeed/pkg/core"
	"github.com/Kevin-Rudy/gospeed/pkg/settings"
	"github.com/Kevin-Rudy/gospeed/pkg/tui"
)

// runHeadless 不启动界面，视图模型变化时输出一行汇总，退出前输出报告
func runHeadless(ctx context.Context, feed tui.Feed, params core.Params, prefs *settings.Settings, out io.Writer) error {
	if err := feed.Start(params); err != nil {
		return fmt.Errorf("无法开始采集: %w", err)
	}
	defer feed.Stop()

	printer := newHeadlessPrinter(prefs, out)
	updates := feed.Updates()
	for {
		select {
		case <-ctx.Done():
			printer.report()
			return nil
		case vm, ok := <-updates:
			if !ok {
				printer.report()
				return nil
			}
			printer.handle(vm)
		}
	}
}

// headlessPrinter 按行输出视图模型汇总
type headlessPrinter struct {
	out      io.Writer
	criteria analytics.Criteria
	prefs    *settings.Settings

	epoch    uint64
	records  analytics.RecordTracker
	filtered []core.Reading
	lastLine string
}

func newHeadlessPrinter(prefs *settings.Settings, out io.Writer) *headlessPrinter {
	return &headlessPrinter{
		out:      out,
		criteria: prefs.Criteria(),
		prefs:    prefs,
	}
}

// handle 处理一次视图模型，内容不变时不重复输出
func (p *headlessPrinter) handle(vm acquisition.ViewModel) {
	if vm.Epoch != p.epoch {
		p.epoch = vm.Epoch
		p.records.Reset()
	}

	p.filtered = p.criteria.Apply(vm.Readings)
	line := p.format(vm)
	if line == p.lastLine {
		return
	}
	p.lastLine = line
	fmt.Fprintf(p.out, "[%s] %s\n", vm.UpdatedAt.Local().Format("15:04:05"), line)
}

// format 生成一行汇总，不含时间戳
func (p *headlessPrinter) format(vm acquisition.ViewModel) string {
	conn := "offline"
	if vm.ConnectionStatus {
		conn = "online"
	}
	parts := []string{fmt.Sprintf("#%d %s %s %s", vm.Epoch, vm.DateRange, vm.State, conn)}

	if vm.State == acquisition.StateAwaitingInput {
		parts = append(parts, "自定义范围缺少起止时间")
	}
	if vm.LastError != "" {
		parts = append(parts, fmt.Sprintf("%s: %s", vm.Failure, vm.LastError))
	}

	summary := analytics.Summarize(p.filtered)
	if summary.Total == 0 {
		parts = append(parts, "没有数据")
		return strings.Join(parts, " | ")
	}
	parts = append(parts, fmt.Sprintf("共 %d 条 平均 %.1f 最高 %.1f 最低 %.1f", summary.Total, summary.Avg, summary.Max, summary.Min))

	if summary.Total >= 2 {
		c := analytics.MeasureConsistency(p.filtered)
		parts = append(parts, fmt.Sprintf("%s (CV %.1f%%)", c.Level, c.CV))
	}

	if top := analytics.TopSensors(p.filtered, 1); len(top) == 1 {
		parts = append(parts, fmt.Sprintf("最多 %s %d 条", top[0].Identifier, top[0].Count))
	}

	if p.prefs.EnableAlerts {
		alerts := analytics.Alerts(vm.Readings, p.prefs.SpeedThresholdMin, p.prefs.SpeedThresholdMax)
		parts = append(parts, fmt.Sprintf("告警 %d", len(alerts)))
	}

	if p.records.Observe(summary.Max) {
		parts = append(parts, fmt.Sprintf("新纪录 %.1f", summary.Max))
	}

	return strings.Join(parts, " | ")
}

// report 输出最后一个窗口的传感器列表、按小时趋势、时段和车道分布
func (p *headlessPrinter) report() {
	if len(p.filtered) == 0 {
		return
	}

	if sensors := analytics.AvailableSensors(p.filtered); len(sensors) > 0 {
		fmt.Fprintf(p.out, "传感器: %s\n", strings.Join(sensors, ", "))
	}

	fmt.Fprintln(p.out, "按小时:")
	for _, h := range analytics.HourlyTrend(p.filtered) {
		fmt.Fprintf(p.out, "  %s  %4d 条  平均 %.1f\n", h.Hour.Format("01-02 15:00"), h.Count, h.Avg)
	}

	fmt.Fprintln(p.out, "时段:")
	for _, ps := range analytics.TimePeriods(p.filtered) {
		fmt.Fprintf(p.out, "  %s  %4d 条  平均 %.1f  最高 %.1f\n", ps.Period, ps.Count, ps.Avg, ps.Max)
	}

	fmt.Fprintln(p.out, "车道:")
	for _, ls := range analytics.LaneSplit(p.filtered) {
		fmt.Fprintf(p.out, "  %-5s  %4d 条  平均 %.1f  最高 %.1f  最低 %.1f\n", ls.Lane, ls.Count, ls.Avg, ls.Max, ls.Min)
	}
}
