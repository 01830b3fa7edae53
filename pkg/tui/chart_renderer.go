// Package tui 图表渲染模块
package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Kevin-Rudy/gospeed/pkg/analytics"
)

// chartPoint 曲线上的一个点
type chartPoint struct {
	ts    time.Time
	value float64
}

// series 一条带颜色的曲线，点按时间排序
type series struct {
	name   string
	color  string
	points []chartPoint
}

// brailleCell 定义盲文字符的cell结构
type brailleCell struct {
	char  int
	color string
}

// 盲文点阵的映射关系 (2x4 grid)
var brailleDotMap = [4][2]int{
	{0b00000001, 0b00001000}, // (y:0, x:0), (y:0, x:1)
	{0b00000010, 0b00010000}, // (y:1, x:0), (y:1, x:1)
	{0b00000100, 0b00100000}, // (y:2, x:0), (y:2, x:1)
	{0b01000000, 0b10000000}, // (y:3, x:0), (y:3, x:1)
}

// validateChartSize 验证图表尺寸是否合理
func (t *TUI) validateChartSize(width, height int) string {
	if height < t.tuiConfig.MinChartHeight || width < t.tuiConfig.MinChartWidth {
		return "终端尺寸过小"
	}
	if width > t.tuiConfig.MaxChartSize || height > t.tuiConfig.MaxChartSize {
		return "终端尺寸过大"
	}
	return ""
}

// calculateValueRange 计算所有曲线的速度范围
func (t *TUI) calculateValueRange(all []series) (minVal, maxVal, valueRange float64, errMsg string) {
	found := false
	for _, s := range all {
		for _, p := range s.points {
			if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
				continue
			}
			if !found {
				minVal, maxVal = p.value, p.value
				found = true
				continue
			}
			minVal = math.Min(minVal, p.value)
			maxVal = math.Max(maxVal, p.value)
		}
	}

	if !found {
		return 0, 0, 0, "当前窗口内没有有效数据"
	}

	// 如果所有值都一样，特殊处理
	if maxVal == minVal {
		maxVal++
		minVal--
	}

	// 采用缓冲算法
	maxVal = maxVal + maxVal*t.tuiConfig.ValueBufferRatio
	minVal = minVal - minVal*t.tuiConfig.ValueBufferRatio
	if minVal < 0 {
		minVal = 0
	}

	valueRange = maxVal - minVal
	if valueRange == 0 {
		valueRange = 1
	}

	return minVal, maxVal, valueRange, ""
}

// drawLaneChart 每个车道一条曲线
func (t *TUI) drawLaneChart(width, height int) string {
	return t.drawSeriesChart(t.laneSeries(), width, height)
}

// drawSensorChart 只绘制选中传感器的曲线
func (t *TUI) drawSensorChart(identifier string, width, height int) string {
	return t.drawSeriesChart(t.sensorSeries(identifier), width, height)
}

// drawSeriesChart 基于时间戳绘制速度曲线
func (t *TUI) drawSeriesChart(all []series, width, height int) string {
	// 检查图表尺寸是否合理
	if sizeErr := t.validateChartSize(width, height); sizeErr != "" {
		return sizeErr
	}

	windowStart, windowEnd, ok := getTimeWindow(all)
	if !ok {
		return "没有数据"
	}

	minVal, maxVal, valueRange, errMsg := t.calculateValueRange(all)
	if errMsg != "" {
		return errMsg
	}

	// 动态计算Y轴标签宽度
	maxLabelLen := len(formatSpeed(maxVal))
	if l := len(formatSpeed(minVal)); l > maxLabelLen {
		maxLabelLen = l
	}
	yAxisLabelWidth := maxLabelLen + 2 // +2 为│分隔符和右侧空格留出缓冲

	// 为X轴、时间戳和图例留出3行空间
	chartBodyHeight := height - 3
	chartWidth := width - yAxisLabelWidth
	if chartBodyHeight <= 0 || chartWidth <= 0 {
		return "可绘制区域过小"
	}

	canvas := make([][]brailleCell, chartWidth)
	for i := range canvas {
		canvas[i] = make([]brailleCell, chartBodyHeight)
	}

	pixelW, pixelH := chartWidth*2, chartBodyHeight*4
	for _, s := range all {
		color := s.color
		if color == "" {
			color = "[white]"
		}

		lastX, lastY := -1, -1
		for _, p := range s.points {
			if p.ts.Before(windowStart) || p.ts.After(windowEnd) {
				continue
			}
			x := timestampToX(p.ts, windowStart, windowEnd, pixelW)
			if x < 0 || x >= pixelW {
				continue
			}

			normalized := (p.value - minVal) / valueRange
			y := int((1.0 - normalized) * float64(pixelH-1))
			if y < 0 {
				y = 0
			} else if y >= pixelH {
				y = pixelH - 1
			}

			if lastX != -1 {
				drawBrailleLine(canvas, lastX, lastY, x, y, pixelH, pixelW, color)
			} else {
				plotDot(canvas, x, y, color)
			}
			lastX, lastY = x, y
		}
	}

	var lines []string

	// 预先计算所有Y轴标签及其对应的行号
	yAxisLabelCount := 5
	if chartBodyHeight < yAxisLabelCount {
		yAxisLabelCount = chartBodyHeight
	}
	yAxisLabels := make(map[int]string)
	if yAxisLabelCount > 1 {
		for i := 0; i < yAxisLabelCount; i++ {
			normalized := float64(i) / float64(yAxisLabelCount-1)
			value := maxVal - normalized*valueRange
			yAxisLabels[int(normalized*float64(chartBodyHeight-1))] = formatSpeed(value)
		}
	}

	for i := 0; i < chartBodyHeight; i++ {
		var b strings.Builder
		fmt.Fprintf(&b, "[gray]%*s[white] [gray]│[white]", yAxisLabelWidth-2, yAxisLabels[i])
		for j := 0; j < chartWidth; j++ {
			cell := canvas[j][i]
			if cell.char == 0 {
				b.WriteByte(' ')
				continue
			}
			b.WriteString(cell.color + string(rune(0x2800+cell.char)) + "[white]")
		}
		lines = append(lines, b.String())
	}

	// X轴和时间刻度
	xAxisLine := fmt.Sprintf("%-*s└%s", yAxisLabelWidth-1, "", strings.Repeat("─", chartWidth))
	lines = append(lines, "[gray]"+xAxisLine+"[white]")

	startTimeStr := windowStart.Local().Format("15:04:05")
	endTimeStr := windowEnd.Local().Format("15:04:05")
	spaceCount := chartWidth - len(startTimeStr) - len(endTimeStr)
	if spaceCount < 1 {
		spaceCount = 1
	}
	timeLine := fmt.Sprintf("%-*s%s%*s%s", yAxisLabelWidth, "", startTimeStr, spaceCount, "", endTimeStr)
	lines = append(lines, "[gray]"+timeLine+"[white]")

	// 图例
	legend := make([]string, 0, len(all))
	for _, s := range all {
		legend = append(legend, fmt.Sprintf("%s━ %s[white]", s.color, s.name))
	}
	lines = append(lines, fmt.Sprintf("%-*s%s [gray](km/h)[white]", yAxisLabelWidth, "", strings.Join(legend, "  ")))

	// 保证输出不超过可用高度
	if len(lines) > height {
		lines = lines[:height]
	}

	return strings.Join(lines, "\n")
}

// plotDot 在画布上标记一个子像素
func plotDot(canvas [][]brailleCell, x, y int, color string) {
	canvasX, canvasY := x/2, y/4
	if canvasX < 0 || canvasX >= len(canvas) || canvasY < 0 || canvasY >= len(canvas[0]) {
		return
	}
	canvas[canvasX][canvasY].char |= brailleDotMap[y%4][x%2]
	canvas[canvasX][canvasY].color = color
}

// drawBrailleLine 使用布雷森汉姆算法在盲文画布上绘制线段
func drawBrailleLine(canvas [][]brailleCell, x1, y1, x2, y2, maxHeight, maxWidth int, color string) {
	dx := abs(x2 - x1)
	dy := abs(y2 - y1)
	sx := 1
	if x1 > x2 {
		sx = -1
	}
	sy := 1
	if y1 > y2 {
		sy = -1
	}
	err := dx - dy

	x, y := x1, y1
	for {
		if y >= 0 && y < maxHeight && x >= 0 && x < maxWidth {
			plotDot(canvas, x, y, color)
		}

		if x == x2 && y == y2 {
			break
		}

		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x += sx
		}
		if e2 < dx {
			err += dx
			y += sy
		}
	}
}

// sparkBlocks 分布图使用的字符，从低到高
var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// renderSparkline 将速度分布渲染为一行字符，空区间显示为空格
func renderSparkline(bins []analytics.Bin) string {
	max := 0
	for _, b := range bins {
		if b.Count > max {
			max = b.Count
		}
	}

	var sb strings.Builder
	for _, b := range bins {
		if b.Count == 0 || max == 0 {
			sb.WriteRune(' ')
			continue
		}
		idx := int(math.Ceil(float64(b.Count)/float64(max)*float64(len(sparkBlocks)))) - 1
		if idx < 0 {
			idx = 0
		}
		sb.WriteRune(sparkBlocks[idx])
	}
	return sb.String()
}
