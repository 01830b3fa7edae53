// Package tui 工具函数和辅助类型
package tui

import (
	"fmt"
	"math"

	"github.com/Kevin-Rudy/gospeed/pkg/core"
)

// formatSpeed 格式化速度，无效值显示为 N/A
func formatSpeed(speed float64) string {
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return "N/A"
	}
	return fmt.Sprintf("%.0f", speed)
}

// 扩展的颜色序列，提供更多颜色选择
var colorSequence = []string{
	"[green]", "[yellow]", "[blue]", "[magenta]", "[cyan]", "[red]",
	"[orange]", "[purple]", "[lime]", "[pink]",
	"[darkcyan]", "[darkgreen]", "[darkblue]", "[darkmagenta]",
}

// getTargetColor 根据传感器在表格中的位置分配颜色，表格与图表一致
func (t *TUI) getTargetColor(identifier string) string {
	for i, id := range t.identifiers {
		if id == identifier {
			return colorSequence[i%len(colorSequence)]
		}
	}

	// 如果没找到，返回白色作为默认值
	return "[white]"
}

// laneColor 车道曲线的颜色
func laneColor(lane core.Lane) string {
	switch lane {
	case core.LaneLeft:
		return "[green]"
	case core.LaneRight:
		return "[yellow]"
	default:
		return "[white]"
	}
}

// abs 返回整数的绝对值
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
