// Package core 有界数据窗口
package core

// preallocLimit 预分配容量的上限，更大的窗口按需增长
const preallocLimit = 256

// Window 有长度上限的滚动缓冲区，超出容量时先进先出淘汰
// 非并发安全，由采集控制器独占
type Window struct {
	max      int
	readings []Reading
}

// NewWindow 创建容量为max的窗口
func NewWindow(max int) *Window {
	return &Window{
		max:      max,
		readings: make([]Reading, 0, min(max, preallocLimit)),
	}
}

// Append 追加数据并淘汰最旧的数据点，保持原有顺序
func (w *Window) Append(readings ...Reading) {
	w.readings = append(w.readings, readings...)
	w.dequeueOutOfWindow()
}

// dequeueOutOfWindow 移除窗口外的数据点
func (w *Window) dequeueOutOfWindow() {
	if len(w.readings) > w.max {
		w.readings = w.readings[len(w.readings)-w.max:]
	}
}

// Readings 返回窗口内容的副本
func (w *Window) Readings() []Reading {
	out := make([]Reading, len(w.readings))
	copy(out, w.readings)
	return out
}

// Len 返回当前数据点数量
func (w *Window) Len() int {
	return len(w.readings)
}

// Cap 返回窗口容量
func (w *Window) Cap() int {
	return w.max
}

// Reset 清空窗口并设置新的容量
func (w *Window) Reset(max int) {
	w.max = max
	w.readings = make([]Reading, 0, min(max, preallocLimit))
}
