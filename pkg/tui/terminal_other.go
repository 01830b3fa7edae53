//go:build !linux && !darwin && !windows

package tui

// IsTerminal 其他平台无法检测，一律视为非终端
func IsTerminal(fd uintptr) bool {
	return false
}
