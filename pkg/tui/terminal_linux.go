//go:build linux

package tui

import "golang.org/x/sys/unix"

// IsTerminal 判断文件描述符是否连接到终端
func IsTerminal(fd uintptr) bool {
	_, err := unix.IoctlGetTermios(int(fd), unix.TCGETS)
	return err == nil
}
