//go:build windows

package tools

import (
	"syscall"
)

// isProcessRunning reports whether a process handle can be opened for pid
// and the process has not exited yet.
func isProcessRunning(pid int) bool {
	const access = syscall.PROCESS_QUERY_INFORMATION | syscall.SYNCHRONIZE
	const stillActive = 259

	h, err := syscall.OpenProcess(access, false, uint32(pid))
	if err != nil {
		return false
	}
	defer syscall.CloseHandle(h)

	var code uint32
	if err := syscall.GetExitCodeProcess(h, &code); err != nil {
		return true
	}
	return code == stillActive
}
