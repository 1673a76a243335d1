//go:build windows

package runner

import "os/exec"

func configureProcess(cmd *exec.Cmd) {}

// Windows has no SIGTERM; both paths kill outright.
func signalProcessTree(cmd *exec.Cmd) {
	killProcessTree(cmd)
}

func killProcessTree(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}
