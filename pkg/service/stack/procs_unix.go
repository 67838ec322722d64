//go:build unix

package stack

import (
	"os"
	"os/exec"
	"syscall"
)

// pidAlive reports whether a process with the given pid exists
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// detachProcess puts the child in its own session so it survives the CLI
// exiting
func detachProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func terminateProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

func killProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

// reapProcess collects the exit status when the pid is our own child, so
// a terminated service does not linger as a zombie that still answers
// signal 0. Fails silently for processes we did not spawn.
func reapProcess(pid int) {
	_, _ = syscall.Wait4(pid, nil, syscall.WNOHANG, nil)
}
