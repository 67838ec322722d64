//go:build !unix

package stack

import (
	"os"
	"os/exec"
)

func pidAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}

func detachProcess(_ *exec.Cmd) {}

func terminateProcess(pid int) error {
	return killProcess(pid)
}

func killProcess(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

func reapProcess(_ int) {}
