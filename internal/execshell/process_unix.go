//go:build !windows

package execshell

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

func configureProcessGroup(command *exec.Cmd) {
	command.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}

// killProcessGroup signals the whole group; the root leads it, so its PID is the group ID.
func killProcessGroup(process *os.Process) error {
	killError := unix.Kill(-process.Pid, unix.SIGKILL)
	if killError == nil || errors.Is(killError, unix.ESRCH) {
		return nil
	}
	return process.Kill()
}
