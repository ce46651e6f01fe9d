//go:build windows

package execshell

import (
	"os"
	"os/exec"
)

func configureProcessGroup(command *exec.Cmd) {}

// killProcessGroup terminates the root only; descendants are killed individually by the caller.
func killProcessGroup(process *os.Process) error {
	return process.Kill()
}
