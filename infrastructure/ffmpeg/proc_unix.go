//go:build unix

package ffmpeg

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the command in its own process group and makes context
// cancellation kill the group, so helpers spawned by ffmpeg die with it
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
