//go:build unix

package descriptor

import (
	"errors"
	"os/exec"
	"syscall"
)

// isolateGroup starts the tool as the leader of its own process group and
// makes cancellation kill the whole group, so helpers spawned by a wrapper
// script do not outlive it. Cancel runs before the leader is reaped, so the
// group ID cannot have been reused yet.
func isolateGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
}
