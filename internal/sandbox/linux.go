//go:build linux

package sandbox

import (
	"fmt"
	"os/exec"
)

// bwrapManager confines commands with bubblewrap.
type bwrapManager struct{}

func (m *bwrapManager) Available() bool {
	_, err := exec.LookPath("bwrap")
	return err == nil
}

func (m *bwrapManager) Wrap(spec CommandSpec, policy *Policy) (*ExecEnv, error) {
	if !policy.Restricted() {
		return passthrough(spec), nil
	}

	cmd := []string{"bwrap", "--ro-bind", "/", "/",
		"--tmpfs", "/tmp", "--dev", "/dev", "--proc", "/proc"}

	switch policy.Mode {
	case ModeReadOnly:
	case ModeWorkspaceWrite:
		for _, root := range policy.WritableRoots {
			cmd = append(cmd, "--bind", root, root)
		}
	default:
		return nil, fmt.Errorf("unsupported sandbox mode: %s", policy.Mode)
	}

	if !policy.NetworkAccess {
		cmd = append(cmd, "--unshare-net")
	}
	cmd = append(cmd, "--unshare-pid")
	if spec.Cwd != "" {
		cmd = append(cmd, "--chdir", spec.Cwd)
	}
	cmd = append(cmd, "--", spec.Program)
	cmd = append(cmd, spec.Args...)

	env := map[string]string{"STEWARD_SANDBOX": "bwrap"}
	if !policy.NetworkAccess {
		env["STEWARD_SANDBOX_NETWORK_DISABLED"] = "1"
	}

	return &ExecEnv{Command: cmd, Cwd: spec.Cwd, Env: env}, nil
}
