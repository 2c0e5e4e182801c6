//go:build darwin

package sandbox

import (
	"fmt"
	"os/exec"
	"strings"
)

// seatbeltManager confines commands with macOS sandbox-exec.
type seatbeltManager struct{}

func (m *seatbeltManager) Available() bool {
	_, err := exec.LookPath("/usr/bin/sandbox-exec")
	return err == nil
}

func (m *seatbeltManager) Wrap(spec CommandSpec, policy *Policy) (*ExecEnv, error) {
	if !policy.Restricted() {
		return passthrough(spec), nil
	}

	profile, err := seatbeltProfile(policy)
	if err != nil {
		return nil, err
	}

	cmd := []string{"/usr/bin/sandbox-exec", "-p", profile, "--", spec.Program}
	cmd = append(cmd, spec.Args...)

	return &ExecEnv{
		Command: cmd,
		Cwd:     spec.Cwd,
		Env:     map[string]string{"STEWARD_SANDBOX": "seatbelt"},
	}, nil
}

// seatbeltProfile renders an SBPL policy: deny by default, allow reads and
// process control, then open up the configured write roots.
func seatbeltProfile(policy *Policy) (string, error) {
	var sb strings.Builder
	sb.WriteString("(version 1)\n")
	sb.WriteString("(deny default)\n")
	sb.WriteString("(allow process-exec)\n")
	sb.WriteString("(allow process-fork)\n")
	sb.WriteString("(allow sysctl-read)\n")
	sb.WriteString("(allow mach-lookup)\n")
	sb.WriteString("(allow file-read*)\n")
	sb.WriteString("(allow file-write* (subpath \"/private/tmp\"))\n")
	sb.WriteString("(allow file-write* (subpath \"/tmp\"))\n")
	sb.WriteString("(allow file-write* (subpath \"/dev\"))\n")

	switch policy.Mode {
	case ModeReadOnly:
	case ModeWorkspaceWrite:
		for _, root := range policy.WritableRoots {
			sb.WriteString(fmt.Sprintf("(allow file-write* (subpath %q))\n", root))
		}
	default:
		return "", fmt.Errorf("unsupported sandbox mode: %s", policy.Mode)
	}

	if policy.NetworkAccess {
		sb.WriteString("(allow network*)\n")
	} else {
		sb.WriteString("(deny network*)\n")
	}
	return sb.String(), nil
}
