package sandbox

import "runtime"

// NewManager picks the confinement implementation for the current host.
// Returns nil when the host offers none; callers decide whether to fail
// closed or ask the user for unsandboxed consent.
func NewManager() Manager {
	switch runtime.GOOS {
	case "darwin":
		s := &seatbeltManager{}
		if s.Available() {
			return s
		}
	case "linux":
		s := &bwrapManager{}
		if s.Available() {
			return s
		}
	}
	return nil
}

// NewNoopManager returns a pass-through manager for full-access sessions
// and tests.
func NewNoopManager() Manager {
	return noopManager{}
}

type noopManager struct{}

func (noopManager) Wrap(spec CommandSpec, _ *Policy) (*ExecEnv, error) {
	return passthrough(spec), nil
}

func (noopManager) Available() bool { return true }
