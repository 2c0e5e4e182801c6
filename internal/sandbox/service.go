package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"sync"
	"time"

	execbuf "steward/internal/exec"
	"steward/internal/models"
)

// ErrUnavailable reports that confinement is required but the host cannot
// provide it and the user has not consented to running unsandboxed.
var ErrUnavailable = errors.New("sandbox required but not available on this host")

// RunResult is the outcome of one confined command execution.
type RunResult struct {
	Output    []byte
	ExitCode  int
	TimedOut  bool
	Truncated bool
	Duration  time.Duration
	Sandboxed bool
}

// Service owns the confinement policy, the platform manager, and the pool
// of persistent shell sessions for one worker. Commands never run while
// the policy demands confinement the host cannot deliver, unless the user
// granted unsandboxed consent for the session.
type Service struct {
	policy  *Policy
	manager Manager

	mu            sync.Mutex
	unsandboxedOK bool
	sessions      map[string]*ShellSession
}

// NewService builds a service from the session's sandbox configuration.
func NewService(cfg models.SandboxConfig) (*Service, error) {
	mode, err := ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	policy := &Policy{
		Mode:          mode,
		WritableRoots: cfg.WritableRoots,
		NetworkAccess: cfg.NetworkAccess,
	}

	var manager Manager
	if policy.Restricted() {
		manager = NewManager()
	} else {
		manager = NewNoopManager()
	}

	return &Service{
		policy:   policy,
		manager:  manager,
		sessions: make(map[string]*ShellSession),
	}, nil
}

// newServiceWith is the injectable constructor for tests.
func newServiceWith(policy *Policy, manager Manager) *Service {
	return &Service{
		policy:   policy,
		manager:  manager,
		sessions: make(map[string]*ShellSession),
	}
}

// EnsureReady verifies that commands may run under the current policy and
// consent state.
func (s *Service) EnsureReady() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.policy.Restricted() && s.manager == nil && !s.unsandboxedOK {
		return ErrUnavailable
	}
	return nil
}

// AllowUnsandboxed records the user's consent to run without confinement
// for the remainder of the session.
func (s *Service) AllowUnsandboxed() {
	s.mu.Lock()
	s.unsandboxedOK = true
	s.mu.Unlock()
}

// Sandboxed reports whether commands actually run confined.
func (s *Service) Sandboxed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.Restricted() && s.manager != nil
}

// Run executes one command under the policy with a hard timeout, returning
// aggregated stdout/stderr capped to the output limit.
func (s *Service) Run(ctx context.Context, spec CommandSpec, timeout time.Duration) (*RunResult, error) {
	if err := s.EnsureReady(); err != nil {
		return nil, err
	}

	env, err := s.wrap(spec)
	if err != nil {
		return nil, err
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := osexec.CommandContext(runCtx, env.Command[0], env.Command[1:]...)
	cmd.Dir = env.Cwd
	if len(env.Env) > 0 {
		cmd.Env = environWith(env.Env)
	}

	var stdout, stderr boundedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	result := &RunResult{
		Duration:  duration,
		Sandboxed: s.Sandboxed(),
	}
	result.Output = execbuf.AggregateOutput(stdout.Bytes(), stderr.Bytes())
	result.Truncated = stdout.Truncated() || stderr.Truncated()

	switch {
	case runErr == nil:
		result.ExitCode = 0
	case runCtx.Err() != nil:
		result.TimedOut = true
		result.ExitCode = -1
	default:
		var exitErr *osexec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("spawn %s: %w", env.Command[0], runErr)
		}
	}
	return result, nil
}

// Session returns the persistent shell session with the given id, starting
// it if needed. Sessions run under the same confinement as one-shot
// commands.
func (s *Service) Session(id string, opts ShellOpts) (*ShellSession, error) {
	if err := s.EnsureReady(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[id]; ok && !existing.Exited() {
		return existing, nil
	}

	env, err := s.wrapLocked(CommandSpec{
		Program: opts.Command[0],
		Args:    opts.Command[1:],
		Cwd:     opts.Cwd,
	})
	if err != nil {
		return nil, err
	}

	opts.SessionID = id
	opts.Command = env.Command
	if len(env.Env) > 0 {
		opts.Env = environWith(env.Env)
	}

	session, err := StartShell(opts)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = session
	return session, nil
}

// LookupSession returns an existing session without starting one.
func (s *Service) LookupSession(id string) (*ShellSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

// CloseSession terminates one session.
func (s *Service) CloseSession(id string) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok {
		session.Close()
	}
}

// ReapIdle closes sessions idle longer than maxIdle and returns how many
// were closed.
func (s *Service) ReapIdle(maxIdle time.Duration) int {
	s.mu.Lock()
	var stale []*ShellSession
	for id, session := range s.sessions {
		if session.Exited() || time.Since(session.LastUsed()) > maxIdle {
			stale = append(stale, session)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, session := range stale {
		session.Close()
	}
	return len(stale)
}

// Cleanup closes every session.
func (s *Service) Cleanup() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*ShellSession)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

func (s *Service) wrap(spec CommandSpec) (*ExecEnv, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrapLocked(spec)
}

// wrapLocked requires s.mu to be held by the caller.
func (s *Service) wrapLocked(spec CommandSpec) (*ExecEnv, error) {
	if s.manager == nil {
		if !s.unsandboxedOK {
			return nil, ErrUnavailable
		}
		return passthrough(spec), nil
	}
	return s.manager.Wrap(spec, s.policy)
}

func environWith(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}
