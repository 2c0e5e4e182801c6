package sandbox

import (
	"errors"
	"io"
	"os"
	osexec "os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creack/pty"

	execbuf "steward/internal/exec"
)

const outputPollInterval = 25 * time.Millisecond

// ErrNoStdin is returned when writing to a pipe-mode session's stdin.
var ErrNoStdin = errors.New("session has no writable stdin")

// ShellOpts configures a persistent shell session.
type ShellOpts struct {
	SessionID string
	Command   []string
	Cwd       string
	Env       []string // nil inherits the worker environment
	TTY       bool
}

// ShellSession wraps a long-lived process, PTY- or pipe-backed, with
// background output collection. Sessions live in worker memory between
// activity invocations so an interactive program can be driven across
// multiple tool calls.
type ShellSession struct {
	SessionID string
	Command   []string
	Cwd       string
	TTY       bool
	StartedAt time.Time

	lastUsed atomic.Int64 // unix nanos

	cmd      *osexec.Cmd
	ptmx     *os.File
	output   *execbuf.HeadTailBuffer
	exitCode atomic.Int32
	exited   atomic.Bool
	readers  sync.WaitGroup
	writeMu  sync.Mutex
}

// StartShell spawns the session process.
func StartShell(opts ShellOpts) (*ShellSession, error) {
	if len(opts.Command) == 0 {
		return nil, errors.New("empty command")
	}

	s := &ShellSession{
		SessionID: opts.SessionID,
		Command:   opts.Command,
		Cwd:       opts.Cwd,
		TTY:       opts.TTY,
		StartedAt: time.Now(),
		output:    execbuf.NewHeadTailBuffer(execbuf.DefaultBufferBytes),
	}
	s.lastUsed.Store(time.Now().UnixNano())
	s.exitCode.Store(-1)

	cmd := osexec.Command(opts.Command[0], opts.Command[1:]...)
	cmd.Dir = opts.Cwd
	if opts.Env != nil {
		cmd.Env = opts.Env
	}
	s.cmd = cmd

	if opts.TTY {
		ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
		if err != nil {
			return nil, err
		}
		s.ptmx = ptmx
		s.readers.Add(1)
		go s.readLoop(ptmx)
	} else {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, err
		}
		if err := cmd.Start(); err != nil {
			return nil, err
		}
		s.readers.Add(2)
		go s.readLoop(stdout)
		go s.readLoop(stderr)
	}

	go s.reap()
	return s, nil
}

func (s *ShellSession) readLoop(r io.Reader) {
	defer s.readers.Done()
	buf := make([]byte, 8192)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.output.Push(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// reap waits for the readers to drain before calling Wait; Wait closes the
// pipe read ends, so calling it earlier would lose output.
func (s *ShellSession) reap() {
	s.readers.Wait()
	err := s.cmd.Wait()

	code := -1
	if err == nil {
		code = 0
	} else {
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
	}
	s.exitCode.Store(int32(code))
	s.exited.Store(true)
}

// WriteStdin sends input to the process. Only PTY sessions accept input.
func (s *ShellSession) WriteStdin(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if !s.TTY || s.ptmx == nil {
		return ErrNoStdin
	}
	_, err := s.ptmx.Write(data)
	return err
}

// CollectOutput polls for output until the deadline or process exit,
// returning a snapshot of everything retained so far. heartbeat, when
// non-nil, is invoked roughly every 5 seconds so the caller can keep an
// activity alive.
func (s *ShellSession) CollectOutput(deadline time.Time, heartbeat func()) []byte {
	const heartbeatEvery = 5 * time.Second
	lastBeat := time.Now()
	mark := s.output.TotalWritten()
	var collected []byte

	for time.Now().Before(deadline) {
		if heartbeat != nil && time.Since(lastBeat) >= heartbeatEvery {
			heartbeat()
			lastBeat = time.Now()
		}

		if total := s.output.TotalWritten(); total > mark {
			collected = s.output.Snapshot()
			mark = total
		}

		// Exited implies the readers drained, so the snapshot is final.
		if s.Exited() {
			collected = s.output.Snapshot()
			break
		}
		time.Sleep(outputPollInterval)
	}

	if collected == nil {
		collected = s.output.Snapshot()
	}
	s.lastUsed.Store(time.Now().UnixNano())
	return collected
}

// Exited reports whether the process has terminated.
func (s *ShellSession) Exited() bool {
	return s.exited.Load()
}

// ExitCode returns the exit code, or nil while the process is running.
func (s *ShellSession) ExitCode() *int {
	if !s.exited.Load() {
		return nil
	}
	code := int(s.exitCode.Load())
	return &code
}

// LastUsed returns the time of the most recent interaction.
func (s *ShellSession) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

// Close kills the process and releases the PTY.
func (s *ShellSession) Close() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	if s.ptmx != nil {
		_ = s.ptmx.Close()
	}
}
