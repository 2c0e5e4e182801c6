// Package exec provides command execution utilities including output capping.
package exec

// OutputMaxBytes is the hard cap on bytes retained from a command's
// stdout/stderr. A runaway command cannot OOM the worker by dumping huge
// amounts of data.
const OutputMaxBytes = 1024 * 1024 // 1 MiB

// LimitOutput truncates output to OutputMaxBytes.
// Returns the (possibly truncated) result and whether truncation occurred.
func LimitOutput(output []byte) (result []byte, truncated bool) {
	if len(output) <= OutputMaxBytes {
		return output, false
	}
	return output[:OutputMaxBytes], true
}

// AggregateOutput combines stdout and stderr, capped at OutputMaxBytes.
// Under contention stderr gets priority: 1/3 reserved for stdout, 2/3 for
// stderr, with unused stderr capacity rebalanced back to stdout.
func AggregateOutput(stdout, stderr []byte) []byte {
	totalLen := len(stdout) + len(stderr)
	maxBytes := OutputMaxBytes

	if totalLen <= maxBytes {
		result := make([]byte, 0, totalLen)
		result = append(result, stdout...)
		result = append(result, stderr...)
		return result
	}

	wantStdout := len(stdout)
	if wantStdout > maxBytes/3 {
		wantStdout = maxBytes / 3
	}

	stderrTake := len(stderr)
	if remaining := maxBytes - wantStdout; stderrTake > remaining {
		stderrTake = remaining
	}

	remaining := maxBytes - wantStdout - stderrTake
	extraStdout := len(stdout) - wantStdout
	if extraStdout < 0 {
		extraStdout = 0
	}
	if remaining > extraStdout {
		remaining = extraStdout
	}
	stdoutTake := wantStdout + remaining

	result := make([]byte, 0, stdoutTake+stderrTake)
	result = append(result, stdout[:stdoutTake]...)
	result = append(result, stderr[:stderrTake]...)
	return result
}
