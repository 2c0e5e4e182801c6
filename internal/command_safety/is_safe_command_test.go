package command_safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafePlainCommands(t *testing.T) {
	safe := [][]string{
		{"ls", "-la"},
		{"cat", "/etc/hostname"},
		{"pwd"},
		{"git", "status"},
		{"git", "log", "--oneline"},
		{"find", ".", "-name", "*.go"},
		{"rg", "pattern", "src/"},
	}
	for _, cmd := range safe {
		assert.True(t, IsKnownSafeCommand(cmd), "expected safe: %v", cmd)
	}
}

func TestUnsafeCommands(t *testing.T) {
	unsafe := [][]string{
		{},
		{"rm", "-rf", "/"},
		{"curl", "http://example.com"},
		{"git", "push"},
		{"git", "commit", "-m", "x"},
		{"unknowncmd"},
	}
	for _, cmd := range unsafe {
		assert.False(t, IsKnownSafeCommand(cmd), "expected unsafe: %v", cmd)
	}
}

func TestTrailingFlagsFlipSafety(t *testing.T) {
	// Normally-safe commands become unsafe with write/exec flags appended.
	assert.False(t, IsKnownSafeCommand([]string{"find", ".", "-name", "*.log", "-delete"}))
	assert.False(t, IsKnownSafeCommand([]string{"find", ".", "-exec", "rm", "{}", ";"}))
	assert.False(t, IsKnownSafeCommand([]string{"rg", "--pre", "evil.sh", "x"}))
	assert.False(t, IsKnownSafeCommand([]string{"base64", "-o", "out.bin", "in"}))
	assert.False(t, IsKnownSafeCommand([]string{"base64", "--output=out.bin", "in"}))
}

func TestShellScriptDecomposition(t *testing.T) {
	assert.True(t, IsKnownSafeCommand([]string{"bash", "-c", "ls && pwd"}))
	assert.True(t, IsKnownSafeCommand([]string{"bash", "-lc", "cat a.txt | grep foo"}))
	assert.True(t, IsKnownSafeCommand([]string{"sh", "-c", "ls; pwd"}))

	// One unsafe component poisons the script.
	assert.False(t, IsKnownSafeCommand([]string{"bash", "-c", "ls && rm -rf /"}))
}

func TestShellScriptUnsafeConstructs(t *testing.T) {
	rejected := []string{
		"ls > out.txt",
		"ls $(pwd)",
		"ls `pwd`",
		"ls & pwd",
		"FOO=bar ls",
		"(ls)",
		"ls &&",
		"echo \"$HOME\"",
	}
	for _, script := range rejected {
		assert.Nil(t, SplitShellScript([]string{"bash", "-c", script}), "expected rejection: %q", script)
	}
}

func TestSplitShellScriptQuoting(t *testing.T) {
	cmds := SplitShellScript([]string{"bash", "-c", `grep 'a b' "c d" file`})
	assert.Equal(t, [][]string{{"grep", "a b", "c d", "file"}}, cmds)

	cmds = SplitShellScript([]string{"bash", "-c", "ls -la && git status"})
	assert.Equal(t, [][]string{{"ls", "-la"}, {"git", "status"}}, cmds)
}

func TestNonShellInvocationNotSplit(t *testing.T) {
	assert.Nil(t, SplitShellScript([]string{"python", "-c", "print(1)"}))
	assert.Nil(t, SplitShellScript([]string{"bash", "script.sh"}))
}
