package activities

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"steward/internal/approvalpolicy"
	"steward/internal/memory"
	"steward/internal/models"
	"steward/internal/sandbox"
	"steward/internal/tools"
)

type fakeTool struct {
	name string
	out  *tools.ToolOutput
	err  error
}

func (f *fakeTool) Name() string                            { return f.name }
func (f *fakeTool) Kind() tools.ToolKind                    { return tools.ToolKindFunction }
func (f *fakeTool) Mutating(*tools.ToolInvocation) bool     { return false }
func (f *fakeTool) Handle(context.Context, *tools.ToolInvocation) (*tools.ToolOutput, error) {
	return f.out, f.err
}

func newRouter(t *testing.T, handler tools.ToolHandler) *tools.Router {
	t.Helper()
	registry := tools.NewRegistry()
	registry.Register(handler)
	return tools.NewRouter(registry, tools.BuiltinSpecs())
}

func TestExecuteToolSuccess(t *testing.T) {
	ok := true
	router := newRouter(t, &fakeTool{name: "echo", out: &tools.ToolOutput{Content: "hi", Success: &ok}})
	acts := NewToolActivities(router)

	out, err := acts.ExecuteTool(context.Background(), ToolActivityInput{
		ToolCall: models.ToolCall{CallID: "c1", Name: "echo", Arguments: map[string]interface{}{}},
	})
	require.NoError(t, err)
	assert.Equal(t, "c1", out.CallID)
	assert.Equal(t, "hi", out.Output.Content)
	assert.True(t, *out.Output.Success)
}

func TestExecuteToolValidationErrorTyped(t *testing.T) {
	router := newRouter(t, &fakeTool{name: "echo", err: tools.NewValidationError("missing argument")})
	acts := NewToolActivities(router)

	_, err := acts.ExecuteTool(context.Background(), ToolActivityInput{
		ToolCall: models.ToolCall{CallID: "c1", Name: "echo"},
	})
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.ToolErrTypeValidation, appErr.Type())
	assert.True(t, appErr.NonRetryable())
}

func TestExecuteToolSandboxUnavailableTyped(t *testing.T) {
	router := newRouter(t, &fakeTool{name: "echo", err: sandbox.ErrUnavailable})
	acts := NewToolActivities(router)

	_, err := acts.ExecuteTool(context.Background(), ToolActivityInput{
		ToolCall: models.ToolCall{CallID: "c1", Name: "echo"},
	})
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.SandboxErrTypeUnavailable, appErr.Type())
}

func TestExecuteToolTransientErrorRetryable(t *testing.T) {
	router := newRouter(t, &fakeTool{name: "echo", err: tools.NewTransientError(errors.New("flaky disk"))})
	acts := NewToolActivities(router)

	_, err := acts.ExecuteTool(context.Background(), ToolActivityInput{
		ToolCall: models.ToolCall{CallID: "c1", Name: "echo"},
	})
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, models.ToolErrTypeTransient, appErr.Type())
	assert.False(t, appErr.NonRetryable())
}

func TestSearchNotesRecallsByOverlap(t *testing.T) {
	store := memory.NewStore(t.TempDir())
	_, err := store.Save("Coffee order", "User likes a flat white with oat milk every morning")
	require.NoError(t, err)
	_, err = store.Save("Tax deadline", "Quarterly estimated taxes are due September 15")
	require.NoError(t, err)

	acts := NewMemoryActivities(store)
	out, err := acts.SearchNotes(context.Background(), SearchNotesInput{
		Query: "what coffee does the user drink in the morning",
	})
	require.NoError(t, err)
	require.Len(t, out.Notes, 1)
	assert.Equal(t, "Coffee order", out.Notes[0].Title)
}

func TestLoadSessionSetupReadsHome(t *testing.T) {
	home := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(home, "instructions.md"), []byte("Prefer short answers."), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(home, "rules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "rules", "default.rules"),
		[]byte(`prefix_rule(pattern=["git", "status"], decision="allow")`), 0o644))

	svc, err := sandbox.NewService(models.SandboxConfig{Mode: "full-access"})
	require.NoError(t, err)
	policies, err := approvalpolicy.LoadDir(home)
	require.NoError(t, err)

	acts := NewSessionActivities(svc, policies)
	out, err := acts.LoadSessionSetup(context.Background(), LoadSessionSetupInput{StewardHome: home})
	require.NoError(t, err)
	assert.Equal(t, "Prefer short answers.", out.PersonalInstructions)
	assert.Contains(t, out.PolicyRulesSource, "prefix_rule")
}

func TestLoadSessionSetupEmptyHome(t *testing.T) {
	svc, err := sandbox.NewService(models.SandboxConfig{Mode: "full-access"})
	require.NoError(t, err)
	policies := approvalpolicy.NewManager(approvalpolicy.NewPolicy())

	acts := NewSessionActivities(svc, policies)
	out, err := acts.LoadSessionSetup(context.Background(), LoadSessionSetupInput{})
	require.NoError(t, err)
	assert.Empty(t, out.PersonalInstructions)
	assert.Empty(t, out.PolicyRulesSource)
}
