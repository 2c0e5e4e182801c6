package workflow

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"steward/internal/activities"
	"steward/internal/models"
)

// Stub activity functions for the test environment. These are never called
// directly — OnActivity mocks override them — but they must be registered so
// the test env recognises the activity names. A test that reaches an
// unmocked stub fails loudly.
func ExecuteLLMCall(_ context.Context, _ activities.LLMActivityInput) (activities.LLMActivityOutput, error) {
	panic("stub: should be mocked")
}

func ExecuteTool(_ context.Context, _ activities.ToolActivityInput) (activities.ToolActivityOutput, error) {
	panic("stub: should be mocked")
}

func ExecuteCompact(_ context.Context, _ activities.CompactActivityInput) (activities.CompactActivityOutput, error) {
	panic("stub: should be mocked")
}

func SearchNotes(_ context.Context, _ activities.SearchNotesInput) (activities.SearchNotesOutput, error) {
	panic("stub: should be mocked")
}

func LoadSessionSetup(_ context.Context, _ activities.LoadSessionSetupInput) (activities.LoadSessionSetupOutput, error) {
	panic("stub: should be mocked")
}

func AllowUnsandboxed(_ context.Context) error {
	panic("stub: should be mocked")
}

func AppendApprovalRule(_ context.Context, _ activities.AppendApprovalRuleInput) error {
	panic("stub: should be mocked")
}

func CleanupSession(_ context.Context, _ activities.CleanupSessionInput) error {
	panic("stub: should be mocked")
}

// SessionWorkflowTestSuite runs workflow tests with the Temporal test
// environment.
type SessionWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func TestSessionWorkflowSuite(t *testing.T) {
	suite.Run(t, new(SessionWorkflowTestSuite))
}

func (s *SessionWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	s.env.RegisterWorkflow(FocusedTaskWorkflow)
	s.env.RegisterActivity(ExecuteLLMCall)
	s.env.RegisterActivity(ExecuteTool)
	s.env.RegisterActivity(ExecuteCompact)
	s.env.RegisterActivity(SearchNotes)
	s.env.RegisterActivity(LoadSessionSetup)
	s.env.RegisterActivity(AllowUnsandboxed)
	s.env.RegisterActivity(AppendApprovalRule)
	s.env.RegisterActivity(CleanupSession)
}

func (s *SessionWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

// mockSessionSetup installs the baseline mocks every session needs.
func (s *SessionWorkflowTestSuite) mockSessionSetup(sandboxAvailable bool) {
	s.env.OnActivity("LoadSessionSetup", mock.Anything, mock.Anything).
		Return(activities.LoadSessionSetupOutput{SandboxAvailable: sandboxAvailable}, nil).Once()
	s.env.OnActivity("SearchNotes", mock.Anything, mock.Anything).
		Return(activities.SearchNotesOutput{}, nil).Maybe()
	s.env.OnActivity("CleanupSession", mock.Anything, mock.Anything).
		Return(nil).Maybe()
}

func testConfig() models.SessionConfiguration {
	return models.SessionConfiguration{
		Model: models.ModelConfig{
			Provider:      "anthropic",
			Model:         "claude-sonnet-4-5",
			MaxTokens:     4096,
			ContextWindow: 200000,
		},
	}
}

func testInput(message string) WorkflowInput {
	return WorkflowInput{
		ConversationID: "sess-test-1",
		UserMessage:    message,
		Config:         testConfig(),
	}
}

// assistantStop returns a plain assistant message with stop finish reason.
func assistantStop(content string, tokens int) activities.LLMActivityOutput {
	return activities.LLMActivityOutput{
		Items: []models.ConversationItem{
			{Type: models.ItemTypeAssistantMessage, Content: content},
		},
		FinishReason: models.FinishReasonStop,
		TokenUsage:   models.TokenUsage{TotalTokens: tokens},
	}
}

// toolCallResponse returns a model response carrying the given function calls.
func toolCallResponse(calls ...models.ConversationItem) activities.LLMActivityOutput {
	return activities.LLMActivityOutput{
		Items:        calls,
		FinishReason: models.FinishReasonToolCalls,
		TokenUsage:   models.TokenUsage{TotalTokens: 20},
	}
}

func toolResult(callID, content string, ok bool) activities.ToolActivityOutput {
	return activities.ToolActivityOutput{
		CallID: callID,
		Output: models.FunctionCallOutputPayload{Content: content, Success: &ok},
	}
}

func noopCallback() *testsuite.TestUpdateCallback {
	return &testsuite.TestUpdateCallback{
		OnAccept:   func() {},
		OnReject:   func(err error) {},
		OnComplete: func(interface{}, error) {},
	}
}

func (s *SessionWorkflowTestSuite) sendShutdown(delay time.Duration) {
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateShutdown, "shutdown-1", noopCallback(), ShutdownRequest{})
	}, delay)
}

func (s *SessionWorkflowTestSuite) sendInterrupt(delay time.Duration) {
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateInterrupt, "interrupt-1", noopCallback(), InterruptRequest{})
	}, delay)
}

func (s *SessionWorkflowTestSuite) sendApproval(delay time.Duration, resp ApprovalResponse) {
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateApprovalResponse, "approval-1", noopCallback(), resp)
	}, delay)
}

func (s *SessionWorkflowTestSuite) historyItems() []models.ConversationItem {
	res, err := s.env.QueryWorkflow(QueryGetConversationItems)
	s.Require().NoError(err)
	var items []models.ConversationItem
	s.Require().NoError(res.Get(&items))
	return items
}

// containsItem reports whether any item of the given type carries the
// substring in its content or output content.
func containsItem(items []models.ConversationItem, itemType models.ConversationItemType, substr string) bool {
	for _, item := range items {
		if item.Type != itemType {
			continue
		}
		if strings.Contains(item.Content, substr) {
			return true
		}
		if item.Output != nil && strings.Contains(item.Output.Content, substr) {
			return true
		}
	}
	return false
}

func (s *SessionWorkflowTestSuite) TestSingleTurnWithShutdown() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Hello! How can I help?", 50), nil).Once()

	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Hello"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	assert.Equal(s.T(), "sess-test-1", result.ConversationID)
	assert.Equal(s.T(), "shutdown", result.EndReason)
	assert.Equal(s.T(), 1, result.TotalTurns)
	assert.Equal(s.T(), 50, result.TotalTokens)
	assert.Equal(s.T(), "Hello! How can I help?", result.FinalMessage)
}

func (s *SessionWorkflowTestSuite) TestSecondUserMessageStartsNewTurn() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("First answer", 40), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Second answer", 60), nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateUserInput, "input-2", noopCallback(), UserInput{Content: "One more thing"})
	}, time.Second)
	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("First question"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	assert.Equal(s.T(), 2, result.TotalTurns)
	assert.Equal(s.T(), 100, result.TotalTokens)
	assert.Equal(s.T(), "Second answer", result.FinalMessage)
}

func (s *SessionWorkflowTestSuite) TestKnownSafeCommandRunsWithoutApproval() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "ls -la")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c1", "notes.txt  todo.md", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Two files there.", 30), nil).Once()

	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("What is in this directory?"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "notes.txt"))
}

func (s *SessionWorkflowTestSuite) TestDenyWithReasonFeedsBackToModel() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "rm -rf build")), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Understood, leaving build alone.", 25), nil).Once()

	s.sendApproval(time.Second, ApprovalResponse{
		Denied: []DeniedCall{{CallID: "c1", Reason: "build dir is still needed"}},
	})
	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Clean up the build directory"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "build dir is still needed"))
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "Denied by the user"))
}

func (s *SessionWorkflowTestSuite) TestMixedApprovalBatchExecutesOnlyApproved() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(
			shellCallItem("c1", "rm a.txt"),
			shellCallItem("c2", "rm b.txt"),
		), nil).Once()
	// Only the approved call reaches dispatch.
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c1", "removed a.txt", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Removed a.txt; left b.txt alone.", 25), nil).Once()

	s.sendApproval(time.Second, ApprovalResponse{
		Approved: []string{"c1"},
		Denied:   []DeniedCall{{CallID: "c2", Reason: "b.txt is still in use"}},
	})
	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Remove both temp files"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "removed a.txt"))
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "b.txt is still in use"))
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "Denied by the user"))

	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	assert.Equal(s.T(), 1, result.TotalTurns)
	assert.Equal(s.T(), []string{"shell"}, result.ToolCallsExecuted)
}

func (s *SessionWorkflowTestSuite) TestApproveAllSessionSkipsLaterPrompts() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "rm a.log")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c1", "", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c2", "rm b.log")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c2", "", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Both logs removed.", 30), nil).Once()

	// One approval covers the whole session; the second rm never prompts.
	s.sendApproval(time.Second, ApprovalResponse{
		Approved:          []string{"c1"},
		ApproveAllSession: true,
	})
	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Remove the old logs"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	assert.Equal(s.T(), "Both logs removed.", result.FinalMessage)
	assert.Equal(s.T(), []string{"shell", "shell"}, result.ToolCallsExecuted)
}

func (s *SessionWorkflowTestSuite) TestForbiddenCommandBlockedWithoutPrompt() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "rm -rf /")), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("That command is blocked.", 25), nil).Once()

	s.sendShutdown(2 * time.Second)

	input := testInput("Wipe everything")
	input.Config.ApprovalPolicyRules = `prefix_rule(pattern=["rm", ["-rf", "-fr"]], decision="forbid")`
	s.env.ExecuteWorkflow(SessionWorkflow, input)

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "Blocked by approval policy"))
}

func (s *SessionWorkflowTestSuite) TestBudgetGraceThenForceStop() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "ls /a")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c1", "a1 a2", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c2", "ls /b")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c2", "b1 b2", true), nil).Once()
	// The grace request: the model wraps up, whatever it says.
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Progress so far: listed /a and /b.", 30), nil).Once()

	s.sendShutdown(2 * time.Second)

	input := testInput("Inventory both directories")
	input.Config.MaxRequestsPerTurn = 2
	s.env.ExecuteWorkflow(SessionWorkflow, input)

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeSystemNote, "exactly one more response"))
	assert.True(s.T(), containsItem(items, models.ItemTypeSystemNote, "may be partial"))
	assert.True(s.T(), containsItem(items, models.ItemTypeTurnComplete, string(models.TurnOutcomeStop)))
}

func (s *SessionWorkflowTestSuite) TestDoomLoopInjectsSteeringNote() {
	s.mockSessionSetup(true)
	for i := 0; i < 3; i++ {
		s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
			Return(toolCallResponse(shellCallItem("c1", "ls /tmp")), nil).Once()
		s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
			Return(toolResult("c1", "nothing here", true), nil).Once()
	}
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("The directory stays empty.", 25), nil).Once()

	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Watch /tmp for me"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeSystemNote, "repeating yourself"))
}

func (s *SessionWorkflowTestSuite) TestReflectionCapAfterFailingShellCommands() {
	s.mockSessionSetup(true)
	commands := []string{"ls /missing-one", "ls /missing-two", "ls /missing-three"}
	for i, cmd := range commands {
		callID := fmt.Sprintf("c%d", i+1)
		s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
			Return(toolCallResponse(shellCallItem(callID, cmd)), nil).Once()
		s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
			Return(toolResult(callID, "No such file or directory", false), nil).Once()
	}
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("None of those paths exist.", 25), nil).Once()

	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Find my backup directory"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeSystemNote, "Stop retrying shell commands"))
}

func (s *SessionWorkflowTestSuite) TestInterruptDuringApprovalClosesDanglingCalls() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "rm -rf build")), nil).Once()

	s.sendInterrupt(time.Second)
	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Clean up"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "Interrupted by the user"))
	assert.True(s.T(), containsItem(items, models.ItemTypeSystemNote, "interrupted this turn"))
}

func (s *SessionWorkflowTestSuite) TestSandboxUnavailableRefusesShell() {
	s.mockSessionSetup(false)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "ls -la")), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("I cannot run commands on this host.", 25), nil).Once()

	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("List my files"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "isolated execution environment"))
}

func (s *SessionWorkflowTestSuite) TestAllowUnsandboxedConsentEnablesShell() {
	s.mockSessionSetup(false)
	s.env.OnActivity("AllowUnsandboxed", mock.Anything).Return(nil).Once()

	// First turn: refused.
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "ls -la")), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("I need your consent to run commands here.", 25), nil).Once()
	// Second turn, after consent: the same command executes.
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c2", "ls -la")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c2", "notes.txt", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("One file: notes.txt.", 25), nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateAllowUnsandboxed, "consent-1", noopCallback(), AllowUnsandboxedRequest{})
	}, time.Second)
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateUserInput, "input-2", noopCallback(), UserInput{Content: "Try again now"})
	}, 2*time.Second)
	s.sendShutdown(3 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("List my files"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeSystemNote, "consent"))
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "notes.txt"))
}

func (s *SessionWorkflowTestSuite) TestManualCompactSkipsSmallHistory() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Short answer.", 20), nil).Once()

	// ExecuteCompact is deliberately not mocked: calling it would panic.
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateCompact, "compact-1", noopCallback(), CompactRequest{})
	}, time.Second)
	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Quick question"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
}

func (s *SessionWorkflowTestSuite) TestManualCompactReplacesOldestBlock() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "ls /a")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c1", "a1", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c2", "ls /b")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c2", "b1", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Both listed.", 30), nil).Once()
	s.env.OnActivity("ExecuteCompact", mock.Anything, mock.Anything).
		Return(activities.CompactActivityOutput{
			Summary:    "Earlier: listed /a and /b.",
			TokenUsage: models.TokenUsage{TotalTokens: 15},
		}, nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateCompact, "compact-1", noopCallback(), CompactRequest{})
	}, time.Second)
	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Inventory both directories"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	require.NotEmpty(s.T(), items)
	assert.Equal(s.T(), models.ItemTypeCompactionSummary, items[0].Type)
	assert.Contains(s.T(), items[0].Content, "listed /a and /b")

	res, err := s.env.QueryWorkflow(QueryGetTurnStatus)
	require.NoError(s.T(), err)
	var status TurnStatus
	require.NoError(s.T(), res.Get(&status))
	assert.Equal(s.T(), 1, status.CompactionCount)
}

func (s *SessionWorkflowTestSuite) TestImmediateRecompactLeavesSummaryIntact() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c1", "ls /a")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c1", "a1", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(shellCallItem("c2", "ls /b")), nil).Once()
	s.env.OnActivity("ExecuteTool", mock.Anything, mock.Anything).
		Return(toolResult("c2", "b1", true), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Both listed.", 30), nil).Once()
	// Mocked Once: a second summarization call would fail the suite.
	s.env.OnActivity("ExecuteCompact", mock.Anything, mock.Anything).
		Return(activities.CompactActivityOutput{
			Summary:    "Earlier: listed /a and /b.",
			TokenUsage: models.TokenUsage{TotalTokens: 15},
		}, nil).Once()

	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateCompact, "compact-1", noopCallback(), CompactRequest{})
	}, time.Second)
	// Nothing new arrived in between; the second request leaves the
	// compacted history alone.
	s.env.RegisterDelayedCallback(func() {
		s.env.UpdateWorkflow(UpdateCompact, "compact-2", noopCallback(), CompactRequest{})
	}, 1500*time.Millisecond)
	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Inventory both directories"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	require.NotEmpty(s.T(), items)
	assert.Equal(s.T(), models.ItemTypeCompactionSummary, items[0].Type)
	summaries := 0
	for _, item := range items {
		if item.Type == models.ItemTypeCompactionSummary {
			summaries++
		}
	}
	assert.Equal(s.T(), 1, summaries)

	res, err := s.env.QueryWorkflow(QueryGetTurnStatus)
	require.NoError(s.T(), err)
	var status TurnStatus
	require.NoError(s.T(), res.Get(&status))
	assert.Equal(s.T(), 1, status.CompactionCount)
}

func (s *SessionWorkflowTestSuite) TestContextOverflowRetriesAfterCompaction() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(activities.LLMActivityOutput{},
			temporal.NewApplicationError("context window exceeded", models.LLMErrTypeContextOverflow)).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Recovered after trimming context.", 25), nil).Once()

	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Hello"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	assert.Equal(s.T(), "Recovered after trimming context.", result.FinalMessage)
}

func (s *SessionWorkflowTestSuite) TestFatalModelErrorEndsTurn() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(activities.LLMActivityOutput{},
			temporal.NewApplicationError("model rejected the request", models.LLMErrTypeFatal)).Once()

	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Hello"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeAssistantMessage, "model rejected the request"))
	assert.True(s.T(), containsItem(items, models.ItemTypeTurnComplete, string(models.TurnOutcomeError)))
}

func (s *SessionWorkflowTestSuite) TestFocusedTaskDelegation() {
	s.mockSessionSetup(true)
	// Parent delegates, the child answers, the parent wraps up.
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(toolCallResponse(models.ConversationItem{
			Type:      models.ItemTypeFunctionCall,
			CallID:    "c1",
			Name:      "run_focused_task",
			Arguments: `{"task": "Count the markdown files in the docs directory"}`,
		}), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop(`{"summary": "There are 4 markdown files under docs.", "outcome": "completed", "details": "a.md b.md c.md d.md"}`, 40), nil).Once()
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Docs has 4 markdown files.", 30), nil).Once()

	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("How many markdown docs do we have?"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeFunctionCallOutput, "4 markdown files"))

	var result WorkflowResult
	require.NoError(s.T(), s.env.GetWorkflowResult(&result))
	assert.Equal(s.T(), "Docs has 4 markdown files.", result.FinalMessage)
}

func (s *SessionWorkflowTestSuite) TestRepeatedDelegationInjectsSteeringNote() {
	s.mockSessionSetup(true)
	// Three identical delegations in a row count toward the doom-loop
	// window even though they never reach the dispatch path.
	for i := 0; i < 3; i++ {
		s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
			Return(toolCallResponse(models.ConversationItem{
				Type:      models.ItemTypeFunctionCall,
				CallID:    fmt.Sprintf("c%d", i+1),
				Name:      "run_focused_task",
				Arguments: `{"task": "Check tomorrow's calendar"}`,
			}), nil).Once()
		s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
			Return(assistantStop(`{"summary": "Nothing scheduled tomorrow.", "outcome": "completed", "details": ""}`, 20), nil).Once()
	}
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Tomorrow is free.", 25), nil).Once()

	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("What is on my calendar?"))

	require.True(s.T(), s.env.IsWorkflowCompleted())
	items := s.historyItems()
	assert.True(s.T(), containsItem(items, models.ItemTypeSystemNote, "repeating yourself"))
}

func (s *SessionWorkflowTestSuite) TestTurnStatusQueryDuringRun() {
	s.mockSessionSetup(true)
	s.env.OnActivity("ExecuteLLMCall", mock.Anything, mock.Anything).
		Return(assistantStop("Done.", 35), nil).Once()

	s.env.RegisterDelayedCallback(func() {
		res, err := s.env.QueryWorkflow(QueryGetTurnStatus)
		require.NoError(s.T(), err)

		var status TurnStatus
		require.NoError(s.T(), res.Get(&status))
		assert.Equal(s.T(), PhaseWaitingForInput, status.Phase)
		assert.Equal(s.T(), 35, status.TotalTokens)
		assert.True(s.T(), status.SandboxAvailable)
	}, time.Second)
	s.sendShutdown(2 * time.Second)

	s.env.ExecuteWorkflow(SessionWorkflow, testInput("Hello"))
	require.True(s.T(), s.env.IsWorkflowCompleted())
}
