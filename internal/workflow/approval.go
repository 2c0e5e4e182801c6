// approval.go implements the approval gate: classification of pending tool
// calls into forbidden, auto-approved, and user-pending, and application of
// the user's decisions.
package workflow

import (
	"encoding/json"

	"go.temporal.io/sdk/workflow"

	"steward/internal/approvalpolicy"
	"steward/internal/models"
	"steward/internal/tools"
)

// ApprovalGate decides which tool calls may dispatch. Forbidden calls get
// synthetic failed results and are never prompted; calls a policy allow
// rule plus the read-only heuristic both clear are auto-approved; the rest
// suspend the turn until the user decides.
type ApprovalGate struct {
	policy  *approvalpolicy.Manager
	specs   map[string]tools.ToolSpec
	session *SessionState
}

// NewApprovalGate builds a gate from the session's rules source. Rule
// parsing is pure computation, safe inside the workflow. A parse failure
// degrades to an empty policy so every side-effecting call prompts.
func NewApprovalGate(ctx workflow.Context, state *SessionState) *ApprovalGate {
	gate, err := newApprovalGate(state)
	if err != nil {
		workflow.GetLogger(ctx).Warn("Failed to parse approval rules, prompting for everything", "error", err)
	}
	return gate
}

func newApprovalGate(state *SessionState) (*ApprovalGate, error) {
	policy, err := approvalpolicy.LoadSource(state.Config.ApprovalPolicyRules)
	if err != nil {
		policy = approvalpolicy.NewManager(approvalpolicy.NewPolicy())
	}

	specs := make(map[string]tools.ToolSpec, len(state.ToolSpecs))
	for _, spec := range state.ToolSpecs {
		specs[spec.Name] = spec
	}
	return &ApprovalGate{policy: policy, specs: specs, session: state}, err
}

// Classify splits tool calls into those needing user approval and those
// forbidden outright. Calls in neither list are cleared for dispatch.
func (g *ApprovalGate) Classify(calls []models.ConversationItem) (needsApproval []PendingApproval, forbidden []models.ConversationItem) {
	for _, fc := range calls {
		switch g.classifyCall(fc) {
		case approvalpolicy.DecisionForbid:
			forbidden = append(forbidden, forbiddenResult(fc, g.evaluateShell(fc).Justification))
		case approvalpolicy.DecisionPrompt:
			needsApproval = append(needsApproval, PendingApproval{
				CallID:    fc.CallID,
				ToolName:  fc.Name,
				Arguments: fc.Arguments,
				Reason:    g.promptReason(fc),
			})
		}
	}
	return needsApproval, forbidden
}

// classifyCall returns the verdict for one call. Forbid always wins, even
// over a session-wide approve-all.
func (g *ApprovalGate) classifyCall(fc models.ConversationItem) approvalpolicy.Decision {
	if isShellCall(fc.Name) {
		eval := g.evaluateShell(fc)
		if eval.Decision == approvalpolicy.DecisionForbid {
			return approvalpolicy.DecisionForbid
		}
		if eval.Decision == approvalpolicy.DecisionAllow {
			return approvalpolicy.DecisionAllow
		}
		if g.session.ApproveAllSession {
			return approvalpolicy.DecisionAllow
		}
		return approvalpolicy.DecisionPrompt
	}

	spec, known := g.specs[fc.Name]
	if !known {
		// Unknown tool name: dispatch will fail with a validation error
		// the model can read. Nothing to gate.
		return approvalpolicy.DecisionAllow
	}
	if !spec.RequiresApproval || g.session.ReadOnlyMcpTools[fc.Name] {
		return approvalpolicy.DecisionAllow
	}
	if g.session.ApproveAllSession {
		return approvalpolicy.DecisionAllow
	}
	return approvalpolicy.DecisionPrompt
}

// evaluateShell runs the policy over the call's command string.
func (g *ApprovalGate) evaluateShell(fc models.ConversationItem) approvalpolicy.Evaluation {
	command, ok := shellCommand(fc)
	if !ok {
		// No command to vet (interactive input to an existing session).
		return approvalpolicy.Evaluation{Decision: approvalpolicy.DecisionPrompt}
	}
	return g.policy.Evaluate([]string{"bash", "-c", command})
}

func (g *ApprovalGate) promptReason(fc models.ConversationItem) string {
	if isShellCall(fc.Name) {
		if eval := g.evaluateShell(fc); eval.Justification != "" {
			return eval.Justification
		}
		return "command is not provably read-only"
	}
	return "tool call has side effects"
}

// ApplyDecision partitions calls by the user's response. Approved calls
// are returned for dispatch; denied calls (and any call the response left
// unmentioned) become failed results carrying the user's reason. The
// approve-all flag sticks for the rest of the session.
func (g *ApprovalGate) ApplyDecision(calls []models.ConversationItem, resp *ApprovalResponse) (approved []models.ConversationItem, deniedResults []models.ConversationItem) {
	if resp == nil {
		return nil, nil
	}
	if resp.ApproveAllSession {
		g.session.ApproveAllSession = true
	}

	approvedIDs := make(map[string]bool, len(resp.Approved))
	for _, id := range resp.Approved {
		approvedIDs[id] = true
	}
	deniedReasons := make(map[string]string, len(resp.Denied))
	for _, d := range resp.Denied {
		deniedReasons[d.CallID] = d.Reason
	}

	for _, fc := range calls {
		switch {
		case approvedIDs[fc.CallID] || resp.ApproveAllSession:
			approved = append(approved, fc)
		default:
			reason, denied := deniedReasons[fc.CallID]
			if !denied {
				reason = "not approved"
			}
			deniedResults = append(deniedResults, deniedResult(fc, reason))
		}
	}
	return approved, deniedResults
}

// ApprovedShellPrefixes extracts the command argv prefixes of approved
// shell calls, for persisting as standing allow rules.
func (g *ApprovalGate) ApprovedShellPrefixes(approved []models.ConversationItem) [][]string {
	var prefixes [][]string
	for _, fc := range approved {
		if !isShellCall(fc.Name) {
			continue
		}
		if command, ok := shellCommand(fc); ok {
			prefixes = append(prefixes, []string{"bash", "-c", command})
		}
	}
	return prefixes
}

func isShellCall(name string) bool {
	return name == "shell" || name == "shell_session"
}

// shellCommand extracts the command string from a shell call's arguments.
func shellCommand(fc models.ConversationItem) (string, bool) {
	var args struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(fc.Arguments), &args); err != nil {
		return "", false
	}
	return args.Command, args.Command != ""
}

func forbiddenResult(fc models.ConversationItem, justification string) models.ConversationItem {
	content := "Blocked by approval policy. This command is forbidden and was not executed."
	if justification != "" {
		content += " Reason: " + justification
	}
	return failedResult(fc.CallID, content)
}

func deniedResult(fc models.ConversationItem, reason string) models.ConversationItem {
	content := "Denied by the user. The call was not executed."
	if reason != "" && reason != "not approved" {
		content = "Denied by the user: " + reason + ". The call was not executed."
	}
	return failedResult(fc.CallID, content)
}

func failedResult(callID, content string) models.ConversationItem {
	success := false
	return models.ConversationItem{
		Type:   models.ItemTypeFunctionCallOutput,
		CallID: callID,
		Output: &models.FunctionCallOutputPayload{Content: content, Success: &success},
	}
}
