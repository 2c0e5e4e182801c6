package cli

import (
	"fmt"
	"strings"

	"steward/internal/workflow"
)

// approvalFollowup tells the model what to do after a selector choice that
// cannot be answered directly.
type approvalFollowup int

const (
	followupNone approvalFollowup = iota
	// followupDenyReason switches to the textarea to collect a denial reason.
	followupDenyReason
	// followupIndividual switches to the textarea for index-based selection.
	followupIndividual
)

// ApprovalSelectionToResponse maps a selector index to an ApprovalResponse.
// Options: 0=allow, 1=allow for session, 2=allow and remember, 3=deny with
// reason (follow-up), 4=select individually (follow-up, multi-call only).
func ApprovalSelectionToResponse(selected int, pending []workflow.PendingApproval) (*workflow.ApprovalResponse, approvalFollowup) {
	allCallIDs := make([]string, len(pending))
	for i, ap := range pending {
		allCallIDs[i] = ap.CallID
	}

	switch selected {
	case 0:
		return &workflow.ApprovalResponse{Approved: allCallIDs}, followupNone
	case 1:
		return &workflow.ApprovalResponse{Approved: allCallIDs, ApproveAllSession: true}, followupNone
	case 2:
		return &workflow.ApprovalResponse{Approved: allCallIDs, RememberApproved: true}, followupNone
	case 3:
		return nil, followupDenyReason
	case 4:
		return nil, followupIndividual
	default:
		return nil, followupNone
	}
}

// DenyAllResponse denies every pending call with the given reason. An empty
// reason still denies; the session reports it as a plain user denial.
func DenyAllResponse(pending []workflow.PendingApproval, reason string) workflow.ApprovalResponse {
	denied := make([]workflow.DeniedCall, len(pending))
	for i, ap := range pending {
		denied[i] = workflow.DeniedCall{CallID: ap.CallID, Reason: reason}
	}
	return workflow.ApprovalResponse{Denied: denied}
}

// HandleApprovalInput parses a typed response to an approval prompt.
// Returns nil if the input is not recognized.
//
// Supports:
//   - "y"/"yes" — approve all
//   - "n"/"no" — deny all
//   - "a"/"always" — approve all for the rest of the session
//   - "r"/"remember" — approve all and persist as standing allow rules
//   - "1,3" — approve indices 1 and 3, deny the rest
func HandleApprovalInput(line string, pending []workflow.PendingApproval) *workflow.ApprovalResponse {
	line = strings.ToLower(strings.TrimSpace(line))

	allCallIDs := make([]string, len(pending))
	for i, ap := range pending {
		allCallIDs[i] = ap.CallID
	}

	switch line {
	case "y", "yes":
		return &workflow.ApprovalResponse{Approved: allCallIDs}
	case "n", "no":
		resp := DenyAllResponse(pending, "")
		return &resp
	case "a", "always":
		return &workflow.ApprovalResponse{Approved: allCallIDs, ApproveAllSession: true}
	case "r", "remember":
		return &workflow.ApprovalResponse{Approved: allCallIDs, RememberApproved: true}
	}

	indices := parseApprovalIndices(line, len(pending))
	if indices == nil {
		return nil
	}

	approvedSet := make(map[int]bool, len(indices))
	for _, idx := range indices {
		approvedSet[idx] = true
	}

	var approved []string
	var denied []workflow.DeniedCall
	for i, callID := range allCallIDs {
		if approvedSet[i+1] {
			approved = append(approved, callID)
		} else {
			denied = append(denied, workflow.DeniedCall{CallID: callID})
		}
	}

	return &workflow.ApprovalResponse{Approved: approved, Denied: denied}
}

// parseApprovalIndices parses a comma-separated list of 1-based indices.
// Returns nil if the input is not valid.
func parseApprovalIndices(input string, maxIndex int) []int {
	parts := strings.Split(input, ",")
	var indices []int
	seen := make(map[int]bool)

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var idx int
		n, err := fmt.Sscanf(part, "%d", &idx)
		if err != nil || n != 1 || idx < 1 || idx > maxIndex {
			return nil
		}
		if !seen[idx] {
			seen[idx] = true
			indices = append(indices, idx)
		}
	}

	if len(indices) == 0 {
		return nil
	}
	return indices
}
