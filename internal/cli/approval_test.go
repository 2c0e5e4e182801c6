package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/workflow"
)

func pendingApprovals(n int) []workflow.PendingApproval {
	aps := make([]workflow.PendingApproval, n)
	for i := range aps {
		aps[i] = workflow.PendingApproval{
			CallID:   string(rune('a' + i)),
			ToolName: "shell",
		}
	}
	return aps
}

func TestApprovalSelection_Allow(t *testing.T) {
	resp, followup := ApprovalSelectionToResponse(0, pendingApprovals(2))
	require.NotNil(t, resp)
	assert.Equal(t, followupNone, followup)
	assert.Equal(t, []string{"a", "b"}, resp.Approved)
	assert.False(t, resp.ApproveAllSession)
	assert.False(t, resp.RememberApproved)
}

func TestApprovalSelection_AllowForSession(t *testing.T) {
	resp, _ := ApprovalSelectionToResponse(1, pendingApprovals(1))
	require.NotNil(t, resp)
	assert.True(t, resp.ApproveAllSession)
	assert.Equal(t, []string{"a"}, resp.Approved)
}

func TestApprovalSelection_AllowAndRemember(t *testing.T) {
	resp, _ := ApprovalSelectionToResponse(2, pendingApprovals(1))
	require.NotNil(t, resp)
	assert.True(t, resp.RememberApproved)
	assert.Equal(t, []string{"a"}, resp.Approved)
}

func TestApprovalSelection_DenyNeedsReasonFollowup(t *testing.T) {
	resp, followup := ApprovalSelectionToResponse(3, pendingApprovals(1))
	assert.Nil(t, resp)
	assert.Equal(t, followupDenyReason, followup)
}

func TestApprovalSelection_IndividualFollowup(t *testing.T) {
	resp, followup := ApprovalSelectionToResponse(4, pendingApprovals(3))
	assert.Nil(t, resp)
	assert.Equal(t, followupIndividual, followup)
}

func TestDenyAllResponseCarriesReason(t *testing.T) {
	resp := DenyAllResponse(pendingApprovals(2), "wrong directory")
	require.Len(t, resp.Denied, 2)
	assert.Equal(t, "a", resp.Denied[0].CallID)
	assert.Equal(t, "wrong directory", resp.Denied[0].Reason)
	assert.Equal(t, "wrong directory", resp.Denied[1].Reason)
	assert.Empty(t, resp.Approved)
}

func TestHandleApprovalInput_YesNoAlwaysRemember(t *testing.T) {
	pending := pendingApprovals(2)

	resp := HandleApprovalInput("y", pending)
	require.NotNil(t, resp)
	assert.Equal(t, []string{"a", "b"}, resp.Approved)

	resp = HandleApprovalInput("no", pending)
	require.NotNil(t, resp)
	assert.Len(t, resp.Denied, 2)
	assert.Empty(t, resp.Denied[0].Reason)

	resp = HandleApprovalInput("always", pending)
	require.NotNil(t, resp)
	assert.True(t, resp.ApproveAllSession)

	resp = HandleApprovalInput("r", pending)
	require.NotNil(t, resp)
	assert.True(t, resp.RememberApproved)
}

func TestHandleApprovalInput_Indices(t *testing.T) {
	pending := pendingApprovals(3)

	resp := HandleApprovalInput("1,3", pending)
	require.NotNil(t, resp)
	assert.Equal(t, []string{"a", "c"}, resp.Approved)
	require.Len(t, resp.Denied, 1)
	assert.Equal(t, "b", resp.Denied[0].CallID)
}

func TestHandleApprovalInput_Unrecognized(t *testing.T) {
	pending := pendingApprovals(2)

	assert.Nil(t, HandleApprovalInput("maybe", pending))
	assert.Nil(t, HandleApprovalInput("0", pending))
	assert.Nil(t, HandleApprovalInput("3", pending))
	assert.Nil(t, HandleApprovalInput("", pending))
}

func TestParseApprovalIndices(t *testing.T) {
	assert.Equal(t, []int{1, 3}, parseApprovalIndices("1, 3", 3))
	assert.Equal(t, []int{2}, parseApprovalIndices("2,2", 3))
	assert.Nil(t, parseApprovalIndices("4", 3))
	assert.Nil(t, parseApprovalIndices("1,x", 3))
}
