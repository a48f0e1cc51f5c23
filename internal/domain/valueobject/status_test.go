package valueobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allMilestoneStatuses = []MilestoneStatus{
	MilestoneStatusPending,
	MilestoneStatusFunded,
	MilestoneStatusSubmittedForApproval,
	MilestoneStatusRevisionRequested,
	MilestoneStatusCompleted,
}

func TestMilestoneStatus_TransitionGraph(t *testing.T) {
	legal := map[MilestoneStatus][]MilestoneStatus{
		MilestoneStatusPending:              {MilestoneStatusFunded},
		MilestoneStatusFunded:               {MilestoneStatusSubmittedForApproval},
		MilestoneStatusSubmittedForApproval: {MilestoneStatusCompleted, MilestoneStatusRevisionRequested},
		MilestoneStatusRevisionRequested:    {MilestoneStatusSubmittedForApproval},
		MilestoneStatusCompleted:            nil,
	}

	for _, from := range allMilestoneStatuses {
		for _, to := range allMilestoneStatuses {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestMilestoneStatus_UnknownRejected(t *testing.T) {
	_, err := NewMilestoneStatus("on_hold")
	assert.Error(t, err)
	assert.False(t, MilestoneStatus("on_hold").CanTransitionTo(MilestoneStatusFunded))
}

func TestProposalStatus_Transitions(t *testing.T) {
	assert.True(t, ProposalStatusPending.CanTransitionTo(ProposalStatusAccepted))
	assert.True(t, ProposalStatusAwaitingBuyerAcceptance.CanTransitionTo(ProposalStatusDeclined))
	assert.True(t, ProposalStatusAccepted.CanTransitionTo(ProposalStatusCompleted))
	assert.False(t, ProposalStatusDeclined.CanTransitionTo(ProposalStatusAccepted))
	assert.False(t, ProposalStatusCompleted.CanTransitionTo(ProposalStatusDeclined))
	assert.False(t, ProposalStatusPending.CanTransitionTo(ProposalStatusCompleted))
}

func TestPartyRole_Counterpart(t *testing.T) {
	assert.Equal(t, RoleSeller, RoleBuyer.Counterpart())
	assert.Equal(t, RoleBuyer, RoleSeller.Counterpart())
}
