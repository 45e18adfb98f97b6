package types

import (
	"testing"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalTransitions(t *testing.T) {
	assert.True(t, ProposalStateSubmitted.CanTransition(ProposalStateApproved))
	assert.True(t, ProposalStateApproved.CanTransition(ProposalStateEscrowed))
	assert.True(t, ProposalStatePartiallyPaid.CanTransition(ProposalStateCompleted))
	assert.False(t, ProposalStateSubmitted.CanTransition(ProposalStateEscrowed))
	assert.False(t, ProposalStateRejected.CanTransition(ProposalStateApproved))
	assert.False(t, ProposalStateCompleted.CanTransition(ProposalStateForfeited))

	for _, s := range []ProposalState{ProposalStateRejected, ProposalStateCompleted, ProposalStateCancelled, ProposalStateForfeited} {
		assert.True(t, s.IsTerminal(), s.String())
		for next := ProposalStateSubmitted; next <= ProposalStateForfeited; next++ {
			assert.False(t, s.CanTransition(next), "%s -> %s", s, next)
		}
	}
}

func TestMilestoneTransitions(t *testing.T) {
	assert.True(t, MilestoneStatePending.CanTransition(MilestoneStateSubmitted))
	assert.False(t, MilestoneStatePending.CanTransition(MilestoneStatePaid))
	assert.False(t, MilestoneStatePaid.CanTransition(MilestoneStateVoided))
}

func TestVoteTallyRecord(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")
	var tally VoteTally
	tally.Record(a, true)
	tally.Record(b, true)
	tally.Record(a, false)

	assert.Equal(t, []common.Address{b}, tally.Ayes)
	assert.Equal(t, []common.Address{a}, tally.Nays)
	aye, voted := tally.Choice(a)
	assert.True(t, voted)
	assert.False(t, aye)
}

func TestErrorCodes(t *testing.T) {
	err := errors.Wrapf(ErrOutOfOrderMilestone, "milestone %d", 1)
	assert.ErrorIs(t, err, ErrOutOfOrderMilestone)
	assert.NotErrorIs(t, err, ErrMilestoneNotSubmitted)
	assert.Equal(t, uint32(13), ABCICode(err))
	assert.Equal(t, CodeUnknown, ABCICode(errors.New("boom")))
	assert.Zero(t, ABCICode(nil))

	kind, ok := KindOf(ErrInsufficientEscrow)
	require.True(t, ok)
	assert.Equal(t, ErrorKindResource, kind)
}

func TestDecodeEvent(t *testing.T) {
	proposer := common.HexToAddress("0x0000000000000000000000000000000000000101")
	events := []Event{
		&EventProposalSubmitted{Proposal: 7, Proposer: proposer, Amount: 1000, Milestones: 2, Deadline: 12},
		&EventBond{Type: EventBondSlashedType, Bond: 3, Proposal: 7, Owner: proposer, Amount: 10_000},
		&EventVoteCast{Proposal: 7, Voter: proposer, Aye: true, Ayes: 6, Nays: 1},
		&EventProposalRejected{Proposal: 7, Reason: RejectReasonTimeout},
		&EventMilestone{Type: EventMilestonePaidType, Proposal: 7, Index: 1, Amount: 600, Beneficiary: proposer},
		&EventCommittee{Member: proposer, Added: false, Version: 4},
	}
	for _, ev := range events {
		t.Run(ev.EventType(), func(t *testing.T) {
			decoded, err := DecodeEvent(ev.Encode())
			require.NoError(t, err)
			assert.Equal(t, ev, decoded)
		})
	}
}

func TestDecodeEventErrors(t *testing.T) {
	_, err := DecodeEvent(abci.Event{Type: "tx"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = DecodeEvent(abci.Event{
		Type:       EventEscrowFundedType,
		Attributes: []abci.EventAttribute{{Key: "proposal", Value: "x"}, {Key: "amount", Value: "1"}},
	})
	assert.Error(t, err)
}

func TestParseAppState(t *testing.T) {
	gen, err := ParseAppState(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultParams(), gen.Params)

	gen, err = ParseAppState([]byte(`{"params":{"voting_time":20},"pool_balance":5}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(20), gen.Params.VotingTime)
	assert.Equal(t, uint32(10), gen.Params.MaxCommitteeMembers)
	assert.Equal(t, uint64(5), gen.PoolBalance)

	_, err = ParseAppState([]byte(`{"params":{"voting_time":0}}`))
	assert.Error(t, err)
}
