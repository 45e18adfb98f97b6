package loanpool_test

import (
	"fmt"
	"testing"

	"github.com/calehh/loanpool-app/loanpool"
	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	root  = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	acct0 = common.HexToAddress("0x0000000000000000000000000000000000000100")
	acct1 = common.HexToAddress("0x0000000000000000000000000000000000000101")
	acct2 = common.HexToAddress("0x0000000000000000000000000000000000000102")
	acct3 = common.HexToAddress("0x0000000000000000000000000000000000000103")
)

func member(i int) common.Address {
	return common.HexToAddress(fmt.Sprintf("0x%040x", 0x1000+i))
}

type env struct {
	t      *testing.T
	keeper *loanpool.Keeper
	st     *state.State
}

func newEnv(t *testing.T, params types.Params) *env {
	db, err := state.NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	st := db.NewState()
	origin := loanpool.AccountsOrigin(root)
	k := loanpool.NewKeeper(cmtlog.NewNopLogger(), params, loanpool.Origins{
		Approve:   origin,
		Reject:    origin,
		Committee: origin,
		Delete:    origin,
		Verify:    origin,
	})
	for addr, amount := range map[common.Address]uint64{
		acct0:     20_000_000,
		acct1:     15_000,
		acct2:     150_000,
		acct3:     5_000,
		k.Pool():  20_000_000,
	} {
		require.NoError(t, st.Deposit(addr, amount))
	}
	members := make([]common.Address, 10)
	for i := range members {
		members[i] = member(i)
	}
	require.NoError(t, st.SetCommittee(&types.Committee{Members: members, Version: 1}))
	return &env{t: t, keeper: k, st: st}
}

func (e *env) balances(addr common.Address) (free, reserved uint64) {
	free, err := e.st.FreeBalance(addr)
	require.NoError(e.t, err)
	reserved, err = e.st.ReservedBalance(addr)
	require.NoError(e.t, err)
	return
}

func (e *env) at(height uint64) {
	require.NoError(e.t, e.st.SetHeight(height))
}

func (e *env) submit(proposer common.Address, amount uint64, milestones ...uint64) uint64 {
	id, _, err := e.keeper.Submit(e.st, proposer, amount, milestones)
	require.NoError(e.t, err)
	return id
}

func (e *env) vote(id uint64, aye bool, from, to int) []types.Event {
	var events []types.Event
	for i := from; i < to; i++ {
		evs, err := e.keeper.CastVote(e.st, member(i), id, aye)
		require.NoError(e.t, err)
		events = append(events, evs...)
	}
	return events
}

func (e *env) proposal(id uint64) *types.Proposal {
	p, err := e.keeper.Get(e.st, id)
	require.NoError(e.t, err)
	return p
}

func eventTypes(events []types.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.EventType()
	}
	return out
}

func TestBondAmount(t *testing.T) {
	params := types.DefaultParams()
	params.ProposalBondMaximum = 100_000
	k := loanpool.NewKeeper(cmtlog.NewNopLogger(), params, loanpool.Origins{})
	for _, c := range []struct {
		amount, bond uint64
	}{
		{1000, 10_000},
		{200_000, 10_000},
		{1_000_000, 50_000},
		{300_005, 15_000},
		{300_010, 15_000},
		{300_015, 15_001},
		{10_000_000, 100_000},
		{^uint64(0), 100_000},
	} {
		assert.Equal(t, c.bond, k.BondAmount(c.amount), "amount %d", c.amount)
	}
}

func TestSubmit(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id, events, err := e.keeper.Submit(e.st, acct1, 1000, []uint64{400, 600})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, []string{types.EventProposalSubmittedType, types.EventBondReservedType}, eventTypes(events))

	p := e.proposal(id)
	assert.Equal(t, types.ProposalStateSubmitted, p.State)
	assert.Equal(t, uint64(10_000), p.BondAmount)
	assert.Equal(t, uint64(10), p.Tally.Deadline)
	require.Len(t, p.Milestones, 2)
	assert.Equal(t, types.MilestoneStatePending, p.Milestones[1].State)

	free, reserved := e.balances(acct1)
	assert.Equal(t, uint64(5_000), free)
	assert.Equal(t, uint64(10_000), reserved)

	ongoing, err := e.st.OngoingProposals()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ongoing)
}

func TestSubmitValidation(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	eleven := make([]uint64, 11)
	for i := range eleven {
		eleven[i] = 100
	}
	for _, c := range []struct {
		name       string
		proposer   common.Address
		amount     uint64
		milestones []uint64
		err        error
	}{
		{"amount mismatch", acct2, 1000, []uint64{400, 500}, types.ErrAmountMismatch},
		{"no milestones", acct2, 1000, nil, types.ErrAmountMismatch},
		{"too many milestones", acct2, 1100, eleven, types.ErrTooManyMilestones},
		{"zero milestone", acct2, 1000, []uint64{0, 1000}, types.ErrZeroMilestoneAmount},
		{"sum overflow", acct2, 10, []uint64{^uint64(0), 11}, types.ErrAmountMismatch},
		{"bond not affordable", acct3, 1000, []uint64{1000}, types.ErrInsufficientBalance},
	} {
		t.Run(c.name, func(t *testing.T) {
			_, events, err := e.keeper.Submit(e.st, c.proposer, c.amount, c.milestones)
			require.ErrorIs(t, err, c.err)
			assert.Nil(t, events)
		})
	}

	free, reserved := e.balances(acct3)
	assert.Equal(t, uint64(5_000), free)
	assert.Zero(t, reserved)
	id := e.submit(acct2, 1000, 1000)
	assert.Equal(t, uint64(1), id)
}

func TestOngoingLoanCap(t *testing.T) {
	params := types.DefaultParams()
	params.MaxOngoingLoans = 1
	e := newEnv(t, params)
	id := e.submit(acct0, 1000, 1000)
	_, _, err := e.keeper.Submit(e.st, acct2, 1000, []uint64{1000})
	require.ErrorIs(t, err, types.ErrTooManyOngoingLoans)

	_, err = e.keeper.Withdraw(e.st, acct0, id)
	require.NoError(t, err)
	e.submit(acct2, 1000, 1000)
}

func TestVoteApproves(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 400, 600)

	e.vote(id, true, 0, 5)
	assert.Equal(t, types.ProposalStateSubmitted, e.proposal(id).State)

	events, err := e.keeper.CastVote(e.st, member(5), id, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		types.EventVoteCastType,
		types.EventProposalApprovedType,
		types.EventBondReleasedType,
		types.EventEscrowFundedType,
	}, eventTypes(events))

	p := e.proposal(id)
	assert.Equal(t, types.ProposalStateEscrowed, p.State)
	assert.Equal(t, types.VoteStatusApproved, p.Tally.Status)

	free, reserved := e.balances(acct1)
	assert.Equal(t, uint64(15_000), free)
	assert.Zero(t, reserved)
	free, reserved = e.balances(e.keeper.Pool())
	assert.Equal(t, uint64(20_000_000-1000), free)
	assert.Equal(t, uint64(1000), reserved)

	_, err = e.keeper.CastVote(e.st, member(6), id, true)
	require.ErrorIs(t, err, types.ErrVotingClosed)
}

func TestVoteRejectsAndSlashes(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 400, 600)
	events := e.vote(id, false, 0, 6)
	assert.Contains(t, eventTypes(events), types.EventProposalRejectedType)
	assert.Contains(t, eventTypes(events), types.EventBondSlashedType)

	assert.Equal(t, types.ProposalStateRejected, e.proposal(id).State)
	free, reserved := e.balances(acct1)
	assert.Equal(t, uint64(5_000), free)
	assert.Zero(t, reserved)
	free, reserved = e.balances(e.keeper.Pool())
	assert.Equal(t, uint64(20_010_000), free)
	assert.Zero(t, reserved)
	escrow, err := e.st.GetEscrow(id)
	require.NoError(t, err)
	assert.Nil(t, escrow)

	ongoing, err := e.st.OngoingProposals()
	require.NoError(t, err)
	assert.Empty(t, ongoing)
}

func TestVoteRules(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 1000)

	_, err := e.keeper.CastVote(e.st, acct0, id, true)
	require.ErrorIs(t, err, types.ErrNotCommitteeMember)

	_, err = e.keeper.CastVote(e.st, member(0), 99, true)
	require.ErrorIs(t, err, types.ErrProposalNotFound)

	e.vote(id, true, 0, 1)
	_, err = e.keeper.CastVote(e.st, member(0), id, true)
	require.ErrorIs(t, err, types.ErrDuplicateVote)

	e.vote(id, false, 0, 1)
	p := e.proposal(id)
	assert.Empty(t, p.Tally.Ayes)
	assert.Equal(t, []common.Address{member(0)}, p.Tally.Nays)

	e.at(11)
	_, err = e.keeper.CastVote(e.st, member(1), id, true)
	require.ErrorIs(t, err, types.ErrVotingClosed)
}

func TestRemovedMemberVoteNotCounted(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 1000)
	e.vote(id, true, 0, 5)

	_, err := e.keeper.RemoveMember(e.st, root, member(0))
	require.NoError(t, err)
	e.vote(id, true, 5, 6)
	assert.Equal(t, types.ProposalStateSubmitted, e.proposal(id).State)

	e.vote(id, true, 6, 7)
	assert.Equal(t, types.ProposalStateEscrowed, e.proposal(id).State)
}

func TestMilestonePayout(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 400, 600)
	e.vote(id, true, 0, 6)

	_, err := e.keeper.VerifyAndPay(e.st, root, id, 1)
	require.ErrorIs(t, err, types.ErrOutOfOrderMilestone)
	escrow, err := e.st.GetEscrow(id)
	require.NoError(t, err)
	assert.Equal(t, &types.Escrow{Proposal: id, Funded: 1000, Paid: 0}, escrow)
	_, reserved := e.balances(e.keeper.Pool())
	assert.Equal(t, uint64(1000), reserved)

	_, err = e.keeper.VerifyAndPay(e.st, root, id, 0)
	require.ErrorIs(t, err, types.ErrMilestoneNotSubmitted)
	_, err = e.keeper.SubmitMilestone(e.st, acct0, id, 0)
	require.ErrorIs(t, err, types.ErrNotProposer)
	_, err = e.keeper.SubmitMilestone(e.st, acct1, id, 1)
	require.ErrorIs(t, err, types.ErrOutOfOrderMilestone)

	_, err = e.keeper.SubmitMilestone(e.st, acct1, id, 0)
	require.NoError(t, err)
	_, err = e.keeper.VerifyAndPay(e.st, acct1, id, 0)
	require.ErrorIs(t, err, types.ErrBadOrigin)

	events, err := e.keeper.VerifyAndPay(e.st, root, id, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{types.EventMilestonePaidType, types.EventReceiptMintedType}, eventTypes(events))
	p := e.proposal(id)
	assert.Equal(t, types.ProposalStatePartiallyPaid, p.State)
	assert.Equal(t, types.MilestoneStatePaid, p.Milestones[0].State)

	free, _ := e.balances(acct1)
	assert.Equal(t, uint64(15_400), free)
	owner, ok, err := e.st.ReceiptOwner(id, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, acct1, owner)

	_, err = e.keeper.SubmitMilestone(e.st, acct1, id, 1)
	require.NoError(t, err)
	events, err = e.keeper.VerifyAndPay(e.st, root, id, 1)
	require.NoError(t, err)
	assert.Contains(t, eventTypes(events), types.EventProposalCompletedType)

	assert.Equal(t, types.ProposalStateCompleted, e.proposal(id).State)
	free, _ = e.balances(acct1)
	assert.Equal(t, uint64(16_000), free)
	free, reserved = e.balances(e.keeper.Pool())
	assert.Equal(t, uint64(20_000_000-1000), free)
	assert.Zero(t, reserved)

	escrow, err = e.st.GetEscrow(id)
	require.NoError(t, err)
	assert.Nil(t, escrow)
}

func TestPayRollsBackWhenMintFails(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 400, 600)
	e.vote(id, true, 0, 6)
	_, err := e.keeper.SubmitMilestone(e.st, acct1, id, 0)
	require.NoError(t, err)
	require.NoError(t, e.st.MintReceipt(acct0, id, 0))

	_, err = e.keeper.VerifyAndPay(e.st, root, id, 0)
	require.ErrorIs(t, err, types.ErrReceiptAlreadyMinted)

	p := e.proposal(id)
	assert.Equal(t, types.ProposalStateEscrowed, p.State)
	assert.Equal(t, types.MilestoneStateSubmitted, p.Milestones[0].State)
	free, _ := e.balances(acct1)
	assert.Equal(t, uint64(15_000), free)
	_, reserved := e.balances(e.keeper.Pool())
	assert.Equal(t, uint64(1000), reserved)
	escrow, err := e.st.GetEscrow(id)
	require.NoError(t, err)
	assert.Zero(t, escrow.Paid)
}

func TestDeleteStalledProposal(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 400, 600)
	e.vote(id, true, 0, 3)
	e.vote(id, false, 3, 5)

	_, err := e.keeper.Delete(e.st, root, id)
	require.ErrorIs(t, err, types.ErrProposalNotDeletable)
	_, err = e.keeper.Delete(e.st, acct0, id)
	require.ErrorIs(t, err, types.ErrBadOrigin)

	e.at(11)
	events, err := e.keeper.Delete(e.st, root, id)
	require.NoError(t, err)
	assert.Equal(t, []string{types.EventBondSlashedType, types.EventProposalDeletedType}, eventTypes(events))

	_, err = e.keeper.Get(e.st, id)
	require.ErrorIs(t, err, types.ErrProposalNotFound)
	free, reserved := e.balances(acct1)
	assert.Equal(t, uint64(5_000), free)
	assert.Zero(t, reserved)
	free, _ = e.balances(e.keeper.Pool())
	assert.Equal(t, uint64(20_010_000), free)
}

func TestDeleteRunningLoanForfeits(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 400, 600)
	e.vote(id, true, 0, 6)
	_, err := e.keeper.SubmitMilestone(e.st, acct1, id, 0)
	require.NoError(t, err)
	_, err = e.keeper.VerifyAndPay(e.st, root, id, 0)
	require.NoError(t, err)

	events, err := e.keeper.Delete(e.st, root, id)
	require.NoError(t, err)
	assert.Equal(t, []string{types.EventEscrowForfeitedType, types.EventProposalDeletedType}, eventTypes(events))

	free, reserved := e.balances(e.keeper.Pool())
	assert.Equal(t, uint64(20_000_000-400), free)
	assert.Zero(t, reserved)
	_, err = e.keeper.Get(e.st, id)
	require.ErrorIs(t, err, types.ErrProposalNotFound)
}

func TestForfeitKeepsRecord(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 400, 600)
	e.vote(id, true, 0, 6)

	_, err := e.keeper.Forfeit(e.st, root, id)
	require.NoError(t, err)
	p := e.proposal(id)
	assert.Equal(t, types.ProposalStateForfeited, p.State)
	for _, m := range p.Milestones {
		assert.Equal(t, types.MilestoneStateVoided, m.State)
	}
	_, err = e.keeper.Forfeit(e.st, root, id)
	require.ErrorIs(t, err, types.ErrInvalidStateTransition)

	_, err = e.keeper.Delete(e.st, root, id)
	require.NoError(t, err)
}

func TestReleaseBondTwice(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 1000)
	bond := e.proposal(id).Bond

	_, err := e.keeper.ReleaseBond(e.st, bond)
	require.NoError(t, err)
	free, _ := e.balances(acct1)

	_, err = e.keeper.ReleaseBond(e.st, bond)
	require.ErrorIs(t, err, types.ErrBondAlreadySettled)
	_, err = e.keeper.SlashBond(e.st, bond)
	require.ErrorIs(t, err, types.ErrBondAlreadySettled)
	after, _ := e.balances(acct1)
	assert.Equal(t, free, after)

	_, err = e.keeper.ReleaseBond(e.st, 42)
	require.ErrorIs(t, err, types.ErrBondNotFound)
}

func TestOriginApproveAndReject(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	a := e.submit(acct2, 1000, 1000)
	r := e.submit(acct2, 2000, 2000)

	_, err := e.keeper.Approve(e.st, acct0, a)
	require.ErrorIs(t, err, types.ErrBadOrigin)
	events, err := e.keeper.Approve(e.st, root, a)
	require.NoError(t, err)
	approved := events[0].(*types.EventProposalApproved)
	assert.True(t, approved.ByOrigin)
	assert.Equal(t, types.ProposalStateEscrowed, e.proposal(a).State)

	_, err = e.keeper.Reject(e.st, root, r)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStateRejected, e.proposal(r).State)

	_, err = e.keeper.Reject(e.st, root, a)
	require.ErrorIs(t, err, types.ErrInvalidStateTransition)
}

func TestApproveNeedsPoolFunds(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct0, 30_000_000, 30_000_000)

	_, err := e.keeper.Approve(e.st, root, id)
	require.ErrorIs(t, err, types.ErrInsufficientBalance)
	p := e.proposal(id)
	assert.Equal(t, types.ProposalStateSubmitted, p.State)
	_, reserved := e.balances(acct0)
	assert.Equal(t, p.BondAmount, reserved)
}

func TestWithdraw(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 1000)

	_, err := e.keeper.Withdraw(e.st, acct0, id)
	require.ErrorIs(t, err, types.ErrNotProposer)

	events, err := e.keeper.Withdraw(e.st, acct1, id)
	require.NoError(t, err)
	assert.Equal(t, []string{types.EventBondReleasedType, types.EventProposalWithdrawnType}, eventTypes(events))
	p := e.proposal(id)
	assert.Equal(t, types.ProposalStateCancelled, p.State)
	assert.Equal(t, types.VoteStatusWithdrawn, p.Tally.Status)
	free, _ := e.balances(acct1)
	assert.Equal(t, uint64(15_000), free)

	_, err = e.keeper.CastVote(e.st, member(0), id, true)
	require.ErrorIs(t, err, types.ErrVotingClosed)
}

func TestCloseVote(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	id := e.submit(acct1, 1000, 1000)
	other := e.submit(acct2, 1000, 1000)

	_, err := e.keeper.CloseVote(e.st, id)
	require.ErrorIs(t, err, types.ErrVotingOpen)

	e.at(11)
	events, err := e.keeper.CloseVote(e.st, id)
	require.NoError(t, err)
	rejected := events[0].(*types.EventProposalRejected)
	assert.Equal(t, types.RejectReasonTimeout, rejected.Reason)

	events, err = e.keeper.CloseExpired(e.st)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, types.ProposalStateRejected, e.proposal(other).State)

	events, err = e.keeper.CloseExpired(e.st)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCommitteeMembership(t *testing.T) {
	e := newEnv(t, types.DefaultParams())

	_, err := e.keeper.AddMember(e.st, acct0, acct0)
	require.ErrorIs(t, err, types.ErrBadOrigin)
	_, err = e.keeper.AddMember(e.st, root, member(3))
	require.ErrorIs(t, err, types.ErrAlreadyCommitteeMember)
	_, err = e.keeper.AddMember(e.st, root, acct0)
	require.ErrorIs(t, err, types.ErrTooManyCommitteeMembers)

	_, err = e.keeper.RemoveMember(e.st, root, acct0)
	require.ErrorIs(t, err, types.ErrNotCommitteeMember)
	_, err = e.keeper.RemoveMember(e.st, root, member(9))
	require.NoError(t, err)
	events, err := e.keeper.AddMember(e.st, root, acct0)
	require.NoError(t, err)

	added := events[0].(*types.EventCommittee)
	assert.Equal(t, uint64(3), added.Version)
	c, err := e.st.GetCommittee()
	require.NoError(t, err)
	assert.True(t, c.IsMember(acct0))
	assert.False(t, c.IsMember(member(9)))
}

func TestTransfer(t *testing.T) {
	e := newEnv(t, types.DefaultParams())
	_, err := e.keeper.Transfer(e.st, acct3, acct2, 5_001)
	require.ErrorIs(t, err, types.ErrInsufficientBalance)
	events, err := e.keeper.Transfer(e.st, acct3, acct2, 5_000)
	require.NoError(t, err)
	require.Len(t, events, 1)
	free, _ := e.balances(acct2)
	assert.Equal(t, uint64(155_000), free)
}
