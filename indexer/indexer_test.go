package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/calehh/loanpool-app/types"
	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	proposer = common.HexToAddress("0x0000000000000000000000000000000000000100")
	voterA   = common.HexToAddress("0x0000000000000000000000000000000000000201")
	voterB   = common.HexToAddress("0x0000000000000000000000000000000000000202")
)

type fakeChain struct {
	blocks map[int64]*coretypes.ResultBlockResults
	latest int64
}

func newFakeChain() *fakeChain {
	return &fakeChain{blocks: make(map[int64]*coretypes.ResultBlockResults)}
}

func (f *fakeChain) Status(ctx context.Context) (*coretypes.ResultStatus, error) {
	return &coretypes.ResultStatus{SyncInfo: coretypes.SyncInfo{LatestBlockHeight: f.latest}}, nil
}

func (f *fakeChain) BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error) {
	res, ok := f.blocks[*height]
	if !ok {
		return &coretypes.ResultBlockResults{Height: *height}, nil
	}
	return res, nil
}

// addBlock appends a block whose single successful tx emits events.
func (f *fakeChain) addBlock(events ...types.Event) int64 {
	f.latest++
	f.blocks[f.latest] = &coretypes.ResultBlockResults{
		Height:     f.latest,
		TxsResults: []*abci.ExecTxResult{{Code: 0, Events: types.EncodeEvents(events)}},
	}
	return f.latest
}

func newTestIndexer(t *testing.T, cli ChainClient) *ChainIndexer {
	db, err := OpenDB(filepath.Join(t.TempDir(), "indexer.db"))
	require.NoError(t, err)
	c, err := NewChainIndexer(cmtlog.NewNopLogger(), db, cli)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func submitted(id uint64) []types.Event {
	return []types.Event{
		&types.EventProposalSubmitted{Proposal: id, Proposer: proposer, Amount: 100, Milestones: 2, Deadline: 20},
		&types.EventBond{Type: types.EventBondReservedType, Bond: id, Proposal: id, Owner: proposer, Amount: 5},
	}
}

func TestIndexLoanLifecycle(t *testing.T) {
	chain := newFakeChain()
	c := newTestIndexer(t, chain)

	chain.addBlock(submitted(1)...)
	chain.addBlock(
		&types.EventVoteCast{Proposal: 1, Voter: voterA, Aye: false, Ayes: 0, Nays: 1},
		&types.EventVoteCast{Proposal: 1, Voter: voterA, Aye: true, Ayes: 1, Nays: 0},
		&types.EventVoteCast{Proposal: 1, Voter: voterB, Aye: true, Ayes: 2, Nays: 0},
	)
	chain.addBlock(
		&types.EventProposalApproved{Proposal: 1},
		&types.EventBond{Type: types.EventBondReleasedType, Bond: 1, Proposal: 1, Owner: proposer, Amount: 5},
		&types.EventEscrow{Type: types.EventEscrowFundedType, Proposal: 1, Amount: 100},
	)
	chain.addBlock(
		&types.EventMilestone{Type: types.EventMilestoneSubmittedType, Proposal: 1, Index: 0, Amount: 60, Beneficiary: proposer},
	)
	chain.addBlock(
		&types.EventMilestone{Type: types.EventMilestonePaidType, Proposal: 1, Index: 0, Amount: 60, Beneficiary: proposer},
		&types.EventReceiptMinted{Owner: proposer, Collection: 1, Item: 0},
	)
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int64(6), c.Height)

	p, err := c.getProposalById(1)
	require.NoError(t, err)
	assert.Equal(t, proposer.Hex(), p.Proposer)
	assert.Equal(t, types.ProposalStatePartiallyPaid.String(), p.State)
	assert.Equal(t, types.BondStateReleased.String(), p.BondState)
	assert.Equal(t, uint32(2), p.Ayes)
	assert.Zero(t, p.Nays)
	assert.Equal(t, uint64(100), p.Escrowed)
	assert.Equal(t, uint64(60), p.Paid)
	assert.Equal(t, uint64(3), p.SettleHeight)

	votes, total, err := c.getVotes(1, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), total)
	assert.True(t, votes[0].Aye)

	milestones, err := c.getMilestonesByProposal(1)
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	assert.Equal(t, types.MilestoneStatePaid.String(), milestones[0].State)
	assert.Equal(t, uint64(4), milestones[0].SubmitHeight)
	assert.Equal(t, uint64(5), milestones[0].PaidHeight)
	assert.True(t, milestones[0].Receipt)

	chain.addBlock(
		&types.EventMilestone{Type: types.EventMilestoneSubmittedType, Proposal: 1, Index: 1, Amount: 40, Beneficiary: proposer},
		&types.EventEscrow{Type: types.EventEscrowForfeitedType, Proposal: 1, Amount: 40},
	)
	chain.addBlock(&types.EventProposalClosed{Type: types.EventProposalDeletedType, Proposal: 1, State: types.ProposalStateForfeited.String()})
	require.NoError(t, c.Sync(context.Background()))

	p, err = c.getProposalById(1)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStateForfeited.String(), p.State)
	assert.True(t, p.Deleted)

	milestones, err = c.getMilestonesByProposal(1)
	require.NoError(t, err)
	require.Len(t, milestones, 2)
	assert.Equal(t, types.MilestoneStatePaid.String(), milestones[0].State)
	assert.Equal(t, types.MilestoneStateVoided.String(), milestones[1].State)
}

func TestIndexSkipsFailedTxs(t *testing.T) {
	chain := newFakeChain()
	c := newTestIndexer(t, chain)

	chain.latest = 1
	chain.blocks[1] = &coretypes.ResultBlockResults{
		Height: 1,
		TxsResults: []*abci.ExecTxResult{
			{Code: 7, Events: types.EncodeEvents(submitted(1))},
			{Code: 0, Events: types.EncodeEvents(submitted(2))},
		},
		FinalizeBlockEvents: types.EncodeEvents([]types.Event{
			&types.EventProposalRejected{Proposal: 2, Reason: types.RejectReasonTimeout},
		}),
	}
	require.NoError(t, c.Sync(context.Background()))

	_, err := c.getProposalById(1)
	assert.Error(t, err)
	p, err := c.getProposalById(2)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalStateRejected.String(), p.State)
	assert.Equal(t, types.RejectReasonTimeout, p.RejectReason)
}

func TestIndexResumesFromStoredHeight(t *testing.T) {
	chain := newFakeChain()
	path := filepath.Join(t.TempDir(), "indexer.db")
	db, err := OpenDB(path)
	require.NoError(t, err)
	c, err := NewChainIndexer(cmtlog.NewNopLogger(), db, chain)
	require.NoError(t, err)

	chain.addBlock(&types.EventTransfer{From: proposer, To: voterA, Amount: 3})
	chain.addBlock()
	require.NoError(t, c.Sync(context.Background()))
	require.NoError(t, c.Close())

	db, err = OpenDB(path)
	require.NoError(t, err)
	c, err = NewChainIndexer(cmtlog.NewNopLogger(), db, chain)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, int64(3), c.Height)

	h, err := c.indexedHeight()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h)

	transfers, total, err := c.getTransfers(voterA.Hex(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	assert.Equal(t, uint64(3), transfers[0].Amount)
}

func TestIndexCommittee(t *testing.T) {
	chain := newFakeChain()
	c := newTestIndexer(t, chain)

	chain.addBlock(
		&types.EventCommittee{Member: voterA, Added: true, Version: 1},
		&types.EventCommittee{Member: voterB, Added: true, Version: 2},
	)
	chain.addBlock(&types.EventCommittee{Member: voterA, Added: false, Version: 3})
	require.NoError(t, c.Sync(context.Background()))

	members, err := c.getCommittee()
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, voterB.Hex(), members[0].Address)
}

type failingChain struct {
	*fakeChain
	failAt int64
}

func (f *failingChain) BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error) {
	if *height == f.failAt {
		return nil, errors.New("unavailable")
	}
	return f.fakeChain.BlockResults(ctx, height)
}

func TestSyncStopsAtFailingBlock(t *testing.T) {
	chain := &failingChain{fakeChain: newFakeChain(), failAt: 2}
	c := newTestIndexer(t, chain)

	chain.addBlock(submitted(1)...)
	chain.addBlock(submitted(2)...)
	assert.Error(t, c.Sync(context.Background()))
	assert.Equal(t, int64(2), c.Height)

	chain.failAt = 0
	require.NoError(t, c.Sync(context.Background()))
	assert.Equal(t, int64(3), c.Height)
	_, err := c.getProposalById(2)
	assert.NoError(t, err)
}
