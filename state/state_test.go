package state

import (
	"testing"

	"github.com/calehh/loanpool-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func newTestDB(t *testing.T) *StateDB {
	db, err := NewMemStateDB(cmtlog.NewNopLogger())
	require.NoError(t, err)
	return db
}

func commit(t *testing.T, db *StateDB, st *State) {
	_, err := st.Update()
	require.NoError(t, err)
	_, err = db.SetState(st)
	require.NoError(t, err)
}

func TestLedger(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	require.NoError(t, st.Deposit(alice, 1000))

	require.ErrorIs(t, st.Reserve(alice, 1001), types.ErrInsufficientBalance)
	require.NoError(t, st.Reserve(alice, 400))

	free, err := st.FreeBalance(alice)
	require.NoError(t, err)
	reserved, err := st.ReservedBalance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), free)
	assert.Equal(t, uint64(400), reserved)

	moved, err := st.Unreserve(alice, 500)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), moved)

	require.NoError(t, st.Reserve(alice, 100))
	slashed, err := st.SlashReserved(alice, 300)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), slashed)

	require.ErrorIs(t, st.Transfer(alice, bob, 901), types.ErrInsufficientBalance)
	require.NoError(t, st.Transfer(alice, bob, 900))
	free, _ = st.FreeBalance(bob)
	assert.Equal(t, uint64(900), free)

	require.NoError(t, st.Deposit(bob, ^uint64(0)-900))
	require.ErrorIs(t, st.Deposit(bob, 1), types.ErrOverflow)
}

func TestRevertToSnapshot(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	require.NoError(t, st.Deposit(alice, 100))

	snap := st.Snapshot()
	require.NoError(t, st.Transfer(alice, bob, 60))
	id, err := st.NextProposalID()
	require.NoError(t, err)
	require.NoError(t, st.SetProposal(&types.Proposal{Id: id, Proposer: alice}))
	st.RevertToSnapshot(snap)

	free, _ := st.FreeBalance(alice)
	assert.Equal(t, uint64(100), free)
	acnt, err := st.GetAccount(bob)
	require.NoError(t, err)
	assert.Nil(t, acnt)
	p, err := st.GetProposal(id)
	require.NoError(t, err)
	assert.Nil(t, p)

	id2, err := st.NextProposalID()
	require.NoError(t, err)
	assert.Equal(t, id, id2)
}

func TestCommitAndQuery(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	st.SetChainId("loanpool-test")
	require.NoError(t, st.Deposit(alice, 500))
	for i := 0; i < 3; i++ {
		id, err := st.NextProposalID()
		require.NoError(t, err)
		require.NoError(t, st.SetProposal(&types.Proposal{Id: id, Proposer: alice, Amount: id * 10}))
	}
	commit(t, db, st)

	acnt, _, err := db.GetAccount(alice)
	require.NoError(t, err)
	require.NotNil(t, acnt)
	assert.Equal(t, uint64(500), acnt.Free)

	p, _, err := db.GetProposal(2)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, uint64(20), p.Amount)

	ps, _, err := db.ListProposals(0, 2)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, uint64(3), ps[0].Id)
	assert.Equal(t, uint64(2), ps[1].Id)

	ps, _, err = db.ListProposals(1, 2)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, uint64(1), ps[0].Id)

	next := db.NewState()
	assert.Equal(t, db.Header().Height+1, next.BlockHeight())
	require.NoError(t, next.DeleteProposal(2))
	commit(t, db, next)

	p, _, err = db.GetProposal(2)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestUpdateIsDeterministic(t *testing.T) {
	write := func(st *State) {
		require.NoError(t, st.Deposit(bob, 7))
		require.NoError(t, st.Deposit(alice, 3))
		require.NoError(t, st.SetCommittee(&types.Committee{Members: []common.Address{alice}, Version: 1}))
	}
	a, b := newTestDB(t), newTestDB(t)
	sa, sb := a.NewState(), b.NewState()
	write(sa)
	write(sb)
	ha, err := sa.Update()
	require.NoError(t, err)
	hb, err := sb.Update()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestMintReceipt(t *testing.T) {
	st := newTestDB(t).NewState()
	require.NoError(t, st.MintReceipt(alice, 1, 0))
	require.ErrorIs(t, st.MintReceipt(bob, 1, 0), types.ErrReceiptAlreadyMinted)
	require.NoError(t, st.MintReceipt(bob, 1, 1))

	owner, ok, err := st.ReceiptOwner(1, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, alice, owner)
}

func TestCloneIsolation(t *testing.T) {
	st := newTestDB(t).NewState()
	require.NoError(t, st.Deposit(alice, 10))
	c := st.Clone()
	require.NoError(t, c.Deposit(alice, 5))

	free, _ := st.FreeBalance(alice)
	assert.Equal(t, uint64(10), free)
	free, _ = c.FreeBalance(alice)
	assert.Equal(t, uint64(15), free)
}

func TestPrefixEndBytes(t *testing.T) {
	assert.Equal(t, []byte("q"), PrefixEndBytes([]byte("p")))
	assert.Equal(t, []byte{0x01}, PrefixEndBytes([]byte{0x00, 0xff}))
	assert.Nil(t, PrefixEndBytes([]byte{0xff}))
	assert.Nil(t, PrefixEndBytes(nil))
}

func TestOngoingSet(t *testing.T) {
	db := newTestDB(t)
	st := db.NewState()
	for _, id := range []uint64{3, 1, 12} {
		require.NoError(t, st.AddOngoing(id))
	}
	require.NoError(t, st.AddOngoing(3))
	ids, err := st.OngoingProposals()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 12}, ids)
	commit(t, db, st)

	st = db.NewState()
	n, err := st.OngoingCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	snap := st.Snapshot()
	require.NoError(t, st.RemoveOngoing(3))
	require.NoError(t, st.RemoveOngoing(7))
	require.NoError(t, st.AddOngoing(20))
	ids, err = st.OngoingProposals()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 12, 20}, ids)
	n, _ = st.OngoingCount()
	assert.Equal(t, uint64(3), n)

	st.RevertToSnapshot(snap)
	ids, err = st.OngoingProposals()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3, 12}, ids)

	require.NoError(t, st.RemoveOngoing(1))
	commit(t, db, st)
	ids, err = db.NewState().OngoingProposals()
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 12}, ids)
}
