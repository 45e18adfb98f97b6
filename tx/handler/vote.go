package handler

import (
	"github.com/calehh/loanpool-app/loanpool"
	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/tx"
	"github.com/calehh/loanpool-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

func NewVoteTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "voteTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.VoteTx) ([]types.Event, error) {
			return k.CastVote(st, sender, stx.Proposal, stx.Aye)
		})
}

// NewCloseVoteTxHandler lets any account settle an expired vote.
func NewCloseVoteTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "closeVoteTx",
		func(k *loanpool.Keeper, st *state.State, _ common.Address, stx *tx.ProposalTx) ([]types.Event, error) {
			return k.CloseVote(st, stx.Proposal)
		})
}

func NewAddMemberTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "addMemberTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.CommitteeTx) ([]types.Event, error) {
			return k.AddMember(st, sender, stx.Member)
		})
}

func NewRemoveMemberTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "removeMemberTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.CommitteeTx) ([]types.Event, error) {
			return k.RemoveMember(st, sender, stx.Member)
		})
}
