package handler

import (
	"github.com/calehh/loanpool-app/loanpool"
	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/tx"
	"github.com/calehh/loanpool-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

func NewSubmitTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "submitTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.SubmitTx) ([]types.Event, error) {
			_, events, err := k.Submit(st, sender, stx.Amount, stx.Milestones)
			return events, err
		})
}

func NewApproveTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "approveTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.ProposalTx) ([]types.Event, error) {
			return k.Approve(st, sender, stx.Proposal)
		})
}

func NewRejectTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "rejectTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.ProposalTx) ([]types.Event, error) {
			return k.Reject(st, sender, stx.Proposal)
		})
}

func NewDeleteTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "deleteTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.ProposalTx) ([]types.Event, error) {
			return k.Delete(st, sender, stx.Proposal)
		})
}

func NewWithdrawTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "withdrawTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.ProposalTx) ([]types.Event, error) {
			return k.Withdraw(st, sender, stx.Proposal)
		})
}

func NewTransferTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "transferTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.TransferTx) ([]types.Event, error) {
			return k.Transfer(st, sender, stx.To, stx.Amount)
		})
}
