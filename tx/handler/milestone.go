package handler

import (
	"github.com/calehh/loanpool-app/loanpool"
	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/tx"
	"github.com/calehh/loanpool-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

func NewSubmitMilestoneTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "submitMilestoneTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.MilestoneTx) ([]types.Event, error) {
			return k.SubmitMilestone(st, sender, stx.Proposal, stx.Index)
		})
}

func NewVerifyMilestoneTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "verifyMilestoneTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.MilestoneTx) ([]types.Event, error) {
			return k.VerifyAndPay(st, sender, stx.Proposal, stx.Index)
		})
}

func NewForfeitTxHandler(logger cmtlog.Logger, keeper *loanpool.Keeper) TxHandler {
	return newLoanTxHandler(logger, keeper, "forfeitTx",
		func(k *loanpool.Keeper, st *state.State, sender common.Address, stx *tx.ProposalTx) ([]types.Event, error) {
			return k.Forfeit(st, sender, stx.Proposal)
		})
}
