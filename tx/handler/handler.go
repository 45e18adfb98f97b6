package handler

import (
	"context"

	"github.com/calehh/loanpool-app/loanpool"
	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/tx"
	"github.com/calehh/loanpool-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
)

var _ loanpool.Backend = (*state.State)(nil)

type TxHandler interface {
	Check(ctx context.Context, st *state.State, btx *tx.LoanTx) (res *abcitypes.ResponseCheckTx, err error)
	Process(ctx context.Context, st *state.State, btx *tx.LoanTx) (res *abcitypes.ExecTxResult, err error)
}

type applyFunc[Tx any] func(k *loanpool.Keeper, st *state.State, sender common.Address, payload *Tx) ([]types.Event, error)

// loanTxHandler runs one keeper operation for a transaction type. A keeper
// failure still consumes the nonce and is reported through the result code;
// only envelope problems are returned as errors.
type loanTxHandler[Tx any] struct {
	logger cmtlog.Logger
	keeper *loanpool.Keeper
	apply  applyFunc[Tx]
}

func newLoanTxHandler[Tx any](logger cmtlog.Logger, keeper *loanpool.Keeper, module string, apply applyFunc[Tx]) *loanTxHandler[Tx] {
	return &loanTxHandler[Tx]{
		logger: logger.With("module", module),
		keeper: keeper,
		apply:  apply,
	}
}

func (h *loanTxHandler[Tx]) handle(ctx context.Context, st *state.State, btx *tx.LoanTx, checkOnly bool) (res *abcitypes.ExecTxResult, err error) {
	payload, err := tx.Payload[Tx](btx)
	if err != nil {
		return nil, err
	}
	if !checkOnly {
		if err = st.IncNonce(btx); err != nil {
			return nil, err
		}
	}
	res = &abcitypes.ExecTxResult{}
	events, err1 := h.apply(h.keeper, st, btx.Sender, payload)
	if err1 != nil {
		h.logger.Info("apply tx fail", "type", btx.Type.String(), "sender", btx.Sender.Hex(), "err", err1)
		res.Code = types.ABCICode(err1)
		res.Log = err1.Error()
		return res, nil
	}
	res.Events = types.EncodeEvents(events)
	return res, nil
}

func (h *loanTxHandler[Tx]) Check(ctx context.Context, st *state.State, btx *tx.LoanTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	result, err1 := h.handle(ctx, st, btx, true)
	if err1 != nil {
		h.logger.Info("CheckTx fail", "type", btx.Type.String(), "err", err1)
		res.Code = types.CodeUnknown
		res.Log = err1.Error()
		return
	}
	res.Code = result.Code
	res.Log = result.Log
	return
}

func (h *loanTxHandler[Tx]) Process(ctx context.Context, st *state.State, btx *tx.LoanTx) (res *abcitypes.ExecTxResult, err error) {
	return h.handle(ctx, st, btx, false)
}

// NewTxHandlers returns the handler of every loan pool transaction type.
func NewTxHandlers(logger cmtlog.Logger, keeper *loanpool.Keeper) map[tx.LoanTxType]TxHandler {
	return map[tx.LoanTxType]TxHandler{
		tx.LoanTxTypeSubmit:          NewSubmitTxHandler(logger, keeper),
		tx.LoanTxTypeApprove:         NewApproveTxHandler(logger, keeper),
		tx.LoanTxTypeReject:          NewRejectTxHandler(logger, keeper),
		tx.LoanTxTypeDelete:          NewDeleteTxHandler(logger, keeper),
		tx.LoanTxTypeWithdraw:        NewWithdrawTxHandler(logger, keeper),
		tx.LoanTxTypeVote:            NewVoteTxHandler(logger, keeper),
		tx.LoanTxTypeCloseVote:       NewCloseVoteTxHandler(logger, keeper),
		tx.LoanTxTypeAddMember:       NewAddMemberTxHandler(logger, keeper),
		tx.LoanTxTypeRemoveMember:    NewRemoveMemberTxHandler(logger, keeper),
		tx.LoanTxTypeSubmitMilestone: NewSubmitMilestoneTxHandler(logger, keeper),
		tx.LoanTxTypeVerifyMilestone: NewVerifyMilestoneTxHandler(logger, keeper),
		tx.LoanTxTypeForfeit:         NewForfeitTxHandler(logger, keeper),
		tx.LoanTxTypeTransfer:        NewTransferTxHandler(logger, keeper),
	}
}
