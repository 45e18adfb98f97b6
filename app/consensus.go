package app

import (
	"context"
	"errors"
	"time"

	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/tx"
	"github.com/calehh/loanpool-app/tx/handler"
	"github.com/calehh/loanpool-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
)

var (
	ErrNotInitialized      = errors.New("loan pool not initialized")
	ErrUnsupportedTx       = errors.New("unsupported tx")
	ErrUnexpectedTxProcess = errors.New("unexpected tx process")
)

// parseTx decodes raw and verifies it against st, so nonces consumed by
// earlier transactions of the same block are taken into account.
func (app *LoanPoolApp) parseTx(st *state.State, txDat []byte, allowNonceGap bool) (btx *tx.LoanTx, h handler.TxHandler, err error) {
	if app.keeper == nil {
		return nil, nil, ErrNotInitialized
	}
	btx, err = tx.UnmarshalLoanTx(txDat)
	if err != nil {
		return
	}
	if btx == nil {
		return nil, nil, tx.ErrInvalidTx
	}
	h, ok := app.txHdlrs[btx.Type]
	if !ok {
		return nil, nil, ErrUnsupportedTx
	}
	_, err = st.Verify(btx, allowNonceGap)
	return
}

func (app *LoanPoolApp) CheckTx(ctx context.Context, check *abcitypes.RequestCheckTx) (res *abcitypes.ResponseCheckTx, err error) {
	res = &abcitypes.ResponseCheckTx{Code: 0}
	st := app.db.NewState()
	btx, h, err := app.parseTx(st, check.Tx, true)
	if err != nil {
		app.logger.Info("check tx, parse fail", "err", err)
		res.Code = types.CodeUnknown
		res.Log = err.Error()
		return res, nil
	}
	res, err = h.Check(ctx, st, btx)
	if err != nil {
		app.logger.Error("check tx fail", "type", btx.Type.String(), "err", err)
		return &abcitypes.ResponseCheckTx{Code: types.CodeUnknown, Log: err.Error()}, nil
	}
	return res, nil
}

// PrepareProposal keeps the transactions that execute cleanly on top of the
// ones already selected.
func (app *LoanPoolApp) PrepareProposal(ctx context.Context, proposal *abcitypes.RequestPrepareProposal) (res *abcitypes.ResponsePrepareProposal, err error) {
	st := app.db.NewState()
	var size int64
	txs := make([][]byte, 0, len(proposal.Txs))
	for _, stx := range proposal.Txs {
		if proposal.MaxTxBytes > 0 && size+int64(len(stx)) > proposal.MaxTxBytes {
			break
		}
		stTmp := st.Clone()
		btx, h, err := app.parseTx(stTmp, stx, false)
		if err != nil {
			app.logger.Info("prepare tx, parse fail", "err", err)
			continue
		}
		result, err := h.Process(ctx, stTmp, btx)
		if err != nil {
			app.logger.Info("prepare tx fail", "type", btx.Type.String(), "err", err)
			continue
		}
		if result.Code != 0 {
			app.logger.Info("prepare tx fail", "type", btx.Type.String(), "code", result.Code, "log", result.Log)
			continue
		}
		st = stTmp
		size += int64(len(stx))
		txs = append(txs, stx)
	}
	app.logger.Info("PrepareProposal", "height", proposal.Height, "txs", len(txs), "dropped", len(proposal.Txs)-len(txs))
	return &abcitypes.ResponsePrepareProposal{Txs: txs}, nil
}

// ProcessProposal rejects blocks carrying transactions that cannot be decoded
// or authenticated. Transactions failing inside the loan pool are valid block
// content: they consume their nonce and report a result code.
func (app *LoanPoolApp) ProcessProposal(ctx context.Context, proposal *abcitypes.RequestProcessProposal) (res *abcitypes.ResponseProcessProposal, err error) {
	res = &abcitypes.ResponseProcessProposal{Status: abcitypes.ResponseProcessProposal_REJECT}
	st := app.db.NewState()
	for _, stx := range proposal.Txs {
		btx, h, err := app.parseTx(st, stx, false)
		if err != nil {
			app.logger.Error("process proposal, parse fail", "height", proposal.Height, "err", err)
			return res, nil
		}
		if _, err = h.Process(ctx, st, btx); err != nil {
			app.logger.Error("process proposal, tx fail", "height", proposal.Height, "type", btx.Type.String(), "err", err)
			return res, nil
		}
	}
	res.Status = abcitypes.ResponseProcessProposal_ACCEPT
	return res, nil
}

func (app *LoanPoolApp) finalize(ctx context.Context, st *state.State, txs [][]byte) (res []*abcitypes.ExecTxResult) {
	res = make([]*abcitypes.ExecTxResult, len(txs))
	for i, stx := range txs {
		btx, h, err := app.parseTx(st, stx, false)
		if err != nil {
			app.logger.Error("unexpected tx, parse fail", "err", err)
			res[i] = &abcitypes.ExecTxResult{Code: types.CodeUnknown, Log: err.Error()}
			continue
		}
		result, err := h.Process(ctx, st, btx)
		if err != nil {
			app.logger.Error("unexpected process tx fail", "type", btx.Type.String(), "err", err)
			res[i] = &abcitypes.ExecTxResult{Code: types.CodeUnknown, Log: ErrUnexpectedTxProcess.Error()}
			continue
		}
		recordTx(btx.Type, result)
		res[i] = result
	}
	return
}

func (app *LoanPoolApp) FinalizeBlock(ctx context.Context, req *abcitypes.RequestFinalizeBlock) (*abcitypes.ResponseFinalizeBlock, error) {
	defer recordFinalize(time.Now())
	if app.keeper == nil {
		return nil, ErrNotInitialized
	}
	st := app.db.NewState()
	if err := st.SetHeight(uint64(req.Height)); err != nil {
		app.logger.Error("FinalizeBlock height mismatch", "height", req.Height, "state", st.Header().Height)
		return nil, err
	}
	res := app.finalize(ctx, st, req.Txs)

	var events []abcitypes.Event
	if app.keeper.Params().AutoCloseExpiredVotes {
		closed, err := app.keeper.CloseExpired(st)
		if err != nil {
			app.logger.Error("close expired votes fail", "height", req.Height, "err", err)
			return nil, err
		}
		events = types.EncodeEvents(closed)
		for _, ev := range events {
			recordEvent(ev)
		}
	}

	h, err := st.Update()
	if err != nil {
		app.logger.Error("state update hash fail", "err", err)
		return nil, err
	}
	app.st = st
	app.logger.Info("FinalizeBlock", "height", req.Height, "txs", len(req.Txs), "hash", h.Hex())
	return &abcitypes.ResponseFinalizeBlock{
		TxResults: res,
		AppHash:   h.Bytes(),
		Events:    events,
	}, nil
}

func (app *LoanPoolApp) Commit(ctx context.Context, commit *abcitypes.RequestCommit) (*abcitypes.ResponseCommit, error) {
	if app.st == nil {
		return &abcitypes.ResponseCommit{}, nil
	}
	_, err := app.db.SetState(app.st)
	if err != nil {
		return nil, err
	}
	recordCommit(app.st)
	app.st = nil
	app.logger.Info("Commit")
	return &abcitypes.ResponseCommit{}, nil
}
