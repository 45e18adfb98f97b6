package app

import (
	"context"
	"path/filepath"

	"github.com/calehh/loanpool-app/config"
	"github.com/calehh/loanpool-app/loanpool"
	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/tx"
	"github.com/calehh/loanpool-app/tx/handler"
	"github.com/calehh/loanpool-app/types"
	abcitypes "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const AppVersion uint64 = 1

var _ abcitypes.Application = &LoanPoolApp{}

type LoanPoolApp struct {
	cfg    *config.LoanPoolAppConfig
	logger cmtlog.Logger

	db       *state.StateDB
	keeper   *loanpool.Keeper
	txHdlrs  map[tx.LoanTxType]handler.TxHandler
	queriers map[string]Querier

	st *state.State
}

func NewLoanPoolApp(cfg *config.LoanPoolAppConfig, logger cmtlog.Logger) (app *LoanPoolApp, err error) {
	dir := filepath.Join(cfg.Home, "data")
	db, err := state.NewStateDB(dir, logger)
	if err != nil {
		return nil, err
	}
	return newLoanPoolApp(cfg, db, logger)
}

func newLoanPoolApp(cfg *config.LoanPoolAppConfig, db *state.StateDB, logger cmtlog.Logger) (app *LoanPoolApp, err error) {
	logger = logger.With("module", "app")
	app = &LoanPoolApp{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		txHdlrs:  make(map[tx.LoanTxType]handler.TxHandler),
		queriers: make(map[string]Querier),
	}
	gen, _, err := db.GetGenesis()
	if err != nil {
		return nil, errors.Wrap(err, "load genesis from state")
	}
	if gen != nil {
		app.registerTxHandler(gen)
	}
	app.registerQuerier()
	RegisterMetrics()
	committedHeight.Set(float64(db.Header().Height))
	return
}

func (app *LoanPoolApp) Stop() {
	err := app.db.Close()
	if err != nil {
		app.logger.Error("close db fail", "err", err)
	}
	app.logger.Info("loan pool app stopped")
}

// registerTxHandler binds the keeper to the genesis params and authorities.
func (app *LoanPoolApp) registerTxHandler(gen *types.LoanPoolGenesis) {
	app.keeper = loanpool.NewKeeper(app.logger, gen.Params, loanpool.OriginsFromGenesis(gen.Authorities))
	app.txHdlrs = handler.NewTxHandlers(app.logger, app.keeper)
}

func (app *LoanPoolApp) registerQuerier() {
	app.queriers["/accounts/"] = NewAccountQuerier(app.db, app.logger)
	app.queriers["/validators/"] = NewValidatorQuerier(app.db, app.logger)
	app.queriers["/proposals/"] = NewProposalQuerier(app.db, app.logger)
	app.queriers["/escrows/"] = NewEscrowQuerier(app.db, app.logger)
	app.queriers["/committee/"] = NewCommitteeQuerier(app.db, app.logger)
	app.queriers["/params/"] = NewParamsQuerier(app.db, app.logger)
	app.queriers["/pool/"] = NewPoolQuerier(app.db, app.logger)
}

func (app *LoanPoolApp) InitChain(_ context.Context, chain *abcitypes.RequestInitChain) (res *abcitypes.ResponseInitChain, err error) {
	gen, err := types.ParseAppState(chain.AppStateBytes)
	if err != nil {
		app.logger.Error("InitChain parse app state fail", "err", err)
		return nil, err
	}
	st := app.db.NewState()
	st.SetChainId(chain.ChainId)
	if err = initGenesisState(st, gen, chain.Validators); err != nil {
		app.logger.Error("InitChain init state fail", "err", err)
		return nil, err
	}
	_, err = st.Update()
	if err != nil {
		app.logger.Error("InitChain update state fail", "err", err)
		return nil, err
	}
	h, err := app.db.SetState(st)
	if err != nil {
		app.logger.Error("InitChain apply state fail", "err", err)
		return nil, err
	}
	app.registerTxHandler(gen)
	app.logger.Info("InitChain", "chainId", chain.ChainId, "committee", len(gen.Committee), "pool", gen.PoolBalance)
	return &abcitypes.ResponseInitChain{
		AppHash: h.Bytes(),
	}, nil
}

func initGenesisState(st *state.State, gen *types.LoanPoolGenesis, vals []abcitypes.ValidatorUpdate) error {
	if err := st.SetGenesis(gen); err != nil {
		return err
	}
	if err := st.SetValidators(vals); err != nil {
		return err
	}
	for _, b := range gen.Balances {
		if err := st.Deposit(b.Address, b.Amount); err != nil {
			return errors.Wrapf(err, "genesis balance %s", b.Address.Hex())
		}
	}
	if err := st.Deposit(loanpool.PoolAccount(), gen.PoolBalance); err != nil {
		return errors.Wrap(err, "genesis pool balance")
	}
	members := append([]common.Address{}, gen.Committee...)
	return st.SetCommittee(&types.Committee{Members: members})
}

func (app *LoanPoolApp) Info(ctx context.Context, info *abcitypes.RequestInfo) (*abcitypes.ResponseInfo, error) {
	header := app.db.Header()
	return &abcitypes.ResponseInfo{
		Data:             types.ModuleName,
		AppVersion:       AppVersion,
		LastBlockHeight:  int64(header.Height),
		LastBlockAppHash: header.Hash,
	}, nil
}

func (app *LoanPoolApp) ExtendVote(_ context.Context, extend *abcitypes.RequestExtendVote) (*abcitypes.ResponseExtendVote, error) {
	return &abcitypes.ResponseExtendVote{}, nil
}

func (app *LoanPoolApp) VerifyVoteExtension(_ context.Context, verify *abcitypes.RequestVerifyVoteExtension) (*abcitypes.ResponseVerifyVoteExtension, error) {
	return &abcitypes.ResponseVerifyVoteExtension{Status: abcitypes.ResponseVerifyVoteExtension_ACCEPT}, nil
}

func (app *LoanPoolApp) ApplySnapshotChunk(context.Context, *abcitypes.RequestApplySnapshotChunk) (*abcitypes.ResponseApplySnapshotChunk, error) {
	return &abcitypes.ResponseApplySnapshotChunk{}, nil
}

func (app *LoanPoolApp) ListSnapshots(context.Context, *abcitypes.RequestListSnapshots) (*abcitypes.ResponseListSnapshots, error) {
	return &abcitypes.ResponseListSnapshots{}, nil
}

func (app *LoanPoolApp) LoadSnapshotChunk(context.Context, *abcitypes.RequestLoadSnapshotChunk) (*abcitypes.ResponseLoadSnapshotChunk, error) {
	return &abcitypes.ResponseLoadSnapshotChunk{}, nil
}

func (app *LoanPoolApp) OfferSnapshot(context.Context, *abcitypes.RequestOfferSnapshot) (*abcitypes.ResponseOfferSnapshot, error) {
	return &abcitypes.ResponseOfferSnapshot{}, nil
}
