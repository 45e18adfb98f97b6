package loanpool

import (
	"github.com/calehh/loanpool-app/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// PoolAccount is the account that holds the community funds and loan escrow.
func PoolAccount() common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(types.PoolPalletID)))
}

// Keeper applies loan pool operations to a Backend. It holds no chain state of
// its own; every call reads and writes through the Backend it is given.
type Keeper struct {
	logger  log.Logger
	params  types.Params
	origins Origins
	pool    common.Address
}

func NewKeeper(logger log.Logger, params types.Params, origins Origins) *Keeper {
	return &Keeper{
		logger:  logger.With("module", "loanpool"),
		params:  params,
		origins: origins,
		pool:    PoolAccount(),
	}
}

func (k *Keeper) Params() types.Params { return k.params }

func (k *Keeper) Pool() common.Address { return k.pool }

// atomic runs fn inside a journal snapshot. On error every mutation fn made is
// reverted and its events are dropped.
func (k *Keeper) atomic(st Backend, fn func() ([]types.Event, error)) ([]types.Event, error) {
	snap := st.Snapshot()
	events, err := fn()
	if err != nil {
		st.RevertToSnapshot(snap)
		return nil, err
	}
	return events, nil
}

func (k *Keeper) Get(st Store, id uint64) (*types.Proposal, error) {
	return k.loadProposal(st, id)
}

func (k *Keeper) loadProposal(st Store, id uint64) (*types.Proposal, error) {
	p, err := st.GetProposal(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.Wrapf(types.ErrProposalNotFound, "proposal %d", id)
	}
	return p, nil
}

// Transfer moves free balance between two accounts.
func (k *Keeper) Transfer(st Backend, from, to common.Address, amount uint64) ([]types.Event, error) {
	return k.atomic(st, func() ([]types.Event, error) {
		if err := st.Transfer(from, to, amount); err != nil {
			return nil, err
		}
		return []types.Event{&types.EventTransfer{From: from, To: to, Amount: amount}}, nil
	})
}
