package loanpool

import (
	"github.com/calehh/loanpool-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// BondAmount returns the bond for a loan of the given size: the configured
// permill share, raised to the minimum and capped by the maximum when set.
// The share rounds to the nearest unit, halves rounding down.
func (k *Keeper) BondAmount(amount uint64) uint64 {
	v := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(uint64(k.params.ProposalBondPermill)))
	rem := new(uint256.Int)
	v.DivMod(v, uint256.NewInt(types.Permill), rem)
	if rem.Uint64()*2 > types.Permill {
		v.AddUint64(v, 1)
	}
	bond := v.Uint64()
	if bond < k.params.ProposalBondMinimum {
		bond = k.params.ProposalBondMinimum
	}
	if k.params.ProposalBondMaximum != 0 && bond > k.params.ProposalBondMaximum {
		bond = k.params.ProposalBondMaximum
	}
	return bond
}

func (k *Keeper) reserveBond(st Backend, owner common.Address, proposal uint64, amount uint64) (bond *types.Bond, event types.Event, err error) {
	if err = st.Reserve(owner, amount); err != nil {
		return nil, nil, errors.Wrapf(err, "reserve bond of %d", amount)
	}
	id, err := st.NextBondID()
	if err != nil {
		return nil, nil, err
	}
	bond = &types.Bond{
		Id:       id,
		Owner:    owner,
		Amount:   amount,
		Proposal: proposal,
		State:    types.BondStateHeld,
	}
	if err = st.SetBond(bond); err != nil {
		return nil, nil, err
	}
	event = &types.EventBond{
		Type:     types.EventBondReservedType,
		Bond:     id,
		Proposal: proposal,
		Owner:    owner,
		Amount:   amount,
	}
	return bond, event, nil
}

func (k *Keeper) heldBond(st Store, id uint64) (*types.Bond, error) {
	bond, err := st.GetBond(id)
	if err != nil {
		return nil, err
	}
	if bond == nil {
		return nil, errors.Wrapf(types.ErrBondNotFound, "bond %d", id)
	}
	if bond.State != types.BondStateHeld {
		return nil, errors.Wrapf(types.ErrBondAlreadySettled, "bond %d", id)
	}
	return bond, nil
}

func (k *Keeper) releaseBond(st Backend, id uint64) (event types.Event, err error) {
	bond, err := k.heldBond(st, id)
	if err != nil {
		return nil, err
	}
	if _, err = st.Unreserve(bond.Owner, bond.Amount); err != nil {
		return nil, err
	}
	bond.State = types.BondStateReleased
	if err = st.SetBond(bond); err != nil {
		return nil, err
	}
	return &types.EventBond{
		Type:     types.EventBondReleasedType,
		Bond:     bond.Id,
		Proposal: bond.Proposal,
		Owner:    bond.Owner,
		Amount:   bond.Amount,
	}, nil
}

// slashBond burns the held bond from its owner and credits the same amount to the pool.
func (k *Keeper) slashBond(st Backend, id uint64) (event types.Event, err error) {
	bond, err := k.heldBond(st, id)
	if err != nil {
		return nil, err
	}
	slashed, err := st.SlashReserved(bond.Owner, bond.Amount)
	if err != nil {
		return nil, err
	}
	if err = st.Deposit(k.pool, slashed); err != nil {
		return nil, err
	}
	bond.State = types.BondStateSlashed
	if err = st.SetBond(bond); err != nil {
		return nil, err
	}
	return &types.EventBond{
		Type:     types.EventBondSlashedType,
		Bond:     bond.Id,
		Proposal: bond.Proposal,
		Owner:    bond.Owner,
		Amount:   slashed,
	}, nil
}

func (k *Keeper) ReleaseBond(st Backend, id uint64) ([]types.Event, error) {
	return k.atomic(st, func() ([]types.Event, error) {
		event, err := k.releaseBond(st, id)
		if err != nil {
			return nil, err
		}
		return []types.Event{event}, nil
	})
}

func (k *Keeper) SlashBond(st Backend, id uint64) ([]types.Event, error) {
	return k.atomic(st, func() ([]types.Event, error) {
		event, err := k.slashBond(st, id)
		if err != nil {
			return nil, err
		}
		return []types.Event{event}, nil
	})
}
