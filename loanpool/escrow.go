package loanpool

import (
	"github.com/calehh/loanpool-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// fundEscrow takes custody of the full loan amount by reserving it on the pool
// account and moves p from Approved to Escrowed.
func (k *Keeper) fundEscrow(st Backend, p *types.Proposal) (types.Event, error) {
	if !p.State.CanTransition(types.ProposalStateEscrowed) {
		return nil, errors.Wrapf(types.ErrInvalidStateTransition, "proposal %d is %s", p.Id, p.State)
	}
	if err := st.Reserve(k.pool, p.Amount); err != nil {
		return nil, errors.Wrapf(err, "fund escrow of proposal %d", p.Id)
	}
	if err := st.SetEscrow(&types.Escrow{Proposal: p.Id, Funded: p.Amount}); err != nil {
		return nil, err
	}
	p.State = types.ProposalStateEscrowed
	return &types.EventEscrow{Type: types.EventEscrowFundedType, Proposal: p.Id, Amount: p.Amount}, nil
}

func (k *Keeper) loadEscrow(st Store, id uint64) (*types.Escrow, error) {
	e, err := st.GetEscrow(id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, errors.Wrapf(types.ErrEscrowNotFound, "proposal %d", id)
	}
	return e, nil
}

func isRunning(p *types.Proposal) bool {
	return p.State == types.ProposalStateEscrowed || p.State == types.ProposalStatePartiallyPaid
}

// SubmitMilestone marks the next pending milestone as delivered by the proposer.
func (k *Keeper) SubmitMilestone(st Backend, caller common.Address, id uint64, index uint32) ([]types.Event, error) {
	return k.atomic(st, func() ([]types.Event, error) {
		p, err := k.loadProposal(st, id)
		if err != nil {
			return nil, err
		}
		if p.Proposer != caller {
			return nil, types.ErrNotProposer
		}
		if !isRunning(p) {
			return nil, errors.Wrapf(types.ErrInvalidStateTransition, "proposal %d is %s", id, p.State)
		}
		if int(index) >= len(p.Milestones) {
			return nil, errors.Wrapf(types.ErrMilestoneNotFound, "milestone %d of proposal %d", index, id)
		}
		if next, ok := p.FirstPending(); !ok || next != int(index) {
			return nil, errors.Wrapf(types.ErrOutOfOrderMilestone, "milestone %d of proposal %d", index, id)
		}
		m := &p.Milestones[index]
		m.State = types.MilestoneStateSubmitted
		if err = st.SetProposal(p); err != nil {
			return nil, err
		}
		return []types.Event{&types.EventMilestone{
			Type:        types.EventMilestoneSubmittedType,
			Proposal:    id,
			Index:       index,
			Amount:      m.Amount,
			Beneficiary: p.Proposer,
		}}, nil
	})
}

// VerifyAndPay approves a submitted milestone, pays it out of escrow and mints
// the completion receipt. Paying the last milestone completes the loan and
// returns any residual escrow to the pool.
func (k *Keeper) VerifyAndPay(st Backend, caller common.Address, id uint64, index uint32) ([]types.Event, error) {
	if !ensure(k.origins.Verify, caller) {
		return nil, types.ErrBadOrigin
	}
	return k.atomic(st, func() (events []types.Event, err error) {
		p, err := k.loadProposal(st, id)
		if err != nil {
			return nil, err
		}
		if !isRunning(p) {
			return nil, errors.Wrapf(types.ErrInvalidStateTransition, "proposal %d is %s", id, p.State)
		}
		if int(index) >= len(p.Milestones) {
			return nil, errors.Wrapf(types.ErrMilestoneNotFound, "milestone %d of proposal %d", index, id)
		}
		if next, ok := p.NextPayable(); !ok || next != int(index) {
			return nil, errors.Wrapf(types.ErrOutOfOrderMilestone, "milestone %d of proposal %d", index, id)
		}
		m := &p.Milestones[index]
		if m.State != types.MilestoneStateSubmitted {
			return nil, errors.Wrapf(types.ErrMilestoneNotSubmitted, "milestone %d of proposal %d is %s", index, id, m.State)
		}
		escrow, err := k.loadEscrow(st, id)
		if err != nil {
			return nil, err
		}
		if escrow.Remaining() < m.Amount {
			return nil, errors.Wrapf(types.ErrInsufficientEscrow, "remaining %d, milestone %d", escrow.Remaining(), m.Amount)
		}
		m.State = types.MilestoneStateApproved

		unreserved, err := st.Unreserve(k.pool, m.Amount)
		if err != nil {
			return nil, err
		}
		if unreserved < m.Amount {
			return nil, errors.Wrapf(types.ErrInsufficientEscrow, "pool holds %d reserved", unreserved)
		}
		if err = st.Transfer(k.pool, p.Proposer, m.Amount); err != nil {
			return nil, err
		}
		escrow.Paid += m.Amount
		if err = st.MintReceipt(p.Proposer, id, index); err != nil {
			return nil, errors.Wrapf(err, "mint receipt %d/%d", id, index)
		}
		m.State = types.MilestoneStatePaid
		events = append(events,
			&types.EventMilestone{
				Type:        types.EventMilestonePaidType,
				Proposal:    id,
				Index:       index,
				Amount:      m.Amount,
				Beneficiary: p.Proposer,
			},
			&types.EventReceiptMinted{Owner: p.Proposer, Collection: id, Item: index},
		)

		if _, more := p.NextPayable(); more {
			if p.State == types.ProposalStateEscrowed {
				p.State = types.ProposalStatePartiallyPaid
			}
			if err = st.SetEscrow(escrow); err != nil {
				return nil, err
			}
		} else {
			completed, err := k.complete(st, p, escrow)
			if err != nil {
				return nil, err
			}
			events = append(events, completed)
		}
		if err = st.SetProposal(p); err != nil {
			return nil, err
		}
		return events, nil
	})
}

func (k *Keeper) complete(st Backend, p *types.Proposal, escrow *types.Escrow) (types.Event, error) {
	if !p.State.CanTransition(types.ProposalStateCompleted) {
		return nil, errors.Wrapf(types.ErrInvalidStateTransition, "proposal %d is %s", p.Id, p.State)
	}
	residual, err := st.Unreserve(k.pool, escrow.Remaining())
	if err != nil {
		return nil, err
	}
	if err = st.DeleteEscrow(p.Id); err != nil {
		return nil, err
	}
	if err = st.RemoveOngoing(p.Id); err != nil {
		return nil, err
	}
	p.State = types.ProposalStateCompleted
	k.logger.Info("loan completed", "id", p.Id, "residual", residual)
	return &types.EventEscrow{Type: types.EventProposalCompletedType, Proposal: p.Id, Amount: residual}, nil
}

// Forfeit cancels a running loan: the unpaid escrow returns to the pool and
// every milestone not yet paid is voided. The record is kept.
func (k *Keeper) Forfeit(st Backend, caller common.Address, id uint64) ([]types.Event, error) {
	if !ensure(k.origins.Delete, caller) {
		return nil, types.ErrBadOrigin
	}
	return k.atomic(st, func() ([]types.Event, error) {
		p, err := k.loadProposal(st, id)
		if err != nil {
			return nil, err
		}
		events, err := k.forfeit(st, p)
		if err != nil {
			return nil, err
		}
		return events, st.SetProposal(p)
	})
}

func (k *Keeper) forfeit(st Backend, p *types.Proposal) ([]types.Event, error) {
	if !p.State.CanTransition(types.ProposalStateForfeited) {
		return nil, errors.Wrapf(types.ErrInvalidStateTransition, "proposal %d is %s", p.Id, p.State)
	}
	escrow, err := k.loadEscrow(st, p.Id)
	if err != nil {
		return nil, err
	}
	returned, err := st.Unreserve(k.pool, escrow.Remaining())
	if err != nil {
		return nil, err
	}
	for i := range p.Milestones {
		if p.Milestones[i].State.CanTransition(types.MilestoneStateVoided) {
			p.Milestones[i].State = types.MilestoneStateVoided
		}
	}
	if err = st.DeleteEscrow(p.Id); err != nil {
		return nil, err
	}
	if err = st.RemoveOngoing(p.Id); err != nil {
		return nil, err
	}
	p.State = types.ProposalStateForfeited
	k.logger.Info("escrow forfeited", "id", p.Id, "returned", returned)
	return []types.Event{&types.EventEscrow{Type: types.EventEscrowForfeitedType, Proposal: p.Id, Amount: returned}}, nil
}
