package loanpool

import (
	"github.com/calehh/loanpool-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// Submit registers a loan request split into milestones and reserves the
// proposer's bond. The committee vote opens in the same block.
func (k *Keeper) Submit(st Backend, proposer common.Address, amount uint64, milestones []uint64) (id uint64, events []types.Event, err error) {
	if uint32(len(milestones)) > k.params.MaxMilestonesPerProject {
		return 0, nil, errors.Wrapf(types.ErrTooManyMilestones, "%d milestones, max %d", len(milestones), k.params.MaxMilestonesPerProject)
	}
	sum := new(uint256.Int)
	for i, m := range milestones {
		if m == 0 {
			return 0, nil, errors.Wrapf(types.ErrZeroMilestoneAmount, "milestone %d", i)
		}
		sum.Add(sum, uint256.NewInt(m))
	}
	if len(milestones) == 0 || !sum.IsUint64() || sum.Uint64() != amount {
		return 0, nil, errors.Wrapf(types.ErrAmountMismatch, "milestones sum to %s, requested %d", sum.Dec(), amount)
	}

	events, err = k.atomic(st, func() ([]types.Event, error) {
		ongoing, err := st.OngoingCount()
		if err != nil {
			return nil, err
		}
		if ongoing >= uint64(k.params.MaxOngoingLoans) {
			return nil, errors.Wrapf(types.ErrTooManyOngoingLoans, "max %d", k.params.MaxOngoingLoans)
		}
		id, err = st.NextProposalID()
		if err != nil {
			return nil, err
		}
		bond, bondEvent, err := k.reserveBond(st, proposer, id, k.BondAmount(amount))
		if err != nil {
			return nil, err
		}
		now := st.BlockHeight()
		p := &types.Proposal{
			Id:         id,
			Proposer:   proposer,
			Amount:     amount,
			Bond:       bond.Id,
			BondAmount: bond.Amount,
			Milestones: make([]types.Milestone, len(milestones)),
			State:      types.ProposalStateSubmitted,
			CreatedAt:  now,
			Tally: types.VoteTally{
				Ayes:     []common.Address{},
				Nays:     []common.Address{},
				OpenedAt: now,
				Deadline: now + k.params.VotingTime,
				Status:   types.VoteStatusOpen,
			},
		}
		for i, m := range milestones {
			p.Milestones[i] = types.Milestone{Index: uint32(i), Amount: m, State: types.MilestoneStatePending}
		}
		if err = st.SetProposal(p); err != nil {
			return nil, err
		}
		if err = st.AddOngoing(id); err != nil {
			return nil, err
		}
		return []types.Event{
			&types.EventProposalSubmitted{
				Proposal:   id,
				Proposer:   proposer,
				Amount:     amount,
				Milestones: uint32(len(milestones)),
				Deadline:   p.Tally.Deadline,
			},
			bondEvent,
		}, nil
	})
	if err != nil {
		return 0, nil, err
	}
	k.logger.Info("proposal submitted", "id", id, "proposer", proposer.Hex(), "amount", amount)
	return id, events, nil
}

// Approve lets the approve origin accept a proposal outside of the committee vote.
func (k *Keeper) Approve(st Backend, caller common.Address, id uint64) ([]types.Event, error) {
	if !ensure(k.origins.Approve, caller) {
		return nil, types.ErrBadOrigin
	}
	return k.atomic(st, func() ([]types.Event, error) {
		p, err := k.loadProposal(st, id)
		if err != nil {
			return nil, err
		}
		events, err := k.approve(st, p, true)
		if err != nil {
			return nil, err
		}
		return events, st.SetProposal(p)
	})
}

func (k *Keeper) Reject(st Backend, caller common.Address, id uint64) ([]types.Event, error) {
	if !ensure(k.origins.Reject, caller) {
		return nil, types.ErrBadOrigin
	}
	return k.atomic(st, func() ([]types.Event, error) {
		p, err := k.loadProposal(st, id)
		if err != nil {
			return nil, err
		}
		events, err := k.reject(st, p, types.RejectReasonOrigin)
		if err != nil {
			return nil, err
		}
		return events, st.SetProposal(p)
	})
}

// approve moves p through Approved into Escrowed. The caller persists p.
func (k *Keeper) approve(st Backend, p *types.Proposal, byOrigin bool) (events []types.Event, err error) {
	if !p.State.CanTransition(types.ProposalStateApproved) {
		return nil, errors.Wrapf(types.ErrInvalidStateTransition, "proposal %d is %s", p.Id, p.State)
	}
	p.State = types.ProposalStateApproved
	p.Tally.Status = types.VoteStatusApproved
	p.Tally.ResolvedAt = st.BlockHeight()
	events = append(events, &types.EventProposalApproved{Proposal: p.Id, ByOrigin: byOrigin})

	released, err := k.releaseBond(st, p.Bond)
	if err != nil {
		return nil, err
	}
	events = append(events, released)

	funded, err := k.fundEscrow(st, p)
	if err != nil {
		return nil, err
	}
	events = append(events, funded)
	k.logger.Info("proposal approved", "id", p.Id, "byOrigin", byOrigin)
	return events, nil
}

// reject resolves p as Rejected and slashes its bond into the pool. The caller persists p.
func (k *Keeper) reject(st Backend, p *types.Proposal, reason string) (events []types.Event, err error) {
	if !p.State.CanTransition(types.ProposalStateRejected) {
		return nil, errors.Wrapf(types.ErrInvalidStateTransition, "proposal %d is %s", p.Id, p.State)
	}
	p.State = types.ProposalStateRejected
	p.Tally.Status = types.VoteStatusRejected
	p.Tally.ResolvedAt = st.BlockHeight()
	events = append(events, &types.EventProposalRejected{Proposal: p.Id, Reason: reason})

	slashed, err := k.slashBond(st, p.Bond)
	if err != nil {
		return nil, err
	}
	events = append(events, slashed)
	if err = st.RemoveOngoing(p.Id); err != nil {
		return nil, err
	}
	k.logger.Info("proposal rejected", "id", p.Id, "reason", reason)
	return events, nil
}

// Withdraw lets the proposer cancel a proposal while its vote is still open.
// The bond is returned in full.
func (k *Keeper) Withdraw(st Backend, caller common.Address, id uint64) ([]types.Event, error) {
	return k.atomic(st, func() ([]types.Event, error) {
		p, err := k.loadProposal(st, id)
		if err != nil {
			return nil, err
		}
		if p.Proposer != caller {
			return nil, types.ErrNotProposer
		}
		if !p.State.CanTransition(types.ProposalStateCancelled) {
			return nil, errors.Wrapf(types.ErrInvalidStateTransition, "proposal %d is %s", p.Id, p.State)
		}
		if st.BlockHeight() > p.Tally.Deadline {
			return nil, errors.Wrapf(types.ErrVotingClosed, "deadline %d", p.Tally.Deadline)
		}
		released, err := k.releaseBond(st, p.Bond)
		if err != nil {
			return nil, err
		}
		p.State = types.ProposalStateCancelled
		p.Tally.Status = types.VoteStatusWithdrawn
		p.Tally.ResolvedAt = st.BlockHeight()
		if err = st.RemoveOngoing(p.Id); err != nil {
			return nil, err
		}
		if err = st.SetProposal(p); err != nil {
			return nil, err
		}
		return []types.Event{
			released,
			&types.EventProposalClosed{Type: types.EventProposalWithdrawnType, Proposal: p.Id, State: p.State.String()},
		}, nil
	})
}

// Delete purges a proposal. Terminal proposals are removed as they are; a
// stalled vote has its bond slashed first and a running loan forfeits its
// escrow first. A proposal whose vote is still open cannot be deleted.
func (k *Keeper) Delete(st Backend, caller common.Address, id uint64) ([]types.Event, error) {
	if !ensure(k.origins.Delete, caller) {
		return nil, types.ErrBadOrigin
	}
	return k.atomic(st, func() (events []types.Event, err error) {
		p, err := k.loadProposal(st, id)
		if err != nil {
			return nil, err
		}
		prev := p.State
		switch {
		case p.State == types.ProposalStateSubmitted:
			if st.BlockHeight() <= p.Tally.Deadline {
				return nil, errors.Wrapf(types.ErrProposalNotDeletable, "proposal %d is open until %d", id, p.Tally.Deadline)
			}
			slashed, err := k.slashBond(st, p.Bond)
			if err != nil {
				return nil, err
			}
			events = append(events, slashed)
		case p.State == types.ProposalStateEscrowed || p.State == types.ProposalStatePartiallyPaid:
			forfeited, err := k.forfeit(st, p)
			if err != nil {
				return nil, err
			}
			events = append(events, forfeited...)
		case p.State.IsTerminal():
		default:
			return nil, errors.Wrapf(types.ErrProposalNotDeletable, "proposal %d is %s", id, p.State)
		}

		if err = st.RemoveOngoing(id); err != nil {
			return nil, err
		}
		if err = st.DeleteEscrow(id); err != nil {
			return nil, err
		}
		if err = st.DeleteBond(p.Bond); err != nil {
			return nil, err
		}
		if err = st.DeleteProposal(id); err != nil {
			return nil, err
		}
		k.logger.Info("proposal deleted", "id", id, "state", prev.String())
		return append(events, &types.EventProposalClosed{Type: types.EventProposalDeletedType, Proposal: id, State: prev.String()}), nil
	})
}
