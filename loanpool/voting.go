package loanpool

import (
	"github.com/calehh/loanpool-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// CastVote records a committee member's decision on a submitted proposal and
// resolves the vote once either side holds a strict majority of the committee
// capacity. Voting again with the other choice replaces the earlier vote.
func (k *Keeper) CastVote(st Backend, voter common.Address, id uint64, aye bool) ([]types.Event, error) {
	return k.atomic(st, func() (events []types.Event, err error) {
		committee, err := st.GetCommittee()
		if err != nil {
			return nil, err
		}
		if !committee.IsMember(voter) {
			return nil, types.ErrNotCommitteeMember
		}
		p, err := k.loadProposal(st, id)
		if err != nil {
			return nil, err
		}
		if p.State != types.ProposalStateSubmitted || p.Tally.Status != types.VoteStatusOpen {
			return nil, errors.Wrapf(types.ErrVotingClosed, "proposal %d is %s", id, p.State)
		}
		if st.BlockHeight() > p.Tally.Deadline {
			return nil, errors.Wrapf(types.ErrVotingClosed, "deadline %d", p.Tally.Deadline)
		}
		if prev, voted := p.Tally.Choice(voter); voted && prev == aye {
			return nil, types.ErrDuplicateVote
		}

		p.Tally.Ayes = keepMembers(committee, p.Tally.Ayes)
		p.Tally.Nays = keepMembers(committee, p.Tally.Nays)
		p.Tally.Record(voter, aye)
		ayes, nays := uint32(len(p.Tally.Ayes)), uint32(len(p.Tally.Nays))
		events = append(events, &types.EventVoteCast{Proposal: id, Voter: voter, Aye: aye, Ayes: ayes, Nays: nays})

		var resolved []types.Event
		switch {
		case ayes*2 > k.params.MaxCommitteeMembers:
			resolved, err = k.approve(st, p, false)
		case nays*2 > k.params.MaxCommitteeMembers:
			resolved, err = k.reject(st, p, types.RejectReasonVotes)
		}
		if err != nil {
			return nil, err
		}
		if err = st.SetProposal(p); err != nil {
			return nil, err
		}
		return append(events, resolved...), nil
	})
}

func keepMembers(committee *types.Committee, voters []common.Address) []common.Address {
	out := make([]common.Address, 0, len(voters))
	for _, v := range voters {
		if committee.IsMember(v) {
			out = append(out, v)
		}
	}
	return out
}

// CloseVote resolves an expired, undecided vote as rejected. Anyone may call it.
func (k *Keeper) CloseVote(st Backend, id uint64) ([]types.Event, error) {
	return k.atomic(st, func() ([]types.Event, error) {
		p, err := k.loadProposal(st, id)
		if err != nil {
			return nil, err
		}
		return k.closeVote(st, p)
	})
}

func (k *Keeper) closeVote(st Backend, p *types.Proposal) ([]types.Event, error) {
	if p.State != types.ProposalStateSubmitted || p.Tally.Status != types.VoteStatusOpen {
		return nil, errors.Wrapf(types.ErrVotingClosed, "proposal %d is %s", p.Id, p.State)
	}
	if st.BlockHeight() <= p.Tally.Deadline {
		return nil, errors.Wrapf(types.ErrVotingOpen, "proposal %d is open until %d", p.Id, p.Tally.Deadline)
	}
	events, err := k.reject(st, p, types.RejectReasonTimeout)
	if err != nil {
		return nil, err
	}
	return events, st.SetProposal(p)
}

// CloseExpired closes every expired vote among the ongoing proposals. A
// proposal that fails to close is logged and left as it was.
func (k *Keeper) CloseExpired(st Backend) ([]types.Event, error) {
	ids, err := st.OngoingProposals()
	if err != nil {
		return nil, err
	}
	now := st.BlockHeight()
	var events []types.Event
	for _, id := range ids {
		p, err := st.GetProposal(id)
		if err != nil {
			return nil, err
		}
		if p == nil || p.State != types.ProposalStateSubmitted || now <= p.Tally.Deadline {
			continue
		}
		closed, err := k.atomic(st, func() ([]types.Event, error) {
			return k.closeVote(st, p)
		})
		if err != nil {
			k.logger.Error("close expired vote", "id", id, "err", err)
			continue
		}
		events = append(events, closed...)
	}
	return events, nil
}

func (k *Keeper) AddMember(st Backend, caller, member common.Address) ([]types.Event, error) {
	if !ensure(k.origins.Committee, caller) {
		return nil, types.ErrBadOrigin
	}
	return k.atomic(st, func() ([]types.Event, error) {
		committee, err := st.GetCommittee()
		if err != nil {
			return nil, err
		}
		if committee.IsMember(member) {
			return nil, types.ErrAlreadyCommitteeMember
		}
		if uint32(len(committee.Members)) >= k.params.MaxCommitteeMembers {
			return nil, errors.Wrapf(types.ErrTooManyCommitteeMembers, "max %d", k.params.MaxCommitteeMembers)
		}
		committee.Members = append(committee.Members, member)
		committee.Version++
		if err = st.SetCommittee(committee); err != nil {
			return nil, err
		}
		return []types.Event{&types.EventCommittee{Member: member, Added: true, Version: committee.Version}}, nil
	})
}

func (k *Keeper) RemoveMember(st Backend, caller, member common.Address) ([]types.Event, error) {
	if !ensure(k.origins.Committee, caller) {
		return nil, types.ErrBadOrigin
	}
	return k.atomic(st, func() ([]types.Event, error) {
		committee, err := st.GetCommittee()
		if err != nil {
			return nil, err
		}
		if !committee.IsMember(member) {
			return nil, types.ErrNotCommitteeMember
		}
		committee.Members = without(committee.Members, member)
		committee.Version++
		if err = st.SetCommittee(committee); err != nil {
			return nil, err
		}
		return []types.Event{&types.EventCommittee{Member: member, Added: false, Version: committee.Version}}, nil
	})
}

func without(list []common.Address, addr common.Address) []common.Address {
	out := make([]common.Address, 0, len(list))
	for _, a := range list {
		if a != addr {
			out = append(out, a)
		}
	}
	return out
}
