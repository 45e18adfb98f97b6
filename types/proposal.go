package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type ProposalState uint8

const (
	ProposalStateSubmitted     ProposalState = 1
	ProposalStateApproved      ProposalState = 2
	ProposalStateRejected      ProposalState = 3
	ProposalStateEscrowed      ProposalState = 4
	ProposalStatePartiallyPaid ProposalState = 5
	ProposalStateCompleted     ProposalState = 6
	ProposalStateCancelled     ProposalState = 7
	ProposalStateForfeited     ProposalState = 8
)

// proposalTransitions lists every allowed edge of the proposal lifecycle.
var proposalTransitions = map[ProposalState][]ProposalState{
	ProposalStateSubmitted:     {ProposalStateApproved, ProposalStateRejected, ProposalStateCancelled},
	ProposalStateApproved:      {ProposalStateEscrowed},
	ProposalStateEscrowed:      {ProposalStatePartiallyPaid, ProposalStateCompleted, ProposalStateForfeited},
	ProposalStatePartiallyPaid: {ProposalStateCompleted, ProposalStateForfeited},
}

func (s ProposalState) CanTransition(to ProposalState) bool {
	for _, next := range proposalTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ProposalState) IsTerminal() bool {
	switch s {
	case ProposalStateRejected, ProposalStateCompleted, ProposalStateCancelled, ProposalStateForfeited:
		return true
	}
	return false
}

func (s ProposalState) String() string {
	switch s {
	case ProposalStateSubmitted:
		return "submitted"
	case ProposalStateApproved:
		return "approved"
	case ProposalStateRejected:
		return "rejected"
	case ProposalStateEscrowed:
		return "escrowed"
	case ProposalStatePartiallyPaid:
		return "partially_paid"
	case ProposalStateCompleted:
		return "completed"
	case ProposalStateCancelled:
		return "cancelled"
	case ProposalStateForfeited:
		return "forfeited"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

type MilestoneState uint8

const (
	MilestoneStatePending   MilestoneState = 1
	MilestoneStateSubmitted MilestoneState = 2
	MilestoneStateApproved  MilestoneState = 3
	MilestoneStatePaid      MilestoneState = 4
	MilestoneStateVoided    MilestoneState = 5
)

var milestoneTransitions = map[MilestoneState][]MilestoneState{
	MilestoneStatePending:   {MilestoneStateSubmitted, MilestoneStateVoided},
	MilestoneStateSubmitted: {MilestoneStateApproved, MilestoneStateVoided},
	MilestoneStateApproved:  {MilestoneStatePaid, MilestoneStateVoided},
}

func (s MilestoneState) CanTransition(to MilestoneState) bool {
	for _, next := range milestoneTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s MilestoneState) String() string {
	switch s {
	case MilestoneStatePending:
		return "pending"
	case MilestoneStateSubmitted:
		return "submitted"
	case MilestoneStateApproved:
		return "approved"
	case MilestoneStatePaid:
		return "paid"
	case MilestoneStateVoided:
		return "voided"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

type VoteStatus uint8

const (
	VoteStatusOpen      VoteStatus = 1
	VoteStatusApproved  VoteStatus = 2
	VoteStatusRejected  VoteStatus = 3
	VoteStatusWithdrawn VoteStatus = 4
)

func (s VoteStatus) String() string {
	switch s {
	case VoteStatusOpen:
		return "open"
	case VoteStatusApproved:
		return "approved"
	case VoteStatusRejected:
		return "rejected"
	case VoteStatusWithdrawn:
		return "withdrawn"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

type BondState uint8

const (
	BondStateHeld     BondState = 1
	BondStateReleased BondState = 2
	BondStateSlashed  BondState = 3
)

func (s BondState) String() string {
	switch s {
	case BondStateHeld:
		return "held"
	case BondStateReleased:
		return "released"
	case BondStateSlashed:
		return "slashed"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

type Milestone struct {
	Index  uint32         `json:"index"`
	Amount uint64         `json:"amount"`
	State  MilestoneState `json:"state"`
}

// VoteTally is the committee decision record of one proposal. Ayes and Nays never
// share an account.
type VoteTally struct {
	Ayes       []common.Address `json:"ayes"`
	Nays       []common.Address `json:"nays"`
	OpenedAt   uint64           `json:"opened_at"`
	Deadline   uint64           `json:"deadline"`
	Status     VoteStatus       `json:"status"`
	ResolvedAt uint64           `json:"resolved_at"`
}

func (t *VoteTally) Choice(voter common.Address) (aye bool, voted bool) {
	for _, a := range t.Ayes {
		if a == voter {
			return true, true
		}
	}
	for _, a := range t.Nays {
		if a == voter {
			return false, true
		}
	}
	return false, false
}

// Record places voter in ayes or nays, removing any earlier opposite choice.
func (t *VoteTally) Record(voter common.Address, aye bool) {
	t.Ayes = removeAddress(t.Ayes, voter)
	t.Nays = removeAddress(t.Nays, voter)
	if aye {
		t.Ayes = append(t.Ayes, voter)
	} else {
		t.Nays = append(t.Nays, voter)
	}
}

func removeAddress(list []common.Address, addr common.Address) []common.Address {
	out := list[:0]
	for _, a := range list {
		if a != addr {
			out = append(out, a)
		}
	}
	return out
}

type Proposal struct {
	Id         uint64         `json:"id"`
	Proposer   common.Address `json:"proposer"`
	Amount     uint64         `json:"amount"`
	Bond       uint64         `json:"bond"`
	BondAmount uint64         `json:"bond_amount"`
	Milestones []Milestone    `json:"milestones"`
	State      ProposalState  `json:"state"`
	CreatedAt  uint64         `json:"created_at"`
	Tally      VoteTally      `json:"tally"`
}

// NextPayable returns the position of the first milestone that is not paid yet.
func (p *Proposal) NextPayable() (int, bool) {
	for i := range p.Milestones {
		if p.Milestones[i].State != MilestoneStatePaid {
			return i, true
		}
	}
	return 0, false
}

func (p *Proposal) FirstPending() (int, bool) {
	for i := range p.Milestones {
		if p.Milestones[i].State == MilestoneStatePending {
			return i, true
		}
	}
	return 0, false
}

type Bond struct {
	Id       uint64         `json:"id"`
	Owner    common.Address `json:"owner"`
	Amount   uint64         `json:"amount"`
	Proposal uint64         `json:"proposal"`
	State    BondState      `json:"state"`
}

type Escrow struct {
	Proposal uint64 `json:"proposal"`
	Funded   uint64 `json:"funded"`
	Paid     uint64 `json:"paid"`
}

func (e *Escrow) Remaining() uint64 {
	if e.Paid >= e.Funded {
		return 0
	}
	return e.Funded - e.Paid
}

type Committee struct {
	Members []common.Address `json:"members"`
	Version uint64           `json:"version"`
}

func (c *Committee) IsMember(addr common.Address) bool {
	for _, m := range c.Members {
		if m == addr {
			return true
		}
	}
	return false
}
