package types

import (
	"errors"
	"fmt"
)

const Permill = 1_000_000

// PoolPalletID seeds the address of the account that holds pool funds and escrow.
const PoolPalletID = "py/cmmty"

// Params is fixed at genesis and never mutated by transactions.
type Params struct {
	ProposalBondPermill     uint32 `json:"proposal_bond_permill" mapstructure:"proposal_bond_permill"`
	ProposalBondMinimum     uint64 `json:"proposal_bond_minimum" mapstructure:"proposal_bond_minimum"`
	ProposalBondMaximum     uint64 `json:"proposal_bond_maximum" mapstructure:"proposal_bond_maximum"` // 0 means no maximum
	MaxOngoingLoans         uint32 `json:"max_ongoing_loans" mapstructure:"max_ongoing_loans"`
	MaxMilestonesPerProject uint32 `json:"max_milestones_per_project" mapstructure:"max_milestones_per_project"`
	MaxCommitteeMembers     uint32 `json:"max_committee_members" mapstructure:"max_committee_members"`
	VotingTime              uint64 `json:"voting_time" mapstructure:"voting_time"`
	// AutoCloseExpiredVotes rejects every open vote past its deadline at the
	// end of each block.
	AutoCloseExpiredVotes   bool   `json:"auto_close_expired_votes" mapstructure:"auto_close_expired_votes"`
}

func DefaultParams() Params {
	return Params{
		ProposalBondPermill:     50_000,
		ProposalBondMinimum:     10_000,
		ProposalBondMaximum:     0,
		MaxOngoingLoans:         10_000,
		MaxMilestonesPerProject: 10,
		MaxCommitteeMembers:     10,
		VotingTime:              10,
		AutoCloseExpiredVotes:   false,
	}
}

func (p Params) Validate() error {
	if p.ProposalBondPermill > Permill {
		return fmt.Errorf("proposal_bond_permill %d exceeds %d", p.ProposalBondPermill, Permill)
	}
	if p.ProposalBondMaximum != 0 && p.ProposalBondMaximum < p.ProposalBondMinimum {
		return errors.New("proposal_bond_maximum below proposal_bond_minimum")
	}
	if p.MaxOngoingLoans == 0 {
		return errors.New("max_ongoing_loans must be positive")
	}
	if p.MaxMilestonesPerProject == 0 {
		return errors.New("max_milestones_per_project must be positive")
	}
	if p.MaxCommitteeMembers == 0 {
		return errors.New("max_committee_members must be positive")
	}
	if p.VotingTime == 0 {
		return errors.New("voting_time must be positive")
	}
	return nil
}
