package loanpool

import (
	"github.com/calehh/loanpool-app/types"
	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the balance side of the host chain. Reserved funds stay owned by
// the account but cannot be spent until they are unreserved or slashed.
type Ledger interface {
	FreeBalance(addr common.Address) (uint64, error)
	ReservedBalance(addr common.Address) (uint64, error)
	// Reserve moves amount from free to reserved, failing with ErrInsufficientBalance.
	Reserve(addr common.Address, amount uint64) error
	// Unreserve moves up to amount back to free and returns what was moved.
	Unreserve(addr common.Address, amount uint64) (uint64, error)
	// SlashReserved burns up to amount of reserved funds and returns what was burnt.
	SlashReserved(addr common.Address, amount uint64) (uint64, error)
	Deposit(addr common.Address, amount uint64) error
	Transfer(from, to common.Address, amount uint64) error
	BlockHeight() uint64
}

// Store keeps the loan pool records. Getters return nil without error when a
// record does not exist.
type Store interface {
	GetProposal(id uint64) (*types.Proposal, error)
	SetProposal(p *types.Proposal) error
	DeleteProposal(id uint64) error
	NextProposalID() (uint64, error)

	GetBond(id uint64) (*types.Bond, error)
	SetBond(b *types.Bond) error
	DeleteBond(id uint64) error
	NextBondID() (uint64, error)

	GetEscrow(proposal uint64) (*types.Escrow, error)
	SetEscrow(e *types.Escrow) error
	DeleteEscrow(proposal uint64) error

	GetCommittee() (*types.Committee, error)
	SetCommittee(c *types.Committee) error

	// OngoingProposals returns the ids of submitted or running loans in
	// ascending order.
	OngoingProposals() ([]uint64, error)
	OngoingCount() (uint64, error)
	AddOngoing(id uint64) error
	RemoveOngoing(id uint64) error
}

type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// ReceiptMinter issues the non-fungible proof of a paid milestone.
type ReceiptMinter interface {
	MintReceipt(owner common.Address, collection uint64, item uint32) error
}

type Backend interface {
	Ledger
	Store
	Journal
	ReceiptMinter
}

// Origin decides whether an account may act as a privileged caller.
type Origin func(addr common.Address) bool

func AccountsOrigin(addrs ...common.Address) Origin {
	set := make(map[common.Address]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return func(addr common.Address) bool {
		_, ok := set[addr]
		return ok
	}
}

func AlwaysAllow(common.Address) bool { return true }

func NeverAllow(common.Address) bool { return false }

type Origins struct {
	Approve   Origin
	Reject    Origin
	Committee Origin
	Delete    Origin
	Verify    Origin
}

func OriginsFromGenesis(auth types.GenesisAuthorities) Origins {
	return Origins{
		Approve:   AccountsOrigin(auth.Approve...),
		Reject:    AccountsOrigin(auth.Reject...),
		Committee: AccountsOrigin(auth.Committee...),
		Delete:    AccountsOrigin(auth.Delete...),
		Verify:    AccountsOrigin(auth.Verify...),
	}
}

func ensure(o Origin, addr common.Address) bool {
	return o != nil && o(addr)
}
