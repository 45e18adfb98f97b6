package types

import (
	"errors"
)

type ErrorKind uint8

const (
	ErrorKindValidation    ErrorKind = 1
	ErrorKindAuthorization ErrorKind = 2
	ErrorKindState         ErrorKind = 3
	ErrorKindResource      ErrorKind = 4
)

// CodeUnknown is returned to clients for failures that carry no loan pool code.
const CodeUnknown uint32 = 1

// Error is a loan pool outcome with a stable ABCI code. Two errors match under
// errors.Is when their codes are equal, so wrapped errors keep their identity.
type Error struct {
	code uint32
	kind ErrorKind
	desc string
}

func newError(code uint32, kind ErrorKind, desc string) *Error {
	return &Error{code: code, kind: kind, desc: desc}
}

func (e *Error) Error() string { return e.desc }

func (e *Error) Code() uint32 { return e.code }

func (e *Error) Kind() ErrorKind { return e.kind }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

var (
	ErrAmountMismatch      = newError(2, ErrorKindValidation, "milestone amounts do not sum to the requested amount")
	ErrTooManyMilestones   = newError(3, ErrorKindValidation, "too many milestones")
	ErrTooManyOngoingLoans = newError(4, ErrorKindValidation, "too many ongoing loans")
	ErrZeroMilestoneAmount = newError(5, ErrorKindValidation, "milestone amount is zero")

	ErrBadOrigin          = newError(6, ErrorKindAuthorization, "bad origin")
	ErrNotCommitteeMember = newError(7, ErrorKindAuthorization, "not a committee member")
	ErrNotProposer        = newError(20, ErrorKindAuthorization, "caller is not the proposer")

	ErrProposalNotFound        = newError(8, ErrorKindState, "proposal not found")
	ErrInvalidStateTransition  = newError(9, ErrorKindState, "invalid state transition")
	ErrVotingClosed            = newError(10, ErrorKindState, "voting closed")
	ErrVotingOpen              = newError(11, ErrorKindState, "voting still open")
	ErrDuplicateVote           = newError(12, ErrorKindState, "duplicate vote")
	ErrOutOfOrderMilestone     = newError(13, ErrorKindState, "out of order milestone")
	ErrMilestoneNotSubmitted   = newError(14, ErrorKindState, "milestone not submitted")
	ErrProposalNotDeletable    = newError(15, ErrorKindState, "proposal not deletable")
	ErrBondAlreadySettled      = newError(16, ErrorKindState, "bond already settled")
	ErrBondNotFound            = newError(17, ErrorKindState, "bond not found")
	ErrAlreadyCommitteeMember  = newError(18, ErrorKindState, "already a committee member")
	ErrTooManyCommitteeMembers = newError(19, ErrorKindState, "too many committee members")
	ErrMilestoneNotFound       = newError(24, ErrorKindState, "milestone not found")
	ErrReceiptAlreadyMinted    = newError(25, ErrorKindState, "receipt already minted")
	ErrEscrowNotFound          = newError(26, ErrorKindState, "escrow not found")

	ErrInsufficientBalance = newError(21, ErrorKindResource, "insufficient balance")
	ErrInsufficientEscrow  = newError(22, ErrorKindResource, "insufficient escrow")
	ErrOverflow            = newError(23, ErrorKindResource, "balance overflow")
)

// ABCICode maps err to the code reported in CheckTx and FinalizeBlock results.
func ABCICode(err error) uint32 {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return CodeUnknown
}

func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return 0, false
}
