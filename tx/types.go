package tx

import (
	"errors"
)

type LoanTxType uint8

const (
	LoanTxTypeUnknown         LoanTxType = 0
	LoanTxTypeSubmit          LoanTxType = 1
	LoanTxTypeVote            LoanTxType = 2
	LoanTxTypeApprove         LoanTxType = 3
	LoanTxTypeReject          LoanTxType = 4
	LoanTxTypeDelete          LoanTxType = 5
	LoanTxTypeWithdraw        LoanTxType = 6
	LoanTxTypeCloseVote       LoanTxType = 7
	LoanTxTypeAddMember       LoanTxType = 8
	LoanTxTypeRemoveMember    LoanTxType = 9
	LoanTxTypeSubmitMilestone LoanTxType = 10
	LoanTxTypeVerifyMilestone LoanTxType = 11
	LoanTxTypeTransfer        LoanTxType = 12
	LoanTxTypeForfeit         LoanTxType = 13
)

func (t LoanTxType) String() string {
	switch t {
	case LoanTxTypeSubmit:
		return "submit"
	case LoanTxTypeVote:
		return "vote"
	case LoanTxTypeApprove:
		return "approve"
	case LoanTxTypeReject:
		return "reject"
	case LoanTxTypeDelete:
		return "delete"
	case LoanTxTypeWithdraw:
		return "withdraw"
	case LoanTxTypeCloseVote:
		return "close_vote"
	case LoanTxTypeAddMember:
		return "add_member"
	case LoanTxTypeRemoveMember:
		return "remove_member"
	case LoanTxTypeSubmitMilestone:
		return "submit_milestone"
	case LoanTxTypeVerifyMilestone:
		return "verify_milestone"
	case LoanTxTypeTransfer:
		return "transfer"
	case LoanTxTypeForfeit:
		return "forfeit"
	}
	return "unknown"
}

const (
	LoanTxVersion0 uint8 = 0
)

var (
	ErrInvalidTx            = errors.New("invalid tx")
	ErrUnsupportedTxType    = errors.New("unsupported tx type")
	ErrUnmatchedTxType      = errors.New("unmatched tx type")
	ErrUnsupportedTxVersion = errors.New("unsupported tx version")
)
