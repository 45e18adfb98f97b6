package tx

import (
	"encoding/json"

	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/common"
)

// LoanTx is the signed envelope of every loan pool transaction. Sig holds a
// single ed25519 signature over SigData.
type LoanTx struct {
	Version uint8          `json:"version"`
	Type    LoanTxType     `json:"type"`
	Nonce   uint64         `json:"nonce"`
	Sender  common.Address `json:"sender"`
	PubKey  []byte         `json:"pubKey"`
	Tx      any            `json:"tx"`
	Sig     [][]byte       `json:"sig"`
}

type SubmitTx struct {
	Amount     uint64   `json:"amount"`
	Milestones []uint64 `json:"milestones"`
}

type VoteTx struct {
	Proposal uint64 `json:"proposal"`
	Aye      bool   `json:"aye"`
}

// ProposalTx carries the target of approve, reject, delete, withdraw,
// close vote and forfeit transactions.
type ProposalTx struct {
	Proposal uint64 `json:"proposal"`
}

type CommitteeTx struct {
	Member common.Address `json:"member"`
}

type MilestoneTx struct {
	Proposal uint64 `json:"proposal"`
	Index    uint32 `json:"index"`
}

type TransferTx struct {
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

type loanTxTmpl[Tx any] struct {
	Version uint8          `json:"version"`
	Type    LoanTxType     `json:"type"`
	Nonce   uint64         `json:"nonce"`
	Sender  common.Address `json:"sender"`
	PubKey  []byte         `json:"pubKey"`
	Tx      Tx             `json:"tx"`
	Sig     [][]byte       `json:"sig"`
}

// SenderAddress derives the account address of an ed25519 public key. Keys of
// the wrong size map to the zero address.
func SenderAddress(pubKey []byte) common.Address {
	if len(pubKey) != ed25519.PubKeySize {
		return common.Address{}
	}
	return common.BytesToAddress(ed25519.PubKey(pubKey).Address())
}

func (tx *LoanTx) SigData(ext []byte) (dat []byte, err error) {
	ntx := *tx
	ntx.Sig = [][]byte{ext}
	dat, err = json.Marshal(ntx)
	return
}

func parseLoanTxType(dat []byte) LoanTxType {
	var tx struct {
		Type LoanTxType `json:"type"`
	}
	err := json.Unmarshal(dat, &tx)
	if err != nil {
		return LoanTxTypeUnknown
	}
	return tx.Type
}

func unmarshalLoanTx[Tx any](dat []byte) (btx *LoanTx, err error) {
	var txt loanTxTmpl[Tx]
	err = json.Unmarshal(dat, &txt)
	if err != nil {
		return
	}
	if txt.Version != LoanTxVersion0 {
		return nil, ErrUnsupportedTxVersion
	}
	btx = new(LoanTx)
	btx.Version = txt.Version
	btx.Type = txt.Type
	btx.Nonce = txt.Nonce
	btx.Sender = txt.Sender
	btx.PubKey = txt.PubKey
	btx.Tx = &txt.Tx
	btx.Sig = txt.Sig
	return
}

func UnmarshalLoanTx(dat []byte) (btx *LoanTx, err error) {
	tp := parseLoanTxType(dat)
	switch tp {
	case LoanTxTypeSubmit:
		return unmarshalLoanTx[SubmitTx](dat)
	case LoanTxTypeVote:
		return unmarshalLoanTx[VoteTx](dat)
	case LoanTxTypeApprove, LoanTxTypeReject, LoanTxTypeDelete, LoanTxTypeWithdraw, LoanTxTypeCloseVote, LoanTxTypeForfeit:
		return unmarshalLoanTx[ProposalTx](dat)
	case LoanTxTypeAddMember, LoanTxTypeRemoveMember:
		return unmarshalLoanTx[CommitteeTx](dat)
	case LoanTxTypeSubmitMilestone, LoanTxTypeVerifyMilestone:
		return unmarshalLoanTx[MilestoneTx](dat)
	case LoanTxTypeTransfer:
		return unmarshalLoanTx[TransferTx](dat)
	default:
		err = ErrUnsupportedTxType
	}
	return
}

func MarshalLoanTx(btx *LoanTx) (dat []byte, err error) {
	return json.Marshal(btx)
}

// Payload returns the typed body of btx.
func Payload[Tx any](btx *LoanTx) (*Tx, error) {
	p, ok := btx.Tx.(*Tx)
	if !ok {
		return nil, ErrUnmatchedTxType
	}
	return p, nil
}
