package state

import (
	"fmt"

	"github.com/calehh/loanpool-app/tx"
	"github.com/calehh/loanpool-app/types"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

type Account struct {
	Address  common.Address `json:"address"`
	PubKey   []byte         `json:"pubKey"`
	Free     uint64         `json:"free"`
	Reserved uint64         `json:"reserved"`
	Nonce    uint64         `json:"nonce"`
}

func (a *Account) Clone() *Account {
	n := *a
	n.PubKey = common.CopyBytes(a.PubKey)
	return &n
}

func (a *Account) SetPubKey(pkey []byte) {
	a.PubKey = common.CopyBytes(pkey)
}

func (a *Account) Verify(msg []byte, sigs [][]byte) (succ bool) {
	if len(sigs) != 1 || len(a.PubKey) != ed25519.PubKeySize {
		return false
	}
	pk := ed25519.PubKey(a.PubKey[:])
	return pk.VerifySignature(msg, sigs[0])
}

func decodeAccount(addr common.Address, val []byte) (*Account, error) {
	acnt := new(Account)
	if err := rlp.DecodeBytes(val, acnt); err != nil {
		return nil, errors.Wrapf(err, "decode account %s", addr.Hex())
	}
	return acnt, nil
}

// GetAccount returns the stored account or nil when addr has never been funded.
func (s *State) GetAccount(addr common.Address) (acnt *Account, err error) {
	val, err := s.get(fmt.Sprintf(KeyAccountBody, addr.Bytes()))
	if err != nil || val == nil {
		return nil, err
	}
	return decodeAccount(addr, val)
}

func (s *State) account(addr common.Address) (*Account, error) {
	acnt, err := s.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acnt == nil {
		acnt = &Account{Address: addr}
	}
	return acnt, nil
}

func (s *State) SetAccount(acnt *Account) error {
	val, err := rlp.EncodeToBytes(acnt)
	if err != nil {
		return err
	}
	s.set(fmt.Sprintf(KeyAccountBody, acnt.Address.Bytes()), val)
	return nil
}

// Verify checks the sender binding, nonce and signature of btx. With
// allowNonceGap a nonce ahead of the account is accepted, as CheckTx does for
// queued transactions.
func (s *State) Verify(btx *tx.LoanTx, allowNonceGap bool) (succ bool, err error) {
	if len(btx.PubKey) != ed25519.PubKeySize {
		return false, ErrTxPubKeyInvalid
	}
	if tx.SenderAddress(btx.PubKey) != btx.Sender {
		return false, ErrTxSenderMismatch
	}
	a, err := s.account(btx.Sender)
	if err != nil {
		return succ, err
	}
	if !(a.Nonce == btx.Nonce || (allowNonceGap && a.Nonce < btx.Nonce)) {
		err = ErrTxNonceInvalid
		return
	}
	dat, err := btx.SigData([]byte(s.header.ChainId))
	if err != nil {
		return succ, err
	}
	a.SetPubKey(btx.PubKey)
	succ = a.Verify(dat, btx.Sig)
	if !succ {
		err = ErrTxSigInvalid
	}
	return
}

// IncNonce consumes the nonce of a verified transaction and binds the sender's
// public key to the account.
func (s *State) IncNonce(btx *tx.LoanTx) error {
	a, err := s.account(btx.Sender)
	if err != nil {
		return err
	}
	if a.Nonce != btx.Nonce {
		return ErrTxNonceInvalid
	}
	a.Nonce += 1
	if len(a.PubKey) == 0 {
		a.SetPubKey(btx.PubKey)
	}
	return s.SetAccount(a)
}

func (s *State) FreeBalance(addr common.Address) (uint64, error) {
	a, err := s.account(addr)
	if err != nil {
		return 0, err
	}
	return a.Free, nil
}

func (s *State) ReservedBalance(addr common.Address) (uint64, error) {
	a, err := s.account(addr)
	if err != nil {
		return 0, err
	}
	return a.Reserved, nil
}

func (s *State) Reserve(addr common.Address, amount uint64) error {
	a, err := s.account(addr)
	if err != nil {
		return err
	}
	if a.Free < amount {
		return errors.Wrapf(types.ErrInsufficientBalance, "%s has %d free, needs %d", addr.Hex(), a.Free, amount)
	}
	if a.Reserved+amount < a.Reserved {
		return types.ErrOverflow
	}
	a.Free -= amount
	a.Reserved += amount
	return s.SetAccount(a)
}

func (s *State) Unreserve(addr common.Address, amount uint64) (uint64, error) {
	a, err := s.account(addr)
	if err != nil {
		return 0, err
	}
	moved := min(amount, a.Reserved)
	if moved == 0 {
		return 0, nil
	}
	if a.Free+moved < a.Free {
		return 0, types.ErrOverflow
	}
	a.Reserved -= moved
	a.Free += moved
	return moved, s.SetAccount(a)
}

func (s *State) SlashReserved(addr common.Address, amount uint64) (uint64, error) {
	a, err := s.account(addr)
	if err != nil {
		return 0, err
	}
	slashed := min(amount, a.Reserved)
	if slashed == 0 {
		return 0, nil
	}
	a.Reserved -= slashed
	return slashed, s.SetAccount(a)
}

func (s *State) Deposit(addr common.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	a, err := s.account(addr)
	if err != nil {
		return err
	}
	if a.Free+amount < a.Free {
		return errors.Wrapf(types.ErrOverflow, "deposit %d to %s", amount, addr.Hex())
	}
	a.Free += amount
	return s.SetAccount(a)
}

func (s *State) Transfer(from, to common.Address, amount uint64) error {
	src, err := s.account(from)
	if err != nil {
		return err
	}
	if src.Free < amount {
		return errors.Wrapf(types.ErrInsufficientBalance, "%s has %d free, needs %d", from.Hex(), src.Free, amount)
	}
	if from == to || amount == 0 {
		return nil
	}
	dst, err := s.account(to)
	if err != nil {
		return err
	}
	if dst.Free+amount < dst.Free {
		return errors.Wrapf(types.ErrOverflow, "transfer %d to %s", amount, to.Hex())
	}
	src.Free -= amount
	dst.Free += amount
	if err = s.SetAccount(src); err != nil {
		return err
	}
	return s.SetAccount(dst)
}
