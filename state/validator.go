package state

import (
	"fmt"

	abci_types "github.com/cometbft/cometbft/abci/types"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

// Validator is a genesis validator. The set does not change after InitChain.
type Validator struct {
	PubKey []byte `json:"pubKey"`
	Power  uint64 `json:"power"`
}

type iterable interface {
	Iterator(start, end []byte, ascending bool) (dbm.Iterator, error)
}

func (s *State) SetValidators(updates []abci_types.ValidatorUpdate) error {
	for _, v := range updates {
		pk := v.PubKey.GetEd25519()
		if pk == nil {
			return fmt.Errorf("unsupported validator key type %T", v.PubKey.Sum)
		}
		val, err := rlp.EncodeToBytes(&Validator{PubKey: common.CopyBytes(pk), Power: uint64(v.Power)})
		if err != nil {
			return err
		}
		s.set(fmt.Sprintf(KeyValidator, pk), val)
	}
	return nil
}

func iterateValidators(tree iterable) (vals []Validator, err error) {
	it, err := tree.Iterator(KeyValidatorPrefix, PrefixEndBytes(KeyValidatorPrefix), true)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	vals = []Validator{}
	for ; it.Valid(); it.Next() {
		var v Validator
		if err = rlp.DecodeBytes(it.Value(), &v); err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, it.Error()
}
