package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/calehh/loanpool-app/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

type reader func(key string) ([]byte, error)

func loadJSON[T any](read reader, key string) (*T, error) {
	val, err := read(key)
	if err != nil {
		return nil, err
	}
	if val == nil {
		return nil, nil
	}
	v := new(T)
	if err = json.Unmarshal(val, v); err != nil {
		return nil, errors.Wrapf(err, "decode %s", key)
	}
	return v, nil
}

func (s *State) setJSON(key string, v any) error {
	val, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, val)
	return nil
}

func (s *State) nextIndex(key string) (uint64, error) {
	val, err := s.get(key)
	if err != nil {
		return 0, err
	}
	var idx uint64
	if len(val) == 8 {
		idx = binary.BigEndian.Uint64(val)
	}
	idx += 1
	s.set(key, binary.BigEndian.AppendUint64(nil, idx))
	return idx, nil
}

func (s *State) GetProposal(id uint64) (*types.Proposal, error) {
	return loadJSON[types.Proposal](s.get, fmt.Sprintf(KeyProposalBody, id))
}

func (s *State) SetProposal(p *types.Proposal) error {
	return s.setJSON(fmt.Sprintf(KeyProposalBody, p.Id), p)
}

func (s *State) DeleteProposal(id uint64) error {
	s.del(fmt.Sprintf(KeyProposalBody, id))
	return nil
}

func (s *State) NextProposalID() (uint64, error) {
	return s.nextIndex(KeyProposalIndex)
}

func (s *State) GetBond(id uint64) (*types.Bond, error) {
	return loadJSON[types.Bond](s.get, fmt.Sprintf(KeyBondBody, id))
}

func (s *State) SetBond(b *types.Bond) error {
	return s.setJSON(fmt.Sprintf(KeyBondBody, b.Id), b)
}

func (s *State) DeleteBond(id uint64) error {
	s.del(fmt.Sprintf(KeyBondBody, id))
	return nil
}

func (s *State) NextBondID() (uint64, error) {
	return s.nextIndex(KeyBondIndex)
}

func (s *State) GetEscrow(proposal uint64) (*types.Escrow, error) {
	return loadJSON[types.Escrow](s.get, fmt.Sprintf(KeyEscrowBody, proposal))
}

func (s *State) SetEscrow(e *types.Escrow) error {
	return s.setJSON(fmt.Sprintf(KeyEscrowBody, e.Proposal), e)
}

func (s *State) DeleteEscrow(proposal uint64) error {
	s.del(fmt.Sprintf(KeyEscrowBody, proposal))
	return nil
}

// GetCommittee never returns nil; an unset committee is empty at version 0.
func (s *State) GetCommittee() (*types.Committee, error) {
	c, err := loadJSON[types.Committee](s.get, KeyCommittee)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = &types.Committee{Members: []common.Address{}}
	}
	return c, nil
}

func (s *State) SetCommittee(c *types.Committee) error {
	return s.setJSON(KeyCommittee, c)
}

// OngoingProposals lists the ongoing proposal ids in ascending order,
// pending writes included.
func (s *State) OngoingProposals() ([]uint64, error) {
	live := make(map[uint64]bool)
	it, err := s.db.Iterator(KeyOngoingPrefix, PrefixEndBytes(KeyOngoingPrefix), true)
	if err != nil {
		return nil, err
	}
	defer it.Close()
	for ; it.Valid(); it.Next() {
		id, err := parseOngoingKey(string(it.Key()))
		if err != nil {
			return nil, err
		}
		live[id] = true
	}
	if err = it.Error(); err != nil {
		return nil, err
	}
	for k, v := range s.dirty {
		if !strings.HasPrefix(k, string(KeyOngoingPrefix)) {
			continue
		}
		id, err := parseOngoingKey(k)
		if err != nil {
			return nil, err
		}
		live[id] = v != nil
	}
	ids := make([]uint64, 0, len(live))
	for id, ok := range live {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func parseOngoingKey(key string) (uint64, error) {
	id, err := strconv.ParseUint(key[len(KeyOngoingPrefix):], 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "ongoing key %q", key)
	}
	return id, nil
}

func (s *State) OngoingCount() (uint64, error) {
	val, err := s.get(KeyOngoingCount)
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(val), nil
}

func (s *State) setOngoingCount(n uint64) {
	s.set(KeyOngoingCount, binary.BigEndian.AppendUint64(nil, n))
}

// AddOngoing marks id as ongoing. Adding it twice is a no-op.
func (s *State) AddOngoing(id uint64) error {
	key := fmt.Sprintf(KeyOngoing, id)
	val, err := s.get(key)
	if err != nil || val != nil {
		return err
	}
	n, err := s.OngoingCount()
	if err != nil {
		return err
	}
	s.set(key, []byte{1})
	s.setOngoingCount(n + 1)
	return nil
}

func (s *State) RemoveOngoing(id uint64) error {
	key := fmt.Sprintf(KeyOngoing, id)
	val, err := s.get(key)
	if err != nil || val == nil {
		return err
	}
	n, err := s.OngoingCount()
	if err != nil {
		return err
	}
	s.del(key)
	if n > 0 {
		s.setOngoingCount(n - 1)
	}
	return nil
}

// MintReceipt records owner as the holder of item in collection. An item is
// minted at most once.
func (s *State) MintReceipt(owner common.Address, collection uint64, item uint32) error {
	key := fmt.Sprintf(KeyReceipt, collection, item)
	val, err := s.get(key)
	if err != nil {
		return err
	}
	if val != nil {
		return errors.Wrapf(types.ErrReceiptAlreadyMinted, "receipt %d/%d", collection, item)
	}
	s.set(key, owner.Bytes())
	return nil
}

func (s *State) ReceiptOwner(collection uint64, item uint32) (owner common.Address, ok bool, err error) {
	val, err := s.get(fmt.Sprintf(KeyReceipt, collection, item))
	if err != nil || val == nil {
		return owner, false, err
	}
	return common.BytesToAddress(val), true, nil
}

// SetGenesis stores the loan pool section of the genesis file so the keeper
// can be rebuilt after a restart.
func (s *State) SetGenesis(gen *types.LoanPoolGenesis) error {
	return s.setJSON(KeyGenesis, gen)
}

func (s *State) Genesis() (*types.LoanPoolGenesis, error) {
	return loadJSON[types.LoanPoolGenesis](s.get, KeyGenesis)
}
