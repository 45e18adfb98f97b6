package state

import (
	"encoding/json"
	"errors"
	"sort"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/syndtr/goleveldb/leveldb"
)

var (
	KeyState         = "s"
	KeyGenesis       = "g"
	KeyAccountBody   = "a%x"
	KeyProposalBody  = "p%020d"
	KeyProposalIndex = "ip"
	KeyBondBody      = "b%020d"
	KeyBondIndex     = "ib"
	KeyEscrowBody    = "e%020d"
	KeyReceipt       = "n%020d/%010d"
	KeyCommittee     = "c"
	KeyOngoing       = "o%020d"
	KeyOngoingCount  = "io"
	KeyValidator     = "v%x"

	KeyProposalPrefix  = []byte("p")
	KeyOngoingPrefix   = []byte("o")
	KeyValidatorPrefix = []byte("v")
)

var (
	ErrNotFound             = errors.New("not found")
	ErrTxNonceInvalid       = errors.New("nonce invalid")
	ErrTxSigInvalid         = errors.New("signature invalid")
	ErrTxPubKeyInvalid      = errors.New("public key invalid")
	ErrTxSenderMismatch     = errors.New("sender does not match public key")
	ErrStateHeightUnmatched = errors.New("state height unmatched")
)

type StateHeader struct {
	ChainId  string `json:"chainId"`
	Height   uint64 `json:"height"`
	Hash     []byte `json:"hash"`
	RootHash []byte `json:"rootHash"`
}

func (h *StateHeader) clone() *StateHeader {
	n := *h
	n.Hash = common.CopyBytes(h.Hash)
	n.RootHash = common.CopyBytes(h.RootHash)
	return &n
}

type journalEntry struct {
	key     string
	prev    []byte
	existed bool
}

// State is a block's view of the chain: pending writes overlay the last
// committed tree. A nil value in dirty marks a deletion. Every write is
// journaled so it can be reverted to a snapshot.
type State struct {
	logger cmtlog.Logger
	db     *iavl.MutableTree
	dbVer  int64

	header  *StateHeader
	dirty   map[string][]byte
	journal []journalEntry
}

func newState(db *iavl.MutableTree, logger cmtlog.Logger) *State {
	return &State{
		logger: logger,
		db:     db,
		dbVer:  0,
		header: new(StateHeader),
		dirty:  make(map[string][]byte),
	}
}

func (s *State) nextState() *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		header: s.header.clone(),
		dirty:  make(map[string][]byte),
	}
	if s.header.Hash != nil {
		n.header.Height = s.header.Height + 1
	}
	return n
}

// Clone copies the pending writes so a tx can be tried without touching s.
func (s *State) Clone() *State {
	n := &State{
		logger: s.logger,
		db:     s.db,
		dbVer:  s.dbVer,
		header: s.header.clone(),
		dirty:  make(map[string][]byte, len(s.dirty)),
	}
	for k, v := range s.dirty {
		n.dirty[k] = v
	}
	return n
}

func (s *State) load() (err error) {
	val, err := s.db.Get([]byte(KeyState))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil
		}
		return err
	}
	if val != nil {
		err = json.Unmarshal(val, s.header)
		if err != nil {
			return
		}
		h := s.db.Hash()
		if h != nil {
			s.calcHash(h, true)
		}
	}
	s.dbVer = s.db.Version()
	return
}

func (s *State) get(key string) ([]byte, error) {
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	val, err := s.db.Get([]byte(key))
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

func (s *State) set(key string, val []byte) {
	prev, existed := s.dirty[key]
	s.journal = append(s.journal, journalEntry{key: key, prev: prev, existed: existed})
	s.dirty[key] = val
}

func (s *State) del(key string) {
	s.set(key, nil)
}

func (s *State) Snapshot() int {
	return len(s.journal)
}

func (s *State) RevertToSnapshot(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		e := s.journal[i]
		if e.existed {
			s.dirty[e.key] = e.prev
		} else {
			delete(s.dirty, e.key)
		}
	}
	s.journal = s.journal[:id]
}

func (s *State) calcHash(rootHash []byte, update bool) (h common.Hash) {
	h = crypto.Keccak256Hash(rootHash)
	if update {
		s.header.RootHash = common.CopyBytes(rootHash)
		s.header.Hash = common.CopyBytes(h[:])
	}
	return
}

// Update writes the pending changes into the working tree in key order and
// returns the resulting app hash.
func (s *State) Update() (h common.Hash, err error) {
	var hash []byte
	defer func() {
		if hash == nil {
			s.db.Rollback()
		}
	}()
	var val []byte
	val, err = json.Marshal(s.header)
	if err != nil {
		return
	}
	_, err = s.db.Set([]byte(KeyState), val)
	if err != nil {
		return
	}

	keys := make([]string, 0, len(s.dirty))
	for k := range s.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := s.dirty[k]
		if v == nil {
			_, _, err = s.db.Remove([]byte(k))
		} else {
			_, err = s.db.Set([]byte(k), v)
		}
		if err != nil {
			return
		}
	}
	hash = s.db.WorkingHash()
	h = s.calcHash(hash, false)
	s.dirty = make(map[string][]byte)
	s.journal = nil
	return
}

func (s *State) save() (h common.Hash, err error) {
	hash, ver, err := s.db.SaveVersion()
	if err != nil {
		return h, err
	}

	s.dbVer = ver
	h = s.calcHash(hash, true)

	return
}

func (s *State) Header() *StateHeader {
	return s.header
}

func (s *State) Hash() (h common.Hash) {
	if s.header.Hash != nil {
		copy(h[:], s.header.Hash)
	}
	return
}

func (s *State) SetChainId(chainId string) {
	s.header.ChainId = chainId
}

func (s *State) SetHeight(height uint64) error {
	if s.header.Hash != nil && height != s.header.Height {
		return ErrStateHeightUnmatched
	}
	s.header.Height = height
	return nil
}

func (s *State) BlockHeight() uint64 {
	return s.header.Height
}

func PrefixEndBytes(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}

	end := make([]byte, len(prefix))
	copy(end, prefix)

	for {
		if end[len(end)-1] != byte(255) {
			end[len(end)-1]++
			break
		}

		end = end[:len(end)-1]

		if len(end) == 0 {
			end = nil
			break
		}
	}

	return end
}
