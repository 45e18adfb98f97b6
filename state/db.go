package state

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/calehh/loanpool-app/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	"github.com/cosmos/iavl"
	dbm "github.com/cosmos/iavl/db"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

const proposalCacheSize = 1024

type StateDB struct {
	mtx sync.RWMutex

	dir    string
	logger cmtlog.Logger
	db     *iavl.MutableTree

	state     *State
	proposals *lru.Cache[proposalKey, *types.Proposal]
}

type proposalKey struct {
	version int64
	id      uint64
}

func NewStateDB(dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	ldb, err := dbm.NewDB("loanpool", "goleveldb", dir)
	if err != nil {
		return nil, errors.Wrapf(err, "open db %s", dir)
	}
	return newStateDB(ldb, dir, logger)
}

// NewMemStateDB keeps the whole tree in memory.
func NewMemStateDB(logger cmtlog.Logger) (*StateDB, error) {
	return newStateDB(dbm.NewMemDB(), "", logger)
}

func newStateDB(ldb dbm.DB, dir string, logger cmtlog.Logger) (db *StateDB, err error) {
	logger = logger.With("module", "loanpooldb")
	tdb := iavl.NewMutableTree(ldb, 128, true, Cometbft2CosmosLogger(logger))
	version, err := tdb.Load()
	if err != nil {
		return nil, err
	}
	logger.Info("load db success", "version", version)
	st := newState(tdb, logger)
	err = st.load()
	if err != nil {
		logger.Error("from loanpooldb load fail", "err", err)
		return nil, err
	}
	cache, err := lru.New[proposalKey, *types.Proposal](proposalCacheSize)
	if err != nil {
		return nil, err
	}
	db = &StateDB{
		dir:       dir,
		logger:    logger,
		db:        tdb,
		state:     st,
		proposals: cache,
	}
	return
}

func (db *StateDB) Close() (err error) {
	err = db.db.Close()
	return
}

func (db *StateDB) Header() (header *StateHeader) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	header = db.state.Header()
	return
}

func (db *StateDB) State() *State {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	return db.state
}

func (db *StateDB) NewState() (st *State) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	st = db.state.nextState()
	return
}

func (db *StateDB) SetState(st *State) (hash common.Hash, err error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	hash, err = st.save()
	if err != nil {
		return
	}
	db.state = st
	db.proposals.Purge()
	return
}

// committed returns a reader over the last saved version together with its height.
func (db *StateDB) committed() (read reader, height uint64, err error) {
	read, height, _, err = db.committedVersion()
	return
}

func (db *StateDB) committedVersion() (read reader, height uint64, version int64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	height = db.state.header.Height
	version = db.state.dbVer
	if version == 0 {
		return func(string) ([]byte, error) { return nil, nil }, height, version, nil
	}
	tree, err := db.db.GetImmutable(version)
	if err != nil {
		return nil, 0, 0, err
	}
	return func(key string) ([]byte, error) { return tree.Get([]byte(key)) }, height, version, nil
}

func (db *StateDB) GetAccount(addr common.Address) (acnt *Account, height uint64, err error) {
	read, height, err := db.committed()
	if err != nil {
		return
	}
	val, err := read(fmt.Sprintf(KeyAccountBody, addr.Bytes()))
	if err != nil || val == nil {
		return nil, height, err
	}
	acnt, err = decodeAccount(addr, val)
	return
}

func (db *StateDB) GetProposal(id uint64) (p *types.Proposal, height uint64, err error) {
	read, height, version, err := db.committedVersion()
	if err != nil {
		return
	}
	key := proposalKey{version: version, id: id}
	if cached, ok := db.proposals.Get(key); ok {
		return cached, height, nil
	}
	p, err = loadJSON[types.Proposal](read, fmt.Sprintf(KeyProposalBody, id))
	if err != nil || p == nil {
		return nil, height, err
	}
	db.proposals.Add(key, p)
	return p, height, nil
}

// ListProposals pages through stored proposals, newest first.
func (db *StateDB) ListProposals(page, pageSize int) (ps []*types.Proposal, height uint64, err error) {
	read, height, err := db.committed()
	if err != nil {
		return
	}
	val, err := read(KeyProposalIndex)
	if err != nil || len(val) != 8 {
		return []*types.Proposal{}, height, err
	}
	ps = make([]*types.Proposal, 0, pageSize)
	skip := page * pageSize
	for id := binary.BigEndian.Uint64(val); id > 0 && len(ps) < pageSize; id-- {
		p, err := loadJSON[types.Proposal](read, fmt.Sprintf(KeyProposalBody, id))
		if err != nil {
			return nil, height, err
		}
		if p == nil {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		ps = append(ps, p)
	}
	return ps, height, nil
}

func (db *StateDB) GetCommittee() (c *types.Committee, height uint64, err error) {
	read, height, err := db.committed()
	if err != nil {
		return
	}
	c, err = loadJSON[types.Committee](read, KeyCommittee)
	if err == nil && c == nil {
		c = &types.Committee{Members: []common.Address{}}
	}
	return
}

func (db *StateDB) GetGenesis() (gen *types.LoanPoolGenesis, height uint64, err error) {
	read, height, err := db.committed()
	if err != nil {
		return
	}
	gen, err = loadJSON[types.LoanPoolGenesis](read, KeyGenesis)
	return
}

func (db *StateDB) GetEscrow(id uint64) (e *types.Escrow, height uint64, err error) {
	read, height, err := db.committed()
	if err != nil {
		return
	}
	e, err = loadJSON[types.Escrow](read, fmt.Sprintf(KeyEscrowBody, id))
	return
}

func (db *StateDB) Validators() (vals []Validator, height uint64, err error) {
	db.mtx.RLock()
	defer db.mtx.RUnlock()
	height = db.state.header.Height
	if db.state.dbVer == 0 {
		return []Validator{}, height, nil
	}
	tree, err := db.db.GetImmutable(db.state.dbVer)
	if err != nil {
		return nil, 0, err
	}
	vals, err = iterateValidators(tree)
	return
}
