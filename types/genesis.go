package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cometbft/cometbft/crypto"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
)

const ModuleName = "loanpool"
const DefaultPower = 1000

type GenesisValidator struct {
	Address crypto.Address `json:"address"`
	PubKey  crypto.PubKey  `json:"pub_key"`
	Power   int64          `json:"power"`
	Name    string         `json:"name"`
}

// GenesisDoc defines the initial conditions for the chain, in particular its validator set.
type GenesisDoc struct {
	GenesisTime     time.Time                 `json:"genesis_time"`
	ChainID         string                    `json:"chain_id"`
	InitialHeight   int64                     `json:"initial_height"`
	ConsensusParams *cmttypes.ConsensusParams `json:"consensus_params,omitempty"`
	Validators      []GenesisValidator        `json:"validators"`
	AppHash         []byte                    `json:"app_hash"`
	AppState        json.RawMessage           `json:"app_state"`
}

type GenesisBalance struct {
	Address common.Address `json:"address"`
	Amount  uint64         `json:"amount"`
}

// GenesisAuthorities lists the accounts admitted by each privileged origin.
type GenesisAuthorities struct {
	Approve   []common.Address `json:"approve"`
	Reject    []common.Address `json:"reject"`
	Committee []common.Address `json:"committee"`
	Delete    []common.Address `json:"delete"`
	Verify    []common.Address `json:"verify"`
}

// LoanPoolGenesis is the app_state of the genesis file.
type LoanPoolGenesis struct {
	Params      Params             `json:"params"`
	Balances    []GenesisBalance   `json:"balances"`
	PoolBalance uint64             `json:"pool_balance"`
	Committee   []common.Address   `json:"committee"`
	Authorities GenesisAuthorities `json:"authorities"`
}

func DefaultLoanPoolGenesis() *LoanPoolGenesis {
	return &LoanPoolGenesis{
		Params:      DefaultParams(),
		Balances:    []GenesisBalance{},
		PoolBalance: 0,
		Committee:   []common.Address{},
	}
}

func (g *LoanPoolGenesis) Validate() error {
	if err := g.Params.Validate(); err != nil {
		return err
	}
	if uint32(len(g.Committee)) > g.Params.MaxCommitteeMembers {
		return fmt.Errorf("genesis committee has %d members, max %d", len(g.Committee), g.Params.MaxCommitteeMembers)
	}
	seen := make(map[common.Address]struct{}, len(g.Committee))
	for _, m := range g.Committee {
		if _, ok := seen[m]; ok {
			return fmt.Errorf("duplicate committee member %s", m.Hex())
		}
		seen[m] = struct{}{}
	}
	return nil
}

// SaveAs is a utility method for saving GenensisDoc as a JSON file.
func (genDoc *GenesisDoc) SaveAs(file string) error {
	genDocBytes, err := cmtjson.MarshalIndent(genDoc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(file, genDocBytes, 0o600)
}

func (ag *GenesisDoc) ValidateAndComplete() error {
	if ag.ChainID == "" {
		return errors.New("genesis doc must include non-empty chain_id")
	}

	if ag.InitialHeight < 0 {
		return fmt.Errorf("initial_height cannot be negative (got %v)", ag.InitialHeight)
	}

	if ag.InitialHeight == 0 {
		ag.InitialHeight = 1
	}

	if ag.GenesisTime.IsZero() {
		ag.GenesisTime = time.Now().Round(0).UTC()
	}

	return nil
}

func ExportGenesisFile(genesis *GenesisDoc, genFile string) error {
	if err := genesis.ValidateAndComplete(); err != nil {
		return err
	}
	return genesis.SaveAs(genFile)
}

// ParseAppState decodes the loan pool section of a genesis file. An empty
// app_state yields the defaults.
func ParseAppState(raw []byte) (*LoanPoolGenesis, error) {
	gen := DefaultLoanPoolGenesis()
	if len(raw) == 0 || string(raw) == "null" || string(raw) == "{}" {
		return gen, nil
	}
	if err := json.Unmarshal(raw, gen); err != nil {
		return nil, err
	}
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	return gen, nil
}
