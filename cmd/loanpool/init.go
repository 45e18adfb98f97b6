package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/calehh/loanpool-app/config"
	"github.com/calehh/loanpool-app/tx"
	"github.com/calehh/loanpool-app/types"
	cmtos "github.com/cometbft/cometbft/libs/os"
	cmttypes "github.com/cometbft/cometbft/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type printInfo struct {
	ChainID    string          `json:"chain_id"`
	NodeID     string          `json:"node_id"`
	Root       common.Address  `json:"root"`
	AppMessage json.RawMessage `json:"app_message"`
}

func displayInfo(info printInfo) error {
	out, err := json.MarshalIndent(info, "", " ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(os.Stderr, "%s\n", out)
	return err
}

type initArguments struct {
	Home        string
	ChainID     string
	Overwrite   bool
	Balance     uint64
	PoolBalance uint64
}

var initArgs initArguments

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize private validator, p2p, genesis, and application configuration files",
	Long: `Initialize the validator's and node's configuration files.

The validator key becomes the root account of the loan pool: it is funded,
holds every privileged origin and is the only committee member.`,
	Args: cobra.NoArgs,
	RunE: initRun,
}

func init() {
	homeFlag(initCmd, &initArgs.Home)
	initCmd.Flags().BoolVarP(&initArgs.Overwrite, FlagOverwrite, "o", false, "overwrite the genesis.json file")
	initCmd.Flags().StringVar(&initArgs.ChainID, FlagChainID, "", "genesis file chain-id, if left blank will be randomly created")
	initCmd.Flags().Uint64Var(&initArgs.Balance, FlagBalance, 20_000_000, "free balance of the root account")
	initCmd.Flags().Uint64Var(&initArgs.PoolBalance, FlagPool, 20_000_000, "initial balance of the loan pool")
}

// initConfig reuses an existing config.toml so edited [app.loanpool] params
// are carried into a regenerated genesis.
func initConfig(home string) (*config.Config, error) {
	home, err := config.ResolveHome(home)
	if err != nil {
		return nil, err
	}
	if cmtos.FileExists(filepath.Join(home, "config", "config.toml")) {
		return config.LoadConfig(home)
	}
	cfg := config.DefaultConfig(home)
	if err := os.MkdirAll(filepath.Join(home, "config"), config.DefaultDirPerm); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(home, "data"), config.DefaultDirPerm); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initRun(cmd *cobra.Command, args []string) error {
	cfg, err := initConfig(initArgs.Home)
	if err != nil {
		return err
	}
	genFile := cfg.GenesisFile()
	if !initArgs.Overwrite && cmtos.FileExists(genFile) {
		return fmt.Errorf("genesis file %s already exists, use --%s", genFile, FlagOverwrite)
	}

	chainID := initArgs.ChainID
	if chainID == "" {
		chainID = fmt.Sprintf("loanpool-%v", rand.Uint64())
	}

	nodeID, pk, err := config.InitializeNodeValidatorFiles(cfg, nil)
	if err != nil {
		return err
	}
	root := tx.SenderAddress(pk.Bytes())
	everyone := []common.Address{root}

	gen := types.DefaultLoanPoolGenesis()
	gen.Params = cfg.App.LoanPool
	gen.Balances = []types.GenesisBalance{{Address: root, Amount: initArgs.Balance}}
	gen.PoolBalance = initArgs.PoolBalance
	gen.Committee = everyone
	gen.Authorities = types.GenesisAuthorities{
		Approve:   everyone,
		Reject:    everyone,
		Committee: everyone,
		Delete:    everyone,
		Verify:    everyone,
	}
	if err = gen.Validate(); err != nil {
		return errors.Wrap(err, "invalid genesis app state")
	}
	appState, err := json.MarshalIndent(gen, "", "  ")
	if err != nil {
		return err
	}

	appGenesis := &types.GenesisDoc{
		GenesisTime:     time.Now(),
		ChainID:         chainID,
		ConsensusParams: cmttypes.DefaultConsensusParams(),
		InitialHeight:   1,
		Validators: []types.GenesisValidator{
			{Address: pk.Address(), PubKey: pk, Power: types.DefaultPower},
		},
		AppState: appState,
	}
	if err = types.ExportGenesisFile(appGenesis, genFile); err != nil {
		return errors.Wrap(err, "failed to export genesis file")
	}
	if err = config.WriteConfigFile(filepath.Join(cfg.RootDir, "config", "config.toml"), cfg); err != nil {
		return err
	}
	return displayInfo(printInfo{ChainID: chainID, NodeID: nodeID, Root: root, AppMessage: appState})
}
