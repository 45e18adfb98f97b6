package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/calehh/loanpool-app/types"
	"github.com/cometbft/cometbft/config"
	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const DefaultHomeDir = "~/.loanpool"

type IndexerConfig struct {
	Enable        bool          `mapstructure:"enable"`
	ListenAddress string        `mapstructure:"listen_address"`
	DBPath        string        `mapstructure:"db_path"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
}

type LoanPoolAppConfig struct {
	Home string `mapstructure:"-"`

	Indexer IndexerConfig `mapstructure:"indexer"`
	// LoanPool seeds the app_state written by init. A running chain takes
	// its params from genesis.
	LoanPool types.Params `mapstructure:"loanpool"`
}

func DefaultLoanPoolAppConfig(home string) *LoanPoolAppConfig {
	return &LoanPoolAppConfig{
		Home: home,
		Indexer: IndexerConfig{
			Enable:        true,
			ListenAddress: "127.0.0.1:8089",
			DBPath:        "data/indexer.db",
			PollInterval:  time.Second,
		},
		LoanPool: types.DefaultParams(),
	}
}

func (c *LoanPoolAppConfig) ValidateBasic() error {
	if c.Indexer.Enable && c.Indexer.PollInterval <= 0 {
		return errors.New("app.indexer.poll_interval must be positive")
	}
	return errors.Wrap(c.LoanPool.Validate(), "app.loanpool")
}

// IndexerDBFile resolves the indexer database against the home dir.
func (c *LoanPoolAppConfig) IndexerDBFile() string {
	if filepath.IsAbs(c.Indexer.DBPath) {
		return c.Indexer.DBPath
	}
	return filepath.Join(c.Home, c.Indexer.DBPath)
}

type Config struct {
	*config.Config `mapstructure:",squash"`

	App *LoanPoolAppConfig `mapstructure:"app"`
}

// ResolveHome expands ~ and falls back to DefaultHomeDir.
func ResolveHome(home string) (string, error) {
	if len(home) == 0 {
		home = DefaultHomeDir
	}
	return homedir.Expand(home)
}

func DefaultConfig(home string) *Config {
	cfg := &Config{
		Config: DefaultCometConfig(),
		App:    DefaultLoanPoolAppConfig(home),
	}
	cfg.SetRoot(home)
	return cfg
}

// LoadConfig reads <home>/config/config.toml over the defaults.
func LoadConfig(home string) (*Config, error) {
	home, err := ResolveHome(home)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig(home)

	v := viper.New()
	v.SetConfigFile(filepath.Join(home, "config", "config.toml"))
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	cfg.SetRoot(home)
	cfg.App.Home = home
	if err := cfg.ValidateBasic(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration data")
	}
	if err := cfg.App.ValidateBasic(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration data")
	}
	return cfg, nil
}

func InitializeNodeValidatorFiles(config *Config, privKey crypto.PrivKey) (nodeID string, pk crypto.PubKey, err error) {
	nodeKey, err := p2p.LoadOrGenNodeKey(config.NodeKeyFile())
	if err != nil {
		return "", nil, err
	}
	nodeID = string(nodeKey.ID())

	pvKeyFile := config.PrivValidatorKeyFile()
	if err := os.MkdirAll(filepath.Dir(pvKeyFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvKeyFile), err)
	}

	pvStateFile := config.PrivValidatorStateFile()
	if err := os.MkdirAll(filepath.Dir(pvStateFile), 0o777); err != nil {
		return "", nil, fmt.Errorf("could not create directory %q: %w", filepath.Dir(pvStateFile), err)
	}

	var filePV *privval.FilePV
	if privKey == nil {
		filePV = privval.LoadOrGenFilePV(pvKeyFile, pvStateFile)
	} else {
		filePV = privval.NewFilePV(privKey, pvKeyFile, pvStateFile)
		filePV.Save()
	}
	pukey, err := filePV.GetPubKey()
	if err != nil {
		return "", nil, err
	}

	return nodeID, pukey, nil
}

func DefaultCometConfig() *config.Config {
	cometConfig := config.DefaultConfig()
	cometConfig.Consensus.TimeoutPropose = time.Second * 3
	cometConfig.Consensus.TimeoutPrevote = time.Second * 1
	cometConfig.Consensus.TimeoutPrecommit = time.Second * 1
	cometConfig.Consensus.TimeoutCommit = time.Millisecond * 1200
	cometConfig.Instrumentation.Prometheus = true
	return cometConfig
}
