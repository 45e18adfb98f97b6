package main

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calehh/loanpool-app/app"
	"github.com/calehh/loanpool-app/config"
	"github.com/calehh/loanpool-app/indexer"
	cmtconfig "github.com/cometbft/cometbft/config"
	cmtflags "github.com/cometbft/cometbft/libs/cli/flags"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	"github.com/cometbft/cometbft/p2p"
	"github.com/cometbft/cometbft/privval"
	"github.com/cometbft/cometbft/proxy"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var homeDir string

var rootCmd = &cobra.Command{
	Use:   "loanpool",
	Short: "Community loan pool node",
	Long: `A CometBFT chain that funds community loans out of a shared pool.
Proposals are bonded, voted on by a committee and paid out per milestone.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runNode,
}

func init() {
	homeFlag(rootCmd, &homeDir)
}

func runNode(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(homeDir)
	if err != nil {
		return err
	}

	pv := privval.LoadFilePV(
		cfg.PrivValidatorKeyFile(),
		cfg.PrivValidatorStateFile(),
	)
	nodeKey, err := p2p.LoadNodeKey(cfg.NodeKeyFile())
	if err != nil {
		return errors.Wrap(err, "failed to load node's key")
	}

	logger := cmtlog.NewTMLogger(cmtlog.NewSyncWriter(os.Stdout))
	logger, err = cmtflags.ParseLogLevel(cfg.LogLevel, logger, cmtconfig.DefaultLogLevel)
	if err != nil {
		return errors.Wrap(err, "failed to parse log level")
	}

	loanApp, err := app.NewLoanPoolApp(cfg.App, logger)
	if err != nil {
		return errors.Wrap(err, "new app")
	}

	node, err := nm.NewNode(
		cfg.Config,
		pv,
		nodeKey,
		proxy.NewLocalClientCreator(loanApp),
		nm.DefaultGenesisDocProviderFunc(cfg.Config),
		cmtconfig.DefaultDBProvider,
		nm.DefaultMetricsProvider(cfg.Instrumentation),
		logger,
	)
	if err != nil {
		loanApp.Stop()
		return errors.Wrap(err, "creating node")
	}
	if err = node.Start(); err != nil {
		loanApp.Stop()
		return errors.Wrap(err, "start comet node")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var svc *indexer.Service
	if cfg.App.Indexer.Enable {
		svc, err = startIndexer(ctx, cfg, logger)
		if err != nil {
			logger.Error("indexer disabled", "err", err)
		}
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("shutting down")
	if svc != nil {
		if err := svc.Stop(context.Background()); err != nil {
			logger.Error("stop indexer service", "err", err)
		}
	}
	cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := node.Stop(); err != nil {
			logger.Error("stop comet node", "err", err)
		}
		node.Wait()
		loanApp.Stop()
	}()
	select {
	case <-time.After(10 * time.Second):
		return errors.New("shutdown timed out")
	case <-done:
		return nil
	}
}

// startIndexer polls the local rpc endpoint and serves the indexed tables.
func startIndexer(ctx context.Context, cfg *config.Config, logger cmtlog.Logger) (*indexer.Service, error) {
	rpcUrl, err := url.Parse(cfg.RPC.ListenAddress)
	if err != nil {
		return nil, errors.Wrap(err, "parse rpc listen address")
	}
	rpcUrl.Scheme = "http"
	cli, err := comethttp.New(rpcUrl.String(), "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := indexer.OpenDB(cfg.App.IndexerDBFile())
	if err != nil {
		return nil, err
	}
	idx, err := indexer.NewChainIndexer(logger, db, cli)
	if err != nil {
		db.Close()
		return nil, err
	}
	go func() {
		idx.Start(ctx, cfg.App.Indexer.PollInterval)
		idx.Close()
	}()

	svc := indexer.NewService(cfg.App.Indexer.ListenAddress, idx)
	go func() {
		if err := svc.Start(); err != nil {
			logger.Error("indexer service stopped", "err", err)
		}
	}()
	logger.Info("indexer started", "listen", cfg.App.Indexer.ListenAddress, "db", cfg.App.IndexerDBFile())
	return svc, nil
}
