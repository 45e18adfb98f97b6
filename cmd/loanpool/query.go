package main

import (
	"context"
	"encoding/json"

	"github.com/calehh/loanpool-app/app"
	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/types"
	"github.com/spf13/cobra"
)

type queryArguments struct {
	Url      string
	Page     int
	PageSize int
}

var queryArgs queryArguments

var queryCmd = &cobra.Command{
	Use:     "query",
	Aliases: []string{"q"},
	Short:   "Query the committed loan pool state",
}

// runQuery prints the value of path, or reports what was not found.
func runQuery(path string, data []byte, out any) error {
	cli, err := newClient(queryArgs.Url)
	if err != nil {
		return err
	}
	if err = abciQuery(context.Background(), cli, path, data, out); err != nil {
		return err
	}
	return printJSON(out)
}

var proposalQueryCmd = &cobra.Command{
	Use:   "proposal <proposal-id>",
	Short: "Show a proposal with its milestones and tally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return runQuery("/proposals/", app.EncodeQueryID(id), &types.Proposal{})
	},
}

var proposalsQueryCmd = &cobra.Command{
	Use:   "proposals",
	Short: "List proposals, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.Marshal(app.ListRequest{Page: queryArgs.Page, PageSize: queryArgs.PageSize})
		if err != nil {
			return err
		}
		var ps []*types.Proposal
		return runQuery("/proposals/", data, &ps)
	},
}

var escrowQueryCmd = &cobra.Command{
	Use:   "escrow <proposal-id>",
	Short: "Show the escrow of an approved loan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProposalID(args[0])
		if err != nil {
			return err
		}
		return runQuery("/escrows/", app.EncodeQueryID(id), &types.Escrow{})
	},
}

var committeeQueryCmd = &cobra.Command{
	Use:   "committee",
	Short: "Show the voting committee",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("/committee/", nil, &types.Committee{})
	},
}

var paramsQueryCmd = &cobra.Command{
	Use:   "params",
	Short: "Show the loan pool parameters fixed at genesis",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("/params/", nil, &types.Params{})
	},
}

var poolQueryCmd = &cobra.Command{
	Use:   "pool",
	Short: "Show the pool account balances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery("/pool/", nil, &app.PoolInfo{})
	},
}

var validatorsQueryCmd = &cobra.Command{
	Use:   "validators",
	Short: "Show the validator set",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var vals []state.Validator
		return runQuery("/validators/", nil, &vals)
	},
}

func init() {
	queryCmd.PersistentFlags().StringVarP(&queryArgs.Url, "url", "u", "http://127.0.0.1:26657", "loanpool node rpc url")
	proposalsQueryCmd.Flags().IntVar(&queryArgs.Page, "page", 0, "page number, from 0")
	proposalsQueryCmd.Flags().IntVar(&queryArgs.PageSize, "page-size", 20, "proposals per page")
	queryCmd.AddCommand(
		proposalQueryCmd,
		proposalsQueryCmd,
		escrowQueryCmd,
		committeeQueryCmd,
		paramsQueryCmd,
		poolQueryCmd,
		validatorsQueryCmd,
	)
}
