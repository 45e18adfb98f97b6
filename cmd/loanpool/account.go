package main

import (
	"context"
	"fmt"

	"github.com/calehh/loanpool-app/crypto"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

type accountArguments struct {
	Url     string
	Address string
	Skey    string
}

var accountArgs accountArguments

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the balances and nonce of an account",
	Long:  `Show an account by --address, or the account of the key at --skeyPath.`,
	Args:  cobra.NoArgs,
	RunE:  accountRun,
}

func init() {
	urlFlag(accountCmd, &accountArgs.Url)
	skeyFlag(accountCmd, &accountArgs.Skey)
	accountCmd.Flags().StringVarP(&accountArgs.Address, "address", "a", "", "account address")
}

func accountRun(cmd *cobra.Command, args []string) error {
	var addr common.Address
	if len(accountArgs.Address) > 0 {
		a, err := parseAddress(accountArgs.Address)
		if err != nil {
			return err
		}
		addr = a
	} else {
		pv, err := crypto.LoadFilePV(accountArgs.Skey)
		if err != nil {
			return err
		}
		addr = pv.Address()
	}
	cli, err := newClient(accountArgs.Url)
	if err != nil {
		return err
	}
	act, err := queryAccount(context.Background(), cli, addr)
	if err != nil {
		return err
	}
	fmt.Printf("address:%v free:%v reserved:%v nonce:%v pk:%v\n",
		act.Address.Hex(), act.Free, act.Reserved, act.Nonce, common.Bytes2Hex(act.PubKey))
	return nil
}
