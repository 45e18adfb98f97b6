package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/calehh/loanpool-app/app"
	"github.com/calehh/loanpool-app/crypto"
	"github.com/calehh/loanpool-app/state"
	"github.com/calehh/loanpool-app/tx"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var errNotFound = errors.New("not found")

func newClient(url string) (*comethttp.HTTP, error) {
	cli, err := comethttp.New(url, "/websocket")
	if err != nil {
		return nil, errors.Wrap(err, "new client")
	}
	return cli, nil
}

// abciQuery decodes the JSON value of a loan pool query into out.
func abciQuery(ctx context.Context, cli *comethttp.HTTP, path string, data []byte, out any) error {
	res, err := cli.ABCIQuery(ctx, path, data)
	if err != nil {
		return errors.Wrapf(err, "query %s", path)
	}
	switch res.Response.Code {
	case 0:
	case app.QueryCodeNotFound:
		return errNotFound
	default:
		return fmt.Errorf("query %s: code %d %s", path, res.Response.Code, res.Response.Log)
	}
	return json.Unmarshal(res.Response.Value, out)
}

func queryAccount(ctx context.Context, cli *comethttp.HTTP, addr common.Address) (*state.Account, error) {
	var act state.Account
	err := abciQuery(ctx, cli, "/accounts/", addr.Bytes(), &act)
	if err == errNotFound {
		return &state.Account{Address: addr}, nil
	}
	if err != nil {
		return nil, err
	}
	return &act, nil
}

type txArguments struct {
	Url    string
	Skey   string
	Nonce  uint64
	NoSend bool
}

func txFlags(cmd *cobra.Command, args *txArguments) {
	urlFlag(cmd, &args.Url)
	skeyFlag(cmd, &args.Skey)
	cmd.Flags().Uint64VarP(&args.Nonce, "nonce", "n", 0, "account nonce, queried from the node when 0")
	cmd.Flags().BoolVarP(&args.NoSend, "nosend", "", false, "print the signed transaction instead of broadcasting it")
}

// sendTx signs payload as a tx of type tp with the key at args.Skey and
// broadcasts it. A non-zero CheckTx code is returned as an error.
func sendTx(args *txArguments, tp tx.LoanTxType, payload any) error {
	cli, err := newClient(args.Url)
	if err != nil {
		return err
	}
	ctx := context.Background()
	gres, err := cli.Genesis(ctx)
	if err != nil {
		return errors.Wrap(err, "get chain genesis")
	}
	pv, err := crypto.LoadFilePV(args.Skey)
	if err != nil {
		return err
	}
	nonce := args.Nonce
	if nonce == 0 {
		act, err := queryAccount(ctx, cli, pv.Address())
		if err != nil {
			return err
		}
		nonce = act.Nonce
	}
	btx := &tx.LoanTx{
		Version: tx.LoanTxVersion0,
		Type:    tp,
		Nonce:   nonce,
		Tx:      payload,
	}
	if err = pv.SignTx(btx, gres.Genesis.ChainID); err != nil {
		return errors.Wrap(err, "sign tx")
	}
	dat, err := tx.MarshalLoanTx(btx)
	if err != nil {
		return err
	}
	if args.NoSend {
		fmt.Println(hex.EncodeToString(dat))
		return nil
	}
	res, err := cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return errors.Wrap(err, "broadcast tx")
	}
	if res.Code != 0 {
		return fmt.Errorf("%s rejected: code %d %s", tp, res.Code, res.Log)
	}
	fmt.Printf("%s sent: hash %s nonce %d\n", tp, res.Hash, nonce)
	return nil
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func parseProposalID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid proposal id %q", s)
	}
	return id, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
