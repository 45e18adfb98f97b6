package crypto

import (
	"path/filepath"
	"testing"

	"github.com/calehh/loanpool-app/tx"
	"github.com/cometbft/cometbft/crypto/ed25519"
	"github.com/cometbft/cometbft/privval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFilePVAndSignTx(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "priv_validator_key.json")
	stateFile := filepath.Join(dir, "priv_validator_state.json")
	filePV := privval.GenFilePV(keyFile, stateFile)
	filePV.Save()

	pv, err := LoadFilePV(keyFile)
	require.NoError(t, err)
	assert.Equal(t, filePV.Key.PubKey.Bytes(), pv.PublicKey())
	assert.Equal(t, tx.SenderAddress(pv.PublicKey()), pv.Address())

	btx := &tx.LoanTx{
		Version: tx.LoanTxVersion0,
		Type:    tx.LoanTxTypeVote,
		Nonce:   3,
		Tx:      &tx.VoteTx{Proposal: 1, Aye: true},
	}
	require.NoError(t, pv.SignTx(btx, "chain-a"))
	require.Len(t, btx.Sig, 1)

	dat, err := btx.SigData([]byte("chain-a"))
	require.NoError(t, err)
	pk := ed25519.PubKey(pv.PublicKey())
	assert.True(t, pk.VerifySignature(dat, btx.Sig[0]))

	other, err := btx.SigData([]byte("chain-b"))
	require.NoError(t, err)
	assert.False(t, pk.VerifySignature(other, btx.Sig[0]))
}

func TestLoadFilePVMissing(t *testing.T) {
	_, err := LoadFilePV(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}
