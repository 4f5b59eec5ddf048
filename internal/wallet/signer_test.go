package wallet

import (
	"testing"

	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/stretchr/testify/require"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testPubkey   = "03d902f35f560e0470c63313c7369168d9d7df2d49bf295fd9fb7cb109ccee0494"
)

func testSigner(t *testing.T) *Signer {
	signer, err := NewSigner(testMnemonic, boltz.TestNet)
	require.NoError(t, err)
	return signer
}

func TestSignerPubkey(t *testing.T) {
	for _, network := range []*boltz.Network{boltz.MainNet, boltz.TestNet, boltz.Regtest} {
		t.Run(network.Name, func(t *testing.T) {
			signer, err := NewSigner(testMnemonic, network)
			require.NoError(t, err)
			require.Equal(t, testPubkey, signer.Pubkey())
		})
	}
}

func TestSignerInvalidMnemonic(t *testing.T) {
	_, err := NewSigner("abandon abandon abandon", boltz.TestNet)
	require.ErrorIs(t, err, ErrInvalidMnemonic)

	_, err = NewSigner("abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon", boltz.TestNet)
	require.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestDeriveSwapKey(t *testing.T) {
	signer := testSigner(t)

	first, err := signer.DeriveSwapKey(boltz.NormalSwap, 0)
	require.NoError(t, err)
	again, err := signer.DeriveSwapKey(boltz.NormalSwap, 0)
	require.NoError(t, err)
	require.Equal(t, first.Serialize(), again.Serialize())

	next, err := signer.DeriveSwapKey(boltz.NormalSwap, 1)
	require.NoError(t, err)
	require.NotEqual(t, first.Serialize(), next.Serialize())

	reverse, err := signer.DeriveSwapKey(boltz.ReverseSwap, 0)
	require.NoError(t, err)
	require.NotEqual(t, first.Serialize(), reverse.Serialize())
}

func TestDeriveAddress(t *testing.T) {
	signer := testSigner(t)

	external, err := signer.deriveAddress(chainExternal, 0)
	require.NoError(t, err)
	require.Regexp(t, "^tlq1qq", external.Address)
	require.Len(t, external.Script, 22)

	internal, err := signer.deriveAddress(chainInternal, 0)
	require.NoError(t, err)
	require.NotEqual(t, external.Address, internal.Address)

	keys, err := signer.accountPrivateKeys([]keyPath{external.keyPath, internal.keyPath})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.True(t, keys[0].PubKey().IsEqual(external.PubKey))
	require.True(t, keys[1].PubKey().IsEqual(internal.PubKey))

	mainnet, err := NewSigner(testMnemonic, boltz.MainNet)
	require.NoError(t, err)
	address, err := mainnet.deriveAddress(chainExternal, 0)
	require.NoError(t, err)
	require.Regexp(t, "^lq1qq", address.Address)
}
