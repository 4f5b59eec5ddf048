package boltz

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) []byte {
	decoded, err := hex.DecodeString(raw)
	require.NoError(t, err)
	return decoded
}

func key(t *testing.T, raw string) *btcec.PublicKey {
	key, err := btcec.ParsePubKey(decode(t, raw))
	require.NoError(t, err)
	return key
}

func TestLeafScripts(t *testing.T) {
	tests := []struct {
		name               string
		isReverse          bool
		claimPubKey        string
		refundPubKey       string
		preimageHash       string
		timeoutBlockHeight uint32

		claimLeaf  string
		refundLeaf string
	}{
		{
			name:               "reverse",
			isReverse:          true,
			claimPubKey:        "0217ccb3202dd3a3ad29f4bc046f2b51904ece962a6e5b05da73f5eb5eeb99b1b3",
			refundPubKey:       "0328baf0584489b39d218d0a59bbee01e93be6fba696b348a4033045f3cdc7dc37",
			preimageHash:       "a1164fdb247b47931ed41fa1bd53391205406aa723adf4fda10b9ed013001016",
			timeoutBlockHeight: 827793,

			claimLeaf:  "82012088a914fedcea7dea7e4c7923984fab9c0b409a4ea7f38a882017ccb3202dd3a3ad29f4bc046f2b51904ece962a6e5b05da73f5eb5eeb99b1b3ac",
			refundLeaf: "2028baf0584489b39d218d0a59bbee01e93be6fba696b348a4033045f3cdc7dc37ad0391a10cb1",
		},
		{
			name:               "submarine",
			claimPubKey:        "020e9e82ede019c483ef12f0a05a2f602be53a10f72cce88d6975a24592cf9ce07",
			refundPubKey:       "0278711c01248c5db8436e07c43d651355a1415f3f43d4edf2d2147bfa66c20605",
			preimageHash:       "8cc63191120acf891b9eff49136a92c421e833171ace1ee94a0838052f0c0f86",
			timeoutBlockHeight: 828670,

			claimLeaf:  "a9140aa6567ec32c5f62f0413be0fddc819f1d6fd0dd88200e9e82ede019c483ef12f0a05a2f602be53a10f72cce88d6975a24592cf9ce07ac",
			refundLeaf: "2078711c01248c5db8436e07c43d651355a1415f3f43d4edf2d2147bfa66c20605ad03fea40cb1",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			claim, err := claimScript(test.isReverse, decode(t, test.preimageHash), key(t, test.claimPubKey))
			require.NoError(t, err)
			require.Equal(t, test.claimLeaf, hex.EncodeToString(claim))

			refund, err := refundScript(test.timeoutBlockHeight, key(t, test.refundPubKey))
			require.NoError(t, err)
			require.Equal(t, test.refundLeaf, hex.EncodeToString(refund))
		})
	}
}

func newTestTree(t *testing.T, isReverse bool) (*SwapTree, *btcec.PrivateKey, *btcec.PrivateKey, []byte) {
	ourKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	boltzKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	preimageHash := sha256.Sum256([]byte("preimage"))

	tree, err := NewSwapTree(isReverse, ourKey, boltzKey.PubKey(), preimageHash[:], 1000)
	require.NoError(t, err)
	return tree, ourKey, boltzKey, preimageHash[:]
}

func TestSwapTree(t *testing.T) {
	for _, isReverse := range []bool{true, false} {
		tree, ourKey, boltzKey, preimageHash := newTestTree(t, isReverse)

		require.NoError(t, tree.Check(preimageHash, 1000))
		require.Error(t, tree.Check(preimageHash, 1001))
		require.Error(t, tree.Check(make([]byte, 32), 1000))

		for _, isRefund := range []bool{true, false} {
			controlBlock, err := tree.GetControlBlock(isRefund)
			require.NoError(t, err)
			require.Len(t, controlBlock, 65)
		}

		blindingKey, err := btcec.NewPrivateKey()
		require.NoError(t, err)
		address, err := tree.Address(TestNet, blindingKey.PubKey())
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(address, "tlq1p"))
		require.NoError(t, tree.CheckAddress(address, TestNet, blindingKey.PubKey()))
		require.Error(t, tree.CheckAddress(address, TestNet, nil))

		// the serialized form boltz sends us has to result in the same output key
		raw, err := json.Marshal(tree.Serialize())
		require.NoError(t, err)
		var serialized SerializedTree
		require.NoError(t, json.Unmarshal(raw, &serialized))
		deserialized, err := serialized.Deserialize()
		require.NoError(t, err)
		require.NoError(t, deserialized.Init(isReverse, ourKey, boltzKey.PubKey()))
		require.True(t, tree.PubKey().IsEqual(deserialized.PubKey()))
	}
}

func TestSwapTreeUninitialized(t *testing.T) {
	var serialized *SerializedTree
	_, err := serialized.Deserialize()
	require.Error(t, err)

	tree := &SwapTree{}
	_, err = tree.Address(TestNet, nil)
	require.Error(t, err)
	_, err = NewSigningSession(tree)
	require.Error(t, err)

	serialized = &SerializedTree{
		ClaimLeaf:  SerializedLeaf{Version: 192},
		RefundLeaf: SerializedLeaf{Version: 192},
	}
	_, err = serialized.Deserialize()
	require.Error(t, err)
}

func TestMusigSign(t *testing.T) {
	tree, _, boltzKey, _ := newTestTree(t, false)

	session, err := NewSigningSession(tree)
	require.NoError(t, err)

	boltzNonces, err := musig2.GenNonces(musig2.WithPublicKey(boltzKey.PubKey()))
	require.NoError(t, err)

	hash := sha256.Sum256([]byte("transaction"))
	_, err = session.Sign(hash[:16], boltzNonces.PubNonce[:])
	require.Error(t, err)

	signature, err := session.Sign(hash[:], boltzNonces.PubNonce[:])
	require.NoError(t, err)
	require.Len(t, signature.PubNonce, musig2.PubNonceSize)
	require.Len(t, signature.PartialSignature, 32)

	_, err = decodePartialSignature(signature.PartialSignature)
	require.NoError(t, err)

	_, err = decodePartialSignature(signature.PartialSignature[:31])
	require.Error(t, err)

	overflow := bytes.Repeat([]byte{0xff}, 32)
	_, err = decodePartialSignature(overflow)
	require.Error(t, err)
}
