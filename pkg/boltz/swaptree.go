package boltz

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcec/v2/schnorr/musig2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/input"
	"github.com/vulpemventures/go-elements/payment"
	"github.com/vulpemventures/go-elements/taproot"
)

const leafVersionLiquid txscript.TapscriptLeafVersion = 196

type TapLeaf = txscript.TapLeaf

type SerializedLeaf struct {
	Version txscript.TapscriptLeafVersion `json:"version"`
	Output  HexString                     `json:"output"`
}

type SerializedTree struct {
	ClaimLeaf  SerializedLeaf `json:"claimLeaf"`
	RefundLeaf SerializedLeaf `json:"refundLeaf"`
}

func (leaf SerializedLeaf) tapLeaf() TapLeaf {
	return TapLeaf{LeafVersion: leaf.Version, Script: leaf.Output}
}

func (tree *SerializedTree) Deserialize() (*SwapTree, error) {
	if tree == nil {
		return nil, errors.New("swap tree missing")
	}
	claim := tree.ClaimLeaf.tapLeaf()
	refund := tree.RefundLeaf.tapLeaf()
	if claim.LeafVersion != leafVersionLiquid || refund.LeafVersion != leafVersionLiquid {
		return nil, fmt.Errorf("unexpected leaf version, want %d", leafVersionLiquid)
	}
	return &SwapTree{ClaimLeaf: claim, RefundLeaf: refund}, nil
}

func liquidLeaf(leaf TapLeaf) taproot.TapElementsLeaf {
	return taproot.TapElementsLeaf{TapLeaf: leaf}
}

// SwapTree is the taproot tree of a liquid swap lockup output.
// Init has to be called with the keys of both parties before it can be used for signing or address generation.
type SwapTree struct {
	ClaimLeaf  TapLeaf
	RefundLeaf TapLeaf

	isReverse    bool
	ourKey       *btcec.PrivateKey
	boltzKey     *btcec.PublicKey
	aggregateKey *musig2.AggregateKey
	indexed      *taproot.IndexedElementsTapScriptTree
	taprootTweak musig2.KeyTweakDesc
}

func (tree *SwapTree) Init(isReverse bool, ourKey *btcec.PrivateKey, boltzKey *btcec.PublicKey) error {
	if ourKey == nil || boltzKey == nil {
		return errors.New("both keys are required")
	}
	tree.isReverse = isReverse
	tree.ourKey = ourKey
	tree.boltzKey = boltzKey

	tree.indexed = taproot.AssembleTaprootScriptTree(liquidLeaf(tree.ClaimLeaf), liquidLeaf(tree.RefundLeaf))
	scriptRoot := tree.indexed.RootNode.TapHash()

	// boltz key always comes first
	keys := []*btcec.PublicKey{boltzKey, ourKey.PubKey()}

	internalKey, _, _, err := musig2.AggregateKeys(keys, false)
	if err != nil {
		return fmt.Errorf("failed to aggregate keys: %w", err)
	}
	tapTweakHash := chainhash.TaggedHash(
		taproot.TagTapTweakElements, schnorr.SerializePubKey(internalKey.FinalKey), scriptRoot[:],
	)
	tree.taprootTweak = musig2.KeyTweakDesc{
		Tweak:   *tapTweakHash,
		IsXOnly: true,
	}
	tree.aggregateKey, _, _, err = musig2.AggregateKeys(keys, false, musig2.WithKeyTweaks(tree.taprootTweak))
	return err
}

func (tree *SwapTree) initialized() error {
	if tree.aggregateKey == nil {
		return errors.New("swap tree not initialized")
	}
	return nil
}

// Check verifies that the leaves only contain the keys and hashes we expect.
func (tree *SwapTree) Check(preimageHash []byte, timeoutBlockHeight uint32) error {
	if err := tree.initialized(); err != nil {
		return err
	}
	claimKey, refundKey := tree.boltzKey, tree.ourKey.PubKey()
	if tree.isReverse {
		claimKey, refundKey = refundKey, claimKey
	}

	claim, err := claimScript(tree.isReverse, preimageHash, claimKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(claim, tree.ClaimLeaf.Script) {
		return errors.New("invalid claim leaf")
	}

	refund, err := refundScript(timeoutBlockHeight, refundKey)
	if err != nil {
		return err
	}
	if !bytes.Equal(refund, tree.RefundLeaf.Script) {
		return errors.New("invalid refund leaf")
	}
	return nil
}

func (tree *SwapTree) PubKey() *btcec.PublicKey {
	return tree.aggregateKey.FinalKey
}

// Address returns the confidential taproot address of the tree, or an unconfidential one if no blinding key is given.
func (tree *SwapTree) Address(network *Network, blindingPubKey *btcec.PublicKey) (string, error) {
	if err := tree.initialized(); err != nil {
		return "", err
	}
	p2tr, err := payment.FromTweakedKey(tree.aggregateKey.FinalKey, network.Liquid, blindingPubKey)
	if err != nil {
		return "", err
	}
	if blindingPubKey == nil {
		return p2tr.TaprootAddress()
	}
	return p2tr.ConfidentialTaprootAddress()
}

func (tree *SwapTree) CheckAddress(expected string, network *Network, blindingPubKey *btcec.PublicKey) error {
	encoded, err := tree.Address(network, blindingPubKey)
	if err != nil {
		return err
	}
	if encoded != expected {
		return fmt.Errorf("expected address %v, got %v", expected, encoded)
	}
	return nil
}

func (tree *SwapTree) GetControlBlock(isRefund bool) ([]byte, error) {
	if err := tree.initialized(); err != nil {
		return nil, err
	}
	leafHash := tree.GetLeafHash(isRefund)
	idx, ok := tree.indexed.LeafProofIndex[leafHash]
	if !ok {
		return nil, errors.New("leaf not part of tree")
	}
	controlBlock := tree.indexed.LeafMerkleProofs[idx].ToControlBlock(tree.aggregateKey.PreTweakedKey)
	return controlBlock.ToBytes()
}

func (tree *SwapTree) GetLeafHash(isRefund bool) chainhash.Hash {
	return liquidLeaf(tree.GetLeaf(isRefund)).TapHash()
}

func (tree *SwapTree) GetLeaf(isRefund bool) TapLeaf {
	if isRefund {
		return tree.RefundLeaf
	}
	return tree.ClaimLeaf
}

func claimScript(isReverse bool, preimageHash []byte, claimKey *btcec.PublicKey) ([]byte, error) {
	claim := txscript.NewScriptBuilder()
	if isReverse {
		claim.AddOp(txscript.OP_SIZE)
		claim.AddInt64(32)
		claim.AddOp(txscript.OP_EQUALVERIFY)
	}
	claim.AddOp(txscript.OP_HASH160)
	claim.AddData(input.Ripemd160H(preimageHash))
	claim.AddOp(txscript.OP_EQUALVERIFY)
	claim.AddData(toXOnly(claimKey))
	claim.AddOp(txscript.OP_CHECKSIG)
	return claim.Script()
}

func refundScript(timeoutBlockHeight uint32, refundKey *btcec.PublicKey) ([]byte, error) {
	refund := txscript.NewScriptBuilder()
	refund.AddData(toXOnly(refundKey))
	refund.AddOp(txscript.OP_CHECKSIGVERIFY)
	refund.AddInt64(int64(timeoutBlockHeight))
	refund.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	return refund.Script()
}

// NewSwapTree builds the tree from scratch, which is what the boltz backend does when creating a swap.
func NewSwapTree(isReverse bool, ourKey *btcec.PrivateKey, boltzKey *btcec.PublicKey, preimageHash []byte, timeoutBlockHeight uint32) (*SwapTree, error) {
	claimKey, refundKey := boltzKey, ourKey.PubKey()
	if isReverse {
		claimKey, refundKey = refundKey, claimKey
	}
	claim, err := claimScript(isReverse, preimageHash, claimKey)
	if err != nil {
		return nil, err
	}
	refund, err := refundScript(timeoutBlockHeight, refundKey)
	if err != nil {
		return nil, err
	}
	tree := &SwapTree{
		ClaimLeaf:  TapLeaf{LeafVersion: leafVersionLiquid, Script: claim},
		RefundLeaf: TapLeaf{LeafVersion: leafVersionLiquid, Script: refund},
	}
	if err := tree.Init(isReverse, ourKey, boltzKey); err != nil {
		return nil, err
	}
	return tree, nil
}

func (tree *SwapTree) Serialize() *SerializedTree {
	return &SerializedTree{
		ClaimLeaf:  SerializedLeaf{Version: tree.ClaimLeaf.LeafVersion, Output: tree.ClaimLeaf.Script},
		RefundLeaf: SerializedLeaf{Version: tree.RefundLeaf.LeafVersion, Output: tree.RefundLeaf.Script},
	}
}

func toXOnly(publicKey *btcec.PublicKey) []byte {
	return schnorr.SerializePubKey(publicKey)
}
