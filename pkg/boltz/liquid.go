package boltz

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/vulpemventures/go-elements/address"
	"github.com/vulpemventures/go-elements/confidential"
	"github.com/vulpemventures/go-elements/psetv2"
	liquidtx "github.com/vulpemventures/go-elements/transaction"
)

const (
	sigHashType = txscript.SigHashDefault
	// opts into replace by fee
	inputSequence = 0xfffffffd
)

// placeholder for the key path signature that is only known after boltz cosigned
var dummySignature = make([]byte, 64)

// LiquidTransaction is a liquid transaction together with the key to unblind the outputs paying to us
type LiquidTransaction struct {
	liquidtx.Transaction
	OurOutputBlindingKey *btcec.PrivateKey
}

func NewLiquidTxFromHex(hexString string, ourOutputBlindingKey *btcec.PrivateKey) (*LiquidTransaction, error) {
	decoded, err := liquidtx.NewTxFromHex(hexString)
	if err != nil {
		return nil, err
	}
	return &LiquidTransaction{Transaction: *decoded, OurOutputBlindingKey: ourOutputBlindingKey}, nil
}

func (transaction *LiquidTransaction) Hash() string {
	return transaction.TxHash().String()
}

func (transaction *LiquidTransaction) Serialize() (string, error) {
	raw, err := transaction.Transaction.Serialize()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

// VSize is the virtual size with the witness discounted by four
func (transaction *LiquidTransaction) VSize() uint64 {
	base := transaction.SerializeSize(false, true)
	witness := transaction.SerializeSize(true, true) - base
	return uint64(base) + uint64(math.Ceil(float64(witness)/4))
}

// FindVout looks for the output paying to addressToFind and unblinds its value
func (transaction *LiquidTransaction) FindVout(addressToFind string) (uint32, uint64, error) {
	script, err := address.ToOutputScript(addressToFind)
	if err != nil {
		return 0, 0, err
	}
	for vout, output := range transaction.Outputs {
		if !bytes.Equal(script, output.Script) {
			continue
		}
		value, err := transaction.VoutValue(uint32(vout))
		if err != nil {
			return 0, 0, fmt.Errorf("failed to unblind lockup tx: %w", err)
		}
		return uint32(vout), value, nil
	}
	return 0, 0, fmt.Errorf("no output of %s pays to %s", transaction.Hash(), addressToFind)
}

func (transaction *LiquidTransaction) VoutValue(vout uint32) (uint64, error) {
	if int(vout) >= len(transaction.Outputs) {
		return 0, fmt.Errorf("vout %d out of range", vout)
	}
	if transaction.OurOutputBlindingKey == nil {
		return 0, errors.New("no blinding key set")
	}
	unblinded, err := confidential.UnblindOutputWithKey(transaction.Outputs[vout], transaction.OurOutputBlindingKey.Serialize())
	if err != nil {
		return 0, err
	}
	return unblinded.Value, nil
}

// spentOutputsHash computes the taproot sighash of input index. The leaf hash is only committed to
// when spending through the script path.
func spentOutputsHash(transaction *liquidtx.Transaction, network *Network, outputs []OutputDetails, index int, scriptPath bool) [32]byte {
	var leafHash *chainhash.Hash
	if scriptPath {
		output := outputs[index]
		hash := output.SwapTree.GetLeafHash(output.IsRefund())
		leafHash = &hash
	}
	genesisHash, _ := chainhash.NewHashFromStr(network.Liquid.GenesisBlockHash)

	scripts := make([][]byte, len(transaction.Inputs))
	assets := make([][]byte, len(transaction.Inputs))
	values := make([][]byte, len(transaction.Inputs))
	for i, input := range transaction.Inputs {
		spent := outputs[i].LockupTransaction.Outputs[input.Index]
		scripts[i], assets[i], values[i] = spent.Script, spent.Asset, spent.Value
	}

	return transaction.HashForWitnessV1(index, scripts, assets, values, sigHashType, genesisHash, leafHash, nil)
}

// liquidTxBuilder assembles a pset spending swap outputs in stages
type liquidTxBuilder struct {
	network *Network
	pset    *psetv2.Pset
	updater *psetv2.Updater

	inputBlindingKeys [][]byte
	blindedOutput     bool
}

func newLiquidTxBuilder(network *Network) (*liquidTxBuilder, error) {
	pset, err := psetv2.New(nil, nil, nil)
	if err != nil {
		return nil, err
	}
	updater, err := psetv2.NewUpdater(pset)
	if err != nil {
		return nil, err
	}
	return &liquidTxBuilder{network: network, pset: pset, updater: updater}, nil
}

func (builder *liquidTxBuilder) addInputs(outputs []OutputDetails) error {
	for i, output := range outputs {
		lockupTx := output.LockupTransaction
		spent := lockupTx.Outputs[output.Vout]

		input := psetv2.InputArgs{Txid: lockupTx.Hash(), TxIndex: output.Vout, Sequence: inputSequence}
		if !output.Cooperative && output.IsRefund() {
			input.HeightLock = output.TimeoutBlockHeight
		}
		if err := builder.updater.AddInputs([]psetv2.InputArgs{input}); err != nil {
			return err
		}
		if err := builder.updater.AddInWitnessUtxo(i, spent); err != nil {
			return err
		}
		if err := builder.updater.AddInUtxoRangeProof(i, spent.RangeProof); err != nil {
			return err
		}

		if lockupTx.OurOutputBlindingKey != nil {
			// the blinder expects the keys of a prefix of the inputs
			if len(builder.inputBlindingKeys) != i {
				return errors.New("inconsistent blinding")
			}
			builder.inputBlindingKeys = append(builder.inputBlindingKeys, lockupTx.OurOutputBlindingKey.Serialize())
		}
	}
	return nil
}

func (builder *liquidTxBuilder) addOutputs(fee uint64, outValues map[string]uint64) error {
	asset := builder.network.Liquid.AssetID
	outputs := []psetv2.OutputArgs{{Asset: asset, Amount: fee}}

	var blinderIndex uint32
	for rawAddress, value := range outValues {
		script, err := address.ToOutputScript(rawAddress)
		if err != nil {
			return fmt.Errorf("could not generate output script: %w", err)
		}
		output := psetv2.OutputArgs{Asset: asset, Amount: value, Script: script, BlinderIndex: blinderIndex}

		isConfidential, err := address.IsConfidential(rawAddress)
		if err != nil {
			return fmt.Errorf("could not decode address: %w", err)
		}
		if isConfidential {
			decoded, err := address.FromConfidential(rawAddress)
			if err != nil {
				return fmt.Errorf("could not decode address: %w", err)
			}
			blindingKey, err := btcec.ParsePubKey(decoded.BlindingKey)
			if err != nil {
				return fmt.Errorf("could not parse blinding key: %w", err)
			}
			output.BlindingKey = blindingKey.SerializeCompressed()
			builder.blindedOutput = true
		}
		outputs = append(outputs, output)
		blinderIndex++
	}
	return builder.updater.AddOutputs(outputs)
}

// blind hides the amounts of the outputs, which is mandatory once a blinded input is spent
func (builder *liquidTxBuilder) blind() error {
	generator := confidential.NewZKPGeneratorFromBlindingKeys(builder.inputBlindingKeys, nil)
	ownedInputs, err := generator.UnblindInputs(builder.pset, nil)
	if err != nil {
		return fmt.Errorf("failed to unblind inputs: %w", err)
	}
	if len(builder.inputBlindingKeys) == 0 {
		return nil
	}

	if !builder.blindedOutput {
		ephemeral, err := btcec.NewPrivateKey()
		if err != nil {
			return fmt.Errorf("failed to generate private key: %w", err)
		}
		err = builder.updater.AddOutputs([]psetv2.OutputArgs{{
			Asset:       builder.network.Liquid.AssetID,
			Script:      []byte{txscript.OP_RETURN},
			BlindingKey: ephemeral.PubKey().SerializeCompressed(),
		}})
		if err != nil {
			return err
		}
	}

	blindingArgs, err := generator.BlindOutputs(builder.pset, nil)
	if err != nil {
		return err
	}
	blinder, err := psetv2.NewBlinder(builder.pset, ownedInputs, confidential.NewZKPValidator(), generator)
	if err != nil {
		return err
	}
	if err := blinder.BlindLast(nil, blindingArgs); err != nil {
		return fmt.Errorf("failed to blind transaction: %w", err)
	}
	return nil
}

// sign finalizes every input. Script path spends are signed right away while
// cooperative ones get a placeholder until boltz cosigned.
func (builder *liquidTxBuilder) sign(outputs []OutputDetails) error {
	unsigned, err := builder.pset.UnsignedTx()
	if err != nil {
		return err
	}

	for i, output := range outputs {
		witness := [][]byte{dummySignature}
		if !output.Cooperative {
			witness, err = scriptPathWitness(unsigned, builder.network, outputs, i)
			if err != nil {
				return err
			}
		}
		if builder.pset.Inputs[i].FinalScriptWitness, err = WriteTxWitness(witness...); err != nil {
			return err
		}
	}
	return nil
}

func scriptPathWitness(transaction *liquidtx.Transaction, network *Network, outputs []OutputDetails, index int) ([][]byte, error) {
	output := outputs[index]
	isRefund := output.IsRefund()

	sigHash := spentOutputsHash(transaction, network, outputs, index, true)
	signature, err := schnorr.Sign(output.PrivateKey, sigHash[:])
	if err != nil {
		return nil, err
	}
	controlBlock, err := output.SwapTree.GetControlBlock(isRefund)
	if err != nil {
		return nil, err
	}

	witness := [][]byte{signature.Serialize()}
	if !isRefund {
		witness = append(witness, output.Preimage)
	}
	return append(witness, output.SwapTree.GetLeaf(isRefund).Script, controlBlock), nil
}

func constructLiquidTransaction(network *Network, outputs []OutputDetails, outValues map[string]uint64) (*LiquidTransaction, error) {
	builder, err := newLiquidTxBuilder(network)
	if err != nil {
		return nil, err
	}
	if err := builder.addInputs(outputs); err != nil {
		return nil, err
	}

	var fee uint64
	for _, output := range outputs {
		fee += output.Fee
	}
	if err := builder.addOutputs(fee, outValues); err != nil {
		return nil, err
	}
	if err := builder.blind(); err != nil {
		return nil, err
	}
	if err := builder.sign(outputs); err != nil {
		return nil, err
	}

	finalized, err := psetv2.Extract(builder.pset)
	if err != nil {
		return nil, fmt.Errorf("could not extract pset: %w", err)
	}
	return &LiquidTransaction{Transaction: *finalized}, nil
}

// WriteTxWitness serializes a witness stack the way psetv2 expects it in FinalScriptWitness
func WriteTxWitness(items ...[]byte) ([]byte, error) {
	var buffer bytes.Buffer
	if err := wire.WriteVarInt(&buffer, 0, uint64(len(items))); err != nil {
		return nil, err
	}
	for _, item := range items {
		if err := wire.WriteVarBytes(&buffer, 0, item); err != nil {
			return nil, err
		}
	}
	return buffer.Bytes(), nil
}
