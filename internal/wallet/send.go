package wallet

import (
	"errors"
	"fmt"
	"math"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/vulpemventures/go-elements/address"
	"github.com/vulpemventures/go-elements/confidential"
	"github.com/vulpemventures/go-elements/psetv2"
)

// a larger fee can pull in more inputs, so the size is measured again until the fee covers it
const maxFeePasses = 5

var ErrInvalidAmount = errors.New("amount has to be positive")

// selectCoins picks the largest outputs first until target is covered
func selectCoins(utxos []*utxo, target uint64) ([]*utxo, uint64, error) {
	var selected []*utxo
	var total uint64
	for _, output := range utxos {
		if total >= target {
			break
		}
		selected = append(selected, output)
		total += output.Value
	}
	if total < target {
		return nil, 0, onchain.InsufficientBalanceError(target)
	}
	return selected, total, nil
}

type recipient struct {
	script      []byte
	blindingKey []byte
}

func parseRecipient(rawAddress string) (*recipient, error) {
	script, err := address.ToOutputScript(rawAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	result := &recipient{script: script}

	isConfidential, err := address.IsConfidential(rawAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	if isConfidential {
		decoded, err := address.FromConfidential(rawAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}
		result.blindingKey = decoded.BlindingKey
	}
	return result, nil
}

func (w *Wallet) buildTransaction(
	inputs []*utxo,
	inputTotal uint64,
	to *recipient,
	amount uint64,
	fee uint64,
	change *walletAddress,
) (*boltz.LiquidTransaction, error) {
	if inputTotal < amount+fee {
		return nil, onchain.InsufficientBalanceError(amount + fee)
	}

	p, err := psetv2.New(nil, nil, nil)
	if err != nil {
		return nil, err
	}
	updater, err := psetv2.NewUpdater(p)
	if err != nil {
		return nil, err
	}

	var blindingKeys [][]byte
	var paths []keyPath
	for i, input := range inputs {
		if err := updater.AddInputs([]psetv2.InputArgs{{Txid: input.TxId, TxIndex: input.Vout}}); err != nil {
			return nil, err
		}
		if err := updater.AddInWitnessUtxo(i, input.Output); err != nil {
			return nil, err
		}
		if input.Output.IsConfidential() {
			if err := updater.AddInUtxoRangeProof(i, input.Output.RangeProof); err != nil {
				return nil, err
			}
		}
		blindingKeys = append(blindingKeys, input.Address.BlindingKey.Serialize())
		paths = append(paths, input.Address.keyPath)
	}

	zkpGenerator := confidential.NewZKPGeneratorFromBlindingKeys(blindingKeys, nil)
	ownedInputs, err := zkpGenerator.UnblindInputs(p, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to unblind inputs: %w", err)
	}

	asset := w.signer.network.Liquid.AssetID
	outputs := []psetv2.OutputArgs{{
		Asset:       asset,
		Amount:      amount,
		Script:      to.script,
		BlindingKey: to.blindingKey,
	}}
	if changeAmount := inputTotal - amount - fee; changeAmount > 0 {
		outputs = append(outputs, psetv2.OutputArgs{
			Asset:       asset,
			Amount:      changeAmount,
			Script:      change.Script,
			BlindingKey: change.BlindingKey.PubKey().SerializeCompressed(),
		})
	} else if to.blindingKey == nil {
		// blinded inputs need at least one blinded output
		dummyKey, err := btcec.NewPrivateKey()
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, psetv2.OutputArgs{
			Asset:       asset,
			Script:      []byte{txscript.OP_RETURN},
			BlindingKey: dummyKey.PubKey().SerializeCompressed(),
		})
	}
	outputs = append(outputs, psetv2.OutputArgs{Asset: asset, Amount: fee})

	if err := updater.AddOutputs(outputs); err != nil {
		return nil, err
	}

	outputBlindingArgs, err := zkpGenerator.BlindOutputs(p, nil)
	if err != nil {
		return nil, err
	}
	blinder, err := psetv2.NewBlinder(p, ownedInputs, confidential.NewZKPValidator(), zkpGenerator)
	if err != nil {
		return nil, err
	}
	if err := blinder.BlindLast(nil, outputBlindingArgs); err != nil {
		return nil, fmt.Errorf("failed to blind transaction: %w", err)
	}

	if err := w.signInputs(p, inputs, paths); err != nil {
		return nil, err
	}

	finalized, err := psetv2.Extract(p)
	if err != nil {
		return nil, fmt.Errorf("could not extract pset: %w", err)
	}
	return &boltz.LiquidTransaction{Transaction: *finalized}, nil
}

func (w *Wallet) signInputs(p *psetv2.Pset, inputs []*utxo, paths []keyPath) error {
	unsigned, err := p.UnsignedTx()
	if err != nil {
		return err
	}
	keys, err := w.signer.accountPrivateKeys(paths)
	if err != nil {
		return fmt.Errorf("could not derive signing keys: %w", err)
	}

	for i, input := range inputs {
		hash := unsigned.HashForWitnessV0(i, input.Address.scriptCode(w.signer), input.Output.Value, txscript.SigHashAll)
		signature := ecdsa.Sign(keys[i], hash[:]).Serialize()
		signature = append(signature, byte(txscript.SigHashAll))

		p.Inputs[i].FinalScriptWitness, err = boltz.WriteTxWitness(signature, input.Address.PubKey.SerializeCompressed())
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Wallet) createTransaction(args onchain.WalletSendArgs) (*boltz.LiquidTransaction, *walletAddress, uint64, error) {
	if args.Amount == 0 {
		return nil, nil, 0, ErrInvalidAmount
	}
	feeRate := args.SatPerVbyte
	if feeRate == 0 {
		feeRate = onchain.FeeFloor
	}

	to, err := parseRecipient(args.Address)
	if err != nil {
		return nil, nil, 0, err
	}
	change, err := w.unusedAddress(chainInternal)
	if err != nil {
		return nil, nil, 0, err
	}

	w.lock.RLock()
	utxos := append([]*utxo(nil), w.state.utxos...)
	w.lock.RUnlock()

	var fee uint64
	for pass := 0; pass < maxFeePasses; pass++ {
		inputs, total, err := selectCoins(utxos, args.Amount+fee)
		if err != nil {
			return nil, nil, 0, err
		}
		transaction, err := w.buildTransaction(inputs, total, to, args.Amount, fee, change)
		if err != nil {
			return nil, nil, 0, err
		}
		required := uint64(math.Ceil(float64(transaction.VSize()) * feeRate))
		if required <= fee {
			return transaction, change, fee, nil
		}
		fee = required
	}
	return nil, nil, 0, fmt.Errorf("could not settle on a fee after %d attempts", maxFeePasses)
}

// GetSendFee returns the fee a transaction sending args.Amount to args.Address would pay
func (w *Wallet) GetSendFee(args onchain.WalletSendArgs) (uint64, error) {
	_, _, fee, err := w.createTransaction(args)
	return fee, err
}

func (w *Wallet) SendToAddress(args onchain.WalletSendArgs) (string, error) {
	w.sendLock.Lock()
	defer w.sendLock.Unlock()

	transaction, change, fee, err := w.createTransaction(args)
	if err != nil {
		return "", err
	}
	txId, err := w.chain.BroadcastTransaction(transaction)
	if err != nil {
		return "", fmt.Errorf("could not broadcast transaction: %w", err)
	}
	logger.Infof("Sent %d sats to %s in %s with a fee of %d sats", args.Amount, args.Address, txId, fee)

	serialized, err := transaction.Serialize()
	if err != nil {
		return txId, err
	}
	if err := w.addLocalTransaction(txId, serialized, change); err != nil {
		logger.Warnf("Could not add transaction %s to wallet: %v", txId, err)
	}
	return txId, nil
}
