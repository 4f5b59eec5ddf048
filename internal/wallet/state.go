package wallet

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/vulpemventures/go-elements/confidential"
	"github.com/vulpemventures/go-elements/elementsutil"
	liquidtx "github.com/vulpemventures/go-elements/transaction"
)

type utxo struct {
	TxId      string
	Vout      uint32
	Value     uint64
	Output    *liquidtx.TxOutput
	Address   *walletAddress
	Confirmed bool
}

func outpoint(txId string, vout uint32) string {
	return fmt.Sprintf("%s:%d", txId, vout)
}

type walletState struct {
	transactions []*onchain.WalletTransaction
	utxos        []*utxo
}

func (w *Wallet) unblind(output *liquidtx.TxOutput, address *walletAddress) (uint64, []byte, error) {
	if output.IsConfidential() {
		result, err := confidential.UnblindOutputWithKey(output, address.BlindingKey.Serialize())
		if err != nil {
			return 0, nil, err
		}
		return result.Value, result.Asset, nil
	}
	value, err := elementsutil.ValueFromBytes(output.Value)
	if err != nil {
		return 0, nil, err
	}
	return value, output.Asset[1:], nil
}

func (w *Wallet) policyAsset() []byte {
	asset, _ := elementsutil.AssetHashToBytes(w.signer.network.Liquid.AssetID)
	return asset[1:]
}

// computeState derives history and unspent outputs from the cached transactions.
// Only outputs of the policy asset are taken into account.
func (w *Wallet) computeState(cache *walletCache) (*walletState, error) {
	policyAsset := w.policyAsset()

	type parsed struct {
		id     string
		tx     *liquidtx.Transaction
		cached *cachedTransaction
		credit uint64
	}

	var all []*parsed
	ours := make(map[string]*utxo)
	for id, cached := range cache.Transactions {
		tx, err := liquidtx.NewTxFromHex(cached.Hex)
		if err != nil {
			return nil, fmt.Errorf("could not parse transaction %s: %w", id, err)
		}
		entry := &parsed{id: id, tx: tx, cached: cached}
		for vout, output := range tx.Outputs {
			address, ok := w.addresses[string(output.Script)]
			if !ok {
				continue
			}
			value, asset, err := w.unblind(output, address)
			if err != nil {
				logger.Warnf("Could not unblind output %s: %v", outpoint(id, uint32(vout)), err)
				continue
			}
			if !bytes.Equal(asset, policyAsset) {
				continue
			}
			entry.credit += value
			ours[outpoint(id, uint32(vout))] = &utxo{
				TxId:      id,
				Vout:      uint32(vout),
				Value:     value,
				Output:    output,
				Address:   address,
				Confirmed: cached.Height > 0,
			}
		}
		all = append(all, entry)
	}

	state := &walletState{}
	spent := make(map[string]bool)
	for _, entry := range all {
		var debit uint64
		for _, input := range entry.tx.Inputs {
			prevHash, err := chainhash.NewHash(input.Hash)
			if err != nil {
				return nil, err
			}
			key := outpoint(prevHash.String(), input.Index)
			if previous, ok := ours[key]; ok {
				debit += previous.Value
				spent[key] = true
			}
		}
		if debit == 0 && entry.credit == 0 {
			continue
		}

		transaction := &onchain.WalletTransaction{
			Id:            entry.id,
			Timestamp:     entry.cached.Timestamp,
			BalanceChange: int64(entry.credit) - int64(debit),
		}
		if entry.cached.Height > 0 {
			transaction.BlockHeight = uint32(entry.cached.Height)
		}
		if debit > 0 {
			transaction.Fee, _ = onchain.GetTransactionFee(&boltz.LiquidTransaction{Transaction: *entry.tx})
		}
		state.transactions = append(state.transactions, transaction)
	}

	for key, output := range ours {
		if !spent[key] {
			state.utxos = append(state.utxos, output)
		}
	}

	// unconfirmed first, then newest
	sort.Slice(state.transactions, func(i, j int) bool {
		a, b := state.transactions[i], state.transactions[j]
		if a.IsConfirmed() != b.IsConfirmed() {
			return !a.IsConfirmed()
		}
		if a.BlockHeight != b.BlockHeight {
			return a.BlockHeight > b.BlockHeight
		}
		return a.Id < b.Id
	})
	sort.Slice(state.utxos, func(i, j int) bool {
		return state.utxos[i].Value > state.utxos[j].Value
	})

	return state, nil
}

func (state *walletState) balance() *onchain.Balance {
	balance := &onchain.Balance{}
	for _, output := range state.utxos {
		if output.Confirmed {
			balance.Confirmed += output.Value
		} else {
			balance.Unconfirmed += output.Value
		}
	}
	balance.Total = balance.Confirmed + balance.Unconfirmed
	return balance
}
