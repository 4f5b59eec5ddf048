package onchain

import (
	"errors"

	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
)

// BoltzProvider uses the chain endpoints of the boltz api. It can not look up script history.
type BoltzProvider struct {
	*boltz.Api
	currency boltz.Currency
}

var _ HistoryProvider = &BoltzProvider{}

const boltzCurrency = boltz.CurrencyLiquid

func NewBoltzChainProvider(boltz *boltz.Api) *BoltzProvider {
	return &BoltzProvider{boltz, boltzCurrency}
}

func (txProvider BoltzProvider) GetRawTransaction(txId string) (string, error) {
	transaction, err := txProvider.GetChainTransaction(txProvider.currency, txId)
	if err != nil {
		return "", err
	}
	return transaction.Hex, nil
}

func (txProvider BoltzProvider) BroadcastTransaction(txHex string) (string, error) {
	return txProvider.Api.BroadcastTransaction(txProvider.currency, txHex)
}

func (txProvider BoltzProvider) IsTransactionConfirmed(txId string) (bool, error) {
	transaction, err := txProvider.GetChainTransaction(txProvider.currency, txId)
	if err != nil {
		return false, err
	}
	return transaction.Confirmations > 0, nil
}

func (txProvider BoltzProvider) EstimateFee() (float64, error) {
	return txProvider.Api.GetFeeEstimation(txProvider.currency)
}

func (txProvider BoltzProvider) GetBlockHeight() (uint32, error) {
	return txProvider.Api.GetBlockHeight(txProvider.currency)
}

func (txProvider BoltzProvider) GetScriptHistory(script []byte) ([]*HistoryItem, error) {
	return nil, errors.ErrUnsupported
}

func (txProvider BoltzProvider) Disconnect() {}

func (txProvider BoltzProvider) String() string {
	return "boltz"
}
