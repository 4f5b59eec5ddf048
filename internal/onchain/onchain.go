package onchain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/utils"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/vulpemventures/go-elements/elementsutil"
)

type BlockEpoch struct {
	Height uint32
}

type HistoryItem struct {
	TxId string
	// zero or negative while in the mempool
	Height int64
	// unix seconds of the block, zero if unknown
	Timestamp uint32
}

func (item *HistoryItem) IsConfirmed() bool {
	return item.Height > 0
}

type ChainProvider interface {
	GetRawTransaction(txId string) (string, error)
	BroadcastTransaction(txHex string) (string, error)
	IsTransactionConfirmed(txId string) (bool, error)
	GetBlockHeight() (uint32, error)
	EstimateFee() (float64, error)
	Disconnect()
}

// HistoryProvider can look up which transactions touched an output script
type HistoryProvider interface {
	ChainProvider
	GetScriptHistory(script []byte) ([]*HistoryItem, error)
}

type ElectrumOptions struct {
	Url string
	SSL bool
}

const FeeFloor = 0.1

type Onchain struct {
	Provider HistoryProvider
	Network  *boltz.Network
	// defaults to 30 seconds
	BlockPollInterval time.Duration

	blockHeight atomic.Uint32
}

func (onchain *Onchain) EstimateFee() (float64, error) {
	fee, err := onchain.Provider.EstimateFee()
	if err != nil {
		logger.Debugf("Could not estimate fee, using floor of %v: %v", FeeFloor, err)
		return FeeFloor, nil
	}
	return math.Max(FeeFloor, fee), nil
}

func (onchain *Onchain) GetTransaction(txId string, ourOutputBlindingKey *btcec.PrivateKey, retry bool) (*boltz.LiquidTransaction, error) {
	if txId == "" {
		return nil, errors.New("empty transaction id")
	}
	retryCount := 5
	for {
		hex, err := onchain.Provider.GetRawTransaction(txId)
		if err != nil {
			if retryCount == 0 || !retry {
				return nil, err
			}
			retryCount--
			retryInterval := 10 * time.Second
			logger.Debugf("Transaction %s not found yet, retrying in %s", txId, retryInterval)
			<-time.After(retryInterval)
		} else {
			return boltz.NewLiquidTxFromHex(hex, ourOutputBlindingKey)
		}
	}
}

// GetTransactionFee reads the explicit fee output every liquid transaction has
func GetTransactionFee(transaction *boltz.LiquidTransaction) (uint64, error) {
	for _, output := range transaction.Outputs {
		if len(output.Script) == 0 {
			return elementsutil.ValueFromBytes(output.Value)
		}
	}
	return 0, fmt.Errorf("could not find fee output")
}

const defaultBlockPollInterval = 30 * time.Second

// RegisterBlockListener polls the chain tip and forwards every new height until ctx is cancelled
func (onchain *Onchain) RegisterBlockListener(ctx context.Context) *utils.ChannelForwarder[*BlockEpoch] {
	logger.Info("Starting block listener")
	blockNotifier := utils.ForwardChannel(make(chan *BlockEpoch), 1)

	go func() {
		defer func() {
			blockNotifier.Close()
			logger.Debug("Closed block listener")
		}()
		interval := onchain.BlockPollInterval
		if interval == 0 {
			interval = defaultBlockPollInterval
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			height, err := onchain.Provider.GetBlockHeight()
			if err != nil {
				logger.Warnf("Could not get block height: %v", err)
			} else if height > onchain.blockHeight.Load() {
				onchain.blockHeight.Store(height)
				blockNotifier.Send(&BlockEpoch{Height: height})
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return blockNotifier
}

func (onchain *Onchain) GetBlockHeight() (uint32, error) {
	if height := onchain.blockHeight.Load(); height != 0 {
		return height, nil
	}
	height, err := onchain.Provider.GetBlockHeight()
	if err != nil {
		return 0, err
	}
	onchain.blockHeight.Store(height)
	return height, nil
}

func (onchain *Onchain) BroadcastTransaction(transaction *boltz.LiquidTransaction) (string, error) {
	serialized, err := transaction.Serialize()
	if err != nil {
		return "", err
	}

	return onchain.Provider.BroadcastTransaction(serialized)
}

type OutputArgs struct {
	TransactionId  string
	Address        string
	BlindingKey    *btcec.PrivateKey
	ExpectedAmount uint64
}

type OutputResult struct {
	Transaction *boltz.LiquidTransaction
	Vout        uint32
	Value       uint64
}

// FindOutput fetches the lockup transaction and unblinds the output paying to the swap address
func (onchain *Onchain) FindOutput(info OutputArgs) (*OutputResult, error) {
	lockupTransaction, err := onchain.GetTransaction(info.TransactionId, info.BlindingKey, true)
	if err != nil {
		return nil, fmt.Errorf("could not decode lockup transaction: %w", err)
	}

	vout, value, err := lockupTransaction.FindVout(info.Address)
	if err != nil {
		return nil, err
	}

	if info.ExpectedAmount != 0 && value < info.ExpectedAmount {
		return nil, fmt.Errorf("locked up less onchain coins than expected: %d < %d", value, info.ExpectedAmount)
	}

	return &OutputResult{
		Transaction: lockupTransaction,
		Vout:        vout,
		Value:       value,
	}, nil
}

func (onchain *Onchain) Disconnect() {
	onchain.Provider.Disconnect()
}
