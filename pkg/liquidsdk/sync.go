package liquidsdk

import (
	"context"
	"fmt"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
)

func (sdk *LiquidSdk) syncLoop(ctx context.Context) {
	defer sdk.waitGroup.Done()

	ticker := time.NewTicker(sdk.config.syncInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Stopped sync loop")
			return
		case <-ticker.C:
			if err := sdk.sync(ctx); err != nil {
				logger.Warnf("Background sync failed: %v", err)
			}
		}
	}
}

// Sync scans the wallet and updates the payments and swaps affected by its transactions
func (sdk *LiquidSdk) Sync(ctx context.Context) error {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return err
	}
	if err := sdk.sync(ctx); err != nil {
		return models.SdkErrorFrom(err)
	}
	return nil
}

func (sdk *LiquidSdk) sync(ctx context.Context) error {
	sdk.syncLock.Lock()
	defer sdk.syncLock.Unlock()

	start := time.Now()
	if err := sdk.wallet.FullScan(ctx); err != nil {
		return fmt.Errorf("could not scan wallet: %w", err)
	}

	transactions, err := sdk.wallet.GetTransactions()
	if err != nil {
		return fmt.Errorf("could not get wallet transactions: %w", err)
	}

	receiveSwaps, err := sdk.database.QueryOngoingReceiveSwaps()
	if err != nil {
		return err
	}
	receiveSwapsByClaimTx := make(map[string]*models.ReceiveSwap)
	for _, swap := range receiveSwaps {
		if swap.State == models.Pending && swap.ClaimTxId != "" {
			receiveSwapsByClaimTx[swap.ClaimTxId] = swap
		}
	}

	sendSwaps, err := sdk.database.QueryOngoingSendSwaps()
	if err != nil {
		return err
	}
	sendSwapsByRefundTx := make(map[string]*models.SendSwap)
	for _, swap := range sendSwaps {
		if swap.State == models.Pending && swap.RefundTxId != "" {
			sendSwapsByRefundTx[swap.RefundTxId] = swap
		}
	}

	for _, transaction := range transactions {
		isConfirmed := transaction.IsConfirmed()
		if isConfirmed {
			if swap, ok := receiveSwapsByClaimTx[transaction.Id]; ok {
				logger.Infof("Claim tx %s of Receive Swap %s confirmed", transaction.Id, swap.Id)
				if err := sdk.nursery.UpdateReceiveSwapState(swap, models.Complete); err != nil {
					logger.Warnf("Could not complete Receive Swap %s: %v", swap.Id, err)
				}
			}
			if swap, ok := sendSwapsByRefundTx[transaction.Id]; ok {
				logger.Infof("Refund tx %s of Send Swap %s confirmed", transaction.Id, swap.Id)
				if err := sdk.nursery.UpdateSendSwapState(swap, models.Failed); err != nil {
					logger.Warnf("Could not fail Send Swap %s: %v", swap.Id, err)
				}
			}
		}

		txData := models.PaymentTxData{
			TxId:        transaction.Id,
			IsConfirmed: isConfirmed,
			PaymentType: models.Receive,
		}
		if transaction.BalanceChange < 0 {
			txData.PaymentType = models.Send
			txData.AmountSat = uint64(-transaction.BalanceChange)
		} else {
			txData.AmountSat = uint64(transaction.BalanceChange)
		}
		if transaction.Timestamp != 0 {
			timestamp := transaction.Timestamp
			txData.Timestamp = &timestamp
		}
		if err := sdk.database.InsertOrUpdatePaymentTxData(txData); err != nil {
			return fmt.Errorf("could not store transaction %s: %w", transaction.Id, err)
		}
	}

	logger.Debugf("Synced %d wallet transactions in %s", len(transactions), time.Since(start))
	sdk.notify(models.SdkEventSynced{})
	return nil
}
