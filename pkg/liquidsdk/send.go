package liquidsdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/database"
	"github.com/breez/breez-liquid-sdk-go/internal/lightning"
	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/internal/nursery"
	"github.com/breez/breez-liquid-sdk-go/internal/onchain"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
)

const (
	submarineKeyIndex = "submarineKeyIndex"
	reverseKeyIndex   = "reverseKeyIndex"
)

func (sdk *LiquidSdk) validateInvoice(invoice string) (*lightning.DecodedInvoice, error) {
	decoded, err := lightning.ValidateInvoice(invoice, sdk.network)
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorInvalidInvoice, "%v", err)
	}
	return decoded, nil
}

func (sdk *LiquidSdk) submarinePair() (*boltz.SubmarinePair, error) {
	pairs, err := sdk.boltz.GetSubmarinePairs()
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorPairsNotFound, "could not fetch pairs: %v", err)
	}
	pair, err := boltz.FindPair(boltz.PairSubmarine, pairs)
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorPairsNotFound, "%v", err)
	}
	return pair, nil
}

// lockupFee estimates what broadcasting the lockup of amount costs by building one to a dummy swap address
func (sdk *LiquidSdk) lockupFee(amount uint64) (uint64, error) {
	feeRate, err := sdk.onchain.EstimateFee()
	if err != nil {
		return 0, err
	}
	fee, err := sdk.wallet.GetSendFee(onchain.WalletSendArgs{
		Address:     sdk.network.DummyLockupAddress,
		Amount:      amount,
		SatPerVbyte: feeRate,
	})
	if err != nil {
		if errors.Is(err, onchain.ErrInsufficientBalance) {
			return 0, models.NewPaymentError(models.ErrPaymentErrorInsufficientFunds, "%v", err)
		}
		return 0, models.NewPaymentError(models.ErrPaymentErrorLwkError, "could not estimate lockup fee: %v", err)
	}
	return fee, nil
}

// sendFees are the boltz fees plus the lockup fee for paying an invoice of amount.
// The lockup fee is estimated for the invoice amount, leaving the boltz fees out.
func sendFees(pair *boltz.SubmarinePair, amount uint64, lockupFee func(amount uint64) (uint64, error)) (uint64, error) {
	if err := pair.Limits.Check(amount); err != nil {
		return 0, models.NewPaymentError(models.ErrPaymentErrorAmountOutOfRange, "%v", err)
	}
	broadcastFee, err := lockupFee(amount)
	if err != nil {
		return 0, err
	}
	return pair.TotalFees(amount) + broadcastFee, nil
}

func (sdk *LiquidSdk) PrepareSendPayment(request models.PrepareSendRequest) (*models.PrepareSendResponse, error) {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return nil, err
	}
	if err := sdk.checkBoltzVersion(); err != nil {
		return nil, err
	}

	decoded, err := sdk.validateInvoice(request.Invoice)
	if err != nil {
		return nil, err
	}
	pair, err := sdk.submarinePair()
	if err != nil {
		return nil, err
	}
	fees, err := sendFees(pair, decoded.AmountSat, sdk.lockupFee)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Prepared payment of %d sats with %d sats fees", decoded.AmountSat, fees)
	return &models.PrepareSendResponse{
		Invoice: request.Invoice,
		FeesSat: fees,
	}, nil
}

// existingSendSwap returns a swap for the invoice that was created but not paid yet, or an error if paying
// the invoice again is not allowed.
func (sdk *LiquidSdk) existingSendSwap(invoice string) (*models.SendSwap, error) {
	swap, err := sdk.database.QuerySendSwapByInvoice(invoice)
	if errors.Is(err, database.ErrSwapNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
	}
	switch swap.State {
	case models.Pending:
		return nil, models.NewPaymentError(models.ErrPaymentErrorPaymentInProgress, "")
	case models.Complete:
		return nil, models.NewPaymentError(models.ErrPaymentErrorAlreadyPaid, "")
	case models.Failed, models.TimedOut:
		return nil, models.NewPaymentError(
			models.ErrPaymentErrorInvalidInvoice, "payment has already failed, please try with another invoice",
		)
	}
	return swap, nil
}

func (sdk *LiquidSdk) createSendSwap(
	invoice string,
	decoded *lightning.DecodedInvoice,
	pair *boltz.SubmarinePair,
	fees uint64,
) (*models.SendSwap, error) {
	index, err := sdk.database.NextIndex(submarineKeyIndex)
	if err != nil {
		return nil, models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
	}
	refundKey, err := sdk.signer.DeriveSwapKey(boltz.NormalSwap, index)
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorSignerError, "%v", err)
	}

	response, err := sdk.boltz.CreateSwap(boltz.CreateSwapRequest{
		From:            boltz.CurrencyLiquid,
		To:              boltz.CurrencyBtc,
		PairHash:        pair.Hash,
		RefundPublicKey: refundKey.PubKey().SerializeCompressed(),
		Invoice:         invoice,
	})
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorGeneric, "could not create swap: %v", err)
	}

	swap := &models.SendSwap{
		Id:                response.Id,
		Invoice:           invoice,
		PaymentHash:       decoded.PaymentHash[:],
		PayerAmountSat:    decoded.AmountSat + fees,
		ReceiverAmountSat: decoded.AmountSat,
		CreateResponse:    response,
		CreatedAt:         time.Now(),
		State:             models.Created,
		RefundPrivateKey:  refundKey,
	}
	if err := checkSendSwap(swap, sdk.network, pair); err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorGeneric, "invalid swap %s: %v", swap.Id, err)
	}

	logger.Infof("Created new Send Swap %s for %d sats", swap.Id, swap.ReceiverAmountSat)

	if err := sdk.database.CreateSendSwap(*swap); err != nil {
		return nil, models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
	}
	return swap, nil
}

// checkSendSwap verifies the script and amount boltz returned for a send swap
func checkSendSwap(swap *models.SendSwap, network *boltz.Network, pair *boltz.SubmarinePair) error {
	response := swap.CreateResponse
	tree, err := response.SwapTree.Deserialize()
	if err != nil {
		return err
	}
	claimKey, err := btcec.ParsePubKey(response.ClaimPublicKey)
	if err != nil {
		return fmt.Errorf("invalid claim public key: %w", err)
	}
	if err := tree.Init(false, swap.RefundPrivateKey, claimKey); err != nil {
		return err
	}
	if err := tree.Check(swap.PaymentHash, response.TimeoutBlockHeight); err != nil {
		return err
	}
	_, blindingPubKey := btcec.PrivKeyFromBytes(response.BlindingKey)
	if err := tree.CheckAddress(response.Address, network, blindingPubKey); err != nil {
		return err
	}

	maxAmount := swap.ReceiverAmountSat + pair.TotalFees(swap.ReceiverAmountSat)
	if response.ExpectedAmount > maxAmount {
		return fmt.Errorf("boltz expects %d sats, more than the %d sats quoted", response.ExpectedAmount, maxAmount)
	}
	return nil
}

// SendPayment pays the invoice of a prepared payment and waits until it either succeeded, failed or timed out.
// Payments that time out keep being tracked in the background.
func (sdk *LiquidSdk) SendPayment(ctx context.Context, request models.PrepareSendResponse) (*models.SendPaymentResponse, error) {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return nil, err
	}

	decoded, err := sdk.validateInvoice(request.Invoice)
	if err != nil {
		return nil, err
	}
	pair, err := sdk.submarinePair()
	if err != nil {
		return nil, err
	}
	fees, err := sendFees(pair, decoded.AmountSat, sdk.lockupFee)
	if err != nil {
		return nil, err
	}
	if fees != request.FeesSat {
		return nil, models.NewPaymentError(
			models.ErrPaymentErrorInvalidOrExpiredFees, "fees changed from %d to %d sats", request.FeesSat, fees,
		)
	}

	swap, err := sdk.existingSendSwap(request.Invoice)
	if err != nil {
		return nil, err
	}
	if swap == nil {
		swap, err = sdk.createSendSwap(request.Invoice, decoded, pair, fees)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Infof("Resuming Send Swap %s", swap.Id)
	}

	updates, stop, err := sdk.nursery.RegisterSendSwap(swap)
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorSendError, "could not subscribe to swap: %v", err)
	}
	defer stop()

	return sdk.waitForSendSwap(ctx, swap.Id, updates)
}

func (sdk *LiquidSdk) waitForSendSwap(ctx context.Context, swapId string, updates <-chan nursery.SwapUpdate) (*models.SendPaymentResponse, error) {
	timeout := time.NewTimer(sdk.config.paymentTimeout())
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, models.PaymentErrorFrom(models.ErrPaymentErrorGeneric, ctx.Err())
		case <-timeout.C:
			logger.Warnf("Send Swap %s timed out, tracking it in the background", swapId)
			return nil, models.NewPaymentError(models.ErrPaymentErrorPaymentTimeout, "")
		case update, ok := <-updates:
			if !ok {
				return nil, models.NewPaymentError(models.ErrPaymentErrorGeneric, "swap updates closed")
			}
			swap := update.SendSwap
			if swap == nil {
				continue
			}
			logger.Debugf("Send Swap %s is %s after %s", swap.Id, swap.State, update.Status)

			switch {
			case swap.RefundTxId != "":
				reason := fmt.Sprintf("swap %s failed with %s", swap.Id, update.Status)
				if update.Err != nil {
					reason = update.Err.Error()
				}
				return nil, models.NewPaymentErrorRefunded(reason, swap.RefundTxId)
			case swap.State == models.Complete:
				payment, err := sdk.database.QuerySwapPayment(swap.Id)
				if err != nil {
					return nil, models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
				}
				return &models.SendPaymentResponse{Payment: *payment}, nil
			case update.IsFinal:
				if update.Err != nil {
					return nil, models.PaymentErrorFrom(models.ErrPaymentErrorGeneric, update.Err)
				}
				return nil, models.NewPaymentError(models.ErrPaymentErrorGeneric, "swap %s is %s", swap.Id, swap.State)
			case update.Err != nil:
				logger.Warnf("Send Swap %s: %v", swap.Id, update.Err)
			}
		}
	}
}
