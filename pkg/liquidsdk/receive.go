package liquidsdk

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/breez/breez-liquid-sdk-go/internal/logger"
	"github.com/breez/breez-liquid-sdk-go/pkg/boltz"
	"github.com/breez/breez-liquid-sdk-go/pkg/models"
	"github.com/btcsuite/btcd/btcec/v2"
)

func (sdk *LiquidSdk) reversePair() (*boltz.ReversePair, error) {
	pairs, err := sdk.boltz.GetReversePairs()
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorPairsNotFound, "could not fetch pairs: %v", err)
	}
	pair, err := boltz.FindPair(boltz.PairReverse, pairs)
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorPairsNotFound, "%v", err)
	}
	return pair, nil
}

func receiveFees(pair *boltz.ReversePair, payerAmount uint64) (uint64, error) {
	if err := pair.Limits.Check(payerAmount); err != nil {
		return 0, models.NewPaymentError(models.ErrPaymentErrorAmountOutOfRange, "%v", err)
	}
	fees := pair.TotalFees(payerAmount)
	if payerAmount <= fees {
		return 0, models.NewPaymentError(
			models.ErrPaymentErrorAmountOutOfRange, "amount %d does not cover the %d sats fees", payerAmount, fees,
		)
	}
	return fees, nil
}

func (sdk *LiquidSdk) PrepareReceivePayment(request models.PrepareReceiveRequest) (*models.PrepareReceiveResponse, error) {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return nil, err
	}
	if err := sdk.checkBoltzVersion(); err != nil {
		return nil, err
	}

	pair, err := sdk.reversePair()
	if err != nil {
		return nil, err
	}
	fees, err := receiveFees(pair, request.PayerAmountSat)
	if err != nil {
		return nil, err
	}

	logger.Debugf("Prepared receive of %d sats with %d sats fees", request.PayerAmountSat, fees)
	return &models.PrepareReceiveResponse{
		PayerAmountSat: request.PayerAmountSat,
		FeesSat:        fees,
	}, nil
}

func newPreimage() ([]byte, error) {
	preimage := make([]byte, 32)
	if _, err := rand.Read(preimage); err != nil {
		return nil, err
	}
	return preimage, nil
}

// ReceivePayment creates an invoice for a prepared receive. The funds are claimed to the wallet once the
// invoice is paid.
func (sdk *LiquidSdk) ReceivePayment(request models.PrepareReceiveResponse) (*models.ReceivePaymentResponse, error) {
	sdk.startLock.RLock()
	defer sdk.startLock.RUnlock()
	if err := sdk.ensureStarted(); err != nil {
		return nil, err
	}

	pair, err := sdk.reversePair()
	if err != nil {
		return nil, err
	}
	fees, err := receiveFees(pair, request.PayerAmountSat)
	if err != nil {
		return nil, err
	}
	if fees != request.FeesSat {
		return nil, models.NewPaymentError(
			models.ErrPaymentErrorInvalidOrExpiredFees, "fees changed from %d to %d sats", request.FeesSat, fees,
		)
	}

	preimage, err := newPreimage()
	if err != nil {
		return nil, models.PaymentErrorFrom(models.ErrPaymentErrorGeneric, err)
	}
	preimageHash := sha256.Sum256(preimage)

	index, err := sdk.database.NextIndex(reverseKeyIndex)
	if err != nil {
		return nil, models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
	}
	claimKey, err := sdk.signer.DeriveSwapKey(boltz.ReverseSwap, index)
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorSignerError, "%v", err)
	}

	response, err := sdk.boltz.CreateReverseSwap(boltz.CreateReverseSwapRequest{
		From:           boltz.CurrencyBtc,
		To:             boltz.CurrencyLiquid,
		PreimageHash:   preimageHash[:],
		ClaimPublicKey: claimKey.PubKey().SerializeCompressed(),
		InvoiceAmount:  request.PayerAmountSat,
		PairHash:       pair.Hash,
	})
	if err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorGeneric, "could not create swap: %v", err)
	}

	swap := models.ReceiveSwap{
		Id:                response.Id,
		Preimage:          preimage,
		CreateResponse:    response,
		Invoice:           response.Invoice,
		PayerAmountSat:    request.PayerAmountSat,
		ReceiverAmountSat: request.PayerAmountSat - fees,
		ClaimFeesSat:      pair.ClaimFeeEstimate(),
		CreatedAt:         time.Now(),
		State:             models.Created,
		ClaimPrivateKey:   claimKey,
	}
	if err := sdk.checkReceiveSwap(&swap, pair); err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorGeneric, "invalid swap %s: %v", swap.Id, err)
	}

	logger.Infof("Created new Receive Swap %s for %d sats", swap.Id, swap.PayerAmountSat)

	if err := sdk.database.CreateReceiveSwap(swap); err != nil {
		return nil, models.PaymentErrorFrom(models.ErrPaymentErrorPersistError, err)
	}
	if err := sdk.nursery.RegisterReceiveSwap(&swap); err != nil {
		return nil, models.NewPaymentError(models.ErrPaymentErrorGeneric, "could not subscribe to swap: %v", err)
	}

	return &models.ReceivePaymentResponse{
		Id:      swap.Id,
		Invoice: swap.Invoice,
	}, nil
}

// checkReceiveSwap verifies the invoice, script and amount boltz returned for a receive swap
func (sdk *LiquidSdk) checkReceiveSwap(swap *models.ReceiveSwap, pair *boltz.ReversePair) error {
	response := swap.CreateResponse

	decoded, err := sdk.validateInvoice(response.Invoice)
	if err != nil {
		return err
	}
	if !bytes.Equal(decoded.PaymentHash[:], swap.PreimageHash()) {
		return fmt.Errorf("invoice payment hash does not match preimage")
	}
	if decoded.AmountSat != swap.PayerAmountSat {
		return fmt.Errorf("invoice is for %d sats instead of %d", decoded.AmountSat, swap.PayerAmountSat)
	}

	tree, err := response.SwapTree.Deserialize()
	if err != nil {
		return err
	}
	refundKey, err := btcec.ParsePubKey(response.RefundPublicKey)
	if err != nil {
		return fmt.Errorf("invalid refund public key: %w", err)
	}
	if err := tree.Init(true, swap.ClaimPrivateKey, refundKey); err != nil {
		return err
	}
	if err := tree.Check(swap.PreimageHash(), response.TimeoutBlockHeight); err != nil {
		return err
	}
	_, blindingPubKey := btcec.PrivKeyFromBytes(response.BlindingKey)
	if err := tree.CheckAddress(response.LockupAddress, sdk.network, blindingPubKey); err != nil {
		return err
	}

	if expected := pair.OnchainAmount(swap.PayerAmountSat); response.OnchainAmount < expected {
		return fmt.Errorf("onchain amount %d is less than the expected %d", response.OnchainAmount, expected)
	}
	return nil
}
